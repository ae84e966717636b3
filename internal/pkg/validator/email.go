package validator

import (
	"errors"
	"net/mail"
	"strings"
)

// Address checks that addr is a bare mailbox such as ops@example.com.
// Display-name forms are rejected because the SMTP envelope needs the
// bare address.
func Address(addr string) error {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.New("invalid email format")
	}

	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return errors.New("invalid email format")
	}
	if parsed.Address != addr {
		return errors.New("email must not include a display name")
	}

	if !strings.Contains(parts[1], ".") {
		return errors.New("email domain must be fully qualified")
	}

	return nil
}
