package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const secondsPerDay = 24 * 60 * 60

// Accepted expiry layouts. GitLab reports token expiry as a plain date, but
// full timestamps with or without an offset are accepted as well.
var expiryLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04-07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04-07:00",
	"2006-01-02 15:04:05-07:00",
}

var ErrInvalidExpiry = errors.New("invalid expiry timestamp")

// ParseExpiry parses an ISO-8601 expiry. A trailing "Z" is read as +00:00.
// The offset is then discarded: the result carries the wall-clock fields
// of the input in UTC so it can be compared against a naive "now".
func ParseExpiry(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if strings.HasSuffix(value, "Z") {
		value = strings.TrimSuffix(value, "Z") + "+00:00"
	}

	for _, layout := range expiryLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return naive(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, raw)
}

// naive drops the zone of t and keeps its wall clock.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// daysBetween returns the whole days from a to b, truncated toward negative
// infinity. It works on Unix seconds so spans beyond the range of
// time.Duration stay exact.
func daysBetween(a, b time.Time) int {
	secs := b.Unix() - a.Unix()
	if b.Nanosecond() < a.Nanosecond() {
		secs--
	}
	n := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		n--
	}
	return int(n)
}

// Classify computes the status and days-until-expiry of a single token and
// reports which bucket it belongs to. The returned error is non-nil only for
// an unparseable expiry, in which case the token is still categorised
// (Healthy, status Error) and the error is advisory.
func Classify(t Token, thresholdDays int, now time.Time) (Token, Category, error) {
	if t.ExpiresAt == "" {
		t.Status = StatusNoExpiration
		t.DaysUntilExpiry = DaysNever
		return t, CategoryNoExpiration, nil
	}

	expiresAt, err := ParseExpiry(t.ExpiresAt)
	if err != nil {
		// Unreadable expiries stay visible but are not escalated.
		t.Status = StatusError
		t.DaysUntilExpiry = DaysUnknown
		return t, CategoryHealthy, err
	}

	current := naive(now)
	threshold := current.AddDate(0, 0, thresholdDays)
	t.DaysUntilExpiry = DaysOf(daysBetween(current, expiresAt))

	switch {
	case !expiresAt.After(current):
		t.Status = StatusExpired
		return t, CategoryExpired, nil
	case !expiresAt.After(threshold):
		t.Status = StatusExpiringSoon
		return t, CategoryExpiringSoon, nil
	default:
		t.Status = StatusHealthy
		return t, CategoryHealthy, nil
	}
}

// ClassifyBatch classifies every token against the same instant and
// threshold. No token is dropped: TotalCount always equals len(batch).
func ClassifyBatch(batch []Token, thresholdDays int, now time.Time) *Analysis {
	analysis := &Analysis{TotalCount: len(batch)}

	for _, t := range batch {
		classified, category, err := Classify(t.clone(), thresholdDays, now)
		if err != nil {
			log.Warn().Err(err).
				Int64("token_id", t.ID).
				Str("token_name", t.DisplayName()).
				Str("scope", t.Scope().String()).
				Msg("failed to parse token expiry")
		}
		analysis.add(category, classified)
	}

	return analysis
}
