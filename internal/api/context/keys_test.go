package context

import (
	stdcontext "context"
	"testing"
)

func TestRequestIDFrom(t *testing.T) {
	if got := RequestIDFrom(stdcontext.Background()); got != "" {
		t.Errorf("Expected empty id, got %q", got)
	}
	ctx := stdcontext.WithValue(stdcontext.Background(), RequestID, "req-1")
	if got := RequestIDFrom(ctx); got != "req-1" {
		t.Errorf("RequestIDFrom() = %q, want %q", got, "req-1")
	}
}
