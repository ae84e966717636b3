package context

import stdcontext "context"

type Key string

const RequestID Key = "request_id"

// RequestIDFrom returns the id set by the logging middleware, or "".
func RequestIDFrom(ctx stdcontext.Context) string {
	id, _ := ctx.Value(RequestID).(string)
	return id
}
