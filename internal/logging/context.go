package logging

import "context"

type traceIDKey struct{}

// WithTraceID returns ctx carrying id. Loggers add it to every line
// logged with that context.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceID returns the id stored by WithTraceID, or "".
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

func withTrace(ctx context.Context, args []any) []any {
	if id := TraceID(ctx); id != "" {
		return append(args, "trace_id", id)
	}
	return args
}
