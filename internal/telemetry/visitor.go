package telemetry

import "context"

type visitorContextKey struct{}

// Visitor identifies who an event belongs to. Sinks that record events
// locally read it from the context passed to Send.
type Visitor struct {
	VisitorID string
	SessionID string
}

// WithVisitor stores visitor identity in context.
func WithVisitor(ctx context.Context, v Visitor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, visitorContextKey{}, v)
}

// VisitorFromContext returns the visitor stored in context, if any.
func VisitorFromContext(ctx context.Context) Visitor {
	if ctx == nil {
		return Visitor{}
	}
	v, _ := ctx.Value(visitorContextKey{}).(Visitor)
	return v
}
