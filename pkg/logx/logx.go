// Package logx contains slog handler middlewares and helpers
// to carry request-scoped attributes through the context.
package logx

import (
	"context"
	"log/slog"
)

// HandleFunc is a function that handles a record.
type HandleFunc func(context.Context, slog.Record) error

// Middleware is a middleware for logging handler.
type Middleware func(HandleFunc) HandleFunc

// Chain wraps a handler with middlewares, the first one sees the record first.
// The middlewares are composed once, when the chain is made.
type Chain struct {
	slog.Handler
	mws    []Middleware
	handle HandleFunc
}

// NewChain makes a Chain of the given middlewares in front of h.
func NewChain(h slog.Handler, mws ...Middleware) *Chain {
	handle := h.Handle
	for i := len(mws) - 1; i >= 0; i-- {
		handle = mws[i](handle)
	}
	return &Chain{Handler: h, mws: mws, handle: handle}
}

// Handle passes the record through the middlewares to the handler.
func (c *Chain) Handle(ctx context.Context, rec slog.Record) error {
	return c.handle(ctx, rec)
}

// WithGroup returns a new Chain with the same middlewares in front of
// the grouped handler.
func (c *Chain) WithGroup(group string) slog.Handler {
	return NewChain(c.Handler.WithGroup(group), c.mws...)
}

// WithAttrs returns a new Chain with the same middlewares in front of
// the handler with attrs.
func (c *Chain) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewChain(c.Handler.WithAttrs(attrs), c.mws...)
}

type requestIDKey struct{}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(parent context.Context, reqID string) context.Context {
	return context.WithValue(parent, requestIDKey{}, reqID)
}

// RequestIDFromContext returns request id from context.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok
}

// RequestID adds the request id from the context, if any, to the record.
func RequestID() Middleware {
	return func(next HandleFunc) HandleFunc {
		return func(ctx context.Context, rec slog.Record) error {
			if reqID, ok := RequestIDFromContext(ctx); ok {
				rec.AddAttrs(slog.String("request_id", reqID))
			}
			return next(ctx, rec)
		}
	}
}

// NoOp returns a handler that discards every record.
func NoOp() slog.Handler { return noop{} }

type noop struct{}

func (noop) Enabled(context.Context, slog.Level) bool  { return false }
func (noop) Handle(context.Context, slog.Record) error { return nil }
func (n noop) WithAttrs([]slog.Attr) slog.Handler      { return n }
func (n noop) WithGroup(string) slog.Handler           { return n }
