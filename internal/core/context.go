package core

import "context"

type contextKey string

const ctxKeyClient contextKey = "client"

// Client identifies who issued a request. It is attached by the HTTP layer and
// copied into upload history events.
type Client struct {
	IPAddress string
	UserAgent string
}

// ContextWithClient returns a copy of ctx carrying c.
func ContextWithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, ctxKeyClient, c)
}

// ClientFromContext returns the Client stored in ctx, or the zero value.
func ClientFromContext(ctx context.Context) Client {
	c, _ := ctx.Value(ctxKeyClient).(Client)
	return c
}
