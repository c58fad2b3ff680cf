package web

import (
	"net/http"

	"github.com/JonMunkholm/ministats/internal/core"
	"github.com/JonMunkholm/ministats/internal/web/middleware"
)

// withClient attaches the caller's address and user agent for upload history.
// The address is already resolved by TrustedRealIP.
func withClient(r *http.Request) *http.Request {
	ctx := core.ContextWithClient(r.Context(), core.Client{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	return r.WithContext(ctx)
}
