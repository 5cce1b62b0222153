package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/testsets/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx so submission logs carry them.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // already rewritten by TrustedRealIP
	ua := r.Header.Get("User-Agent")
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, ua)
	return ctx
}
