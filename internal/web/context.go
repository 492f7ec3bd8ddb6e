package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/nurserymap/internal/core"
)

// refreshContext detaches an API-triggered refresh from the request so a
// disconnecting client does not abort the rebuild, while keeping request
// values such as the request ID.
func refreshContext(r *http.Request) context.Context {
	ctx := context.WithoutCancel(r.Context())
	return core.ContextWithTrigger(ctx, core.TriggerAPI)
}

// clientIP returns the request's client address without the port.
// TrustedRealIP has already resolved proxied addresses.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
