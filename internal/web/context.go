package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// WithRequestMetadata stores the client address and user agent of r for
// audit entries. RemoteAddr has been rewritten by TrustedRealIP by then.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientHost(r.RemoteAddr))
	return core.ContextWithUserAgent(ctx, r.UserAgent())
}

// clientHost drops the port from a "host:port" address.
func clientHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}
