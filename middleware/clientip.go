package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/identityauth"
)

// ClientIP stores the peer address on the request context for login
// throttling and audit records. Forwarding headers are not trusted.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(identityauth.WithClientIP(r.Context(), host)))
	})
}
