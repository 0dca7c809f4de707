package middleware

import (
	"net/http"
	"strings"

	"github.com/stackvoice/provision-ai-platform/internal/identity"
)

// RequireRequester attaches the requester identity from the gateway-supplied
// headers. Requests without an id are refused; the service never trusts a
// request to speak for an unnamed user.
func RequireRequester() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get("X-Requester-Id"))
			if id == "" {
				http.Error(w, "missing requester identity", http.StatusUnauthorized)
				return
			}
			principal := identity.Principal{
				ID:    id,
				Email: strings.TrimSpace(r.Header.Get("X-Requester-Email")),
				Name:  strings.TrimSpace(r.Header.Get("X-Requester-Name")),
			}
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
		})
	}
}
