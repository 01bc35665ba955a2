package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/UkralStul/blog-service/internal/domain"
)

type identityKey struct{}

// Authenticator turns an access token into an identity.
type Authenticator interface {
	Authenticate(token string) (domain.Identity, error)
}

// requireAuth rejects requests without a token (401) or with an invalid one (403).
// The token may be sent raw or with a "Bearer " prefix.
func requireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("Authorization"))
			token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
			if token == "" {
				writeError(w, r, domain.Unauthorized("you are not authorized"))
				return
			}

			id, err := auth.Authenticate(token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFrom(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(identityKey{}).(domain.Identity)
	return id
}
