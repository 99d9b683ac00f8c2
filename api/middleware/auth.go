package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/finxan/finxan-backend/api/responses"
	pkgAuth "github.com/finxan/finxan-backend/pkg/auth"
	"github.com/finxan/finxan-backend/pkg/db/models"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
)

// UserResolver maps a verified identity onto the local user row, creating it on first sight.
type UserResolver interface {
	Resolve(ctx context.Context, identity pkgAuth.Identity) (*models.User, error)
}

// Auth verifies the Firebase ID token and seeds the request context with the local user id.
func Auth(verifier pkgAuth.TokenVerifier, users UserResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			if verifier == nil || users == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "authentication not configured"))
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if pkgerrors.As(err) == nil {
					err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			user, err := users.Resolve(r.Context(), *identity)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithUserID(r.Context(), user.ID)
			ctx = withFirebaseUID(ctx, identity.UID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, user.ID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
