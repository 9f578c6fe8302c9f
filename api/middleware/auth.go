package middleware

import (
	"net/http"

	"github.com/agrimarket/agrimarket-backend/api/responses"
	"github.com/agrimarket/agrimarket-backend/pkg/auth"
	"github.com/agrimarket/agrimarket-backend/pkg/config"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

// Auth requires a bearer token issued by the identity service and puts its
// user id and role on the request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, setupErr := auth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if setupErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, setupErr, "token verification unavailable"))
				return
			}

			raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx = WithRole(WithUserID(ctx, claims.UserID), claims.Role)
			if logg != nil {
				ctx = logg.WithRole(logg.WithUserID(ctx, claims.UserID), claims.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
