package middleware

import (
	"errors"
	"net/http"
	"strings"

	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
	"github.com/jd52dev/excursion/internal/security"
	"github.com/jd52dev/excursion/internal/transport/http/response"
)

type AuthMiddleware struct {
	verifier security.AccessTokenVerifier
}

func NewAuth(verifier security.AccessTokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Require rejects requests without a valid bearer token and puts the caller
// into the request context.
func (a *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := appCtx.GetRequestID(r.Context())

		raw, ok := bearer(r)
		if !ok {
			response.Fail(w, http.StatusUnauthorized, "unauthorized", "unauthorized",
				map[string]string{"reason": "missing bearer token"}, rid)
			return
		}

		claims, err := a.verifier.VerifyAccessToken(raw)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				response.Fail(w, http.StatusUnauthorized, "token_expired", "token expired", nil, rid)
				return
			}
			response.Fail(w, http.StatusUnauthorized, "unauthorized", "unauthorized",
				map[string]string{"reason": err.Error()}, rid)
			return
		}

		role := claims.Role
		if role == "" {
			role = "user"
		}
		ctx := appCtx.WithActor(r.Context(), appCtx.Actor{UserID: claims.UserID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearer(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(h[7:])
	return raw, raw != ""
}

// UserID returns the authenticated caller, or "" outside Require.
func UserID(r *http.Request) string {
	a, _ := appCtx.GetActor(r.Context())
	return a.UserID
}
