package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-auth-service/internal/logger"
	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
}

type identityContextKey struct{}

type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth rejects the request unless it carries a valid bearer token for
// an existing, unbanned user.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		token, ok := bearerToken(r)
		if !ok {
			log.WarnContext(r.Context(), "authentication failed",
				slog.String("reason", "no token"),
				slog.String("ip", ClientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			)
			writeError(w, apierror.Unauthenticated("No token provided"))
			return
		}

		identity, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			var apiErr *apierror.APIError
			if errors.As(err, &apiErr) {
				log.WarnContext(r.Context(), "authentication failed",
					slog.String("reason", apiErr.Message),
					slog.String("ip", ClientIP(r)),
					slog.String("user_agent", r.UserAgent()),
				)
			} else {
				log.ErrorContext(r.Context(), "authentication error", slog.String("error", err.Error()))
			}
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// OptionalAuth attaches an identity when one can be established and
// otherwise continues anonymously.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			logger.FromContext(r.Context()).DebugContext(r.Context(), "optional authentication skipped", slog.String("ip", ClientIP(r)))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	roleSet := make(map[model.Role]struct{}, len(allowed))
	for _, role := range allowed {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, apierror.Unauthenticated("Authentication required"))
				return
			}

			if _, allowed := roleSet[identity.Role]; !allowed {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "role check failed",
					slog.String("user_id", identity.UserID),
					slog.String("role", string(identity.Role)),
				)
				writeError(w, apierror.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

var (
	RequireAdmin     = RequireRoles(model.RoleAdmin)
	RequireModerator = RequireRoles(model.RoleMod, model.RoleAdmin)
	RequireVIP       = RequireRoles(model.RoleVIP, model.RoleVIPPlus, model.RoleMod, model.RoleAdmin)
)

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(model.Identity)
	return identity, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
