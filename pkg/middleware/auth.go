package middleware

import (
	"errors"
	"net/http"
	"strings"

	apperrors "calendra/pkg/errors"
	httputil "calendra/pkg/http"
	"calendra/pkg/identity"
	"calendra/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ActorIDHeader   = "X-Actor-ID"
	ActorRoleHeader = "X-Actor-Role"
)

// Claims carries the caller identity in the subject and an optional role.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate validates an HS256 bearer token and stores the actor in the
// request context. A token whose role equals adminRole yields a privileged actor.
func Authenticate(secret, adminRole string, log *logger.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r.Header.Get("Authorization"))
			if tokenString == "" {
				_ = httputil.WriteError(w, apperrors.Unauthorized("missing bearer token"))
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				log.Warn("Rejected bearer token",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				_ = httputil.WriteError(w, apperrors.Unauthorized(tokenErrorMessage(err)))
				return
			}
			if claims.Subject == "" {
				_ = httputil.WriteError(w, apperrors.Unauthorized("token has no subject"))
				return
			}

			actor := identity.Actor{
				ID:         claims.Subject,
				Privileged: adminRole != "" && claims.Role == adminRole,
			}
			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}

// HeaderIdentity trusts X-Actor-ID and X-Actor-Role. Only for local development
// behind a trusted proxy; requests without an actor are rejected.
func HeaderIdentity(adminRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(ActorIDHeader))
			if id == "" {
				_ = httputil.WriteError(w, apperrors.Unauthorized("missing "+ActorIDHeader+" header"))
				return
			}

			actor := identity.Actor{
				ID:         id,
				Privileged: adminRole != "" && r.Header.Get(ActorRoleHeader) == adminRole,
			}
			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}

// IssueToken signs a token for subject. Used by the load generator and tests.
func IssueToken(secret, subject, role string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: role, RegisteredClaims: claims})
	return token.SignedString([]byte(secret))
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func tokenErrorMessage(err error) string {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "token expired"
	}
	return "invalid token"
}
