package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/WholesaleGo/pkg/httputil"
	"github.com/utafrali/WholesaleGo/pkg/logger"
)

type contextKeyType string

const (
	userIDKey    contextKeyType = "user_id"
	roleKey      contextKeyType = "role"
	companyIDKey contextKeyType = "company_id"
)

// Claims are the caller attributes the auth middleware puts on the context.
type Claims struct {
	UserID    string
	Role      string
	CompanyID uuid.UUID
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

var errInvalidClaims = errors.New("invalid token claims")

type tokenClaims struct {
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// NewHMACValidator returns a TokenValidator for HS256/384/512 tokens signed
// with secret. Tokens must carry sub, role and company_id.
func NewHMACValidator(secret string) TokenValidator {
	return func(raw string) (*Claims, error) {
		var tc tokenClaims
		token, err := jwt.ParseWithClaims(raw, &tc, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithExpirationRequired())
		if err != nil {
			return nil, err
		}
		if !token.Valid || tc.Subject == "" || tc.Role == "" {
			return nil, errInvalidClaims
		}

		companyID, err := uuid.Parse(tc.CompanyID)
		if err != nil {
			return nil, errInvalidClaims
		}

		return &Claims{UserID: tc.Subject, Role: tc.Role, CompanyID: companyID}, nil
	}
}

// Auth validates the bearer token and stores user, role and company on the
// request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid authorization header format")
				return
			}

			claims, err := validate(token)
			if err != nil {
				httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.WithUserID(ctx, claims.UserID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(
				slog.String("user_id", claims.UserID),
				slog.String("company_id", claims.CompanyID.String()),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := roleSet[RoleFromContext(r.Context())]; !ok {
				httputil.WriteErrorCode(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores claims on ctx. Tests use it to bypass token parsing.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, c.UserID)
	ctx = context.WithValue(ctx, roleKey, c.Role)
	return context.WithValue(ctx, companyIDKey, c.CompanyID)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// RoleFromContext extracts the user role from the request context.
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

// CompanyIDFromContext returns the tenant of the authenticated caller.
func CompanyIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(companyIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
