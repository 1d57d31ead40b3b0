package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"image-variants/internal/config"
	"image-variants/internal/http-server/handler/image/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wb-go/wbf/zlog"
)

const tokenCookieName = "Bearer"

var (
	ErrMissingToken = errors.New("authorization token required")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the token claims the service reads: the subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID  string
	IsAdmin bool
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type Authenticator struct {
	secret    []byte
	adminRole string
	issuer    string
	logger    *zlog.Zerolog
}

func NewAuthenticator(cfg config.AuthConfig, logger *zlog.Zerolog) *Authenticator {
	return &Authenticator{
		secret:    []byte(cfg.JWTSecret),
		adminRole: cfg.AdminRole,
		issuer:    cfg.Issuer,
		logger:    logger,
	}
}

// Authenticate validates an HMAC-signed token and returns its principal.
func (a *Authenticator) Authenticate(tokenString string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Principal{
		UserID:  claims.Subject,
		IsAdmin: a.adminRole != "" && strings.EqualFold(claims.Role, a.adminRole),
	}, nil
}

// RequireAuth rejects requests without a valid token and stores the caller's
// principal in the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, ErrMissingToken.Error())
			return
		}

		principal, err := a.Authenticate(tokenString)
		if err != nil {
			a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected token")
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// tokenFromRequest reads the Authorization header first and falls back to
// the Bearer cookie used by browsers.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
