package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"
	"profile-registry/pkg/auth"
	"profile-registry/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity issued by the upstream identity provider. Only the
// subject and role are read.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errNoToken = errors.New("no bearer token")

// Verifier checks bearer tokens. HS256 tokens are verified with the shared
// secret; RS256 tokens are verified against the JWKS provider when one is set.
type Verifier struct {
	secret []byte
	jwks   *auth.Provider
}

func NewVerifier(secret string, jwks *auth.Provider) *Verifier {
	return &Verifier{secret: []byte(secret), jwks: jwks}
}

func (v *Verifier) methods() []string {
	var m []string
	if len(v.secret) > 0 {
		m = append(m, jwt.SigningMethodHS256.Alg())
	}
	if v.jwks != nil {
		m = append(m, jwt.SigningMethodRS256.Alg())
	}
	return m
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	case *jwt.SigningMethodRSA:
		return v.jwks.KeyFunc(token)
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

// AuthMiddleware requires a valid bearer token and stores the caller's
// id and role on the context.
func AuthMiddleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := v.parseBearer(c)
		if err != nil {
			if !errors.Is(err, errNoToken) {
				logger.Log.Warn("Token validation failed", slog.String("error", err.Error()), slog.String("path", c.FullPath()))
			}
			abortWith(c, apperror.Unauthorized("A valid bearer token is required"))
			return
		}
		setActor(c, claims)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a token is present and lets
// anonymous requests through. A present but invalid token is rejected.
func OptionalAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := v.parseBearer(c)
		switch {
		case errors.Is(err, errNoToken):
		case err != nil:
			abortWith(c, apperror.Unauthorized("Invalid token"))
			return
		default:
			setActor(c, claims)
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, c.GetString(string(domain.KeyUserRole))) {
			abortWith(c, apperror.Forbidden("Insufficient role for this operation"))
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated caller, or the zero Actor for
// anonymous requests.
func ActorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:   c.GetString(string(domain.KeyUserID)),
		Role: c.GetString(string(domain.KeyUserRole)),
	}
}

func (v *Verifier) parseBearer(c *gin.Context) (*Claims, error) {
	header := c.GetHeader("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return nil, errNoToken
	}
	methods := v.methods()
	if len(methods) == 0 {
		return nil, errors.New("token received but no verification key is configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, jwt.WithValidMethods(methods))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func setActor(c *gin.Context, claims *Claims) {
	role := claims.Role
	if role == "" {
		role = domain.RoleOwner // Fallback
	}
	c.Set(string(domain.KeyUserID), claims.Subject)
	c.Set(string(domain.KeyUserRole), role)
}

func abortWith(c *gin.Context, err *apperror.AppError) {
	_ = c.Error(err)
	c.Abort()
}
