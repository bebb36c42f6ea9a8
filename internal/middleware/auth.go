package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"ridedispatch/internal/domain"
)

const identityKey = "identity"

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid token")
	errMissingClaim = errors.New("token missing subject or role")
)

// Identity is the authenticated caller.
type Identity struct {
	ID   string
	Role domain.Role
}

// Authenticator verifies HS256 tokens issued by the accounts service.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Require returns middleware that rejects requests without a valid token.
// When roles are given, the caller must hold one of them.
func (a *Authenticator) Require(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := a.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if len(roles) > 0 && !hasRole(identity.Role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("role %s not allowed", identity.Role)})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// Authenticate extracts and verifies the caller's token. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return Identity{}, errMissingToken
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errInvalidToken
	}

	id, _ := claims["sub"].(string)
	if id == "" {
		id, _ = claims["user_id"].(string)
	}
	roleClaim, _ := claims["role"].(string)
	role := domain.Role(strings.ToLower(roleClaim))
	if id == "" || (role != domain.RoleUser && role != domain.RoleCaptain) {
		return Identity{}, errMissingClaim
	}

	return Identity{ID: id, Role: role}, nil
}

// IdentityFrom returns the identity stored by Require.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

func hasRole(role domain.Role, allowed []domain.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
