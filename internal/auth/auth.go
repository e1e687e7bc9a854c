// Package auth implements chartvault's minimal push/delete gate: HTTP Basic
// or a bearer JWT, either accepted, neither required when no credentials
// are configured. GET routes (index, chart download) never go through this
// gate.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errNoJWTSecret = errors.New("auth: no JWT secret configured")

// Gate guards chartvault's mutating routes.
type Gate struct {
	basicUser string
	basicPass string
	jwtSecret []byte
}

// New builds a Gate from the configured basic-auth pair and JWT secret. Any
// combination of empty values is valid; an empty basicUser disables Basic,
// an empty jwtSecret disables Bearer, and both empty disables the gate
// entirely (open repository mode).
func New(basicUser, basicPass, jwtSecret string) *Gate {
	return &Gate{basicUser: basicUser, basicPass: basicPass, jwtSecret: []byte(jwtSecret)}
}

// Enabled reports whether any credentials are configured. An unconfigured
// Gate's Middleware is still safe to register — it simply always passes.
func (g *Gate) Enabled() bool {
	return g.basicUser != "" || len(g.jwtSecret) > 0
}

// Middleware returns the gin.HandlerFunc to apply to mutating routes.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		switch {
		case strings.HasPrefix(header, "Bearer "):
			if g.checkBearer(strings.TrimPrefix(header, "Bearer ")) {
				c.Next()
				return
			}
		case strings.HasPrefix(header, "Basic "):
			if user, pass, ok := c.Request.BasicAuth(); ok && g.checkBasic(user, pass) {
				c.Next()
				return
			}
		}

		c.Header("WWW-Authenticate", `Basic realm="chartvault"`)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		c.Abort()
	}
}

func (g *Gate) checkBasic(user, pass string) bool {
	if g.basicUser == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.basicUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.basicPass)) == 1
	return userOK && passOK
}

func (g *Gate) checkBearer(tokenString string) bool {
	if len(g.jwtSecret) == 0 {
		return false
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil && token.Valid
}

// IssueToken mints an HS256 token for machine clients (CI pipelines), valid
// for ttl. Returns an error if no JWT secret is configured.
func (g *Gate) IssueToken(subject string, ttl time.Duration) (string, error) {
	if len(g.jwtSecret) == 0 {
		return "", errNoJWTSecret
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.jwtSecret)
}
