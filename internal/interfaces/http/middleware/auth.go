// Package middleware holds the gin middlewares for the HTTP surface.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/havenloop/haven/internal/config"
)

const (
	// ContextMemberID is where MemberAuth stores the caller's identity.
	ContextMemberID = "member_id"
	// ContextOperatorID is where OperatorAuth stores the operator identity.
	ContextOperatorID = "operator_id"
)

// AuthMiddleware resolves static bearer tokens into identities.  Full
// identity management is an external collaborator; the core only needs to
// know who is calling and with which scope.
type AuthMiddleware struct {
	memberTokens   map[string]string
	operatorTokens map[string]string
}

func NewAuthMiddleware(cfg config.AuthConfig) *AuthMiddleware {
	return &AuthMiddleware{
		memberTokens:   cfg.MemberTokens,
		operatorTokens: cfg.OperatorTokens,
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Browsers cannot set headers on websocket upgrades; allow the token as a
	// query parameter on those paths.
	return c.Query("token")
}

// MemberAuth admits member-scope callers.
func (m *AuthMiddleware) MemberAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		memberID, ok := m.memberTokens[token]
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "COMMON_003",
				"message": "invalid or missing member token",
			})
			return
		}
		c.Set(ContextMemberID, memberID)
		c.Next()
	}
}

// OperatorAuth admits operator-scope callers.
func (m *AuthMiddleware) OperatorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		operatorID, ok := m.operatorTokens[token]
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "COMMON_003",
				"message": "invalid or missing operator token",
			})
			return
		}
		c.Set(ContextOperatorID, operatorID)
		c.Next()
	}
}

// MemberID returns the authenticated member identity, empty when unset.
func MemberID(c *gin.Context) string {
	return c.GetString(ContextMemberID)
}

// OperatorID returns the authenticated operator identity, empty when unset.
func OperatorID(c *gin.Context) string {
	return c.GetString(ContextOperatorID)
}
