package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxUserID      = "user_id"
	ctxWorkspaceID = "workspace_id"
)

type TokenParser interface {
	ParseToken(token string) (userID, workspaceID uuid.UUID, err error)
}

// JWT authenticates "Authorization: Bearer <token>". When the route has a
// :workspace_id parameter it must match the token's workspace.
func JWT(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, workspaceID, err := tokens.ParseToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if raw := c.Param("workspace_id"); raw != "" {
			pathWS, err := uuid.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
				return
			}
			if pathWS != workspaceID {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "workspace mismatch"})
				return
			}
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxWorkspaceID, workspaceID)
		c.Next()
	}
}

// UserID returns the authenticated user set by JWT.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// WorkspaceID returns the workspace carried by the token.
func WorkspaceID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxWorkspaceID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
