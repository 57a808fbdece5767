package ws

import (
	"net/http"

	"github.com/zanphear/planview/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// TokenParser validates a bearer token and returns its subject.
type TokenParser interface {
	ParseToken(token string) (userID, workspaceID uuid.UUID, err error)
}

type HandlerOptions struct {
	AllowedOrigin string
	SendBuffer    int
}

// HandleWS upgrades GET /ws/:workspace_id?token=... once the token is valid
// for that workspace.
func HandleWS(hub *Hub, tokens TokenParser, opts HandlerOptions) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if opts.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == opts.AllowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		userID, tokenWorkspace, err := tokens.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		workspaceID, err := uuid.Parse(c.Param("workspace_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workspace id"})
			return
		}
		if workspaceID != tokenWorkspace {
			c.JSON(http.StatusForbidden, gin.H{"error": "workspace mismatch"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(userID, workspaceID, conn, hub, opts.SendBuffer)
		go client.Run()
	}
}
