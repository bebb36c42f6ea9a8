package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/middleware"
)

// SocketServer upgrades a request into a delivery connection.
type SocketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, role domain.Role, participantID string) error
}

// SocketHandler handles websocket connections.
type SocketHandler struct {
	hub SocketServer
}

// NewSocketHandler creates a new SocketHandler.
func NewSocketHandler(hub SocketServer) *SocketHandler {
	return &SocketHandler{hub: hub}
}

// Connect handles GET /ws
func (h *SocketHandler) Connect(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, identity.Role, identity.ID); err != nil {
		log.Printf("[WS] %s %s: connect failed: %v", identity.Role, identity.ID, err)
	}
}
