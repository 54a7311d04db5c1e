package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/ws"
)

type WSHandler struct {
	Hub      *ws.Hub
	Verifier *auth.Verifier
	Rooms    ws.RoomAuthorizer

	InsecureSkipVerify bool
	OriginPatterns     []string
}

// Handle upgrades GET /ws?token=... The token is checked before the upgrade
// so a bad one gets a plain 401 and no socket.
func (h *WSHandler) Handle(c *gin.Context) {
	// Browsers cannot set Authorization on a websocket handshake.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}

	p, err := h.Verifier.Verify(tokenStr)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: h.InsecureSkipVerify,
		OriginPatterns:     h.OriginPatterns,
	})
	if err != nil {
		return // Accept already wrote the response
	}

	client := h.Hub.AddClient(p, conn)
	h.Hub.Serve(c.Request.Context(), client, h.Rooms)
}
