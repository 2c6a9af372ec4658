package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"streetmaint/internal/stream"
)

// StreamHandler upgrades clients onto the visibility-update websocket.
type StreamHandler struct {
	Hub    *stream.Hub
	Logger *zap.Logger
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/vehicles/stream", h.stream)
}

func (h *StreamHandler) stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.Logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	updates, cancel := h.Hub.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			if err := wsjson.Write(ctx, conn, update); err != nil {
				return
			}
		}
	}
}
