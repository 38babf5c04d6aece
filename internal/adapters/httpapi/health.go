package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synclab/synchub/internal/adapters/ws"
	"github.com/synclab/synchub/internal/domain"
)

type healthHandler struct {
	sup *ws.Supervisor
}

func (h *healthHandler) health(c *gin.Context) {
	st := h.sup.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptimeSeconds": int64(st.Uptime.Seconds()),
		"connections":   st.Connections,
		"rooms": gin.H{
			"session": st.Rooms[domain.RoomSession],
			"project": st.Rooms[domain.RoomProject],
		},
		"checks": gin.H{
			"websocket": "ok",
		},
	})
}

func (h *healthHandler) ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *healthHandler) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
