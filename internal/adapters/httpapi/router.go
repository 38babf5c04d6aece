// Package httpapi wires the hub's outward HTTP surface: the websocket
// endpoint plus the operational endpoints consumed by tooling.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/synclab/synchub/internal/adapters/ws"
	"github.com/synclab/synchub/internal/config"
)

func SetupRouter(cfg *config.Config, sup *ws.Supervisor, prom *prometheus.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/ws", sup.HandleWS)

	h := &healthHandler{sup: sup}
	r.GET("/health", h.health)
	r.GET("/ready", h.ready)
	r.GET("/live", h.live)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(prom, promhttp.HandlerOpts{})))

	log.Info().Str("module", "httpapi").Msg("router setup")
	return r
}
