// Package ws owns the connection lifecycle: accept, authenticate,
// rate-limit, relay, detect liveness failure, clean up.
package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/synclab/synchub/internal/auth"
	"github.com/synclab/synchub/internal/config"
	"github.com/synclab/synchub/internal/domain"
	"github.com/synclab/synchub/internal/hub"
	"github.com/synclab/synchub/internal/metrics"
	"github.com/synclab/synchub/internal/ratelimit"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Supervisor owns every live connection and is the hub's delivery fabric:
// the broadcast router hands it frames addressed to connections or
// identities.
type Supervisor struct {
	cfg       *config.Config
	auth      *auth.Authenticator
	limiter   *ratelimit.Limiter
	registry  *hub.Registry
	collector *metrics.Collector
	router    *hub.Router

	mu      sync.RWMutex
	conns   map[domain.ConnID]*conn
	byUser  map[domain.UserID]map[domain.ConnID]*conn
	started time.Time
}

func NewSupervisor(cfg *config.Config, a *auth.Authenticator, l *ratelimit.Limiter, reg *hub.Registry, collector *metrics.Collector) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		auth:      a,
		limiter:   l,
		registry:  reg,
		collector: collector,
		conns:     make(map[domain.ConnID]*conn),
		byUser:    make(map[domain.UserID]map[domain.ConnID]*conn),
		started:   time.Now(),
	}
}

// AttachRouter closes the construction cycle: the router needs the
// supervisor as its delivery and the supervisor relays inbound events to
// the router.
func (s *Supervisor) AttachRouter(r *hub.Router) { s.router = r }

// HandleWS performs the handshake. A connection that fails authentication
// or rate limiting is answered with the structured error and never
// registered anywhere.
func (s *Supervisor) HandleWS(c *gin.Context) {
	addr := c.ClientIP()
	if !s.limiter.Admit(addr) {
		s.collector.EventsRejected.WithLabelValues(string(domain.CategoryRateLimit)).Inc()
		c.JSON(http.StatusTooManyRequests, errorFrame(domain.Errorf(domain.CategoryRateLimit, "connection quota exceeded")))
		return
	}

	identity, err := s.auth.Authenticate(bearerToken(c))
	if err != nil {
		s.collector.EventsRejected.WithLabelValues(string(domain.CategoryAuth)).Inc()
		c.JSON(http.StatusUnauthorized, errorFrame(domain.Errorf(domain.CategoryAuth, "%s", err)))
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}

	cn := newConn(identity, addr, wsConn, sendBuffer)
	s.mu.Lock()
	s.conns[cn.id] = cn
	byID, ok := s.byUser[identity.ID]
	if !ok {
		byID = make(map[domain.ConnID]*conn)
		s.byUser[identity.ID] = byID
	}
	byID[cn.id] = cn
	s.mu.Unlock()
	s.collector.ConnectionsActive.Inc()

	log.Info().Str("module", "ws").Str("conn", string(cn.id)).Str("user", string(identity.ID)).
		Bool("provisional", identity.Provisional).Msg("connection admitted")

	go s.writePump(cn)
	go s.readPump(cn)
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	if h := c.GetHeader("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return c.Query("token")
}

func (s *Supervisor) readPump(c *conn) {
	defer s.drop(c)

	// Liveness window: missing this many ping periods in a row closes the
	// connection through the same path as a client disconnect.
	liveness := s.cfg.PingPeriod * time.Duration(s.cfg.MissedPings)
	c.ws.SetReadLimit(s.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(liveness))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(liveness))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("read error")
			}
			return
		}
		s.handleFrame(c, data)
	}
}

func (s *Supervisor) writePump(c *conn) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		s.drop(c)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("module", "ws").Str("conn", string(c.id)).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame processes one inbound frame. A failure here must not take
// down the hub or affect other rooms, so the handler is fenced off.
func (s *Supervisor) handleFrame(c *conn, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("module", "ws").Str("conn", string(c.id)).
				Msg("event handler panicked")
			s.collector.EventsRejected.WithLabelValues(string(domain.CategorySystem)).Inc()
			s.sendError(c, domain.Errorf(domain.CategorySystem, "internal error"))
		}
	}()

	if !s.limiter.Admit(c.remote) {
		s.collector.EventsRejected.WithLabelValues(string(domain.CategoryRateLimit)).Inc()
		s.sendError(c, domain.Errorf(domain.CategoryRateLimit, "message quota exceeded"))
		return
	}

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		s.collector.EventsRejected.WithLabelValues(string(domain.CategoryValidation)).Inc()
		s.sendError(c, domain.Errorf(domain.CategoryValidation, "malformed event"))
		return
	}

	switch env.Type {
	case domain.OpJoinSession:
		s.handleJoin(c, domain.RoomSession, data)
	case domain.OpJoinProject:
		s.handleJoin(c, domain.RoomProject, data)
	case domain.OpLeaveSession:
		s.handleLeave(c, domain.RoomSession, data)
	case domain.OpLeaveProject:
		s.handleLeave(c, domain.RoomProject, data)
	case string(domain.EventSystemStatus):
		s.handleStatus(c)
	default:
		if err := s.router.Accept(hub.Sender{Conn: c.id, From: c.identity}, domain.EventKind(env.Type), data); err != nil {
			s.collector.EventsRejected.WithLabelValues(string(err.Category)).Inc()
			s.sendError(c, err)
		}
	}
}

// ToConn implements hub.Delivery.
func (s *Supervisor) ToConn(id domain.ConnID, frame []byte) {
	s.mu.RLock()
	c, ok := s.conns[id]
	s.mu.RUnlock()
	if ok {
		s.deliver(c, frame)
	}
}

// ToIdentity implements hub.Delivery: the frame goes to every connection
// the identity currently holds.
func (s *Supervisor) ToIdentity(uid domain.UserID, frame []byte) {
	s.mu.RLock()
	conns := make([]*conn, 0, len(s.byUser[uid]))
	for _, c := range s.byUser[uid] {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	for _, c := range conns {
		s.deliver(c, frame)
	}
}

func (s *Supervisor) deliver(c *conn, frame []byte) {
	if err := c.trySend(frame); err != nil {
		if errors.Is(err, errBackpressure) {
			log.Warn().Str("module", "ws").Str("conn", string(c.id)).Msg("slow consumer, closing")
			go s.drop(c)
		}
	}
}

func (s *Supervisor) sendJSON(c *conn, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("marshal frame")
		return
	}
	s.deliver(c, frame)
}

func (s *Supervisor) sendError(c *conn, e *domain.Error) {
	s.sendJSON(c, errorFrame(e))
}

// drop is the single cleanup path. Client close, liveness failure,
// backpressure kick and server shutdown all land here; memberships are
// removed before the socket closes so no later event can deliver to a
// half-closed connection.
func (s *Supervisor) drop(c *conn) {
	s.mu.Lock()
	if _, ok := s.conns[c.id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.conns, c.id)
	if byID := s.byUser[c.identity.ID]; byID != nil {
		delete(byID, c.id)
		if len(byID) == 0 {
			delete(s.byUser, c.identity.ID)
		}
	}
	s.mu.Unlock()

	for _, key := range c.takeRooms() {
		left, _ := s.registry.Leave(key, c.identity.ID)
		if left {
			s.notifyMembership(key, c.identity, domain.FrameMemberLeft)
		}
	}
	s.updateRoomGauges()
	c.close()
	s.collector.ConnectionsActive.Dec()
	log.Info().Str("module", "ws").Str("conn", string(c.id)).Str("user", string(c.identity.ID)).Msg("connection closed")
}

// Shutdown announces termination to every client, waits out the grace
// period and closes all connections.
func (s *Supervisor) Shutdown(grace time.Duration) {
	frame, _ := json.Marshal(shutdownFrame{Type: domain.FrameSystemShutdown, Message: "server shutting down"})

	s.mu.RLock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		_ = c.trySend(frame)
	}
	if grace > 0 {
		time.Sleep(grace)
	}
	for _, c := range conns {
		s.drop(c)
	}
}

// Snapshot is the operational view consumed by system_status and the
// health surface.
type Snapshot struct {
	Connections int
	Rooms       map[domain.RoomKind]int
	Processed   uint64
	Uptime      time.Duration
}

func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	n := len(s.conns)
	s.mu.RUnlock()
	snap := Snapshot{
		Connections: n,
		Rooms:       s.registry.Counts(),
		Uptime:      time.Since(s.started),
	}
	if s.router != nil {
		snap.Processed = s.router.Processed()
	}
	return snap
}

func (s *Supervisor) updateRoomGauges() {
	for kind, n := range s.registry.Counts() {
		s.collector.RoomsActive.WithLabelValues(string(kind)).Set(float64(n))
	}
}
