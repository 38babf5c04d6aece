package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/synclab/synchub/internal/domain"
	"github.com/synclab/synchub/internal/hub"
)

type errorFrameBody struct {
	Type string `json:"type"`
	domain.Error
}

func errorFrame(e *domain.Error) errorFrameBody {
	return errorFrameBody{Type: domain.FrameError, Error: *e}
}

type roomStateFrame struct {
	Type    string               `json:"type"`
	Kind    domain.RoomKind      `json:"kind"`
	Room    domain.RoomID        `json:"roomId"`
	Members []domain.IdentityRef `json:"members"`
	Count   int                  `json:"count"`
}

type historyFrame struct {
	Type   string            `json:"type"`
	Room   domain.RoomID     `json:"roomId"`
	Events []json.RawMessage `json:"events"`
}

type memberFrame struct {
	Type string             `json:"type"`
	Kind domain.RoomKind    `json:"kind"`
	Room domain.RoomID      `json:"roomId"`
	User domain.IdentityRef `json:"user"`
}

type leftFrame struct {
	Type string          `json:"type"`
	Kind domain.RoomKind `json:"kind"`
	Room domain.RoomID   `json:"roomId"`
}

type statusFrame struct {
	Type              string                  `json:"type"`
	Connections       int                     `json:"connections"`
	Rooms             map[domain.RoomKind]int `json:"rooms"`
	MessagesProcessed uint64                  `json:"messagesProcessed"`
	UptimeSeconds     int64                   `json:"uptimeSeconds"`
}

type shutdownFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type membershipPayload struct {
	RoomID string `json:"roomId"`
}

// handleJoin subscribes the connection to a room. Joining twice has no
// additional effect beyond a fresh room_state ack; the history replay goes
// only to the joining connection and only once.
func (s *Supervisor) handleJoin(c *conn, kind domain.RoomKind, data []byte) {
	var p membershipPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		s.collector.EventsRejected.WithLabelValues(string(domain.CategoryValidation)).Inc()
		s.sendError(c, domain.Errorf(domain.CategoryValidation, "roomId is required"))
		return
	}
	key := domain.RoomKey{Kind: kind, ID: domain.RoomID(p.RoomID)}

	if !c.joinRoom(key) {
		s.sendRoomState(c, key)
		return
	}

	first, replay := s.registry.Join(key, c.identity.ID)
	s.updateRoomGauges()
	log.Info().Str("module", "ws").Str("conn", string(c.id)).Str("room", key.String()).Msg("joined")

	s.sendRoomState(c, key)
	if kind == domain.RoomSession {
		s.sendReplay(c, key.ID, replay)
	}
	if first {
		s.notifyMembership(key, c.identity, domain.FrameMemberJoined)
	}
}

func (s *Supervisor) handleLeave(c *conn, kind domain.RoomKind, data []byte) {
	var p membershipPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		s.collector.EventsRejected.WithLabelValues(string(domain.CategoryValidation)).Inc()
		s.sendError(c, domain.Errorf(domain.CategoryValidation, "roomId is required"))
		return
	}
	key := domain.RoomKey{Kind: kind, ID: domain.RoomID(p.RoomID)}

	if c.leaveRoom(key) {
		left, _ := s.registry.Leave(key, c.identity.ID)
		s.updateRoomGauges()
		log.Info().Str("module", "ws").Str("conn", string(c.id)).Str("room", key.String()).Msg("left")
		if left {
			s.notifyMembership(key, c.identity, domain.FrameMemberLeft)
		}
	}
	s.sendJSON(c, leftFrame{Type: domain.FrameLeft, Kind: kind, Room: key.ID})
}

func (s *Supervisor) handleStatus(c *conn) {
	st := s.Snapshot()
	s.sendJSON(c, statusFrame{
		Type:              domain.FrameStatus,
		Connections:       st.Connections,
		Rooms:             st.Rooms,
		MessagesProcessed: st.Processed,
		UptimeSeconds:     int64(st.Uptime.Seconds()),
	})
}

func (s *Supervisor) sendRoomState(c *conn, key domain.RoomKey) {
	members := s.registry.Members(key)
	refs := make([]domain.IdentityRef, 0, len(members))
	for _, uid := range members {
		refs = append(refs, s.identityRef(uid))
	}
	s.sendJSON(c, roomStateFrame{
		Type:    domain.FrameRoomState,
		Kind:    key.Kind,
		Room:    key.ID,
		Members: refs,
		Count:   len(refs),
	})
}

// sendReplay delivers the history snapshot taken inside the join's
// critical section. Snapshotting any later would double-count an event
// accepted between the join and the replay: once live, once replayed.
func (s *Supervisor) sendReplay(c *conn, roomID domain.RoomID, entries []hub.Entry) {
	events := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		events = append(events, e.Frame)
	}
	s.sendJSON(c, historyFrame{Type: domain.FrameHistory, Room: roomID, Events: events})
	s.collector.HistoryReplays.Inc()
}

// notifyMembership tells the room's other members about a join or leave.
func (s *Supervisor) notifyMembership(key domain.RoomKey, who domain.Identity, frameType string) {
	frame, err := json.Marshal(memberFrame{Type: frameType, Kind: key.Kind, Room: key.ID, User: who.Ref()})
	if err != nil {
		return
	}
	for _, uid := range s.registry.Members(key) {
		if uid == who.ID {
			continue
		}
		s.ToIdentity(uid, frame)
	}
}

// identityRef resolves a member's display info through any of its live
// connections; a disconnected member falls back to its bare id.
func (s *Supervisor) identityRef(uid domain.UserID) domain.IdentityRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byUser[uid] {
		return c.identity.Ref()
	}
	return domain.IdentityRef{ID: uid, Name: string(uid)}
}
