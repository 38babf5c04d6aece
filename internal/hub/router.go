package hub

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/synclab/synchub/internal/ai"
	"github.com/synclab/synchub/internal/domain"
	"github.com/synclab/synchub/internal/metrics"
)

const replyTimeout = 30 * time.Second

// assistantIdentity is the origin stamped on generated follow-up turns.
var assistantIdentity = domain.Identity{ID: "assistant", Name: "assistant"}

// Delivery is how the router hands frames to live connections. The
// connection supervisor implements it; the router never touches sockets.
type Delivery interface {
	ToConn(id domain.ConnID, frame []byte)
	ToIdentity(uid domain.UserID, frame []byte)
}

// Sender identifies the originating connection of an inbound event.
type Sender struct {
	Conn domain.ConnID
	From domain.Identity
}

type eventSpec struct {
	payload func() any
	handle  func(s Sender, p any) *domain.Error
}

// Router validates inbound typed events, stamps them with identity, time
// and a per-room sequence number, retains them for replay and fans them
// out. It is the only component that mutates history state.
type Router struct {
	reg       *Registry
	delivery  Delivery
	responder ai.Responder
	collector *metrics.Collector
	validate  *validator.Validate
	now       func() time.Time
	specs     map[domain.EventKind]eventSpec
	processed atomic.Uint64
}

// Processed reports how many events the router has accepted and
// dispatched since startup.
func (r *Router) Processed() uint64 { return r.processed.Load() }

func NewRouter(reg *Registry, delivery Delivery, responder ai.Responder, collector *metrics.Collector) *Router {
	r := &Router{
		reg:       reg,
		delivery:  delivery,
		responder: responder,
		collector: collector,
		validate:  validator.New(),
		now:       time.Now,
	}
	r.specs = map[domain.EventKind]eventSpec{
		domain.EventChatMessage: {
			payload: func() any { return new(ChatMessage) },
			handle:  func(s Sender, p any) *domain.Error { return r.handleChatMessage(s, p.(*ChatMessage)) },
		},
		domain.EventTerminalCommand: {
			payload: func() any { return new(TerminalCommand) },
			handle:  func(s Sender, p any) *domain.Error { return r.handleTerminalCommand(s, p.(*TerminalCommand)) },
		},
		domain.EventTerminalOutput: {
			payload: func() any { return new(TerminalOutput) },
			handle:  func(s Sender, p any) *domain.Error { return r.handleTerminalOutput(s, p.(*TerminalOutput)) },
		},
		domain.EventFileUpdate: {
			payload: func() any { return new(FileUpdate) },
			handle:  func(s Sender, p any) *domain.Error { return r.handleFileUpdate(s, p.(*FileUpdate)) },
		},
		domain.EventTTSNotification: {
			payload: func() any { return new(TTSNotification) },
			handle:  func(s Sender, p any) *domain.Error { return r.handleTTS(s, p.(*TTSNotification)) },
		},
		domain.EventTyping: {
			payload: func() any { return new(Typing) },
			handle:  func(s Sender, p any) *domain.Error { return r.handleTyping(s, p.(*Typing)) },
		},
	}
	return r
}

// Accept validates the raw event body against its kind's schema and runs
// the handler. A non-nil error goes back to the originating connection
// only; nothing was appended or broadcast.
func (r *Router) Accept(s Sender, kind domain.EventKind, raw []byte) *domain.Error {
	spec, ok := r.specs[kind]
	if !ok {
		return domain.Errorf(domain.CategoryValidation, "unknown event type %q", kind)
	}
	p := spec.payload()
	if err := json.Unmarshal(raw, p); err != nil {
		return domain.Errorf(domain.CategoryValidation, "malformed %s payload", kind)
	}
	if err := r.validate.Struct(p); err != nil {
		return domain.Errorf(domain.CategoryValidation, "invalid %s: %s", kind, describeValidation(err))
	}
	return spec.handle(s, p)
}

func describeValidation(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return "field " + verrs[0].Field() + " fails " + verrs[0].Tag()
	}
	return err.Error()
}

// publication describes one accepted event's stamping, retention and scope.
type publication struct {
	key        domain.RoomKey
	kind       domain.EventKind
	frameType  string // wire type; defaults to kind
	from       domain.Identity
	memberOnly bool
	retain     bool
	except     domain.UserID // skip this member on fan-out
	toConn     domain.ConnID // deliver to this connection only
	frame      func(meta domain.EventMeta) any
}

// publish runs the accept path for one room under that room's lock:
// sequence assignment, history append and fan-out happen in a single
// order, which is what every member observes. The room is resolved with
// live, so the lock is always held on the key's current incarnation and
// retirement waits for the broadcast to land.
func (r *Router) publish(p publication) *domain.Error {
	rm, ok := r.reg.live(p.key)
	if !ok {
		return domain.Errorf(domain.CategoryValidation, "no such %s %q", p.key.Kind, p.key.ID)
	}
	defer rm.mu.Unlock()

	if p.memberOnly && rm.members[p.from.ID] == 0 {
		return domain.Errorf(domain.CategoryValidation, "not a member of %s %q", p.key.Kind, p.key.ID)
	}
	if p.frameType == "" {
		p.frameType = string(p.kind)
	}

	from := p.from.Ref()
	meta := domain.EventMeta{Type: p.frameType, Seq: rm.nextSeq(), TS: r.now(), From: &from}
	frame, err := json.Marshal(p.frame(meta))
	if err != nil {
		log.Error().Err(err).Str("module", "hub.router").Str("kind", string(p.kind)).Msg("encode frame")
		return domain.Errorf(domain.CategorySystem, "internal error")
	}
	if p.retain && rm.hist != nil {
		rm.hist.Append(Entry{Seq: meta.Seq, TS: meta.TS, Kind: p.kind, Frame: frame})
	}

	if p.toConn != "" {
		r.delivery.ToConn(p.toConn, frame)
	} else {
		for uid := range rm.members {
			if uid == p.except {
				continue
			}
			r.delivery.ToIdentity(uid, frame)
		}
	}
	r.processed.Add(1)
	r.collector.MessagesProcessed.WithLabelValues(string(p.kind)).Inc()
	return nil
}

func (r *Router) handleChatMessage(s Sender, p *ChatMessage) *domain.Error {
	p.Role = "user" // clients cannot stamp assistant turns
	msg := *p
	err := r.publish(publication{
		key:        domain.SessionRoom(p.SessionID),
		kind:       domain.EventChatMessage,
		from:       s.From,
		memberOnly: true,
		retain:     true,
		frame:      func(meta domain.EventMeta) any { return &chatFrame{EventMeta: meta, ChatMessage: msg} },
	})
	if err != nil {
		return err
	}
	r.scheduleReply(p.SessionID, p.Content)
	return nil
}

// scheduleReply asks the responder for the assistant follow-up off the
// accept path. The reply re-enters publish, so it orders after whatever
// else the room accepted in the meantime.
func (r *Router) scheduleReply(sessionID, prompt string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		text, err := r.responder.Reply(ctx, sessionID, prompt)
		if err != nil {
			log.Warn().Err(err).Str("module", "hub.router").Str("session", sessionID).Msg("assistant reply failed")
			return
		}
		msg := ChatMessage{Content: text, SessionID: sessionID, Role: "assistant"}
		pubErr := r.publish(publication{
			key:    domain.SessionRoom(sessionID),
			kind:   domain.EventChatMessage,
			from:   assistantIdentity,
			retain: true,
			frame:  func(meta domain.EventMeta) any { return &chatFrame{EventMeta: meta, ChatMessage: msg} },
		})
		if pubErr != nil {
			log.Debug().Str("module", "hub.router").Str("session", sessionID).Msg("session gone before assistant reply")
		}
	}()
}

func (r *Router) handleTerminalCommand(s Sender, p *TerminalCommand) *domain.Error {
	// Execution belongs to the process orchestration collaborator; the hub
	// acknowledges to the sender only and never broadcasts commands.
	cmdID := uuid.NewString()
	sessionID := p.SessionID
	return r.publish(publication{
		key:        domain.SessionRoom(p.SessionID),
		kind:       domain.EventTerminalCommand,
		frameType:  domain.FrameCommandAck,
		from:       s.From,
		memberOnly: true,
		toConn:     s.Conn,
		frame: func(meta domain.EventMeta) any {
			return &commandAckFrame{EventMeta: meta, CommandID: cmdID, SessionID: sessionID}
		},
	})
}

func (r *Router) handleTerminalOutput(s Sender, p *TerminalOutput) *domain.Error {
	out := *p
	return r.publish(publication{
		key:        domain.SessionRoom(p.SessionID),
		kind:       domain.EventTerminalOutput,
		from:       s.From,
		memberOnly: true,
		toConn:     s.Conn,
		frame:      func(meta domain.EventMeta) any { return &terminalOutputFrame{EventMeta: meta, TerminalOutput: out} },
	})
}

func (r *Router) handleFileUpdate(s Sender, p *FileUpdate) *domain.Error {
	upd := *p
	return r.publish(publication{
		key:        domain.ProjectRoom(p.ProjectID),
		kind:       domain.EventFileUpdate,
		from:       s.From,
		memberOnly: true,
		frame:      func(meta domain.EventMeta) any { return &fileUpdateFrame{EventMeta: meta, FileUpdate: upd} },
	})
}

// handleTTS fans the notification out to every connection held by the
// sender's identity. There is no target room, so no sequence number.
func (r *Router) handleTTS(s Sender, p *TTSNotification) *domain.Error {
	from := s.From.Ref()
	frame, err := json.Marshal(&ttsFrame{
		EventMeta:       domain.EventMeta{Type: string(domain.EventTTSNotification), TS: r.now(), From: &from},
		TTSNotification: *p,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "hub.router").Msg("encode tts frame")
		return domain.Errorf(domain.CategorySystem, "internal error")
	}
	r.delivery.ToIdentity(s.From.ID, frame)
	r.processed.Add(1)
	r.collector.MessagesProcessed.WithLabelValues(string(domain.EventTTSNotification)).Inc()
	return nil
}

// handleTyping is transient presence: fanned out to the room minus the
// sender, never retained.
func (r *Router) handleTyping(s Sender, p *Typing) *domain.Error {
	typ := *p
	return r.publish(publication{
		key:        domain.SessionRoom(p.SessionID),
		kind:       domain.EventTyping,
		from:       s.From,
		memberOnly: true,
		except:     s.From.ID,
		frame:      func(meta domain.EventMeta) any { return &typingFrame{EventMeta: meta, Typing: typ} },
	})
}
