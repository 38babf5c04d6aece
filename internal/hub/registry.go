package hub

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synclab/synchub/internal/domain"
)

// room is the registry's record of a live room. members counts connections
// per identity so one user on several devices holds a single membership.
// mu serializes the router's accept path (sequence assignment, history
// append, fan-out order) for this room; it is the exclusive owner the
// per-room ordering guarantee requires.
//
// members is written while holding both the registry lock and mu, so a
// reader holding either lock sees a consistent map. retired flips to true
// under mu at the moment the room leaves the registry; a publisher that
// holds mu on a non-retired room therefore holds the one live incarnation
// for its key, and no retirement can land until it is done.
type room struct {
	key     domain.RoomKey
	mu      sync.Mutex
	seq     uint64
	retired bool
	hist    *History
	members map[domain.UserID]int
}

// nextSeq must be called with room.mu held.
func (rm *room) nextSeq() uint64 {
	rm.seq++
	return rm.seq
}

// Registry tracks the two independent room namespaces. Rooms are created
// on first join and retired atomically with the removal of their last
// member.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomKind]map[domain.RoomID]*room
	histSize int
	histAge  time.Duration
}

func NewRegistry(histSize int, histAge time.Duration) *Registry {
	return &Registry{
		rooms: map[domain.RoomKind]map[domain.RoomID]*room{
			domain.RoomSession: make(map[domain.RoomID]*room),
			domain.RoomProject: make(map[domain.RoomID]*room),
		},
		histSize: histSize,
		histAge:  histAge,
	}
}

func (r *Registry) get(key domain.RoomKey) (*room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[key.Kind][key.ID]
	return rm, ok
}

// live resolves key to its current incarnation and returns it with mu
// held. A room that retired between lookup and lock is discarded and the
// lookup retried, so the caller never stamps or appends through a
// detached room. The caller must unlock rm.mu.
func (r *Registry) live(key domain.RoomKey) (*room, bool) {
	for {
		rm, ok := r.get(key)
		if !ok {
			return nil, false
		}
		rm.mu.Lock()
		if !rm.retired {
			return rm, true
		}
		rm.mu.Unlock()
	}
}

// Join adds one connection's worth of membership for uid, creating the
// room on first join. Membership registration and the replay snapshot
// happen under the room's broadcast mutex, so an event in flight is either
// fully in the snapshot or delivered live to the joiner, never both.
// It reports whether the identity is newly present in the room.
func (r *Registry) Join(key domain.RoomKey, uid domain.UserID) (first bool, replay []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[key.Kind][key.ID]
	if !ok {
		rm = &room{key: key, members: make(map[domain.UserID]int)}
		if key.Kind == domain.RoomSession {
			rm.hist = NewHistory(r.histSize, r.histAge)
		}
		r.rooms[key.Kind][key.ID] = rm
		log.Info().Str("module", "hub.registry").Str("room", key.String()).Msg("room created")
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	first = rm.members[uid] == 0
	rm.members[uid]++
	if rm.hist != nil {
		replay = rm.hist.Replay()
	}
	return first, replay
}

// Leave removes one connection's worth of membership. left reports that
// the identity no longer holds any connection in the room; retired reports
// that the room became empty and was removed. Retirement marks the room
// under its broadcast mutex before deleting it, so an in-flight broadcast
// finishes against the old incarnation before the room can disappear and
// no publisher ever resumes on a detached one.
func (r *Registry) Leave(key domain.RoomKey, uid domain.UserID) (left, retired bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[key.Kind][key.ID]
	if !ok {
		return false, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	n, ok := rm.members[uid]
	if !ok {
		return false, false
	}
	if n--; n > 0 {
		rm.members[uid] = n
		return false, false
	}
	delete(rm.members, uid)
	if len(rm.members) == 0 {
		rm.retired = true
		delete(r.rooms[key.Kind], key.ID)
		log.Info().Str("module", "hub.registry").Str("room", key.String()).Msg("room retired")
		return true, true
	}
	return true, false
}

// Members returns a read-only snapshot of the room's member identities.
func (r *Registry) Members(key domain.RoomKey) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[key.Kind][key.ID]
	if !ok {
		return nil
	}
	out := make([]domain.UserID, 0, len(rm.members))
	for uid := range rm.members {
		out = append(out, uid)
	}
	return out
}

func (r *Registry) IsMember(key domain.RoomKey, uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[key.Kind][key.ID]
	return ok && rm.members[uid] > 0
}

// Counts reports the number of live rooms per kind.
func (r *Registry) Counts() map[domain.RoomKind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.RoomKind]int, len(r.rooms))
	for kind, rooms := range r.rooms {
		out[kind] = len(rooms)
	}
	return out
}

// Replay returns the room's retained history, oldest first. Non-session
// rooms and retired rooms replay nothing.
func (r *Registry) Replay(key domain.RoomKey) []Entry {
	rm, ok := r.get(key)
	if !ok || rm.hist == nil {
		return nil
	}
	return rm.hist.Replay()
}
