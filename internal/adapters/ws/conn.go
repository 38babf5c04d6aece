package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/synclab/synchub/internal/domain"
)

var (
	errBackpressure = errors.New("backpressure")
	errClosed       = errors.New("connection closed")
)

// conn is one client connection: identity, socket, outbound queue and the
// set of rooms joined through it. Owned by the supervisor; nothing else
// touches the socket.
type conn struct {
	id       domain.ConnID
	identity domain.Identity
	remote   string
	ws       *websocket.Conn
	send     chan []byte

	mu     sync.Mutex
	closed bool
	rooms  map[domain.RoomKey]bool
}

func newConn(identity domain.Identity, remote string, wsConn *websocket.Conn, sendBuf int) *conn {
	return &conn{
		id:       domain.NewConnID(),
		identity: identity,
		remote:   remote,
		ws:       wsConn,
		send:     make(chan []byte, sendBuf),
		rooms:    make(map[domain.RoomKey]bool),
	}
}

func (c *conn) trySend(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.ws.Close()
}

// joinRoom records the membership and reports whether it is new for this
// connection.
func (c *conn) joinRoom(key domain.RoomKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms[key] {
		return false
	}
	c.rooms[key] = true
	return true
}

func (c *conn) leaveRoom(key domain.RoomKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.rooms[key] {
		return false
	}
	delete(c.rooms, key)
	return true
}

// takeRooms empties and returns the membership set; used by the single
// cleanup path.
func (c *conn) takeRooms() []domain.RoomKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.RoomKey, 0, len(c.rooms))
	for key := range c.rooms {
		out = append(out, key)
	}
	c.rooms = make(map[domain.RoomKey]bool)
	return out
}
