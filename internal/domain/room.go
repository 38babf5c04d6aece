package domain

type (
	RoomKind string
	RoomID   string
)

const (
	RoomSession RoomKind = "session"
	RoomProject RoomKind = "project"
)

// RoomKey names a room across both namespaces. Rooms of different kinds
// never collide even when their IDs match.
type RoomKey struct {
	Kind RoomKind
	ID   RoomID
}

func SessionRoom(id string) RoomKey { return RoomKey{Kind: RoomSession, ID: RoomID(id)} }
func ProjectRoom(id string) RoomKey { return RoomKey{Kind: RoomProject, ID: RoomID(id)} }

func (k RoomKey) String() string { return string(k.Kind) + ":" + string(k.ID) }
