package domain

import "time"

// EventKind enumerates the wire event types the hub accepts from clients.
type EventKind string

const (
	EventChatMessage     EventKind = "chat_message"
	EventTerminalCommand EventKind = "terminal_command"
	EventTerminalOutput  EventKind = "terminal_output"
	EventFileUpdate      EventKind = "file_update"
	EventTTSNotification EventKind = "tts_notification"
	EventTyping          EventKind = "typing"
	EventSystemStatus    EventKind = "system_status"
)

// Server-emitted frame types. Clients never send these.
const (
	FrameError          = "error"
	FrameRoomState      = "room_state"
	FrameHistory        = "history"
	FrameMemberJoined   = "member_joined"
	FrameMemberLeft     = "member_left"
	FrameCommandAck     = "command_accepted"
	FrameLeft           = "left"
	FrameStatus         = "status"
	FrameSystemShutdown = "system_shutdown"
)

// Membership operations handled by the connection supervisor rather than
// the broadcast router.
const (
	OpJoinSession  = "join_session"
	OpJoinProject  = "join_project"
	OpLeaveSession = "leave_session"
	OpLeaveProject = "leave_project"
)

// IdentityRef is the read-only view of an event's origin.
type IdentityRef struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
}

func (i Identity) Ref() IdentityRef { return IdentityRef{ID: i.ID, Name: i.Name} }

// EventMeta is the server-stamped part of every broadcast frame. Payload
// structs embed it so the envelope stays flat on the wire.
type EventMeta struct {
	Type string       `json:"type"`
	Seq  uint64       `json:"seq,omitempty"`
	TS   time.Time    `json:"ts"`
	From *IdentityRef `json:"from,omitempty"`
}
