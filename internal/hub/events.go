package hub

import "github.com/synclab/synchub/internal/domain"

// Client payload schemas. Validation tags are the single source of truth
// for required fields and length limits; the dispatch table in router.go
// pairs each schema with its handler and broadcast scope.

type ChatMessage struct {
	Content   string `json:"content" validate:"required,max=10000"`
	SessionID string `json:"sessionId" validate:"required"`
	Role      string `json:"role,omitempty" validate:"omitempty,oneof=user assistant"`
}

type TerminalCommand struct {
	Command   string `json:"command" validate:"required,max=1000"`
	SessionID string `json:"sessionId" validate:"required"`
}

type TerminalOutput struct {
	CommandID string `json:"commandId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
	Output    string `json:"output" validate:"required"`
	// The envelope's "type" field is the event kind, so the stream
	// discriminator travels as "outputType".
	OutputType string `json:"outputType" validate:"required,oneof=stdout stderr exit"`
}

type FileUpdate struct {
	FilePath  string `json:"filePath" validate:"required"`
	Content   string `json:"content"`
	ProjectID string `json:"projectId" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=create update delete"`
}

type TTSNotification struct {
	Message          string `json:"message" validate:"required,max=500"`
	NotificationType string `json:"notificationType" validate:"required,oneof=info success warning error"`
	Priority         string `json:"priority" validate:"required,oneof=normal urgent"`
}

type Typing struct {
	SessionID string `json:"sessionId" validate:"required"`
	IsTyping  bool   `json:"isTyping"`
}

// Outbound frames: the server-stamped meta flattened with the payload.

type chatFrame struct {
	domain.EventMeta
	ChatMessage
}

type terminalOutputFrame struct {
	domain.EventMeta
	TerminalOutput
}

type fileUpdateFrame struct {
	domain.EventMeta
	FileUpdate
}

type ttsFrame struct {
	domain.EventMeta
	TTSNotification
}

type typingFrame struct {
	domain.EventMeta
	Typing
}

type commandAckFrame struct {
	domain.EventMeta
	CommandID string `json:"commandId"`
	SessionID string `json:"sessionId"`
}
