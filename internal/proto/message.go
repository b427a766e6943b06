package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin        = "join"
	InboundTypeChatMessage = "chatMessage"
	InboundTypeLeave       = "leave"

	OutboundTypeMessage     = "message"
	OutboundTypeHistory     = "messageHistory"
	OutboundTypeSuggestions = "suggestions"
	OutboundTypeError       = "error"
)

// TimestampLayout is RFC 3339 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// JoinData registers the connection in a room.
type JoinData struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Language string `json:"language"`
	Role     string `json:"role"`
}

// ChatMessageData is a chat message from the client.
type ChatMessageData struct {
	Room     string `json:"room"`
	Message  string `json:"message"`
	Language string `json:"language"`
}

// LeaveData removes the connection from its room.
type LeaveData struct {
	Room string `json:"room"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Record is one delivered message or notice.
type Record struct {
	Username     string `json:"username"`
	Role         string `json:"role"`
	Text         string `json:"text"`
	OriginalText string `json:"originalText"`
	IsTranslated bool   `json:"isTranslated"`
	Type         string `json:"type"`
	Timestamp    string `json:"timestamp"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
