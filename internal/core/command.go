package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom registers the client in a room with a profile.
	CommandJoinRoom CommandKind = iota
	// CommandSendRoomMessage fans a chat message out to the room.
	CommandSendRoomMessage
	// CommandLeaveRoom removes the client from its current room.
	CommandLeaveRoom
	// CommandDisconnect is issued by the transport when the connection closes.
	CommandDisconnect
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Room     string
	User     string
	Language string
	Role     string
	Text     string
}
