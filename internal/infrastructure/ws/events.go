package ws

import "github.com/sdv1812/sprintlet/internal/domain"

const (
	RoomSnapshotEvent = "ROOM_SNAPSHOT"
	RoomPatchEvent    = "ROOM_PATCH"
	ErrorEvent        = "ERROR"
	KeepAliveEvent    = "KEEPALIVE"
)

// ServerMessage is the envelope pushed down a room stream.
type ServerMessage struct {
	Type     string           `json:"type"`
	RoomCode string           `json:"roomCode,omitempty"`
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
	Patch    *domain.Snapshot `json:"patch,omitempty"`
	Message  string           `json:"message,omitempty"`
	Code     string           `json:"code,omitempty"`
}

func NewRoomSnapshot(roomCode string, snapshot domain.Snapshot) *ServerMessage {
	return &ServerMessage{
		Type:     RoomSnapshotEvent,
		RoomCode: roomCode,
		Snapshot: &snapshot,
	}
}

func NewRoomPatch(roomCode string, patch domain.Snapshot) *ServerMessage {
	return &ServerMessage{
		Type:     RoomPatchEvent,
		RoomCode: roomCode,
		Patch:    &patch,
	}
}

func NewError(message, code string) *ServerMessage {
	return &ServerMessage{
		Type:    ErrorEvent,
		Message: message,
		Code:    code,
	}
}

func NewKeepAlive() *ServerMessage {
	return &ServerMessage{Type: KeepAliveEvent}
}
