package rooms

// Command kinds accepted by the command endpoint.
const (
	CommandJoinRoom    = "JOIN_ROOM"
	CommandLeaveRoom   = "LEAVE_ROOM"
	CommandCastVote    = "CAST_VOTE"
	CommandReveal      = "REVEAL"
	CommandReset       = "RESET"
	CommandUpdateStory = "UPDATE_STORY"
	CommandHeartbeat   = "HEARTBEAT"
)

// commandEnvelope is the flat wire shape; only the fields relevant to the
// command kind are populated.
type commandEnvelope struct {
	Type       string `json:"type"`
	RoomCode   string `json:"roomCode"`
	ClientID   string `json:"clientId"`
	Name       string `json:"name,omitempty"`
	Vote       string `json:"vote,omitempty"`
	StoryTitle string `json:"storyTitle,omitempty"`
}

// command is the tagged-variant form the envelope decodes into, so the
// dispatch switch only sees fields its kind actually carries.
type command interface {
	kind() string
}

type joinRoomCommand struct {
	RoomCode string
	ClientID string
	Name     string
}

type leaveRoomCommand struct {
	RoomCode string
	ClientID string
}

type castVoteCommand struct {
	RoomCode string
	ClientID string
	Vote     string
}

type revealCommand struct {
	RoomCode string
	ClientID string
}

type resetCommand struct {
	RoomCode string
	ClientID string
}

type updateStoryCommand struct {
	RoomCode   string
	ClientID   string
	StoryTitle string
}

type heartbeatCommand struct {
	RoomCode string
	ClientID string
}

func (joinRoomCommand) kind() string    { return CommandJoinRoom }
func (leaveRoomCommand) kind() string   { return CommandLeaveRoom }
func (castVoteCommand) kind() string    { return CommandCastVote }
func (revealCommand) kind() string      { return CommandReveal }
func (resetCommand) kind() string       { return CommandReset }
func (updateStoryCommand) kind() string { return CommandUpdateStory }
func (heartbeatCommand) kind() string   { return CommandHeartbeat }

type createRoomRequest struct {
	RoomName string `json:"roomName"`
}

type createRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

type commandResponse struct {
	OK bool `json:"ok"`
}
