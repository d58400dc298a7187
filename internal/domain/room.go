package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"unicode/utf8"
)

const (
	roomCodeLength = 8
	maxRoomNameLen = 100

	roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	charsetLen = big.NewInt(int64(len(roomCodeChars)))

	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidRoomName = errors.New("invalid room name")
)

// deck is the fixed set of allowed estimate values. Order matters for display.
var deck = [13]string{"0", "0.5", "1", "2", "3", "5", "8", "13", "20", "40", "100", "?", "☕"}

// Deck returns a fresh copy of the estimate deck.
func Deck() []string {
	d := make([]string, len(deck))
	copy(d, deck[:])
	return d
}

// RoomMeta is the per-room metadata blob. Timestamps are Unix milliseconds.
type RoomMeta struct {
	RoomName   string   `json:"roomName"`
	Deck       []string `json:"deck"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt"`
	Revealed   bool     `json:"revealed"`
	StoryTitle string   `json:"storyTitle"`
	Version    int64    `json:"version"`
}

type Member struct {
	Name       string `json:"name"`
	JoinedAt   int64  `json:"joinedAt"`
	LastSeenAt int64  `json:"lastSeenAt"`
}

// Snapshot is the consolidated client-facing view of a room. It is the only
// representation ever sent over the wire.
type Snapshot struct {
	Meta    RoomMeta          `json:"meta"`
	Members map[string]Member `json:"members"`
	Votes   map[string]string `json:"votes"`
	Version int64             `json:"version"`
}

// EmptySnapshot is the placeholder pushed on a fresh stream until the first
// real event arrives.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Meta:    RoomMeta{Deck: Deck()},
		Members: map[string]Member{},
		Votes:   map[string]string{},
	}
}

// NewRoomCode generates a short random room code. The alphabet avoids
// ambiguous characters (0/O, 1/I).
func NewRoomCode() (string, error) {
	var sb strings.Builder
	sb.Grow(roomCodeLength)

	for i := 0; i < roomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeChars[n.Int64()])
	}

	return sb.String(), nil
}

// NormalizeRoomCode upper-cases a code so lookups are case-insensitive.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidateRoomName(name string) error {
	length := utf8.RuneCountInString(name)
	if length == 0 || length > maxRoomNameLen {
		return ErrInvalidRoomName
	}
	return nil
}
