package ws

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

const defaultSendBuffer = 64

// Broadcaster is the process-local registry of open push connections per
// room. Delivery is single-instance and best-effort: a deployment with more
// than one instance needs an external pub/sub layer for cross-instance
// fan-out; clients connected elsewhere converge through the snapshot poll.
type Broadcaster struct {
	rooms      map[string]map[string]chan *ServerMessage // roomCode → connID → outbound
	sendBuffer int
	mu         sync.RWMutex
}

func NewBroadcaster(sendBuffer int) *Broadcaster {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}

	return &Broadcaster{
		rooms:      make(map[string]map[string]chan *ServerMessage),
		sendBuffer: sendBuffer,
	}
}

// Register opens an outbound channel for a new connection to the room and
// returns the connection id used to deregister it.
func (b *Broadcaster) Register(roomCode string) (string, <-chan *ServerMessage) {
	connID := uuid.NewString()
	ch := make(chan *ServerMessage, b.sendBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	conns, ok := b.rooms[roomCode]
	if !ok {
		conns = make(map[string]chan *ServerMessage)
		b.rooms[roomCode] = conns
	}
	conns[connID] = ch

	return connID, ch
}

// Unregister removes the connection and closes its channel. Safe to call
// more than once for the same id.
func (b *Broadcaster) Unregister(roomCode, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conns, ok := b.rooms[roomCode]
	if !ok {
		return
	}

	if ch, ok := conns[connID]; ok {
		delete(conns, connID)
		close(ch)

		if len(conns) == 0 {
			delete(b.rooms, roomCode)
		}
	}
}

// Broadcast delivers the message to every connection registered for the
// room. At-most-once: a receiver with a full buffer just misses the event.
func (b *Broadcaster) Broadcast(roomCode string, msg *ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for connID, ch := range b.rooms[roomCode] {
		select {
		case ch <- msg:
		default:
			// Connection is too slow – drop the event
			log.Printf("connection %s buffer full, dropping event", connID)
		}
	}
}

// Connections reports how many streams are open for a room.
func (b *Broadcaster) Connections(roomCode string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.rooms[roomCode])
}
