package ws

import (
	"testing"

	"github.com/sdv1812/sprintlet/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBroadcaster_DeliversToAllRoomConnections(t *testing.T) {
	b := NewBroadcaster(4)

	_, ch1 := b.Register("ROOM1")
	_, ch2 := b.Register("ROOM1")
	_, other := b.Register("ROOM2")

	msg := NewRoomSnapshot("ROOM1", domain.EmptySnapshot())
	b.Broadcast("ROOM1", msg)

	assert.Equal(t, msg, <-ch1)
	assert.Equal(t, msg, <-ch2)

	select {
	case <-other:
		assert.Fail(t, "event leaked into another room")
	default:
	}
}

func TestBroadcaster_UnregisterClosesChannel(t *testing.T) {
	b := NewBroadcaster(4)

	id, ch := b.Register("ROOM1")
	b.Unregister("ROOM1", id)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Connections("ROOM1"))

	// Double unregister must not panic
	b.Unregister("ROOM1", id)
}

func TestBroadcaster_BroadcastAfterUnregisterIsSilent(t *testing.T) {
	b := NewBroadcaster(4)

	id, _ := b.Register("ROOM1")
	b.Unregister("ROOM1", id)

	// No registered connections left; must not panic or block
	b.Broadcast("ROOM1", NewKeepAlive())
}

func TestBroadcaster_SlowReceiverDropsEvents(t *testing.T) {
	b := NewBroadcaster(1)

	_, ch := b.Register("ROOM1")

	first := NewRoomSnapshot("ROOM1", domain.EmptySnapshot())
	b.Broadcast("ROOM1", first)
	// Buffer is full now; this one is dropped instead of blocking
	b.Broadcast("ROOM1", NewKeepAlive())

	assert.Equal(t, first, <-ch)

	select {
	case <-ch:
		assert.Fail(t, "expected the second event to be dropped")
	default:
	}
}

func TestBroadcaster_ConnectionsCount(t *testing.T) {
	b := NewBroadcaster(4)

	id1, _ := b.Register("ROOM1")
	_, _ = b.Register("ROOM1")

	assert.Equal(t, 2, b.Connections("ROOM1"))
	assert.Equal(t, 0, b.Connections("ROOM2"))

	b.Unregister("ROOM1", id1)
	assert.Equal(t, 1, b.Connections("ROOM1"))
}
