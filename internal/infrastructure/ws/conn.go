package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the HTTP layer
		return true
	},
}

func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

type connWrapper struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func newConnWrapper(c *websocket.Conn) *connWrapper {
	return &connWrapper{conn: c}
}

func (w *connWrapper) WriteJSON(v any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *connWrapper) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}

// Stream ties one websocket connection to its outbound channel in the
// broadcaster registry.
type Stream struct {
	conn     *connWrapper
	RoomCode string
	ConnID   string
}

func NewStream(conn *websocket.Conn, roomCode, connID string) *Stream {
	return &Stream{
		conn:     newConnWrapper(conn),
		RoomCode: roomCode,
		ConnID:   connID,
	}
}

// Send writes a single message outside the pump. Used to seed a fresh
// stream before the pumps start.
func (s *Stream) Send(msg *ServerMessage) error {
	return s.conn.WriteJSON(msg)
}

// WritePump drains the outbound channel onto the socket, interleaving
// keep-alive events so idle-connection timeouts don't kill the stream. A
// failed write deregisters the stream; nothing is retried.
func (s *Stream) WritePump(events <-chan *ServerMessage, keepAlive time.Duration, b *Broadcaster) {
	ticker := time.NewTicker(keepAlive)
	defer func() {
		ticker.Stop()
		b.Unregister(s.RoomCode, s.ConnID)
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error (conn %s): %v", s.ConnID, err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteJSON(NewKeepAlive()); err != nil {
				log.Printf("ws keepalive error (conn %s): %v", s.ConnID, err)
				return
			}
		}
	}
}

// ReadPump discards inbound frames; commands arrive over HTTP, the socket is
// push-only. Its job is to notice the peer going away and synchronously pull
// the stream out of the registry.
func (s *Stream) ReadPump(b *Broadcaster) {
	defer func() {
		b.Unregister(s.RoomCode, s.ConnID)
		_ = s.conn.Close()
	}()

	for {
		if _, _, err := s.conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error (conn %s): %v", s.ConnID, err)
			}
			return
		}
	}
}
