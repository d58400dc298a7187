package rooms

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sdv1812/sprintlet/internal/domain"
	"github.com/sdv1812/sprintlet/internal/infrastructure/store"
	"github.com/sdv1812/sprintlet/internal/infrastructure/ws"
	"github.com/sdv1812/sprintlet/internal/room"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, *room.Engine, *ws.Broadcaster) {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	engine := room.NewEngine(s, zap.NewNop().Sugar(), room.Options{})
	broadcaster := ws.NewBroadcaster(8)
	handler := NewHandler(engine, broadcaster, time.Second)

	r := chi.NewRouter()
	r.Post("/api/rooms", handler.CreateRoomHandler)
	r.Post("/api/rooms/commands", handler.CommandHandler)
	r.Get("/api/rooms/{roomCode}", handler.GetSnapshotHandler)
	r.Get("/api/rooms/{roomCode}/stream", handler.StreamHandler)

	return r, engine, broadcaster
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createRoomViaAPI(t *testing.T, router http.Handler, name string) string {
	t.Helper()

	rec := postJSON(t, router, "/api/rooms", map[string]string{"roomName": name})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp createRoomResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RoomCode)
	return resp.RoomCode
}

func TestCreateRoomHandler(t *testing.T) {
	router, _, _ := newTestRouter(t)

	code := createRoomViaAPI(t, router, "Sprint Demo")
	assert.Len(t, code, 8)
}

func TestCreateRoomHandler_RejectsEmptyName(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := postJSON(t, router, "/api/rooms", map[string]string{"roomName": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSnapshotHandler(t *testing.T) {
	router, _, _ := newTestRouter(t)

	code := createRoomViaAPI(t, router, "Sprint Demo")

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+code, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Snapshot domain.Snapshot `json:"snapshot"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sprint Demo", resp.Snapshot.Meta.RoomName)
	assert.False(t, resp.Snapshot.Meta.Revealed)
}

func TestGetSnapshotHandler_UnknownRoom(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/NOSUCHRM", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandHandler_JoinVoteRevealResetFlow(t *testing.T) {
	router, engine, _ := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	commands := []commandEnvelope{
		{Type: CommandJoinRoom, RoomCode: code, ClientID: "c1", Name: "Alice"},
		{Type: CommandCastVote, RoomCode: code, ClientID: "c1", Vote: "5"},
		{Type: CommandReveal, RoomCode: code, ClientID: "c1"},
	}
	for _, cmd := range commands {
		rec := postJSON(t, router, "/api/rooms/commands", cmd)
		assert.Equal(t, http.StatusOK, rec.Code, "command %s", cmd.Type)
	}

	snapshot, err := engine.Snapshot(t.Context(), code)
	assert.NoError(t, err)
	assert.True(t, snapshot.Meta.Revealed)
	assert.Equal(t, map[string]string{"c1": "5"}, snapshot.Votes)

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandReset, RoomCode: code, ClientID: "c1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	snapshot, err = engine.Snapshot(t.Context(), code)
	assert.NoError(t, err)
	assert.False(t, snapshot.Meta.Revealed)
	assert.Empty(t, snapshot.Votes)
}

func TestCommandHandler_CommandsAreCaseInsensitiveOnRoomCode(t *testing.T) {
	router, engine, _ := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandJoinRoom, RoomCode: strings.ToLower(code), ClientID: "c1", Name: "Alice"})
	assert.Equal(t, http.StatusOK, rec.Code)

	snapshot, err := engine.Snapshot(t.Context(), code)
	assert.NoError(t, err)
	assert.Contains(t, snapshot.Members, "c1")
}

func TestCommandHandler_UnknownType(t *testing.T) {
	router, _, _ := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: "EXPLODE", RoomCode: code, ClientID: "c1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandHandler_MissingIdentity(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandReveal, RoomCode: "ROOMCODE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandReveal, ClientID: "c1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandHandler_RoomNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandCastVote, RoomCode: "NOSUCHRM", ClientID: "c1", Vote: "5"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandHandler_LeaveBroadcastsRemainingState(t *testing.T) {
	router, engine, _ := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	for _, cmd := range []commandEnvelope{
		{Type: CommandJoinRoom, RoomCode: code, ClientID: "c1", Name: "Alice"},
		{Type: CommandJoinRoom, RoomCode: code, ClientID: "c2", Name: "Bob"},
	} {
		rec := postJSON(t, router, "/api/rooms/commands", cmd)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandLeaveRoom, RoomCode: code, ClientID: "c1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	snapshot, err := engine.Snapshot(t.Context(), code)
	assert.NoError(t, err)
	assert.NotContains(t, snapshot.Members, "c1")
	assert.Contains(t, snapshot.Members, "c2")
}

func TestCommandHandler_LeaveUnknownRoom(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandLeaveRoom, RoomCode: "NOSUCHRM", ClientID: "c1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommandHandler_HeartbeatAcksWithoutBroadcast(t *testing.T) {
	router, _, broadcaster := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	_, events := broadcaster.Register(code)

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandHeartbeat, RoomCode: code, ClientID: "c1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case msg := <-events:
		assert.Failf(t, "unexpected broadcast", "got %s", msg.Type)
	default:
	}
}

func TestCommandHandler_MutationBroadcastsSnapshot(t *testing.T) {
	router, _, broadcaster := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	_, events := broadcaster.Register(code)

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandJoinRoom, RoomCode: code, ClientID: "c1", Name: "Alice"})
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case msg := <-events:
		assert.Equal(t, ws.RoomSnapshotEvent, msg.Type)
		assert.Equal(t, code, msg.RoomCode)
		assert.Contains(t, msg.Snapshot.Members, "c1")
	default:
		assert.Fail(t, "expected a snapshot broadcast")
	}
}

func TestStreamHandler_SeedsPlaceholderSnapshot(t *testing.T) {
	router, _, _ := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/rooms/" + code + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	var seed ws.ServerMessage
	assert.NoError(t, conn.ReadJSON(&seed))
	assert.Equal(t, ws.RoomSnapshotEvent, seed.Type)
	assert.Equal(t, code, seed.RoomCode)
	assert.Equal(t, int64(0), seed.Snapshot.Version)
	assert.Empty(t, seed.Snapshot.Members)
}

func TestStreamHandler_ReceivesCommandBroadcasts(t *testing.T) {
	router, _, _ := newTestRouter(t)
	code := createRoomViaAPI(t, router, "Sprint Demo")

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/rooms/" + code + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// Skip the seed
	var seed ws.ServerMessage
	assert.NoError(t, conn.ReadJSON(&seed))

	rec := postJSON(t, router, "/api/rooms/commands",
		commandEnvelope{Type: CommandJoinRoom, RoomCode: code, ClientID: "c1", Name: "Alice"})
	assert.Equal(t, http.StatusOK, rec.Code)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	// Keep-alives may interleave; wait for the snapshot event
	for {
		var msg ws.ServerMessage
		if !assert.NoError(t, conn.ReadJSON(&msg)) {
			return
		}
		if msg.Type == ws.KeepAliveEvent {
			continue
		}
		assert.Equal(t, ws.RoomSnapshotEvent, msg.Type)
		assert.Contains(t, msg.Snapshot.Members, "c1")
		return
	}
}
