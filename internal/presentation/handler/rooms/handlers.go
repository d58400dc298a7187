package rooms

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sdv1812/sprintlet/internal/domain"
	"github.com/sdv1812/sprintlet/internal/infrastructure/json"
	"github.com/sdv1812/sprintlet/internal/infrastructure/ws"
	"github.com/sdv1812/sprintlet/internal/room"
)

type Handler struct {
	engine      *room.Engine
	broadcaster *ws.Broadcaster
	keepAlive   time.Duration
}

func NewHandler(engine *room.Engine, broadcaster *ws.Broadcaster, keepAlive time.Duration) *Handler {
	if keepAlive == 0 {
		keepAlive = 30 * time.Second
	}

	return &Handler{
		engine:      engine,
		broadcaster: broadcaster,
		keepAlive:   keepAlive,
	}
}

// CreateRoomHandler creates a room and returns its short code.
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	code, err := h.engine.Create(r.Context(), req.RoomName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRoomName):
			json.WriteValidationError(w, err)
		default:
			log.Printf("Failed to create room: %v", err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusCreated, createRoomResponse{RoomCode: code})
}

// GetSnapshotHandler is the one-shot poll fallback for clients that cannot
// hold a push connection.
func (h *Handler) GetSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "roomCode")
	if roomCode == "" {
		json.WriteValidationError(w, errors.New("room code is missing"))
		return
	}

	snapshot, err := h.engine.Snapshot(r.Context(), roomCode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			json.WriteNotFoundError(w, err, "Room not found")
		default:
			log.Printf("Failed to read room %s: %v", roomCode, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	json.Write(w, http.StatusOK, struct {
		Snapshot *domain.Snapshot `json:"snapshot"`
	}{Snapshot: snapshot})
}

// CommandHandler accepts one client command, dispatches it to the engine and
// broadcasts the resulting snapshot to the room's streams.
func (h *Handler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	var envelope commandEnvelope
	if err := json.Read(r, &envelope); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	cmd, err := decodeCommand(envelope)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	ctx := r.Context()
	roomCode := domain.NormalizeRoomCode(envelope.RoomCode)

	var snapshot *domain.Snapshot

	switch c := cmd.(type) {
	case joinRoomCommand:
		snapshot, err = h.engine.Join(ctx, c.RoomCode, c.ClientID, c.Name)

	case castVoteCommand:
		snapshot, err = h.engine.CastVote(ctx, c.RoomCode, c.ClientID, c.Vote)

	case revealCommand:
		snapshot, err = h.engine.Reveal(ctx, c.RoomCode, c.ClientID)

	case resetCommand:
		snapshot, err = h.engine.Reset(ctx, c.RoomCode, c.ClientID)

	case updateStoryCommand:
		snapshot, err = h.engine.UpdateStoryTitle(ctx, c.RoomCode, c.ClientID, c.StoryTitle)

	case leaveRoomCommand:
		if err = h.engine.Leave(ctx, c.RoomCode, c.ClientID); err == nil {
			// Show the remaining members the post-leave state. A vanished
			// room surfaces as a 404 like any other command.
			snapshot, err = h.engine.Snapshot(ctx, c.RoomCode)
		}

	case heartbeatCommand:
		// Pure liveness: never broadcasts, always acked immediately.
		if err = h.engine.Heartbeat(ctx, c.RoomCode, c.ClientID); err != nil {
			log.Printf("Heartbeat failed for room %s: %v", roomCode, err)
			json.WriteInternalError(w, err)
			return
		}
		json.Write(w, http.StatusOK, commandResponse{OK: true})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			json.WriteNotFoundError(w, err, "Room not found")
		default:
			log.Printf("Command %s failed for room %s: %v", envelope.Type, roomCode, err)
			json.WriteInternalError(w, err)
		}
		return
	}

	h.broadcaster.Broadcast(roomCode, ws.NewRoomSnapshot(roomCode, *snapshot))
	json.Write(w, http.StatusOK, commandResponse{OK: true})
}

// StreamHandler upgrades to a websocket and pushes room events until the
// client goes away.
func (h *Handler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "roomCode")
	if roomCode == "" {
		json.WriteValidationError(w, errors.New("room code is missing"))
		return
	}
	roomCode = domain.NormalizeRoomCode(roomCode)

	conn, err := ws.Upgrade(w, r)
	if err != nil {
		log.Printf("WebSocket upgrade failed for room %s: %v", roomCode, err)
		return
	}

	connID, events := h.broadcaster.Register(roomCode)
	stream := ws.NewStream(conn, roomCode, connID)

	// Seed this connection with a placeholder so the client renders
	// something before the first real event lands.
	if err := stream.Send(ws.NewRoomSnapshot(roomCode, domain.EmptySnapshot())); err != nil {
		log.Printf("Failed to seed stream %s: %v", connID, err)
		h.broadcaster.Unregister(roomCode, connID)
		_ = conn.Close()
		return
	}

	go stream.WritePump(events, h.keepAlive, h.broadcaster)
	go stream.ReadPump(h.broadcaster)
}

func decodeCommand(envelope commandEnvelope) (command, error) {
	if envelope.RoomCode == "" {
		return nil, errors.New("roomCode is required")
	}
	if envelope.ClientID == "" {
		return nil, errors.New("clientId is required")
	}

	switch envelope.Type {
	case CommandJoinRoom:
		if envelope.Name == "" {
			return nil, errors.New("name is required to join")
		}
		return joinRoomCommand{RoomCode: envelope.RoomCode, ClientID: envelope.ClientID, Name: envelope.Name}, nil

	case CommandLeaveRoom:
		return leaveRoomCommand{RoomCode: envelope.RoomCode, ClientID: envelope.ClientID}, nil

	case CommandCastVote:
		return castVoteCommand{RoomCode: envelope.RoomCode, ClientID: envelope.ClientID, Vote: envelope.Vote}, nil

	case CommandReveal:
		return revealCommand{RoomCode: envelope.RoomCode, ClientID: envelope.ClientID}, nil

	case CommandReset:
		return resetCommand{RoomCode: envelope.RoomCode, ClientID: envelope.ClientID}, nil

	case CommandUpdateStory:
		return updateStoryCommand{RoomCode: envelope.RoomCode, ClientID: envelope.ClientID, StoryTitle: envelope.StoryTitle}, nil

	case CommandHeartbeat:
		return heartbeatCommand{RoomCode: envelope.RoomCode, ClientID: envelope.ClientID}, nil

	default:
		return nil, fmt.Errorf("unknown command type %q", envelope.Type)
	}
}
