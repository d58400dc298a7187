package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sdv1812/sprintlet/internal/domain"
	"github.com/sdv1812/sprintlet/internal/infrastructure/store"
	"go.uber.org/zap"
)

const (
	defaultTTL                 = 8 * time.Hour
	defaultInactivityThreshold = 5 * time.Minute

	createAttempts = 3
)

// Engine owns room lifecycle and mutation operations against the store.
// There is no in-process locking: correctness relies on last-writer-wins at
// the granularity of individual store fields, and Version is a staleness hint
// for clients, not a concurrency-control token.
type Engine struct {
	store               store.Store
	clock               Clock
	logger              *zap.SugaredLogger
	ttl                 time.Duration
	inactivityThreshold time.Duration
}

type Options struct {
	TTL                 time.Duration
	InactivityThreshold time.Duration
	Clock               Clock
}

func NewEngine(s store.Store, logger *zap.SugaredLogger, opts Options) *Engine {
	if opts.TTL == 0 {
		opts.TTL = defaultTTL
	}
	if opts.InactivityThreshold == 0 {
		opts.InactivityThreshold = defaultInactivityThreshold
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}

	return &Engine{
		store:               s,
		clock:               opts.Clock,
		logger:              logger,
		ttl:                 opts.TTL,
		inactivityThreshold: opts.InactivityThreshold,
	}
}

func metaKey(code string) string    { return "room:" + code + ":meta" }
func membersKey(code string) string { return "room:" + code + ":members" }
func votesKey(code string) string   { return "room:" + code + ":votes" }

// Create generates a room code and writes the initial meta entry. The room
// starts with no members and no votes.
func (e *Engine) Create(ctx context.Context, roomName string) (string, error) {
	if err := domain.ValidateRoomName(roomName); err != nil {
		return "", err
	}

	now := e.clock.Now().UnixMilli()
	meta := domain.RoomMeta{
		RoomName:  roomName,
		Deck:      domain.Deck(),
		CreatedAt: now,
		UpdatedAt: now,
		Revealed:  false,
		Version:   0,
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal room meta: %w", err)
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := domain.NewRoomCode()
		if err != nil {
			return "", err
		}

		// Codes are random enough that collisions are rare; re-roll when one
		// happens instead of clobbering a live room.
		if _, err := e.store.Get(ctx, metaKey(code)); err == nil {
			continue
		} else if !errors.Is(err, store.ErrKeyNotFound) {
			return "", fmt.Errorf("check room code: %w", err)
		}

		if err := e.store.Set(ctx, metaKey(code), string(data), e.ttl); err != nil {
			return "", fmt.Errorf("write room meta: %w", err)
		}
		return code, nil
	}

	return "", errors.New("could not allocate a unique room code")
}

// Snapshot assembles the consolidated room view. Members unseen for longer
// than the inactivity threshold are deleted from the store (with their votes)
// before the snapshot is built, so staleness heals as a side effect of reads.
func (e *Engine) Snapshot(ctx context.Context, roomCode string) (*domain.Snapshot, error) {
	code := domain.NormalizeRoomCode(roomCode)

	meta, err := e.getMeta(ctx, code)
	if err != nil {
		return nil, err
	}

	membersHash, err := e.store.HGetAll(ctx, membersKey(code))
	if err != nil {
		return nil, fmt.Errorf("read members: %w", err)
	}
	votesHash, err := e.store.HGetAll(ctx, votesKey(code))
	if err != nil {
		return nil, fmt.Errorf("read votes: %w", err)
	}

	now := e.clock.Now().UnixMilli()
	active := make(map[string]domain.Member)
	var inactive []string

	for clientID, raw := range membersHash {
		var member domain.Member
		if err := json.Unmarshal([]byte(raw), &member); err != nil {
			e.logger.Warnw("dropping unreadable member record", "room", code, "client", clientID)
			inactive = append(inactive, clientID)
			continue
		}

		if now-member.LastSeenAt < e.inactivityThreshold.Milliseconds() {
			active[clientID] = member
		} else {
			inactive = append(inactive, clientID)
		}
	}

	if len(inactive) > 0 {
		if err := e.store.HDel(ctx, membersKey(code), inactive...); err != nil {
			return nil, fmt.Errorf("prune members: %w", err)
		}
		if err := e.store.HDel(ctx, votesKey(code), inactive...); err != nil {
			return nil, fmt.Errorf("prune votes: %w", err)
		}
	}

	// A vote is only attributed to a currently active member.
	votes := make(map[string]string)
	for clientID, vote := range votesHash {
		if _, ok := active[clientID]; ok {
			votes[clientID] = vote
		}
	}

	return &domain.Snapshot{
		Meta:    *meta,
		Members: active,
		Votes:   votes,
		Version: meta.Version,
	}, nil
}

// Join upserts the member record with fresh timestamps and refreshes the
// room's expiry. Joining twice with the same id overwrites the display name.
func (e *Engine) Join(ctx context.Context, roomCode, clientID, name string) (*domain.Snapshot, error) {
	code := domain.NormalizeRoomCode(roomCode)

	if _, err := e.getMeta(ctx, code); err != nil {
		return nil, err
	}

	now := e.clock.Now().UnixMilli()
	member := domain.Member{
		Name:       name,
		JoinedAt:   now,
		LastSeenAt: now,
	}

	data, err := json.Marshal(member)
	if err != nil {
		return nil, fmt.Errorf("marshal member: %w", err)
	}
	if err := e.store.HSet(ctx, membersKey(code), clientID, string(data)); err != nil {
		return nil, fmt.Errorf("write member: %w", err)
	}
	if err := e.refreshTTL(ctx, code); err != nil {
		return nil, err
	}

	return e.Snapshot(ctx, code)
}

// CastVote records the client's vote, overwriting any previous one. The
// transport layer is responsible for restricting values to the deck.
func (e *Engine) CastVote(ctx context.Context, roomCode, clientID, vote string) (*domain.Snapshot, error) {
	code := domain.NormalizeRoomCode(roomCode)

	if _, err := e.getMeta(ctx, code); err != nil {
		return nil, err
	}

	if err := e.store.HSet(ctx, votesKey(code), clientID, vote); err != nil {
		return nil, fmt.Errorf("write vote: %w", err)
	}
	if err := e.touchMember(ctx, code, clientID); err != nil {
		return nil, err
	}
	if err := e.refreshTTL(ctx, code); err != nil {
		return nil, err
	}

	return e.Snapshot(ctx, code)
}

// Reveal exposes all votes. Idempotent when already revealed, though the
// version still bumps.
func (e *Engine) Reveal(ctx context.Context, roomCode, clientID string) (*domain.Snapshot, error) {
	return e.mutateMeta(ctx, roomCode, clientID, func(meta *domain.RoomMeta) {
		meta.Revealed = true
	})
}

// Reset hides votes again and clears the vote map for the next round.
func (e *Engine) Reset(ctx context.Context, roomCode, clientID string) (*domain.Snapshot, error) {
	code := domain.NormalizeRoomCode(roomCode)

	snapshot, err := e.mutateMeta(ctx, code, clientID, func(meta *domain.RoomMeta) {
		meta.Revealed = false
	})
	if err != nil {
		return nil, err
	}

	if err := e.store.Del(ctx, votesKey(code)); err != nil {
		return nil, fmt.Errorf("clear votes: %w", err)
	}

	snapshot.Votes = make(map[string]string)
	return snapshot, nil
}

func (e *Engine) UpdateStoryTitle(ctx context.Context, roomCode, clientID, title string) (*domain.Snapshot, error) {
	return e.mutateMeta(ctx, roomCode, clientID, func(meta *domain.RoomMeta) {
		meta.StoryTitle = title
	})
}

// Leave removes the member and its vote unconditionally.
func (e *Engine) Leave(ctx context.Context, roomCode, clientID string) error {
	code := domain.NormalizeRoomCode(roomCode)

	if err := e.store.HDel(ctx, membersKey(code), clientID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := e.store.HDel(ctx, votesKey(code), clientID); err != nil {
		return fmt.Errorf("remove vote: %w", err)
	}
	return nil
}

// Heartbeat refreshes the member's last-seen timestamp. No-op when the member
// does not exist.
func (e *Engine) Heartbeat(ctx context.Context, roomCode, clientID string) error {
	return e.touchMember(ctx, domain.NormalizeRoomCode(roomCode), clientID)
}

// mutateMeta applies fn to the meta blob, bumps the version, rewrites the
// entry with a fresh TTL and refreshes the acting client's last-seen. Two
// concurrent callers race: both write an incremented version and the later
// write wins.
func (e *Engine) mutateMeta(ctx context.Context, roomCode, clientID string, fn func(*domain.RoomMeta)) (*domain.Snapshot, error) {
	code := domain.NormalizeRoomCode(roomCode)

	meta, err := e.getMeta(ctx, code)
	if err != nil {
		return nil, err
	}

	fn(meta)
	meta.Version++
	meta.UpdatedAt = e.clock.Now().UnixMilli()

	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal room meta: %w", err)
	}
	if err := e.store.Set(ctx, metaKey(code), string(data), e.ttl); err != nil {
		return nil, fmt.Errorf("write room meta: %w", err)
	}
	if err := e.touchMember(ctx, code, clientID); err != nil {
		return nil, err
	}

	return e.Snapshot(ctx, code)
}

func (e *Engine) getMeta(ctx context.Context, code string) (*domain.RoomMeta, error) {
	raw, err := e.store.Get(ctx, metaKey(code))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("read room meta: %w", err)
	}

	var meta domain.RoomMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal room meta: %w", err)
	}
	return &meta, nil
}

func (e *Engine) touchMember(ctx context.Context, code, clientID string) error {
	raw, err := e.store.HGet(ctx, membersKey(code), clientID)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read member: %w", err)
	}

	var member domain.Member
	if err := json.Unmarshal([]byte(raw), &member); err != nil {
		return fmt.Errorf("unmarshal member: %w", err)
	}

	member.LastSeenAt = e.clock.Now().UnixMilli()

	data, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := e.store.HSet(ctx, membersKey(code), clientID, string(data)); err != nil {
		return fmt.Errorf("write member: %w", err)
	}
	return nil
}

// refreshTTL restarts the shared expiry countdown on all three room entries.
func (e *Engine) refreshTTL(ctx context.Context, code string) error {
	for _, key := range []string{metaKey(code), membersKey(code), votesKey(code)} {
		if err := e.store.Expire(ctx, key, e.ttl); err != nil {
			return fmt.Errorf("refresh ttl: %w", err)
		}
	}
	return nil
}
