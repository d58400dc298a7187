package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()

	now := time.Now()
	m := NewMemoryStore()
	m.now = func() time.Time { return now }
	t.Cleanup(func() { m.Close() })

	return m, &now
}

func TestMemoryStore_SetGet(t *testing.T) {
	m, _ := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, m.Set(ctx, "k", "v", 0))

	got, err := m.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	m, now := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	*now = now.Add(59 * time.Second)
	_, err := m.Get(ctx, "k")
	assert.NoError(t, err)

	*now = now.Add(2 * time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_ExpireRefreshesCountdown(t *testing.T) {
	m, now := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, m.Set(ctx, "k", "v", time.Minute))

	*now = now.Add(50 * time.Second)
	assert.NoError(t, m.Expire(ctx, "k", time.Minute))

	*now = now.Add(50 * time.Second)
	_, err := m.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestMemoryStore_HashOps(t *testing.T) {
	m, _ := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, m.HSet(ctx, "h", "a", "1"))
	assert.NoError(t, m.HSet(ctx, "h", "b", "2"))

	got, err := m.HGet(ctx, "h", "a")
	assert.NoError(t, err)
	assert.Equal(t, "1", got)

	all, err := m.HGetAll(ctx, "h")
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)

	assert.NoError(t, m.HDel(ctx, "h", "a"))
	_, err = m.HGet(ctx, "h", "a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_HGetAllMissingKeyIsEmpty(t *testing.T) {
	m, _ := newTestStore(t)

	all, err := m.HGetAll(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryStore_HashSharesSingleExpiry(t *testing.T) {
	m, now := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, m.HSet(ctx, "h", "a", "1"))
	assert.NoError(t, m.HSet(ctx, "h", "b", "2"))
	assert.NoError(t, m.Expire(ctx, "h", time.Minute))

	*now = now.Add(2 * time.Minute)

	all, err := m.HGetAll(ctx, "h")
	assert.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryStore_DelRemovesKeys(t *testing.T) {
	m, _ := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, m.Set(ctx, "a", "1", 0))
	assert.NoError(t, m.HSet(ctx, "b", "f", "2"))

	assert.NoError(t, m.Del(ctx, "a", "b"))

	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	all, err := m.HGetAll(ctx, "b")
	assert.NoError(t, err)
	assert.Empty(t, all)
}
