package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsreborn2/intellio-sub004/internal/types"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions.db"), ttl)
	require.NoError(t, err)
	return store
}

func TestStore_SessionRoundTrip(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.False(t, got.IsAuthenticated)
}

func TestStore_MissingAndEmptyToken(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	got, err := store.GetSession(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetSession(ctx, "no-such-token")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_EntitiesPersisted(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateEntities(ctx, sess.ID, types.Entities{
		StockID:   "005930",
		StockName: "삼성전자",
		Sector:    "반도체",
	}))

	got, err := store.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "005930", got.Entities.StockID)
	assert.Equal(t, "삼성전자", got.Entities.StockName)
	assert.Equal(t, "반도체", got.Entities.Sector)
}

func TestStore_RecentTurnsChronological(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, store.AppendExchange(ctx, sess.ID, "첫 질문", "첫 답변"))
	require.NoError(t, store.AppendExchange(ctx, sess.ID, "둘째 질문", "둘째 답변"))

	turns, err := store.RecentTurns(ctx, sess.ID, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	// 截断后仍保持时间正序，最末一条是最新的回答。
	assert.Equal(t, "assistant", turns[2].Role)
	assert.Equal(t, "둘째 답변", turns[2].Content)
}

func TestStore_DeleteExpired(t *testing.T) {
	store := newTestStore(t, time.Millisecond)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx)
	require.NoError(t, err)
	require.NoError(t, store.AppendExchange(ctx, sess.ID, "q", "a"))

	time.Sleep(10 * time.Millisecond)
	n, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.GetSession(ctx, sess.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)
}
