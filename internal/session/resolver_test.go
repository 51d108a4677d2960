package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itsreborn2/intellio-sub004/internal/store/gormstore"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

type fakeStore struct {
	sessions map[string]*gormstore.Session
	turns    map[string][]types.Turn
	updated  map[string]types.Entities

	getErr    error
	createErr error
	turnsErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]*gormstore.Session{},
		turns:    map[string][]types.Turn{},
		updated:  map[string]types.Entities{},
	}
}

func (f *fakeStore) GetSession(_ context.Context, token string) (*gormstore.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.sessions[token], nil
}

func (f *fakeStore) CreateSession(context.Context) (*gormstore.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	sess := &gormstore.Session{ID: "new-session", ExpiresAt: time.Now().Add(time.Hour)}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeStore) RecentTurns(_ context.Context, sessionID string, _ int) ([]types.Turn, error) {
	if f.turnsErr != nil {
		return nil, f.turnsErr
	}
	return f.turns[sessionID], nil
}

func (f *fakeStore) UpdateEntities(_ context.Context, sessionID string, entities types.Entities) error {
	f.updated[sessionID] = entities
	return nil
}

func TestResolve_CreatesAnonymousSession(t *testing.T) {
	store := newFakeStore()
	r := NewResolver(store, 10)

	res, err := r.Resolve(context.Background(), "", "삼성전자 어때?", types.Entities{})
	assert.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "new-session", res.SessionID)
	assert.False(t, res.IsAuthenticated)
}

func TestResolve_ExistingSessionKeepsIdentity(t *testing.T) {
	store := newFakeStore()
	store.sessions["tok"] = &gormstore.Session{
		ID:              "tok",
		IsAuthenticated: true,
		Entities:        types.Entities{StockID: "005930", StockName: "삼성전자"},
	}
	r := NewResolver(store, 10)

	res, err := r.Resolve(context.Background(), "tok", "실적은?", types.Entities{})
	assert.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.IsAuthenticated)
	assert.Equal(t, "005930", res.Entities.StockID)
}

func TestResolve_ReferentialBackfillFromHistory(t *testing.T) {
	store := newFakeStore()
	store.sessions["tok"] = &gormstore.Session{ID: "tok"}
	store.turns["tok"] = []types.Turn{
		{Role: "user", Content: "000660 실적 알려줘"},
		{Role: "assistant", Content: "..."},
		{Role: "user", Content: "005930 버티나요?"},
		{Role: "assistant", Content: "..."},
	}
	r := NewResolver(store, 10)

	res, err := r.Resolve(context.Background(), "tok", "그 종목 전망은 어때?", types.Entities{})
	assert.NoError(t, err)
	// 倒序扫描：取最近一次出现的代码。
	assert.Equal(t, "005930", res.Entities.StockID)
	assert.Equal(t, "005930", store.updated["tok"].StockID)
}

func TestResolve_NoBackfillWithoutReferentialPhrase(t *testing.T) {
	store := newFakeStore()
	store.sessions["tok"] = &gormstore.Session{ID: "tok"}
	store.turns["tok"] = []types.Turn{{Role: "user", Content: "005930 실적"}}
	r := NewResolver(store, 10)

	res, err := r.Resolve(context.Background(), "tok", "요즘 증시 분위기 어때?", types.Entities{})
	assert.NoError(t, err)
	assert.Empty(t, res.Entities.StockID)
}

func TestResolve_LookupFailureDegradesToAnonymous(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("db locked")
	r := NewResolver(store, 10)

	res, err := r.Resolve(context.Background(), "tok", "q", types.Entities{})
	assert.NoError(t, err)
	assert.True(t, res.Created)
}

func TestResolve_CreateFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("disk full")
	r := NewResolver(store, 10)

	_, err := r.Resolve(context.Background(), "", "q", types.Entities{})
	assert.Error(t, err)
}
