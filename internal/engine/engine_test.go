package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsreborn2/intellio-sub004/internal/classify"
	"github.com/itsreborn2/intellio-sub004/internal/fallback"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/telemetry"
	"github.com/itsreborn2/intellio-sub004/internal/integrate"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/session"
	"github.com/itsreborn2/intellio-sub004/internal/store/gormstore"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// purposeCompleter 按调用目的返回预设回复，未设置的目的返回错误。
type purposeCompleter struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
}

func (p *purposeCompleter) Complete(_ context.Context, payload provider.ChatPayload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[payload.Purpose]; ok {
		return "", err
	}
	if reply, ok := p.replies[payload.Purpose]; ok {
		return reply, nil
	}
	return "", errors.New("unexpected purpose: " + payload.Purpose)
}

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*gormstore.Session
	turns    map[string][]types.Turn
	appends  int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*gormstore.Session{},
		turns:    map[string][]types.Turn{},
	}
}

func (m *memStore) GetSession(_ context.Context, token string) (*gormstore.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[token], nil
}

func (m *memStore) CreateSession(context.Context) (*gormstore.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &gormstore.Session{ID: "sess-1", ExpiresAt: time.Now().Add(time.Hour)}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *memStore) RecentTurns(_ context.Context, sessionID string, _ int) ([]types.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns[sessionID], nil
}

func (m *memStore) UpdateEntities(_ context.Context, sessionID string, entities types.Entities) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Entities = entities
	}
	return nil
}

func (m *memStore) AppendExchange(_ context.Context, sessionID, query, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	m.turns[sessionID] = append(m.turns[sessionID],
		types.Turn{Role: "user", Content: query},
		types.Turn{Role: "assistant", Content: answer},
	)
	return nil
}

// orderingCollector 在第 N 次 dispatched 事件上返回乱序错误。
type orderingCollector struct {
	mu          sync.Mutex
	failOrdinal []int // 第几次 dispatched 事件要失败（从 1 开始）
	dispatched  int
	stages      []string
}

func (c *orderingCollector) Emit(_ context.Context, evt telemetry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = append(c.stages, evt.Stage)
	if evt.Stage != StageDispatched {
		return nil
	}
	c.dispatched++
	for _, n := range c.failOrdinal {
		if c.dispatched == n {
			return telemetry.ErrOutOfOrder
		}
	}
	return nil
}

func archiveWorker(content string) pipeline.Worker {
	return &staticWorker{
		meta: pipeline.WorkerMeta{Tag: types.CapMessageArchive, Name: "message_archive"},
		out: types.WorkerOutput{
			Items:     []types.ResultItem{{Content: content, Source: "archive", Confidence: 0.9, PublishedAt: time.Now()}},
			Succeeded: true,
		},
	}
}

type staticWorker struct {
	meta pipeline.WorkerMeta
	out  types.WorkerOutput
	runs int
}

func (w *staticWorker) Meta() pipeline.WorkerMeta { return w.meta }

func (w *staticWorker) Process(context.Context, *pipeline.QueryContext) (types.WorkerOutput, error) {
	w.runs++
	return w.out, nil
}

func newTestEngine(t *testing.T, llm *purposeCompleter, store *memStore, collector telemetry.Collector, workers ...pipeline.Worker) *Engine {
	t.Helper()
	registry := pipeline.Registry{}
	for _, w := range workers {
		registry.Register(w)
	}
	return New(
		classify.New(llm),
		session.NewResolver(store, 10),
		pipeline.NewDispatcher(registry, time.Second, 5*time.Second),
		integrate.New(llm),
		fallback.New(llm),
		collector,
		store,
		10,
	)
}

func defaultReplies() map[string]string {
	return map[string]string{
		"classify":   `{"intent":"outlook","detail_level":"brief","capabilities":["message-archive"]}`,
		"synthesize": "종합하면 전망은 긍정적입니다 [message-archive-1]",
		"fallback":   "일반적인 안내만 드릴 수 있습니다.",
	}
}

func TestAsk_EndToEnd(t *testing.T) {
	llm := &purposeCompleter{replies: defaultReplies()}
	store := newMemStore()
	eng := newTestEngine(t, llm, store, telemetry.Nop{}, archiveWorker("005930 언급 다수"))

	resp := eng.Ask(context.Background(), "", "005930 전망 어때?")

	assert.Equal(t, "종합하면 전망은 긍정적입니다 [message-archive-1]", resp.Answer)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.False(t, resp.AuthenticationRequired)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "archive", resp.Sources[0].Title)
	assert.Equal(t, 1, store.appends, "답변 후 문답이 저장되어야 한다")
}

func TestAsk_ClassificationParseFailureUsesDefault(t *testing.T) {
	llm := &purposeCompleter{replies: defaultReplies()}
	llm.replies["classify"] = "분류할 수 없습니다."
	store := newMemStore()
	worker := archiveWorker("기본 검색 결과").(*staticWorker)
	eng := newTestEngine(t, llm, store, telemetry.Nop{}, worker)

	resp := eng.Ask(context.Background(), "", "삼성전자?")

	// 缺省分类仍然会让 message-archive 跑起来并给出答案。
	assert.NotEmpty(t, resp.Answer)
	assert.Equal(t, 1, worker.runs)
}

func TestAsk_NoEvidenceFallsBack(t *testing.T) {
	llm := &purposeCompleter{replies: defaultReplies()}
	store := newMemStore()
	empty := &staticWorker{
		meta: pipeline.WorkerMeta{Tag: types.CapMessageArchive, Name: "message_archive"},
		out:  types.EmptyOutput(true),
	}
	eng := newTestEngine(t, llm, store, telemetry.Nop{}, empty)

	resp := eng.Ask(context.Background(), "", "아무도 모르는 종목?")

	assert.Contains(t, resp.Answer, "일반적인 안내만 드릴 수 있습니다.")
	assert.Empty(t, resp.Sources)
}

func TestAsk_FallbackNeverFails(t *testing.T) {
	llm := &purposeCompleter{
		replies: map[string]string{
			"classify": `{"intent":"outlook","detail_level":"brief","capabilities":["message-archive"]}`,
		},
		errs: map[string]error{
			"synthesize": errors.New("model down"),
			"fallback":   errors.New("model down"),
		},
	}
	store := newMemStore()
	eng := newTestEngine(t, llm, store, telemetry.Nop{}, archiveWorker("hit"))

	resp := eng.Ask(context.Background(), "", "q")
	assert.NotEmpty(t, resp.Answer, "모든 모델이 죽어도 답변은 나와야 한다")
}

func TestAsk_ResetOnceOnOrderingViolation(t *testing.T) {
	llm := &purposeCompleter{replies: defaultReplies()}
	store := newMemStore()
	collector := &orderingCollector{failOrdinal: []int{1}}
	worker := archiveWorker("hit").(*staticWorker)
	eng := newTestEngine(t, llm, store, collector, worker)

	resp := eng.Ask(context.Background(), "", "q")

	assert.Equal(t, 2, worker.runs, "重启后应完整重跑一次扇出")
	assert.Equal(t, "종합하면 전망은 긍정적입니다 [message-archive-1]", resp.Answer)
}

func TestAsk_SecondOrderingViolationFallsBack(t *testing.T) {
	llm := &purposeCompleter{replies: defaultReplies()}
	store := newMemStore()
	collector := &orderingCollector{failOrdinal: []int{1, 2}}
	worker := archiveWorker("hit").(*staticWorker)
	eng := newTestEngine(t, llm, store, collector, worker)

	resp := eng.Ask(context.Background(), "", "q")

	assert.Equal(t, 2, worker.runs, "最多重启一次")
	assert.Contains(t, resp.Answer, "일반적인 안내만 드릴 수 있습니다.")
}

func TestAsk_AuthGateShortCircuits(t *testing.T) {
	llm := &purposeCompleter{replies: defaultReplies()}
	llm.replies["classify"] = `{"intent":"financial-analysis","detail_level":"comprehensive","capabilities":["message-archive","report"]}`
	store := newMemStore()
	worker := archiveWorker("hit").(*staticWorker)
	eng := newTestEngine(t, llm, store, telemetry.Nop{}, worker)

	resp := eng.Ask(context.Background(), "", "심층 분석해줘")

	assert.True(t, resp.AuthenticationRequired)
	assert.Empty(t, resp.Answer)
	assert.Zero(t, worker.runs, "인증 게이트는 Dispatcher 전에 끊어야 한다")
	assert.Zero(t, store.appends)
}

func TestAsk_AuthenticatedComprehensivePasses(t *testing.T) {
	llm := &purposeCompleter{replies: defaultReplies()}
	llm.replies["classify"] = `{"intent":"financial-analysis","detail_level":"comprehensive","capabilities":["message-archive"]}`
	store := newMemStore()
	store.sessions["auth-tok"] = &gormstore.Session{
		ID:              "auth-tok",
		IsAuthenticated: true,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	eng := newTestEngine(t, llm, store, telemetry.Nop{}, archiveWorker("hit"))

	resp := eng.Ask(context.Background(), "auth-tok", "심층 분석해줘")

	assert.False(t, resp.AuthenticationRequired)
	assert.NotEmpty(t, resp.Answer)
}
