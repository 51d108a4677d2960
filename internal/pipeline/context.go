package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// 单个 Worker 的执行状态。
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
)

// WorkerMetric 记录单个 Worker 的起止与结果状态。
type WorkerMetric struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
}

// QueryContext 是一次提问请求的共享可变状态。
// 除 Dispatcher 的并发扇出阶段外，所有阶段都串行地原地修改它；
// 扇出阶段里各 Worker 只写自己独占的结果槽，errors 的并发追加由互斥锁保护。
type QueryContext struct {
	Query     string
	TraceID   string
	StartedAt time.Time

	mu             sync.RWMutex
	sessionID      string
	authenticated  bool
	entities       types.Entities
	entitiesSet    bool
	classification types.Classification
	historyLimit   int
	history        []types.Turn
	results        map[types.CapabilityTag]types.WorkerOutput
	errs           []types.WorkerError
	metrics        map[types.CapabilityTag]WorkerMetric
	terminalAnswer string
	terminalSet    bool
	resets         int
}

// DefaultHistoryLimit 是会话历史保留的轮数上限（提示词体积控制）。
const DefaultHistoryLimit = 10

// NewQueryContext 创建请求上下文。query 创建后不可变。
func NewQueryContext(query string) *QueryContext {
	return &QueryContext{
		Query:        strings.TrimSpace(query),
		TraceID:      uuid.NewString(),
		StartedAt:    time.Now(),
		historyLimit: DefaultHistoryLimit,
		results:      make(map[types.CapabilityTag]types.WorkerOutput),
		metrics:      make(map[types.CapabilityTag]WorkerMetric),
	}
}

// SetSession 绑定会话身份。
func (qc *QueryContext) SetSession(id string, authenticated bool) {
	qc.mu.Lock()
	qc.sessionID = id
	qc.authenticated = authenticated
	qc.mu.Unlock()
}

func (qc *QueryContext) SessionID() string {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return qc.sessionID
}

func (qc *QueryContext) Authenticated() bool {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return qc.authenticated
}

// SetEntities 写入解析实体。只在首次生效，流水线中途不得重置。
func (qc *QueryContext) SetEntities(e types.Entities) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	if qc.entitiesSet {
		return
	}
	qc.entities = e
	qc.entitiesSet = true
}

func (qc *QueryContext) Entities() types.Entities {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return qc.entities
}

func (qc *QueryContext) SetClassification(c types.Classification) {
	qc.mu.Lock()
	qc.classification = c
	qc.mu.Unlock()
}

func (qc *QueryContext) Classification() types.Classification {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	c := qc.classification
	c.RequiredCapabilities = append([]types.CapabilityTag(nil), qc.classification.RequiredCapabilities...)
	return c
}

// SetHistoryLimit 调整历史轮数上限（仅在装配期调用）。
func (qc *QueryContext) SetHistoryLimit(n int) {
	if n < 2 {
		return
	}
	qc.mu.Lock()
	qc.historyLimit = n
	qc.mu.Unlock()
}

// AppendHistory 追加会话历史，只保留最近的 historyLimit 轮。
func (qc *QueryContext) AppendHistory(turns ...types.Turn) {
	if len(turns) == 0 {
		return
	}
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.history = append(qc.history, turns...)
	if over := len(qc.history) - qc.historyLimit; over > 0 {
		qc.history = append([]types.Turn(nil), qc.history[over:]...)
	}
}

// History 返回会话历史副本（时间正序）。
func (qc *QueryContext) History() []types.Turn {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	out := make([]types.Turn, len(qc.history))
	copy(out, qc.history)
	return out
}

// SetResult 写入某个能力的结果槽。每个 Worker 独占一个 key。
func (qc *QueryContext) SetResult(tag types.CapabilityTag, out types.WorkerOutput) {
	qc.mu.Lock()
	qc.results[tag] = out
	qc.mu.Unlock()
}

// Result 读取某个能力的结果。tag 未被选中时 ok=false，表示"无数据"而非错误。
func (qc *QueryContext) Result(tag types.CapabilityTag) (types.WorkerOutput, bool) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	out, ok := qc.results[tag]
	return out, ok
}

// Results 返回结果表副本。
func (qc *QueryContext) Results() map[types.CapabilityTag]types.WorkerOutput {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	out := make(map[types.CapabilityTag]types.WorkerOutput, len(qc.results))
	for k, v := range qc.results {
		out[k] = v
	}
	return out
}

// AddError 追加一条 Worker 错误（并发安全，只增不减）。
func (qc *QueryContext) AddError(worker string, kind types.ErrorKind, err error) {
	qc.mu.Lock()
	qc.errs = append(qc.errs, types.WorkerError{
		Worker:    worker,
		Kind:      kind,
		Err:       err,
		Timestamp: time.Now(),
	})
	qc.mu.Unlock()
}

// Errors 返回错误列表副本。
func (qc *QueryContext) Errors() []types.WorkerError {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	out := make([]types.WorkerError, len(qc.errs))
	copy(out, qc.errs)
	return out
}

// MarkStarted / MarkFinished 维护 per-capability 指标。
func (qc *QueryContext) MarkStarted(tag types.CapabilityTag) {
	qc.mu.Lock()
	qc.metrics[tag] = WorkerMetric{StartedAt: time.Now(), Status: StatusRunning}
	qc.mu.Unlock()
}

func (qc *QueryContext) MarkFinished(tag types.CapabilityTag, status string) {
	qc.mu.Lock()
	m := qc.metrics[tag]
	m.FinishedAt = time.Now()
	m.Status = status
	qc.metrics[tag] = m
	qc.mu.Unlock()
}

// Metrics 返回指标表副本。
func (qc *QueryContext) Metrics() map[types.CapabilityTag]WorkerMetric {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	out := make(map[types.CapabilityTag]WorkerMetric, len(qc.metrics))
	for k, v := range qc.metrics {
		out[k] = v
	}
	return out
}

// SetTerminalAnswer 写入最终答案。只允许设置一次；设置之后流水线完成，
// 任何 Worker 都不得再运行。返回是否写入成功。
func (qc *QueryContext) SetTerminalAnswer(answer string) bool {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	if qc.terminalSet {
		return false
	}
	qc.terminalAnswer = answer
	qc.terminalSet = true
	return true
}

// TerminalAnswer 返回最终答案；第二个返回值表示是否已定稿。
func (qc *QueryContext) TerminalAnswer() (string, bool) {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return qc.terminalAnswer, qc.terminalSet
}

// Reset 执行一次全量重启：清空 errors/results/metrics，
// 保留 query、entities、会话身份与历史。返回累计重启次数。
func (qc *QueryContext) Reset() int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	qc.results = make(map[types.CapabilityTag]types.WorkerOutput)
	qc.errs = nil
	qc.metrics = make(map[types.CapabilityTag]WorkerMetric)
	qc.resets++
	return qc.resets
}

// ResetCount 返回已执行的 Reset 次数。
func (qc *QueryContext) ResetCount() int {
	qc.mu.RLock()
	defer qc.mu.RUnlock()
	return qc.resets
}
