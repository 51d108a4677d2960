package pipeline

import (
	"context"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Worker 是一个检索/分析单元。除自己的结果槽与错误日志外不得有副作用。
type Worker interface {
	Meta() WorkerMeta
	Process(ctx context.Context, qc *QueryContext) (types.WorkerOutput, error)
}

// WorkerMeta 提供调度所需元信息。Timeout 为 0 时使用 Dispatcher 的缺省值。
type WorkerMeta struct {
	Tag     types.CapabilityTag
	Name    string
	Timeout time.Duration
}

// Registry 是进程启动时装配一次的 Worker 注册表，显式传入 Dispatcher，
// 不依赖任何包级全局状态。
type Registry map[types.CapabilityTag]Worker

// Register 登记一个 Worker；同一 tag 后登记者覆盖先登记者。
func (r Registry) Register(w Worker) {
	if w == nil {
		return
	}
	r[w.Meta().Tag] = w
}

// Lookup 按 tag 取 Worker。
func (r Registry) Lookup(tag types.CapabilityTag) (Worker, bool) {
	w, ok := r[tag]
	return w, ok
}
