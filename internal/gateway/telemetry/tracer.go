package telemetry

import (
	"context"
	"errors"
	"time"
)

// ErrOutOfOrder 表示下游追踪服务拒绝了乱序事件。
// 流水线据此执行一次完整 Reset；识别靠 errors.Is，绝不做字符串匹配。
var ErrOutOfOrder = errors.New("telemetry event out of order")

// Event 是流水线阶段的追踪事件。
type Event struct {
	TraceID string
	Stage   string
	At      time.Time
	Fields  map[string]string
}

// Collector 是可选的下游追踪收集器。
type Collector interface {
	Emit(ctx context.Context, evt Event) error
}

// Nop 是默认实现，丢弃所有事件。
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
