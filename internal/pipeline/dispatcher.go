package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Dispatcher 按分类结果扇出选中的 Worker，并在全部完成后才返回（完整屏障）。
// 任何 Worker 的失败都在这里被吸收：记一条错误、写一个空槽，流水线继续。
// Dispatch 本身永远不向调用方返回错误。
type Dispatcher struct {
	registry       Registry
	workerTimeout  time.Duration
	requestTimeout time.Duration
}

// NewDispatcher 构造调度器。workerTimeout 是单 Worker 缺省预算，
// requestTimeout 是整个扇出阶段的总预算（超时即提前收拢，未完成者按失败处理）。
func NewDispatcher(registry Registry, workerTimeout, requestTimeout time.Duration) *Dispatcher {
	if workerTimeout <= 0 {
		workerTimeout = 30 * time.Second
	}
	if requestTimeout <= 0 {
		requestTimeout = 90 * time.Second
	}
	return &Dispatcher{
		registry:       registry,
		workerTimeout:  workerTimeout,
		requestTimeout: requestTimeout,
	}
}

// Dispatch 执行一次扇出/收拢。最终答案已定稿时直接返回，不再运行任何 Worker。
func (d *Dispatcher) Dispatch(ctx context.Context, qc *QueryContext) {
	if qc == nil {
		return
	}
	if _, done := qc.TerminalAnswer(); done {
		return
	}
	selected := d.selectWorkers(qc.Classification())
	if len(selected) == 0 {
		logger.Warnf("[dispatch] trace=%s no registered worker matches classification", qc.TraceID)
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, d.requestTimeout)
	defer cancel()

	var group errgroup.Group
	for _, w := range selected {
		w := w
		group.Go(func() error {
			d.runWorker(stageCtx, qc, w)
			return nil
		})
	}
	// 屏障：所有已启动的 Worker（成功或被捕获的失败）都完成后才进入下一阶段。
	_ = group.Wait()
}

// selectWorkers 取分类要求与注册表的交集；交集为空时回落到缺省能力，
// 保证至少有一个 Worker 运行。
func (d *Dispatcher) selectWorkers(c types.Classification) []Worker {
	out := make([]Worker, 0, len(c.RequiredCapabilities))
	for _, tag := range c.RequiredCapabilities {
		if w, ok := d.registry.Lookup(tag); ok {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		if w, ok := d.registry.Lookup(types.CapMessageArchive); ok {
			out = append(out, w)
		}
	}
	return out
}

func (d *Dispatcher) runWorker(ctx context.Context, qc *QueryContext, w Worker) {
	meta := w.Meta()
	timeout := meta.Timeout
	if timeout <= 0 {
		timeout = d.workerTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	qc.MarkStarted(meta.Tag)
	out, err := d.invoke(runCtx, qc, w)
	if err != nil {
		kind := types.ErrKindWorkerData
		status := StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			kind = types.ErrKindWorkerTimeout
			status = StatusTimeout
		}
		qc.AddError(meta.Name, kind, err)
		qc.SetResult(meta.Tag, types.EmptyOutput(false))
		qc.MarkFinished(meta.Tag, status)
		logger.Warnf("[dispatch] trace=%s worker=%s failed kind=%s: %v", qc.TraceID, meta.Name, kind, err)
		return
	}
	qc.SetResult(meta.Tag, out)
	if out.Succeeded {
		qc.MarkFinished(meta.Tag, StatusOK)
	} else {
		qc.MarkFinished(meta.Tag, StatusFailed)
	}
	logger.Debugf("[dispatch] trace=%s worker=%s items=%d succeeded=%v",
		qc.TraceID, meta.Name, len(out.Items), out.Succeeded)
}

// invoke 把 Worker 的 panic 也折算成普通错误，避免任何单点拖垮整个请求。
func (d *Dispatcher) invoke(ctx context.Context, qc *QueryContext, w Worker) (out types.WorkerOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = types.EmptyOutput(false)
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return w.Process(ctx, qc)
}
