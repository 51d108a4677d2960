package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/prompt"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// ContinuationConfig 控制上下文延续回答。
type ContinuationConfig struct {
	Name    string
	Timeout time.Duration
}

// ContinuationWorker 不检索外部数据，只基于既有会话上下文续答。
// 前置条件：至少两轮历史且已有分类结果；不满足时拒答（空输出）而不是猜。
type ContinuationWorker struct {
	meta pipeline.WorkerMeta
	llm  Completer
}

const continuationMinTurns = 2

func NewContinuationWorker(cfg ContinuationConfig, llm Completer) *ContinuationWorker {
	return &ContinuationWorker{
		meta: pipeline.WorkerMeta{
			Tag:     types.CapContextContinuation,
			Name:    nameOrDefault(cfg.Name, "context_continuation"),
			Timeout: cfg.Timeout,
		},
		llm: llm,
	}
}

// Meta 实现接口。
func (w *ContinuationWorker) Meta() pipeline.WorkerMeta { return w.meta }

// Process 基于会话历史续答。
func (w *ContinuationWorker) Process(ctx context.Context, qc *pipeline.QueryContext) (types.WorkerOutput, error) {
	history := qc.History()
	if len(history) < continuationMinTurns || qc.Classification().IsZero() {
		return types.EmptyOutput(true), nil
	}
	if w.llm == nil {
		return types.EmptyOutput(false), fmt.Errorf("continuation: no completer configured")
	}
	system, user := prompt.ContinuationPrompts(qc.Query, history)
	out, err := w.llm.Complete(ctx, provider.ChatPayload{
		System:  system,
		User:    user,
		Purpose: "worker-" + string(types.CapContextContinuation),
	})
	if err != nil {
		return types.EmptyOutput(false), fmt.Errorf("continuation completion: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return types.EmptyOutput(true), nil
	}
	last := history[len(history)-1]
	return types.WorkerOutput{
		Items: []types.ResultItem{{
			Content:     out,
			Source:      "conversation",
			PublishedAt: last.Timestamp,
			Confidence:  0.6,
		}},
		Succeeded: true,
	}, nil
}
