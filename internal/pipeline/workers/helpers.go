package workers

import (
	"context"
	"strings"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/prompt"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Completer 是 Worker 消费的语言生成接口（由 provider.Chain 实现）。
type Completer interface {
	Complete(ctx context.Context, payload provider.ChatPayload) (string, error)
}

// filterQuery 把问题与已知实体拼成检索语句。实体在前，提升召回精度。
func filterQuery(qc *pipeline.QueryContext, extra ...string) string {
	e := qc.Entities()
	parts := make([]string, 0, 4+len(extra))
	if e.StockName != "" {
		parts = append(parts, e.StockName)
	}
	if e.StockID != "" {
		parts = append(parts, e.StockID)
	}
	if e.TimeRange != "" {
		parts = append(parts, e.TimeRange)
	}
	parts = append(parts, extra...)
	parts = append(parts, qc.Query)
	return strings.Join(parts, " ")
}

// toItems 把检索命中转成结果条目。
func toItems(docs []retrieval.Document) []types.ResultItem {
	items := make([]types.ResultItem, 0, len(docs))
	for _, d := range docs {
		content := strings.TrimSpace(d.Content)
		if content == "" {
			continue
		}
		items = append(items, types.ResultItem{
			Content:     content,
			Source:      strings.TrimSpace(d.Source),
			PublishedAt: d.PublishedAt,
			Confidence:  d.Score,
		})
	}
	return items
}

// narrate 在命中靠前的条目上追加一段模型叙述。叙述失败不算 Worker 失败，
// 原始条目照常返回。
func narrate(ctx context.Context, llm Completer, capability string, qc *pipeline.QueryContext, items []types.ResultItem) []types.ResultItem {
	if llm == nil || len(items) == 0 {
		return items
	}
	system, user := prompt.NarrativePrompts(capability, qc.Query, qc.Entities(), items)
	out, err := llm.Complete(ctx, provider.ChatPayload{
		System:  system,
		User:    user,
		Purpose: "worker-" + capability,
	})
	if err != nil {
		logger.Warnf("[worker] %s narrative failed trace=%s: %v", capability, qc.TraceID, err)
		return items
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return items
	}
	// 叙述继承最高命中的置信度与来源，排在条目首位
	head := items[0]
	narrative := types.ResultItem{
		Content:     out,
		Source:      head.Source,
		PublishedAt: head.PublishedAt,
		Confidence:  head.Confidence,
	}
	return append([]types.ResultItem{narrative}, items...)
}
