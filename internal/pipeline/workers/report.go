package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// ReportConfig 控制研报检索。
type ReportConfig struct {
	Name     string
	Timeout  time.Duration
	TopK     int
	MinScore float64
	// RecencyDays 之外的研报降权（过旧的观点噪声大）
	RecencyDays int
}

// ReportWorker 在券商研报库中检索与问题相关的分析。
type ReportWorker struct {
	meta        pipeline.WorkerMeta
	searcher    retrieval.Searcher
	llm         Completer
	topK        int
	minScore    float64
	recencyDays int
}

func NewReportWorker(cfg ReportConfig, searcher retrieval.Searcher, llm Completer) *ReportWorker {
	if cfg.TopK <= 0 {
		cfg.TopK = 6
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.4
	}
	if cfg.RecencyDays <= 0 {
		cfg.RecencyDays = 180
	}
	return &ReportWorker{
		meta: pipeline.WorkerMeta{
			Tag:     types.CapReport,
			Name:    nameOrDefault(cfg.Name, "report_search"),
			Timeout: cfg.Timeout,
		},
		searcher:    searcher,
		llm:         llm,
		topK:        cfg.TopK,
		minScore:    cfg.MinScore,
		recencyDays: cfg.RecencyDays,
	}
}

// Meta 实现接口。
func (w *ReportWorker) Meta() pipeline.WorkerMeta { return w.meta }

// Process 检索研报，过旧的命中按半衰减权处理后再合成叙述。
func (w *ReportWorker) Process(ctx context.Context, qc *pipeline.QueryContext) (types.WorkerOutput, error) {
	if w.searcher == nil {
		return types.EmptyOutput(false), fmt.Errorf("report: no searcher configured")
	}
	docs, err := w.searcher.Search(ctx, filterQuery(qc, "analyst report"), w.topK, w.minScore)
	if err != nil {
		return types.EmptyOutput(false), fmt.Errorf("report search: %w", err)
	}
	items := toItems(docs)
	cutoff := time.Now().AddDate(0, 0, -w.recencyDays)
	for i := range items {
		if items[i].PublishedAt.Before(cutoff) {
			items[i].Confidence *= 0.5
		}
	}
	if len(items) == 0 {
		return types.EmptyOutput(true), nil
	}
	items = narrate(ctx, w.llm, string(types.CapReport), qc, items)
	return types.WorkerOutput{Items: items, Succeeded: true}, nil
}
