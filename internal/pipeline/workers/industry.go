package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// IndustryConfig 控制行业动态检索。
type IndustryConfig struct {
	Name     string
	Timeout  time.Duration
	TopK     int
	MinScore float64
}

// IndustryWorker 检索行业/板块层面的动态，而非个股本身。
type IndustryWorker struct {
	meta     pipeline.WorkerMeta
	searcher retrieval.Searcher
	llm      Completer
	topK     int
	minScore float64
}

func NewIndustryWorker(cfg IndustryConfig, searcher retrieval.Searcher, llm Completer) *IndustryWorker {
	if cfg.TopK <= 0 {
		cfg.TopK = 6
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.35
	}
	return &IndustryWorker{
		meta: pipeline.WorkerMeta{
			Tag:     types.CapIndustry,
			Name:    nameOrDefault(cfg.Name, "industry_search"),
			Timeout: cfg.Timeout,
		},
		searcher: searcher,
		llm:      llm,
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
	}
}

// Meta 实现接口。
func (w *IndustryWorker) Meta() pipeline.WorkerMeta { return w.meta }

// Process 以板块为主词检索行业动态；没有板块实体时退回个股+行业关键词。
func (w *IndustryWorker) Process(ctx context.Context, qc *pipeline.QueryContext) (types.WorkerOutput, error) {
	if w.searcher == nil {
		return types.EmptyOutput(false), fmt.Errorf("industry: no searcher configured")
	}
	e := qc.Entities()
	query := filterQuery(qc, "industry trend")
	if e.Sector != "" {
		query = e.Sector + " " + qc.Query
	}
	docs, err := w.searcher.Search(ctx, query, w.topK, w.minScore)
	if err != nil {
		return types.EmptyOutput(false), fmt.Errorf("industry search: %w", err)
	}
	items := toItems(docs)
	if len(items) == 0 {
		return types.EmptyOutput(true), nil
	}
	items = narrate(ctx, w.llm, string(types.CapIndustry), qc, items)
	return types.WorkerOutput{Items: items, Succeeded: true}, nil
}
