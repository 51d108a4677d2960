package workers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// FinancialConfig 控制财务报表检索。
type FinancialConfig struct {
	Name     string
	Timeout  time.Duration
	TopK     int
	MinScore float64
}

// FinancialWorker 在财务报表库里检索并抽取关键数值。
type FinancialWorker struct {
	meta     pipeline.WorkerMeta
	searcher retrieval.Searcher
	llm      Completer
	topK     int
	minScore float64
}

// 报表文本里的数值（含千分位与小数），用于判断命中是否真的带数据。
var figurePattern = regexp.MustCompile(`-?\d{1,3}(?:,\d{3})+(?:\.\d+)?|-?\d+\.\d+|-?\d{4,}`)

func NewFinancialWorker(cfg FinancialConfig, searcher retrieval.Searcher, llm Completer) *FinancialWorker {
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.4
	}
	return &FinancialWorker{
		meta: pipeline.WorkerMeta{
			Tag:     types.CapFinancialStatement,
			Name:    nameOrDefault(cfg.Name, "financial_statement"),
			Timeout: cfg.Timeout,
		},
		searcher: searcher,
		llm:      llm,
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
	}
}

// Meta 实现接口。
func (w *FinancialWorker) Meta() pipeline.WorkerMeta { return w.meta }

// Process 检索报表，带有可解析数值的命中获得加权。
func (w *FinancialWorker) Process(ctx context.Context, qc *pipeline.QueryContext) (types.WorkerOutput, error) {
	if w.searcher == nil {
		return types.EmptyOutput(false), fmt.Errorf("financial: no searcher configured")
	}
	docs, err := w.searcher.Search(ctx, filterQuery(qc, "financial statement"), w.topK, w.minScore)
	if err != nil {
		return types.EmptyOutput(false), fmt.Errorf("financial search: %w", err)
	}
	items := toItems(docs)
	for i := range items {
		if figures := extractFigures(items[i].Content); len(figures) > 0 {
			boost := items[i].Confidence * 1.2
			if boost > 1 {
				boost = 1
			}
			items[i].Confidence = boost
		}
	}
	if len(items) == 0 {
		return types.EmptyOutput(true), nil
	}
	items = narrate(ctx, w.llm, string(types.CapFinancialStatement), qc, items)
	return types.WorkerOutput{Items: items, Succeeded: true}, nil
}

// extractFigures 把文本中的数值解析为 decimal，解析失败的串直接丢弃。
func extractFigures(content string) []decimal.Decimal {
	matches := figurePattern.FindAllString(content, -1)
	out := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		normalized := strings.ReplaceAll(m, ",", "")
		d, err := decimal.NewFromString(normalized)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
