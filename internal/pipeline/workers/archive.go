package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// ArchiveConfig 控制消息档案检索。
type ArchiveConfig struct {
	Name     string
	Timeout  time.Duration
	TopK     int
	MinScore float64
}

// ArchiveWorker 在内部消息/电报档案里检索与问题相关的讨论。
type ArchiveWorker struct {
	meta     pipeline.WorkerMeta
	searcher retrieval.Searcher
	llm      Completer
	topK     int
	minScore float64
}

func NewArchiveWorker(cfg ArchiveConfig, searcher retrieval.Searcher, llm Completer) *ArchiveWorker {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.35
	}
	return &ArchiveWorker{
		meta: pipeline.WorkerMeta{
			Tag:     types.CapMessageArchive,
			Name:    nameOrDefault(cfg.Name, "message_archive"),
			Timeout: cfg.Timeout,
		},
		searcher: searcher,
		llm:      llm,
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
	}
}

// Meta 实现接口。
func (w *ArchiveWorker) Meta() pipeline.WorkerMeta { return w.meta }

// Process 检索消息档案并在命中上合成一段叙述。
func (w *ArchiveWorker) Process(ctx context.Context, qc *pipeline.QueryContext) (types.WorkerOutput, error) {
	if w.searcher == nil {
		return types.EmptyOutput(false), fmt.Errorf("archive: no searcher configured")
	}
	docs, err := w.searcher.Search(ctx, filterQuery(qc), w.topK, w.minScore)
	if err != nil {
		return types.EmptyOutput(false), fmt.Errorf("archive search: %w", err)
	}
	items := toItems(docs)
	if len(items) == 0 {
		return types.EmptyOutput(true), nil
	}
	items = narrate(ctx, w.llm, string(types.CapMessageArchive), qc, items)
	return types.WorkerOutput{Items: items, Succeeded: true}, nil
}

func nameOrDefault(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
