package retrieval

import (
	"context"
	"time"
)

// Document 是检索后端返回的单条命中。
type Document struct {
	Content     string    `json:"content"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Score       float64   `json:"score"`
}

// Searcher 是各能力消费的检索接口。
type Searcher interface {
	Search(ctx context.Context, filterQuery string, topK int, minScore float64) ([]Document, error)
}
