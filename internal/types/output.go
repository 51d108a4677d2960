package types

import "time"

// ResultItem 是单条检索/分析结果。
type ResultItem struct {
	Content     string
	Source      string
	PublishedAt time.Time
	// Confidence 来自上游检索打分，范围 0~1。
	Confidence float64
}

// WorkerOutput 是一个 Worker 写入结果槽的值。
// 失败的 Worker 也必须返回结构完整的输出（Items 为空、Succeeded=false），
// 绝不以异常的方式中断整个 Context。
type WorkerOutput struct {
	Items     []ResultItem
	Succeeded bool
}

// Usable 判断输出是否可参与融合。
func (o WorkerOutput) Usable() bool {
	return o.Succeeded && len(o.Items) > 0
}

// EmptyOutput 构造失败/拒答时的占位输出。
func EmptyOutput(succeeded bool) WorkerOutput {
	return WorkerOutput{Items: []ResultItem{}, Succeeded: succeeded}
}

// Entities 是一次请求解析出的实体信息，解析一次后全程只读。
type Entities struct {
	StockID   string
	StockName string
	Sector    string
	TimeRange string
}

// HasStock 判断是否已定位到具体股票。
func (e Entities) HasStock() bool {
	return e.StockID != "" || e.StockName != ""
}

// Merge 用 other 中的非空字段回填当前实体（已存在的字段不覆盖）。
func (e Entities) Merge(other Entities) Entities {
	if e.StockID == "" {
		e.StockID = other.StockID
	}
	if e.StockName == "" {
		e.StockName = other.StockName
	}
	if e.Sector == "" {
		e.Sector = other.Sector
	}
	if e.TimeRange == "" {
		e.TimeRange = other.TimeRange
	}
	return e
}

// Turn 是会话历史中的一轮发言。
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}
