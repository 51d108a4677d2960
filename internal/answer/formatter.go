package answer

import (
	"fmt"

	"github.com/itsreborn2/intellio-sub004/internal/integrate"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/pkg/text"
)

// Source 是答案引用的一条出处。
type Source struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Response 是调用方拿到的最终形态。
type Response struct {
	Answer                 string   `json:"answer"`
	Sources                []Source `json:"sources"`
	SessionID              string   `json:"session_id"`
	AuthenticationRequired bool     `json:"authentication_required"`
}

// Format 把定稿的 Context 渲染为响应。引用列表只来自成功结果槽里
// 实际保留下来的条目，保证每条引用都能回溯到证据。
func Format(qc *pipeline.QueryContext) Response {
	resp := Response{SessionID: qc.SessionID()}
	if ans, ok := qc.TerminalAnswer(); ok {
		resp.Answer = ans
	}
	ranked, _ := integrate.Rank(qc)
	for idx, r := range ranked {
		resp.Sources = append(resp.Sources, Source{
			ID:      fmt.Sprintf("%s-%d", r.Capability, idx+1),
			Title:   r.Item.Source,
			Snippet: text.Truncate(r.Item.Content, 200),
			Score:   r.Score,
		})
	}
	return resp
}

// AuthRequired 构造要求登录的短路响应（Dispatcher 之前返回）。
func AuthRequired(sessionID string) Response {
	return Response{SessionID: sessionID, AuthenticationRequired: true}
}
