package qahttp

import "github.com/itsreborn2/intellio-sub004/internal/answer"

// AskRequest 是提问接口的请求体。
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// AskResponse 是提问接口的响应体，直接复用渲染层的形态。
type AskResponse = answer.Response
