package fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Completer 是兜底回答消费的语言生成接口。
type Completer interface {
	Complete(ctx context.Context, payload provider.ChatPayload) (string, error)
}

// Responder 是流水线的终点安全网：检索全军覆没或不可恢复错误时，
// 给出带免责声明的降级回答。自身绝不失败，内部出错时退回硬编码文案。
type Responder struct {
	llm Completer
}

func New(llm Completer) *Responder {
	return &Responder{llm: llm}
}

const disclaimer = "※ 위 내용은 검증된 데이터 없이 생성된 일반적인 안내로, 투자 판단의 근거로 사용할 수 없습니다."

const staticMessage = "죄송합니다. 지금은 질문에 필요한 데이터를 조회할 수 없습니다. 잠시 후 다시 시도해 주세요.\n\n" + disclaimer

const fallbackSystem = `The retrieval pipeline failed and you have NO verified data.
Apologize briefly for the missing data, then give a short generic answer to the question
from general knowledge, in the user's language. Do not fabricate specific figures.`

// Respond 生成降级回答。返回值总是非空。
func (r *Responder) Respond(ctx context.Context, qc *pipeline.QueryContext) string {
	apology := situationLine(qc)
	if r.llm == nil {
		return staticMessage
	}
	out, err := r.llm.Complete(ctx, provider.ChatPayload{
		System:  fallbackSystem,
		User:    "Question: " + qc.Query,
		Purpose: "fallback",
	})
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			logger.Warnf("[fallback] trace=%s generic completion failed: %v", qc.TraceID, err)
		}
		return staticMessage
	}
	return apology + "\n\n" + strings.TrimSpace(out) + "\n\n" + disclaimer
}

// situationLine 根据失败形态挑选道歉文案。
func situationLine(qc *pipeline.QueryContext) string {
	errs := qc.Errors()
	timeouts := 0
	for _, e := range errs {
		if e.Kind == types.ErrKindWorkerTimeout {
			timeouts++
		}
	}
	switch {
	case timeouts > 0 && timeouts == len(errs) && len(errs) > 0:
		return "죄송합니다. 데이터 조회가 제한 시간 안에 끝나지 않았습니다."
	case len(errs) > 0:
		return fmt.Sprintf("죄송합니다. 데이터 조회 중 오류가 발생했습니다 (%d건).", len(errs))
	default:
		return "죄송합니다. 질문과 관련된 데이터를 찾지 못했습니다."
	}
}
