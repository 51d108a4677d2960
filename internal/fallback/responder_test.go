package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(context.Context, provider.ChatPayload) (string, error) {
	return s.reply, s.err
}

func TestRespond_NeverEmpty(t *testing.T) {
	cases := map[string]*Responder{
		"nil llm":     New(nil),
		"llm error":   New(&stubCompleter{err: errors.New("down")}),
		"empty reply": New(&stubCompleter{reply: "  "}),
		"happy path":  New(&stubCompleter{reply: "일반적으로 반도체 업황에 따라 움직입니다."}),
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			qc := pipeline.NewQueryContext("삼성전자 어때?")
			out := r.Respond(context.Background(), qc)
			assert.NotEmpty(t, out)
		})
	}
}

func TestRespond_CarriesDisclaimer(t *testing.T) {
	r := New(&stubCompleter{reply: "일반적인 안내입니다."})
	qc := pipeline.NewQueryContext("q")
	out := r.Respond(context.Background(), qc)
	assert.Contains(t, out, disclaimer)
}

func TestSituationLine_AllTimeouts(t *testing.T) {
	qc := pipeline.NewQueryContext("q")
	qc.AddError("report", types.ErrKindWorkerTimeout, context.DeadlineExceeded)
	qc.AddError("industry", types.ErrKindWorkerTimeout, context.DeadlineExceeded)
	assert.Contains(t, situationLine(qc), "제한 시간")
}

func TestSituationLine_MixedErrors(t *testing.T) {
	qc := pipeline.NewQueryContext("q")
	qc.AddError("report", types.ErrKindWorkerTimeout, context.DeadlineExceeded)
	qc.AddError("industry", types.ErrKindWorkerData, errors.New("boom"))
	assert.Contains(t, situationLine(qc), "오류")
}

func TestSituationLine_NoData(t *testing.T) {
	qc := pipeline.NewQueryContext("q")
	assert.Contains(t, situationLine(qc), "찾지 못했습니다")
}
