package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(context.Context, provider.ChatPayload) (string, error) {
	s.calls++
	return s.reply, s.err
}

func classifiedContext(turns int) *pipeline.QueryContext {
	qc := pipeline.NewQueryContext("그래서 결론이 뭐야?")
	qc.SetClassification(types.Classification{
		Intent:               types.IntentOther,
		DetailLevel:          types.DetailBrief,
		RequiredCapabilities: []types.CapabilityTag{types.CapContextContinuation},
	})
	for i := 0; i < turns; i++ {
		qc.AppendHistory(types.Turn{Role: "user", Content: "이전 발언", Timestamp: time.Now()})
	}
	return qc
}

func TestContinuation_DeclinesWithoutEnoughHistory(t *testing.T) {
	llm := &stubCompleter{reply: "이어서 답변"}
	w := NewContinuationWorker(ContinuationConfig{}, llm)

	out, err := w.Process(context.Background(), classifiedContext(1))
	assert.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Empty(t, out.Items)
	assert.Zero(t, llm.calls, "前置条件不满足时不该调用模型")
}

func TestContinuation_DeclinesWithoutClassification(t *testing.T) {
	llm := &stubCompleter{reply: "이어서 답변"}
	w := NewContinuationWorker(ContinuationConfig{}, llm)

	qc := pipeline.NewQueryContext("그래서?")
	qc.AppendHistory(
		types.Turn{Role: "user", Content: "a"},
		types.Turn{Role: "assistant", Content: "b"},
	)
	out, err := w.Process(context.Background(), qc)
	assert.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.Zero(t, llm.calls)
}

func TestContinuation_AnswersFromHistory(t *testing.T) {
	llm := &stubCompleter{reply: "앞서 말씀드린 대로 긍정적입니다."}
	w := NewContinuationWorker(ContinuationConfig{}, llm)

	out, err := w.Process(context.Background(), classifiedContext(3))
	assert.NoError(t, err)
	assert.True(t, out.Usable())
	assert.Equal(t, "conversation", out.Items[0].Source)
	assert.InDelta(t, 0.6, out.Items[0].Confidence, 1e-9)
}
