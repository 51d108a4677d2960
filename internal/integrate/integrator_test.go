package integrate

import (
	"context"
	"errors"
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
	seen  []provider.ChatPayload
}

func (s *stubCompleter) Complete(_ context.Context, p provider.ChatPayload) (string, error) {
	s.seen = append(s.seen, p)
	return s.reply, s.err
}

func contextWith(results map[types.CapabilityTag]types.WorkerOutput, tags ...types.CapabilityTag) *pipeline.QueryContext {
	qc := pipeline.NewQueryContext("질문")
	qc.SetClassification(types.Classification{
		Intent:               types.IntentOutlook,
		DetailLevel:          types.DetailDetailed,
		RequiredCapabilities: tags,
	})
	for tag, out := range results {
		qc.SetResult(tag, out)
	}
	return qc
}

func item(content string, conf float64, published time.Time) types.ResultItem {
	return types.ResultItem{Content: content, Source: "src", Confidence: conf, PublishedAt: published}
}

func TestRank_OrdersByScoreAndRecency(t *testing.T) {
	now := time.Now()
	qc := contextWith(map[types.CapabilityTag]types.WorkerOutput{
		// detailed 粒度下 report 权重 8、industry 权重 5。
		types.CapReport: {Succeeded: true, Items: []types.ResultItem{
			item("리포트 A", 0.5, now.Add(-time.Hour)),
			item("리포트 B", 0.5, now),
		}},
		types.CapIndustry: {Succeeded: true, Items: []types.ResultItem{
			item("산업 동향", 0.9, now),
		}},
	}, types.CapReport, types.CapIndustry)

	ranked, missing := Rank(qc)
	assert.Empty(t, missing)
	assert.Len(t, ranked, 3)
	// industry: 0.9*5=4.5 > report: 0.5*8=4.0；同分时取更新的条目。
	assert.Equal(t, "산업 동향", ranked[0].Item.Content)
	assert.Equal(t, "리포트 B", ranked[1].Item.Content)
	assert.Equal(t, "리포트 A", ranked[2].Item.Content)
}

func TestRank_Idempotent(t *testing.T) {
	now := time.Now()
	qc := contextWith(map[types.CapabilityTag]types.WorkerOutput{
		types.CapReport: {Succeeded: true, Items: []types.ResultItem{
			item("a", 0.4, now), item("b", 0.4, now), item("c", 0.4, now),
		}},
	}, types.CapReport)

	first, _ := Rank(qc)
	second, _ := Rank(qc)
	assert.Equal(t, first, second)
}

func TestRank_DedupesNormalizedContent(t *testing.T) {
	now := time.Now()
	qc := contextWith(map[types.CapabilityTag]types.WorkerOutput{
		types.CapReport: {Succeeded: true, Items: []types.ResultItem{
			item("삼성전자 목표가 상향!", 0.9, now),
			item("삼성전자  목표가   상향", 0.3, now),
		}},
	}, types.CapReport)

	ranked, _ := Rank(qc)
	assert.Len(t, ranked, 1)
	assert.InDelta(t, 0.9*8, ranked[0].Score, 1e-9)
}

func TestRank_FailedAndAbsentAreMissing(t *testing.T) {
	qc := contextWith(map[types.CapabilityTag]types.WorkerOutput{
		types.CapReport: types.EmptyOutput(false),
		// industry 根本没有结果槽。
	}, types.CapReport, types.CapIndustry)

	ranked, missing := Rank(qc)
	assert.Empty(t, ranked)
	assert.ElementsMatch(t, []types.CapabilityTag{types.CapReport, types.CapIndustry}, missing)
}

func TestIntegrate_NoEvidence(t *testing.T) {
	qc := contextWith(nil, types.CapReport)
	i := New(&stubCompleter{reply: "답"})

	_, err := i.Integrate(context.Background(), qc)
	assert.ErrorIs(t, err, types.ErrNoEvidence)
}

func TestIntegrate_SynthesizesAnswer(t *testing.T) {
	llm := &stubCompleter{reply: "종합하면 긍정적입니다 [report-1]"}
	qc := contextWith(map[types.CapabilityTag]types.WorkerOutput{
		types.CapReport: {Succeeded: true, Items: []types.ResultItem{item("매수 의견", 0.8, time.Now())}},
	}, types.CapReport)
	i := New(llm)

	answer, err := i.Integrate(context.Background(), qc)
	assert.NoError(t, err)
	assert.Equal(t, "종합하면 긍정적입니다 [report-1]", answer)
	assert.Len(t, llm.seen, 1)
	assert.Equal(t, "synthesize", llm.seen[0].Purpose)
}

func TestIntegrate_SynthesisFailure(t *testing.T) {
	qc := contextWith(map[types.CapabilityTag]types.WorkerOutput{
		types.CapReport: {Succeeded: true, Items: []types.ResultItem{item("매수 의견", 0.8, time.Now())}},
	}, types.CapReport)
	i := New(&stubCompleter{err: errors.New("model down")})

	_, err := i.Integrate(context.Background(), qc)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrNoEvidence)
}
