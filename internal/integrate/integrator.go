package integrate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/pkg/text"
	"github.com/itsreborn2/intellio-sub004/internal/prompt"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Completer 是融合阶段消费的语言生成接口。
type Completer interface {
	Complete(ctx context.Context, payload provider.ChatPayload) (string, error)
}

// Integrator 把各能力的部分结果融合为一个带引用的答案。
// 没有任何可用证据时返回 types.ErrNoEvidence，绝不编造内容。
type Integrator struct {
	llm Completer
	// 融合提示词里最多携带的证据条数
	maxItems int
}

func New(llm Completer) *Integrator {
	return &Integrator{llm: llm, maxItems: 12}
}

// Integrate 执行融合。对同一个未再修改的 Context 重复调用，
// 得到的排序与去重结果一致（稳定 tie-break）。
func (i *Integrator) Integrate(ctx context.Context, qc *pipeline.QueryContext) (string, error) {
	ranked, missing := Rank(qc)
	if len(ranked) == 0 {
		return "", types.ErrNoEvidence
	}
	if len(ranked) > i.maxItems {
		ranked = ranked[:i.maxItems]
	}
	if i.llm == nil {
		return "", fmt.Errorf("integrate: no completer configured")
	}
	system, user := prompt.SynthesizePrompts(qc.Query, qc.Entities(), ranked, missing)
	answer, err := i.llm.Complete(ctx, provider.ChatPayload{
		System:  system,
		User:    user,
		Purpose: "synthesize",
	})
	if err != nil {
		return "", fmt.Errorf("integrate: synthesis failed: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("integrate: empty synthesis")
	}
	logger.Debugf("[integrate] trace=%s items=%d missing=%d", qc.TraceID, len(ranked), len(missing))
	return answer, nil
}

// Rank 过滤失败/空输出、按 置信度×能力权重 排序并去重。
// missing 是被请求但没有可用产出的能力（缺席按"无数据"处理，不算错误）。
func Rank(qc *pipeline.QueryContext) (ranked []prompt.RankedItem, missing []types.CapabilityTag) {
	cls := qc.Classification()
	results := qc.Results()
	for _, tag := range cls.RequiredCapabilities {
		out, ok := results[tag]
		if !ok || !out.Usable() {
			missing = append(missing, tag)
			continue
		}
		weight := types.CapabilityWeight(cls.DetailLevel, tag)
		for _, item := range out.Items {
			ranked = append(ranked, prompt.RankedItem{
				Capability: tag,
				Item:       item,
				Score:      item.Confidence * weight,
			})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		ra, rb := ranked[a], ranked[b]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		// 同分取更新的条目，再按 tag/内容稳定排序保证幂等
		if !ra.Item.PublishedAt.Equal(rb.Item.PublishedAt) {
			return ra.Item.PublishedAt.After(rb.Item.PublishedAt)
		}
		if ra.Capability != rb.Capability {
			return ra.Capability < rb.Capability
		}
		return ra.Item.Content < rb.Item.Content
	})
	ranked = dedupe(ranked)
	return ranked, missing
}

// dedupe 去掉内容指纹相同的条目，保留排名最高的那个。
func dedupe(ranked []prompt.RankedItem) []prompt.RankedItem {
	seen := make(map[string]bool, len(ranked))
	out := ranked[:0]
	for _, r := range ranked {
		key := text.Normalize(r.Item.Content)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
