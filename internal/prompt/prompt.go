package prompt

import (
	"fmt"
	"strings"

	"github.com/itsreborn2/intellio-sub004/internal/pkg/text"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// 各阶段的提示词在这里集中拼装，方便统一调整口径。

const classifySystem = `You are the routing stage of a stock question-answering service.
Classify the user question and answer ONLY with a JSON object:
{
  "intent": "basic-info | outlook | financial-analysis | industry-trend | other",
  "detail_level": "brief | detailed | comprehensive | web-search-required",
  "capabilities": ["message-archive", "report", "financial-statement", "industry", "context-continuation"]
}
Pick only the capabilities that are actually needed. Never add commentary.`

// ClassifyPrompts 构造分类阶段的 system/user 提示词。
func ClassifyPrompts(query string, entities types.Entities, history []types.Turn) (string, string) {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n")
	if entities.HasStock() {
		fmt.Fprintf(&b, "Known stock: id=%s name=%s\n", entities.StockID, entities.StockName)
	}
	if entities.Sector != "" {
		fmt.Fprintf(&b, "Known sector: %s\n", entities.Sector)
	}
	if len(history) > 0 {
		b.WriteString("Recent turns:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "- [%s] %s\n", t.Role, text.Truncate(t.Content, 200))
		}
	}
	return classifySystem, b.String()
}

const narrativeSystem = `You summarize retrieved evidence about a stock for an analyst.
Write a short factual narrative in the user's language.
Use only the given items. Do not invent numbers or events.`

// NarrativePrompts 构造单个 Worker 的叙述合成提示词。
func NarrativePrompts(capability, query string, entities types.Entities, items []types.ResultItem) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Capability: %s\nQuestion: %s\n", capability, query)
	if entities.HasStock() {
		fmt.Fprintf(&b, "Stock: id=%s name=%s\n", entities.StockID, entities.StockName)
	}
	b.WriteString("Evidence items:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. (%s, %s) %s\n",
			i+1, item.Source, item.PublishedAt.Format("2006-01-02"), text.Truncate(item.Content, 400))
	}
	return narrativeSystem, b.String()
}

const synthesizeSystem = `You are the final synthesis stage of a stock question-answering service.
Fuse the ranked evidence into ONE coherent answer in the user's language.
Cite the source of every fact you use, e.g. (source: <source>).
If a requested capability returned nothing, say so explicitly in one sentence.
Never invent facts that are not in the evidence.`

// SynthesizePrompts 构造融合阶段提示词。missing 是被请求但没有产出的能力。
func SynthesizePrompts(query string, entities types.Entities, ranked []RankedItem, missing []types.CapabilityTag) (string, string) {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n")
	if entities.HasStock() {
		fmt.Fprintf(&b, "Stock: id=%s name=%s\n", entities.StockID, entities.StockName)
	}
	b.WriteString("Ranked evidence (best first):\n")
	for i, r := range ranked {
		fmt.Fprintf(&b, "%d. [%s | %s | %s] %s\n",
			i+1, r.Capability, r.Item.Source, r.Item.PublishedAt.Format("2006-01-02"),
			text.Truncate(r.Item.Content, 500))
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, tag := range missing {
			names = append(names, string(tag))
		}
		fmt.Fprintf(&b, "Capabilities requested but empty: %s\n", strings.Join(names, ", "))
	}
	return synthesizeSystem, b.String()
}

// RankedItem 是融合阶段排好序的单条证据。
type RankedItem struct {
	Capability types.CapabilityTag
	Item       types.ResultItem
	Score      float64
}

const continuationSystem = `You continue an ongoing conversation about a stock.
Answer the follow-up question using ONLY the prior turns as context.
If the prior turns do not contain the needed information, say you cannot tell.`

// ContinuationPrompts 构造上下文延续 Worker 的提示词。
func ContinuationPrompts(query string, history []types.Turn) (string, string) {
	var b strings.Builder
	b.WriteString("Prior turns:\n")
	for _, t := range history {
		fmt.Fprintf(&b, "[%s] %s\n", t.Role, text.Truncate(t.Content, 400))
	}
	b.WriteString("Follow-up question: ")
	b.WriteString(query)
	return continuationSystem, b.String()
}
