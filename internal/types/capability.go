package types

import "strings"

// CapabilityTag 标识一种检索/分析专长，每个 Worker 恰好占用一个 tag，
// 同时也是 Context.results 的唯一 key。
type CapabilityTag string

const (
	CapMessageArchive      CapabilityTag = "message-archive"
	CapReport              CapabilityTag = "report"
	CapFinancialStatement  CapabilityTag = "financial-statement"
	CapIndustry            CapabilityTag = "industry"
	CapContextContinuation CapabilityTag = "context-continuation"
)

// AllCapabilities 返回固定的 tag 全集（顺序稳定，供遍历/校验使用）。
func AllCapabilities() []CapabilityTag {
	return []CapabilityTag{
		CapMessageArchive,
		CapReport,
		CapFinancialStatement,
		CapIndustry,
		CapContextContinuation,
	}
}

// ParseCapability 将自由文本规范化为合法 tag。
func ParseCapability(raw string) (CapabilityTag, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	switch CapabilityTag(normalized) {
	case CapMessageArchive, CapReport, CapFinancialStatement, CapIndustry, CapContextContinuation:
		return CapabilityTag(normalized), true
	}
	// 常见的模型别名
	switch normalized {
	case "archive", "message", "messages", "telegram":
		return CapMessageArchive, true
	case "reports", "analyst-report":
		return CapReport, true
	case "financial", "financials", "financial-statements":
		return CapFinancialStatement, true
	case "industry-trend", "sector":
		return CapIndustry, true
	case "continuation", "context", "followup", "follow-up":
		return CapContextContinuation, true
	}
	return "", false
}

func (t CapabilityTag) Valid() bool {
	_, ok := ParseCapability(string(t))
	return ok
}

func (t CapabilityTag) String() string { return string(t) }
