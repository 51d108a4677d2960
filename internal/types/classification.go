package types

import "strings"

// Intent 是问题的意图类别。
type Intent string

const (
	IntentBasicInfo         Intent = "basic-info"
	IntentOutlook           Intent = "outlook"
	IntentFinancialAnalysis Intent = "financial-analysis"
	IntentIndustryTrend     Intent = "industry-trend"
	IntentOther             Intent = "other"
)

// DetailLevel 控制回答粒度，同时决定最多可以挑选多少个能力。
type DetailLevel string

const (
	DetailBrief         DetailLevel = "brief"
	DetailDetailed      DetailLevel = "detailed"
	DetailComprehensive DetailLevel = "comprehensive"
	DetailWebSearch     DetailLevel = "web-search-required"
)

// Classification 是分类器的结构化输出。
type Classification struct {
	Intent               Intent
	DetailLevel          DetailLevel
	RequiredCapabilities []CapabilityTag
}

// IsZero 判断是否尚未分类。
func (c Classification) IsZero() bool {
	return c.Intent == "" && c.DetailLevel == "" && len(c.RequiredCapabilities) == 0
}

// Has 判断某个能力是否被选中。
func (c Classification) Has(tag CapabilityTag) bool {
	for _, t := range c.RequiredCapabilities {
		if t == tag {
			return true
		}
	}
	return false
}

// ParseIntent 规范化意图文本，未知值落到 other。
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentBasicInfo, IntentOutlook, IntentFinancialAnalysis, IntentIndustryTrend:
		return Intent(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return IntentOther
	}
}

// ParseDetailLevel 规范化粒度文本，未知值落到 brief。
func ParseDetailLevel(raw string) DetailLevel {
	switch DetailLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case DetailBrief, DetailDetailed, DetailComprehensive, DetailWebSearch:
		return DetailLevel(strings.ToLower(strings.TrimSpace(raw)))
	default:
		return DetailBrief
	}
}

// MaxCapabilities 返回某个粒度允许选择的能力数上限。
// brief 最多 2 个，粒度越高上限单调不减，comprehensive 可用全部。
func (d DetailLevel) MaxCapabilities() int {
	switch d {
	case DetailBrief:
		return 2
	case DetailDetailed:
		return 3
	case DetailComprehensive, DetailWebSearch:
		return len(AllCapabilities())
	default:
		return 2
	}
}

// DefaultClassification 是分类失败时的安全缺省：仅启用消息档案检索。
func DefaultClassification() Classification {
	return Classification{
		Intent:               IntentOther,
		DetailLevel:          DetailBrief,
		RequiredCapabilities: []CapabilityTag{CapMessageArchive},
	}
}

// capabilityWeights 按粒度给出各能力的重要度（0~10），供 Integrator 排序。
var capabilityWeights = map[DetailLevel]map[CapabilityTag]float64{
	DetailBrief: {
		CapMessageArchive:      8,
		CapReport:              5,
		CapFinancialStatement:  5,
		CapIndustry:            3,
		CapContextContinuation: 6,
	},
	DetailDetailed: {
		CapMessageArchive:      7,
		CapReport:              8,
		CapFinancialStatement:  7,
		CapIndustry:            5,
		CapContextContinuation: 6,
	},
	DetailComprehensive: {
		CapMessageArchive:      7,
		CapReport:              9,
		CapFinancialStatement:  9,
		CapIndustry:            8,
		CapContextContinuation: 6,
	},
	DetailWebSearch: {
		CapMessageArchive:      6,
		CapReport:              8,
		CapFinancialStatement:  8,
		CapIndustry:            9,
		CapContextContinuation: 5,
	},
}

// CapabilityWeight 返回某能力在指定粒度下的静态权重。
func CapabilityWeight(level DetailLevel, tag CapabilityTag) float64 {
	table, ok := capabilityWeights[level]
	if !ok {
		table = capabilityWeights[DetailBrief]
	}
	w, ok := table[tag]
	if !ok {
		return 1
	}
	return w
}
