package factory

import (
	"fmt"

	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline/workers"
	"github.com/itsreborn2/intellio-sub004/internal/profile"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Factory 把能力配置装配成 Worker 注册表。
type Factory struct {
	Retrieval *retrieval.Client
	LLM       workers.Completer
}

// Build 按能力快照构建注册表。被显式关闭的能力不注册，
// 其 tag 在结果表里自然缺席（Integrator 视为无数据）。
func (f *Factory) Build(snap profile.Snapshot) (pipeline.Registry, error) {
	registry := make(pipeline.Registry, len(types.AllCapabilities()))
	for _, tag := range types.AllCapabilities() {
		def := snap.Definitions[tag]
		if !def.IsEnabled() {
			logger.Infof("[factory] capability %s disabled by profile", tag)
			continue
		}
		w, err := f.buildWorker(tag, def)
		if err != nil {
			return nil, err
		}
		if w != nil {
			registry.Register(w)
		}
	}
	if len(registry) == 0 {
		return nil, fmt.Errorf("no capability enabled")
	}
	return registry, nil
}

func (f *Factory) buildWorker(tag types.CapabilityTag, def profile.Definition) (pipeline.Worker, error) {
	if tag == types.CapContextContinuation {
		return workers.NewContinuationWorker(workers.ContinuationConfig{
			Timeout: def.Timeout(),
		}, f.LLM), nil
	}
	searcher, ok := f.Retrieval.ForCapability(tag)
	if !ok {
		logger.Warnf("[factory] capability %s has no retrieval endpoint, skipped", tag)
		return nil, nil
	}
	topK, minScore := f.Retrieval.EndpointParams(tag)
	switch tag {
	case types.CapMessageArchive:
		return workers.NewArchiveWorker(workers.ArchiveConfig{Timeout: def.Timeout(), TopK: topK, MinScore: minScore}, searcher, f.LLM), nil
	case types.CapReport:
		return workers.NewReportWorker(workers.ReportConfig{Timeout: def.Timeout(), TopK: topK, MinScore: minScore}, searcher, f.LLM), nil
	case types.CapFinancialStatement:
		return workers.NewFinancialWorker(workers.FinancialConfig{Timeout: def.Timeout(), TopK: topK, MinScore: minScore}, searcher, f.LLM), nil
	case types.CapIndustry:
		return workers.NewIndustryWorker(workers.IndustryConfig{Timeout: def.Timeout(), TopK: topK, MinScore: minScore}, searcher, f.LLM), nil
	default:
		return nil, fmt.Errorf("unknown capability: %s", tag)
	}
}
