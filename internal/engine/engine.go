package engine

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/answer"
	"github.com/itsreborn2/intellio-sub004/internal/classify"
	"github.com/itsreborn2/intellio-sub004/internal/fallback"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/telemetry"
	"github.com/itsreborn2/intellio-sub004/internal/integrate"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/session"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// 流水线阶段名，按推进顺序上报给追踪收集器。
const (
	StageCreated         = "created"
	StageSessionResolved = "session_resolved"
	StageClassified      = "classified"
	StageDispatched      = "dispatched"
	StageIntegrated      = "integrated"
	StageFallback        = "fallback"
	StageFormatted       = "formatted"
)

// ExchangeLogger 在答案定稿后把问答对写回会话存储。
type ExchangeLogger interface {
	AppendExchange(ctx context.Context, sessionID, query, answer string) error
}

// Engine 串联一次提问的完整生命周期：
// 会话解析 → 意图分类 → 扇出执行 → 知识融合（或兜底）→ 渲染。
// Dispatcher 可热替换（能力画像变更时由上层重建）。
type Engine struct {
	classifier *classify.Classifier
	resolver   *session.Resolver
	integrator *integrate.Integrator
	responder  *fallback.Responder
	collector  telemetry.Collector
	exchanges  ExchangeLogger
	history    int

	mu         sync.RWMutex
	dispatcher *pipeline.Dispatcher
}

func New(
	classifier *classify.Classifier,
	resolver *session.Resolver,
	dispatcher *pipeline.Dispatcher,
	integrator *integrate.Integrator,
	responder *fallback.Responder,
	collector telemetry.Collector,
	exchanges ExchangeLogger,
	historyLimit int,
) *Engine {
	if collector == nil {
		collector = telemetry.Nop{}
	}
	return &Engine{
		classifier: classifier,
		resolver:   resolver,
		dispatcher: dispatcher,
		integrator: integrator,
		responder:  responder,
		collector:  collector,
		exchanges:  exchanges,
		history:    historyLimit,
	}
}

// SwapDispatcher 在能力画像热更新后替换扇出器。进行中的请求不受影响。
func (e *Engine) SwapDispatcher(d *pipeline.Dispatcher) {
	e.mu.Lock()
	e.dispatcher = d
	e.mu.Unlock()
}

func (e *Engine) currentDispatcher() *pipeline.Dispatcher {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dispatcher
}

// 查询文本里显式出现的六位股票代码。
var queryStockCode = regexp.MustCompile(`\b\d{6}\b`)

// Ask 处理一次提问，永远返回可呈现的响应。
// token 为空表示匿名新会话。
func (e *Engine) Ask(ctx context.Context, token, query string) answer.Response {
	qc := pipeline.NewQueryContext(query)
	if e.history > 0 {
		qc.SetHistoryLimit(e.history)
	}
	e.emit(ctx, qc, StageCreated, nil)

	// 会话解析先行：回填的实体与历史要喂给分类器。
	res, err := e.resolver.Resolve(ctx, token, query, extractEntities(query))
	if err != nil {
		// 存储不可用时降级为无身份继续，错误记录在案。
		qc.AddError("session_resolver", types.ErrKindSession, err)
		logger.Warnf("[engine] 会话解析失败，匿名降级继续 trace=%s: %v", qc.TraceID, err)
	} else {
		qc.SetSession(res.SessionID, res.IsAuthenticated)
		qc.SetEntities(res.Entities)
		qc.AppendHistory(res.History...)
	}
	orderly := e.emit(ctx, qc, StageSessionResolved, nil)

	cls, err := e.classifier.Classify(ctx, qc.Query, qc.Entities(), qc.History())
	if err != nil {
		// 分类失败不终止请求：记录错误，带默认分类继续。
		qc.AddError("classifier", types.ErrKindClassificationParse, err)
	}
	qc.SetClassification(cls)
	orderly = e.emit(ctx, qc, StageClassified, map[string]string{
		"intent":       string(cls.Intent),
		"detail_level": string(cls.DetailLevel),
	}) && orderly

	// 深度分析只对已登录会话开放，在扇出之前短路。
	if requiresAuth(cls) && !qc.Authenticated() {
		return answer.AuthRequired(qc.SessionID())
	}

	forceFallback := e.runDispatch(ctx, qc, !orderly)

	var final string
	stage := StageIntegrated
	if !forceFallback {
		final, err = e.integrator.Integrate(ctx, qc)
		if err != nil {
			if errors.Is(err, types.ErrNoEvidence) {
				qc.AddError("integrator", types.ErrKindIntegrationEmpty, err)
			} else {
				qc.AddError("integrator", types.ErrKindInternal, err)
			}
		}
	}
	if forceFallback || err != nil || final == "" {
		final = e.responder.Respond(ctx, qc)
		stage = StageFallback
	}
	qc.SetTerminalAnswer(final)
	e.emit(ctx, qc, stage, nil)

	resp := answer.Format(qc)
	e.emit(ctx, qc, StageFormatted, nil)

	if e.exchanges != nil && qc.SessionID() != "" {
		if werr := e.exchanges.AppendExchange(ctx, qc.SessionID(), qc.Query, resp.Answer); werr != nil {
			logger.Warnf("[engine] 问答写回失败 session=%s: %v", qc.SessionID(), werr)
		}
	}
	return resp
}

// runDispatch 执行扇出，并处理追踪服务的乱序错误：
// 首次遇到时整体 Reset 并重跑一次，再次遇到则放弃融合直接兜底。
// 返回是否必须走兜底路径。
func (e *Engine) runDispatch(ctx context.Context, qc *pipeline.QueryContext, priorViolation bool) bool {
	violated := priorViolation
	for {
		e.currentDispatcher().Dispatch(ctx, qc)
		violated = !e.emit(ctx, qc, StageDispatched, nil) || violated
		if !violated {
			return false
		}
		if qc.ResetCount() > 0 {
			// 第二次乱序：不再重启，交给兜底应答。
			qc.AddError("telemetry", types.ErrKindUpstreamOrdering, telemetry.ErrOutOfOrder)
			return true
		}
		logger.Warnf("[engine] 追踪乱序，整体重启一次 trace=%s", qc.TraceID)
		qc.Reset()
		violated = false
	}
}

// emit 上报一个阶段事件。返回 false 表示收集器判定事件乱序；
// 其余上报错误只记日志，不影响流水线。
func (e *Engine) emit(ctx context.Context, qc *pipeline.QueryContext, stage string, fields map[string]string) bool {
	err := e.collector.Emit(ctx, telemetry.Event{
		TraceID: qc.TraceID,
		Stage:   stage,
		At:      time.Now(),
		Fields:  fields,
	})
	if err == nil {
		return true
	}
	if errors.Is(err, telemetry.ErrOutOfOrder) {
		return false
	}
	logger.Debugf("[engine] 追踪上报失败 stage=%s: %v", stage, err)
	return true
}

// requiresAuth 判断该分类是否要求登录会话。
func requiresAuth(c types.Classification) bool {
	return c.DetailLevel == types.DetailComprehensive || c.DetailLevel == types.DetailWebSearch
}

// extractEntities 从问题文本里抽取显式实体（目前只有股票代码）。
// 名称与行业交由分类与会话回填处理。
func extractEntities(query string) types.Entities {
	var e types.Entities
	if code := queryStockCode.FindString(query); code != "" {
		e.StockID = code
	}
	return e
}
