package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/classify"
	qacfg "github.com/itsreborn2/intellio-sub004/internal/config"
	"github.com/itsreborn2/intellio-sub004/internal/engine"
	"github.com/itsreborn2/intellio-sub004/internal/fallback"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/provider"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/telemetry"
	"github.com/itsreborn2/intellio-sub004/internal/integrate"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline/factory"
	"github.com/itsreborn2/intellio-sub004/internal/profile"
	"github.com/itsreborn2/intellio-sub004/internal/session"
	"github.com/itsreborn2/intellio-sub004/internal/store/gormstore"
	qahttp "github.com/itsreborn2/intellio-sub004/internal/transport/http/qa"
)

type AppBuilder struct {
	cfg *qacfg.Config

	storeFn     func(qacfg.SessionConfig) (*gormstore.Store, error)
	providersFn func(qacfg.AIConfig) (*provider.Chain, error)
	retrievalFn func(qacfg.RetrievalConfig) (*retrieval.Client, error)
	collector   telemetry.Collector
}

type AppBuilderOption func(*AppBuilder)

// WithCollector 注入追踪收集器（默认丢弃事件）。
func WithCollector(c telemetry.Collector) AppBuilderOption {
	return func(b *AppBuilder) { b.collector = c }
}

func NewAppBuilder(cfg *qacfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		storeFn:     buildSessionStore,
		providersFn: buildProviderChain,
		retrievalFn: retrieval.NewClient,
		collector:   telemetry.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildSessionStore(cfg qacfg.SessionConfig) (*gormstore.Store, error) {
	store, err := gormstore.NewStore(cfg.StorePath, cfg.TTL())
	if err != nil {
		return nil, fmt.Errorf("failed to init session store: %w", err)
	}
	logger.Infof("✓ 会话存储就绪 path=%s ttl=%s", cfg.StorePath, cfg.TTL())
	return store, nil
}

func buildProviderChain(cfg qacfg.AIConfig) (*provider.Chain, error) {
	models, err := cfg.ResolveModelConfigs()
	if err != nil {
		return nil, err
	}
	cfgs := make([]provider.ModelCfg, 0, len(models))
	for _, m := range models {
		cfgs = append(cfgs, provider.ModelCfg{
			ID:       m.ID,
			Provider: m.Provider,
			APIURL:   m.APIURL,
			APIKey:   m.APIKey,
			Model:    m.Model,
			Enabled:  m.Enabled,
			Headers:  m.Headers,
		})
	}
	// 所有模型共用一个连接池。
	httpc := &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	providers := provider.BuildProvidersFromConfig(cfgs, time.Duration(cfg.TimeoutSeconds)*time.Second, httpc)
	providers = provider.OrderByPreference(providers, cfg.ProviderPreference)
	chain := provider.NewChain(providers)
	logger.Infof("✓ 模型链就绪: %v", chain.Providers())
	return chain, nil
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	store, err := b.storeFn(cfg.Session)
	if err != nil {
		return nil, err
	}
	chain, err := b.providersFn(cfg.AI)
	if err != nil {
		return nil, err
	}
	searchClient, err := b.retrievalFn(cfg.Retrieval)
	if err != nil {
		return nil, fmt.Errorf("failed to init retrieval client: %w", err)
	}

	profiles, err := profile.NewRegistry(cfg.Pipeline.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load capability profiles: %w", err)
	}
	workerFactory := &factory.Factory{Retrieval: searchClient, LLM: chain}
	registry, err := workerFactory.Build(profiles.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to build worker registry: %w", err)
	}
	logger.Infof("✓ 已装配 %d 个能力 Worker", len(registry))

	dispatcher := pipeline.NewDispatcher(registry, cfg.Pipeline.WorkerTimeout(), cfg.Pipeline.RequestTimeout())
	eng := engine.New(
		classify.New(chain),
		session.NewResolver(store, cfg.Session.HistoryLimit),
		dispatcher,
		integrate.New(chain),
		fallback.New(chain),
		b.collector,
		store,
		cfg.Session.HistoryLimit,
	)

	// 能力画像热更新：重建注册表并整体替换扇出器。
	profiles.OnChange(func(snap profile.Snapshot) {
		reg, err := workerFactory.Build(snap)
		if err != nil {
			logger.Errorf("[app] 能力画像重载失败，保留旧注册表: %v", err)
			return
		}
		eng.SwapDispatcher(pipeline.NewDispatcher(reg, cfg.Pipeline.WorkerTimeout(), cfg.Pipeline.RequestTimeout()))
		logger.Infof("[app] 能力画像已热更新，Worker 数=%d", len(reg))
	})

	server, err := qahttp.NewServer(qahttp.ServerConfig{
		Addr:                cfg.App.HTTPAddr,
		Engine:              eng,
		CookieName:          cfg.Session.CookieName,
		CookieMaxAgeSeconds: int(cfg.Session.TTL() / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化问答 HTTP 失败: %w", err)
	}
	logger.Infof("✓ 问答 HTTP 接口监听 %s", server.Addr())

	return &App{
		cfg:    cfg,
		engine: eng,
		server: server,
		store:  store,
	}, nil
}
