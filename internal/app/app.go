package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	qacfg "github.com/itsreborn2/intellio-sub004/internal/config"
	"github.com/itsreborn2/intellio-sub004/internal/engine"
	"github.com/itsreborn2/intellio-sub004/internal/scheduler"
	"github.com/itsreborn2/intellio-sub004/internal/store/gormstore"
	qahttp "github.com/itsreborn2/intellio-sub004/internal/transport/http/qa"
)

// App 负责应用级编排：加载配置→初始化依赖→启动问答服务与会话清理。
type App struct {
	cfg    *qacfg.Config
	engine *engine.Engine
	server *qahttp.Server
	store  *gormstore.Store
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *qacfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与过期会话清理，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("qa http server error: %w", err)
		}
		return nil
	})

	if interval := a.cfg.Session.SweepInterval(); interval > 0 {
		sweeper := scheduler.NewSweeper(ctx, a.store, interval)
		group.Go(func() error {
			sweeper.Start()
			return nil
		})
	}

	return group.Wait()
}

// Engine 暴露底层编排引擎，供测试与回放工具使用。
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}
