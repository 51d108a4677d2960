package scheduler

import (
	"context"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/logger"
)

// ExpiredDeleter 删除过期会话及其对话记录，返回删除的会话数。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper 按固定间隔清理过期会话。
type Sweeper struct {
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	store ExpiredDeleter
}

func NewSweeper(ctx context.Context, store ExpiredDeleter, interval time.Duration) *Sweeper {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Sweeper{
		Interval: interval,
		ctx:      ctx,
		store:    store,
	}
}

// Start 阻塞运行清理循环，直到 ctx 取消。通常放在独立 goroutine 里。
func (s *Sweeper) Start() {
	if s == nil || s.store == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("Sweeper: invalid interval=%s, exit", s.Interval)
		return
	}

	logger.Infof("Sweeper: started interval=%s run_immediately=%v", s.Interval, s.RunImmediately)

	if s.RunImmediately {
		s.sweep()
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("Sweeper: ctx done, exit")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	started := time.Now()
	n, err := s.store.DeleteExpired(s.ctx)
	if err != nil {
		logger.Errorf("Sweeper: 过期会话清理失败: %v", err)
		return
	}
	if n > 0 {
		logger.Infof("Sweeper: 清理过期会话 %d 个, 耗时=%s", n, time.Since(started).Truncate(time.Millisecond))
	}
}
