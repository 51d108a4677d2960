package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/itsreborn2/intellio-sub004/internal/logger"
)

// Chain 按顺序尝试多个 provider，取第一个成功的非空回答。
// 上游各模型都失败时返回最后一个错误。
type Chain struct {
	providers []ModelProvider
}

var ErrNoProvider = errors.New("no enabled model provider")

func NewChain(providers []ModelProvider) *Chain {
	enabled := make([]ModelProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil && p.Enabled() {
			enabled = append(enabled, p)
		}
	}
	return &Chain{providers: enabled}
}

// Complete 实现语言生成调用。purpose 仅用于日志归类。
func (c *Chain) Complete(ctx context.Context, payload ChatPayload) (string, error) {
	if c == nil || len(c.providers) == 0 {
		return "", ErrNoProvider
	}
	var lastErr error
	for _, p := range c.providers {
		out, err := p.Call(ctx, payload)
		if err != nil {
			lastErr = err
			logger.Warnf("[AI] provider %s failed (purpose=%s): %v", p.ID(), payload.Purpose, err)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if strings.TrimSpace(out) == "" {
			lastErr = errors.New("empty completion")
			logger.Warnf("[AI] provider %s returned empty output (purpose=%s)", p.ID(), payload.Purpose)
			continue
		}
		return out, nil
	}
	return "", lastErr
}

// Providers 返回链中的 provider ID（主要用于日志与测试）。
func (c *Chain) Providers() []string {
	ids := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		ids = append(ids, p.ID())
	}
	return ids
}
