package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/logger"
)

type ModelCfg struct {
	ID, Provider, APIURL, APIKey, Model string
	Enabled                             bool
	Headers                             map[string]string
}

// BuildProvidersFromConfig 把配置条目转成 ModelProvider 列表。
// 所有 provider 共享同一个连接池，供并发 Worker 与并发请求复用。
func BuildProvidersFromConfig(models []ModelCfg, timeout time.Duration, httpc *http.Client) []ModelProvider {
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		id := strings.TrimSpace(m.ID)
		if id == "" {
			base := strings.TrimSpace(m.Provider)
			if base == "" {
				base = "provider"
			}
			if model := strings.TrimSpace(m.Model); model != "" {
				id = fmt.Sprintf("%s:%s", base, model)
			} else {
				id = base
			}
			logger.Warnf("ai.models.id missing, generated id for %q: %s", m.Provider, id)
		}
		client := &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			ExtraHeaders: m.Headers,
			HTTPClient:   httpc,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		out = append(out, NewOpenAIModelProvider(id, true, client))
	}
	return out
}

// OrderByPreference 按偏好顺序排列 provider，未列出的排在末尾（保持原顺序）。
func OrderByPreference(providers []ModelProvider, preference []string) []ModelProvider {
	if len(preference) == 0 {
		return providers
	}
	index := make(map[string]ModelProvider, len(providers))
	for _, p := range providers {
		index[p.ID()] = p
	}
	out := make([]ModelProvider, 0, len(providers))
	seen := make(map[string]bool, len(providers))
	for _, id := range preference {
		if p, ok := index[id]; ok && !seen[id] {
			out = append(out, p)
			seen[id] = true
		}
	}
	for _, p := range providers {
		if !seen[p.ID()] {
			out = append(out, p)
		}
	}
	return out
}
