package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 是服务的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Session   SessionConfig   `toml:"session"`
	AI        AIConfig        `toml:"ai"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// SessionConfig 控制会话存储与会话历史。
type SessionConfig struct {
	StorePath            string `toml:"store_path"`
	TTLHours             int    `toml:"ttl_hours"`
	HistoryLimit         int    `toml:"history_limit"`
	CookieName           string `toml:"cookie_name"`
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"`
}

func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

func (s SessionConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMinutes) * time.Minute
}

// AIConfig 描述语言模型接入：可复用的连接预设 + 实际模型清单 + 兜底顺序。
type AIConfig struct {
	TimeoutSeconds     int                    `toml:"timeout_seconds"`
	ProviderPreference []string               `toml:"provider_preference"`
	ProviderPresets    map[string]ModelPreset `toml:"provider_presets"`
	Models             []AIModelConfig        `toml:"models"`
}

// ModelPreset 描述可复用的 API 连接配置。
type ModelPreset struct {
	APIURL  string            `toml:"api_url"`
	APIKey  string            `toml:"api_key"`
	Headers map[string]string `toml:"headers"`
}

// AIModelConfig 代表一个可被调用的模型条目。
type AIModelConfig struct {
	ID       string            `toml:"id"`
	Provider string            `toml:"provider"`
	Preset   string            `toml:"preset"`
	APIURL   string            `toml:"api_url"`
	APIKey   string            `toml:"api_key"`
	Model    string            `toml:"model"`
	Enabled  bool              `toml:"enabled"`
	Headers  map[string]string `toml:"headers"`
}

// ResolveModelConfigs 把 preset 引用展开为完整的模型条目。
func (a *AIConfig) ResolveModelConfigs() ([]AIModelConfig, error) {
	out := make([]AIModelConfig, 0, len(a.Models))
	for _, m := range a.Models {
		preset := strings.TrimSpace(m.Preset)
		if preset != "" {
			p, ok := a.ProviderPresets[preset]
			if !ok {
				return nil, fmt.Errorf("ai.models.%s references unknown preset %q", m.ID, preset)
			}
			if strings.TrimSpace(m.APIURL) == "" {
				m.APIURL = p.APIURL
			}
			if strings.TrimSpace(m.APIKey) == "" {
				m.APIKey = p.APIKey
			}
			if len(m.Headers) == 0 {
				m.Headers = p.Headers
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// RetrievalConfig 描述各能力的检索后端。
type RetrievalConfig struct {
	BaseURL        string                       `toml:"base_url"`
	TimeoutSeconds int                          `toml:"timeout_seconds"`
	Endpoints      map[string]RetrievalEndpoint `toml:"endpoints"`
}

// RetrievalEndpoint 是单个能力的检索参数。
type RetrievalEndpoint struct {
	Path     string  `toml:"path"`
	TopK     int     `toml:"top_k"`
	MinScore float64 `toml:"min_score"`
}

// PipelineConfig 控制编排引擎的调度参数。
type PipelineConfig struct {
	ProfilesPath          string `toml:"profiles_path"`
	WorkerTimeoutSeconds  int    `toml:"worker_timeout_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

func (p PipelineConfig) WorkerTimeout() time.Duration {
	return time.Duration(p.WorkerTimeoutSeconds) * time.Second
}

func (p PipelineConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
