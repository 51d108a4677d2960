package config

import "strings"

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":8020"
	defaultAppLogPath        = "/data/logs/stockqa.log"
	defaultAppLLMLogPath     = "/data/logs/stockqa-llm.log"
	defaultSessionStorePath  = "/data/db/sessions.db"
	defaultSessionTTLHours   = 72
	defaultSessionHistory    = 10
	defaultSessionCookie     = "stockqa_session"
	defaultSessionSweepMin   = 30
	defaultAITimeoutSeconds  = 60
	defaultRetrievalTimeout  = 20
	defaultWorkerTimeoutSec  = 30
	defaultRequestTimeoutSec = 90
	defaultProfilesPath      = "configs/capabilities.yaml"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Retrieval.applyDefaults(keys)
	c.Pipeline.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("session.store_path", &s.StorePath, defaultSessionStorePath),
		stringFieldDefault("session.cookie_name", &s.CookieName, defaultSessionCookie),
		intFieldDefault("session.ttl_hours", &s.TTLHours, defaultSessionTTLHours),
		intFieldDefault("session.history_limit", &s.HistoryLimit, defaultSessionHistory),
		intFieldDefault("session.sweep_interval_minutes", &s.SweepIntervalMinutes, defaultSessionSweepMin),
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("ai.timeout_seconds", &a.TimeoutSeconds, defaultAITimeoutSeconds),
	)
}

func (r *RetrievalConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("retrieval.timeout_seconds", &r.TimeoutSeconds, defaultRetrievalTimeout),
	)
}

func (p *PipelineConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("pipeline.profiles_path", &p.ProfilesPath, defaultProfilesPath),
		intFieldDefault("pipeline.worker_timeout_seconds", &p.WorkerTimeoutSeconds, defaultWorkerTimeoutSec),
		intFieldDefault("pipeline.request_timeout_seconds", &p.RequestTimeoutSeconds, defaultRequestTimeoutSec),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && *target <= 0
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
