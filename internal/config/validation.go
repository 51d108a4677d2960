package config

import (
	"fmt"
	"strings"

	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Retrieval.validate(); err != nil {
		return err
	}
	if err := c.Session.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AIConfig) validate() error {
	models, err := a.ResolveModelConfigs()
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return fmt.Errorf("ai.models requires at least one model")
	}
	for _, m := range models {
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("ai.models contains entry without model (id=%s)", m.ID)
		}
		if strings.TrimSpace(m.APIURL) == "" {
			return fmt.Errorf("ai.models.%s missing api_url (can inherit from preset)", m.ID)
		}
		if strings.TrimSpace(m.Provider) == "" {
			return fmt.Errorf("ai.models.%s missing provider", m.ID)
		}
	}
	if len(a.ProviderPreference) > 0 {
		modelSet := make(map[string]struct{}, len(models))
		for _, m := range models {
			modelSet[m.ID] = struct{}{}
		}
		for _, id := range a.ProviderPreference {
			if _, ok := modelSet[id]; !ok {
				return fmt.Errorf("ai.provider_preference contains unconfigured model id: %s", id)
			}
		}
	}
	return nil
}

func (r *RetrievalConfig) validate() error {
	if strings.TrimSpace(r.BaseURL) == "" && len(r.Endpoints) == 0 {
		return fmt.Errorf("retrieval.base_url or retrieval.endpoints must be configured")
	}
	for name := range r.Endpoints {
		if _, ok := types.ParseCapability(name); !ok {
			return fmt.Errorf("retrieval.endpoints contains unknown capability: %s", name)
		}
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if s.HistoryLimit < 2 {
		return fmt.Errorf("session.history_limit must be >= 2 (got %d)", s.HistoryLimit)
	}
	return nil
}
