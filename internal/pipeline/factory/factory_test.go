package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsreborn2/intellio-sub004/internal/config"
	"github.com/itsreborn2/intellio-sub004/internal/gateway/retrieval"
	"github.com/itsreborn2/intellio-sub004/internal/pipeline"
	"github.com/itsreborn2/intellio-sub004/internal/profile"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

func TestBuildWorkerCarriesEndpointSearchParams(t *testing.T) {
	var got struct {
		TopK     int     `json:"top_k"`
		MinScore float64 `json:"min_score"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	client, err := retrieval.NewClient(config.RetrievalConfig{
		BaseURL: srv.URL,
		Endpoints: map[string]config.RetrievalEndpoint{
			string(types.CapMessageArchive): {Path: "/archive/search", TopK: 3, MinScore: 0.9},
		},
	})
	require.NoError(t, err)

	f := &Factory{Retrieval: client}
	reg, err := f.Build(profile.Snapshot{Definitions: map[types.CapabilityTag]profile.Definition{
		types.CapMessageArchive: {Tag: string(types.CapMessageArchive)},
	}})
	require.NoError(t, err)
	worker, ok := reg.Lookup(types.CapMessageArchive)
	require.True(t, ok)

	qc := pipeline.NewQueryContext("삼성전자 최근 분위기 어때?")
	out, err := worker.Process(context.Background(), qc)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Empty(t, out.Items)

	// 端点配置的检索参数要一路透传到请求体，而不是 Worker 的内置缺省
	assert.Equal(t, 3, got.TopK)
	assert.InDelta(t, 0.9, got.MinScore, 1e-9)
}
