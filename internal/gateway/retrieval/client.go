package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/itsreborn2/intellio-sub004/internal/config"
	"github.com/itsreborn2/intellio-sub004/internal/logger"
	"github.com/itsreborn2/intellio-sub004/internal/types"
)

// Client 封装向量检索服务的 REST 访问。每个能力对应一个端点，
// 进程内共享同一个连接池。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	endpoints  map[types.CapabilityTag]config.RetrievalEndpoint
}

// NewClient 根据配置构造检索客户端。
func NewClient(cfg config.RetrievalConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("retrieval.base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing retrieval.base_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	endpoints := make(map[types.CapabilityTag]config.RetrievalEndpoint, len(cfg.Endpoints))
	for name, ep := range cfg.Endpoints {
		tag, ok := types.ParseCapability(name)
		if !ok {
			return nil, fmt.Errorf("retrieval.endpoints contains unknown capability: %s", name)
		}
		endpoints[tag] = ep
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
		endpoints:  endpoints,
	}, nil
}

// SetHTTPClient 替换底层 HTTP 客户端，测试用。
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// searchRequest 是检索服务的请求体。
type searchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
}

type searchResponse struct {
	Items []Document `json:"items"`
}

// EndpointParams 返回能力端点配置的 top_k / min_score，供装配层透传给 Worker。
// 未配置的值为零，由 Worker 自己的缺省兜底。
func (c *Client) EndpointParams(tag types.CapabilityTag) (int, float64) {
	ep := c.endpoints[tag]
	return ep.TopK, ep.MinScore
}

// ForCapability 返回绑定到某个能力端点的 Searcher。
func (c *Client) ForCapability(tag types.CapabilityTag) (Searcher, bool) {
	ep, ok := c.endpoints[tag]
	if !ok {
		return nil, false
	}
	return &capabilitySearcher{client: c, tag: tag, endpoint: ep}, true
}

type capabilitySearcher struct {
	client   *Client
	tag      types.CapabilityTag
	endpoint config.RetrievalEndpoint
}

func (s *capabilitySearcher) Search(ctx context.Context, filterQuery string, topK int, minScore float64) ([]Document, error) {
	if topK <= 0 {
		topK = s.endpoint.TopK
	}
	if minScore <= 0 {
		minScore = s.endpoint.MinScore
	}
	return s.client.search(ctx, s.endpoint.Path, filterQuery, topK, minScore)
}

func (c *Client) search(ctx context.Context, path, filterQuery string, topK int, minScore float64) ([]Document, error) {
	if strings.TrimSpace(filterQuery) == "" {
		return nil, fmt.Errorf("empty filter query")
	}
	body, err := json.Marshal(searchRequest{Query: filterQuery, TopK: topK, MinScore: minScore})
	if err != nil {
		return nil, err
	}
	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("retrieval %s status=%d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding retrieval response failed: %w", err)
	}
	logger.Debugf("[retrieval] %s query=%q hits=%d", path, filterQuery, len(parsed.Items))
	return parsed.Items, nil
}
