package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/skillmate/llm"
)

// GeminiConfig 配置 Gemini 嵌入提供者.
type GeminiConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // embedding-001
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// GeminiProvider 使用 Gemini embedContent 端点执行嵌入.
// 注: Gemini 使用不同的端点格式: /models/{model}:embedContent
type GeminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGeminiProvider 创建 Gemini 嵌入提供者.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "embedding-001"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GeminiProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *GeminiProvider) Name() string    { return "gemini-embedding" }
func (p *GeminiProvider) Dimensions() int { return 768 }

func (p *GeminiProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model": "models/" + p.cfg.Model,
		"content": map[string]any{
			"parts": []map[string]string{{"text": query}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)
	respBody, err := p.do(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Embedding struct {
			Values []float64 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.Embedding.Values, nil
}

func (p *GeminiProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	// Gemini 的批量端点按请求数组组织
	reqs := make([]map[string]any, 0, len(documents))
	for _, doc := range documents {
		reqs = append(reqs, map[string]any{
			"model": "models/" + p.cfg.Model,
			"content": map[string]any{
				"parts": []map[string]string{{"text": doc}},
			},
		})
	}
	body, err := json.Marshal(map[string]any{"requests": reqs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)
	respBody, err := p.do(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Embeddings []struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out := make([][]float64, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (p *GeminiProvider) do(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, llm.MapHTTPError(resp.StatusCode, string(respBody), p.Name())
	}
	return respBody, nil
}
