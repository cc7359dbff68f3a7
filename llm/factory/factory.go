// Package factory provides a centralized factory for creating chat and
// embedding clients by logical model role. It imports the provider
// sub-packages and maps the active provider to their constructors, breaking
// the import cycle that would occur if this logic lived in the llm package
// directly.
package factory

import (
	"sync"
	"time"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/embedding"
	"github.com/BaSui01/skillmate/llm/providers/gemini"
	"github.com/BaSui01/skillmate/llm/providers/openai"
	"go.uber.org/zap"
)

const (
	defaultOpenAIModel = "gpt-3.5-turbo"
	defaultGeminiModel = "gemini-1.5-flash"
)

// Config 配置工厂的厂商偏好与角色模型映射。
type Config struct {
	// Provider 初始活跃厂商
	Provider llm.ProviderName
	// OpenAIModels / GeminiModels 逻辑角色到模型标识的映射，构造后
	// 只能通过配置覆盖，不在运行期改写
	OpenAIModels map[llm.ModelRole]string
	GeminiModels map[llm.ModelRole]string
	// EmbeddingModel OpenAI 嵌入模型名
	EmbeddingModel string
	// OpenAIBaseURL / GeminiBaseURL 覆盖厂商接口地址（代理或本地网关场景），
	// 留空用官方地址
	OpenAIBaseURL string
	GeminiBaseURL string
	// Policy 凭据轮换重试策略
	Policy llm.RotationPolicy
	// OnRequest 每次 LLM 逻辑调用结束后的回调（指标上报用），可为 nil。
	// 工厂在构造客户端时绑定角色，status 取 success / error
	OnRequest func(provider llm.ProviderName, role llm.ModelRole, status string, elapsed time.Duration)
}

// Factory 按逻辑角色构造即用的 LLM 与嵌入客户端。
// 活跃厂商是工厂级状态，由互斥锁保护，允许多请求共享。
type Factory struct {
	mu             sync.Mutex
	provider       llm.ProviderName
	keys           *llm.KeyStore
	openaiModels   map[llm.ModelRole]string
	geminiModels   map[llm.ModelRole]string
	embeddingModel string
	openaiBaseURL  string
	geminiBaseURL  string
	policy         llm.RotationPolicy
	onRequest      func(provider llm.ProviderName, role llm.ModelRole, status string, elapsed time.Duration)
	logger         *zap.Logger
}

// New 创建工厂。
func New(cfg Config, keys *llm.KeyStore, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := cfg.Provider
	if !provider.Valid() {
		provider = llm.ProviderOpenAI
	}
	policy := cfg.Policy
	if policy.MaxRetries == 0 && policy.BaseDelay == 0 {
		policy = llm.DefaultRotationPolicy()
	}
	return &Factory{
		provider:       provider,
		keys:           keys,
		openaiModels:   cfg.OpenAIModels,
		geminiModels:   cfg.GeminiModels,
		embeddingModel: cfg.EmbeddingModel,
		openaiBaseURL:  cfg.OpenAIBaseURL,
		geminiBaseURL:  cfg.GeminiBaseURL,
		policy:         policy,
		onRequest:      cfg.OnRequest,
		logger:         logger,
	}
}

// GetProvider 返回当前活跃厂商。
func (f *Factory) GetProvider() llm.ProviderName {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.provider
}

// SetProvider 设置活跃厂商，不在受支持集合内时返回 ErrInvalidProvider。
func (f *Factory) SetProvider(name string) error {
	p := llm.ProviderName(name)
	if !p.Valid() {
		return llm.ErrInvalidProvider
	}
	f.mu.Lock()
	f.provider = p
	f.mu.Unlock()
	f.logger.Info("活跃厂商已切换", zap.String("provider", name))
	return nil
}

// GetModelName 返回当前厂商下某角色对应的模型标识。
// 纯查询，角色未知时退回厂商默认模型，永不失败。
func (f *Factory) GetModelName(role llm.ModelRole) string {
	return f.modelName(f.GetProvider(), role)
}

func (f *Factory) modelName(provider llm.ProviderName, role llm.ModelRole) string {
	if provider == llm.ProviderGemini {
		if m, ok := f.geminiModels[role]; ok && m != "" {
			return m
		}
		return defaultGeminiModel
	}
	if m, ok := f.openaiModels[role]; ok && m != "" {
		return m
	}
	return defaultOpenAIModel
}

// CreateLLM 为指定角色构造绑定当前活跃凭据的聊天客户端。
// 主厂商没有凭据时透明降级到备用厂商（记日志，不报错）；
// 两个厂商都没有凭据时返回 ErrNoCredentials。
// 返回的客户端已包好凭据轮换重试。
func (f *Factory) CreateLLM(role llm.ModelRole, temperature float32) (llm.ChatClient, error) {
	provider := f.GetProvider()

	key := f.keys.Get(provider)
	if key == "" {
		other := provider.Other()
		key = f.keys.Get(other)
		if key == "" {
			f.logger.Error("两个厂商均无可用凭据", zap.String("role", string(role)))
			return nil, llm.ErrNoCredentials
		}
		f.logger.Warn("主厂商无凭据，降级到备用厂商",
			zap.String("primary", string(provider)),
			zap.String("fallback", string(other)))
		provider = other
	}

	model := f.modelName(provider, role)
	bound := f.buildBound(provider, key, model, temperature)
	rebuild := func(apiKey string) (llm.ChatClient, error) {
		return f.buildBound(provider, apiKey, model, temperature), nil
	}
	policy := f.policy
	if f.onRequest != nil {
		// 策略是值拷贝，按客户端绑定角色不会污染工厂级策略
		policy.OnRequest = func(p llm.ProviderName, status string, elapsed time.Duration) {
			f.onRequest(p, role, status, elapsed)
		}
	}
	return llm.NewRetryingClient(bound, f.keys, provider, rebuild, policy, f.logger), nil
}

// buildBound 用指定凭据构造绑定客户端。
func (f *Factory) buildBound(provider llm.ProviderName, apiKey, model string, temperature float32) llm.ChatClient {
	var p llm.Provider
	if provider == llm.ProviderGemini {
		p = gemini.New(gemini.Config{APIKey: apiKey, BaseURL: f.geminiBaseURL}, f.logger)
	} else {
		p = openai.New(openai.Config{APIKey: apiKey, BaseURL: f.openaiBaseURL}, f.logger)
	}
	return llm.NewBoundClient(p, model, temperature)
}

// CreateEmbeddings 构造嵌入客户端，厂商偏好与 CreateLLM 一致。
// 两个厂商都没有凭据时返回退化零向量提供者而不是报错：
// 调用方必须容忍零向量，把它当作"没有真实嵌入"。
func (f *Factory) CreateEmbeddings() embedding.Provider {
	provider := f.GetProvider()

	if provider == llm.ProviderGemini {
		if key := f.keys.Get(llm.ProviderGemini); key != "" {
			f.logger.Info("使用 Gemini 嵌入")
			return embedding.NewGeminiProvider(embedding.GeminiConfig{APIKey: key})
		}
		f.logger.Warn("Gemini 无嵌入凭据，尝试 OpenAI")
	}
	if key := f.keys.Get(llm.ProviderOpenAI); key != "" {
		f.logger.Info("使用 OpenAI 嵌入", zap.String("model", f.embeddingModel))
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey: key,
			Model:  f.embeddingModel,
		})
	}
	if provider != llm.ProviderGemini {
		if key := f.keys.Get(llm.ProviderGemini); key != "" {
			f.logger.Info("OpenAI 无嵌入凭据，使用 Gemini 嵌入")
			return embedding.NewGeminiProvider(embedding.GeminiConfig{APIKey: key})
		}
	}

	f.logger.Warn("没有任何嵌入凭据，使用退化零向量嵌入")
	return embedding.NewDegenerateProvider(0)
}

// Keys 暴露底层 KeyStore（凭据管理操作用）。
func (f *Factory) Keys() *llm.KeyStore { return f.keys }
