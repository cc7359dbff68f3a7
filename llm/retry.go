package llm

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RotationPolicy 定义配额错误触发的凭据轮换重试策略。
type RotationPolicy struct {
	// MaxRetries 最大重试次数，一次逻辑调用最多发起 MaxRetries+1 次底层调用
	MaxRetries int
	// BaseDelay 重试前的基础延迟，实际延迟为 BaseDelay + uniform(0.1s, 0.5s) 抖动
	BaseDelay time.Duration
	// OnRotate 每次轮换后的回调（指标上报用），可为 nil
	OnRotate func(provider ProviderName, attempt int)
	// OnRetry 每次重试真正发起前的回调，退避期间被取消时不触发，可为 nil
	OnRetry func(provider ProviderName, attempt int)
	// OnRequest 每次逻辑调用结束后的回调，status 取 success / error，
	// elapsed 覆盖含重试在内的全部耗时，可为 nil
	OnRequest func(provider ProviderName, status string, elapsed time.Duration)
}

// DefaultRotationPolicy 返回默认策略，对齐常见 LLM API 的配额窗口。
func DefaultRotationPolicy() RotationPolicy {
	return RotationPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// RebuildFunc 用给定凭据重建底层客户端。轮换后旧客户端绑定的凭据已失效，
// RetryingClient 通过它拿到绑定新凭据的客户端再重试。
type RebuildFunc func(apiKey string) (ChatClient, error)

// RetryingClient 把任意 ChatClient 包装为对配额/限流错误有弹性的客户端：
// 命中配额错误时轮换当前厂商的活跃凭据并重试，其余错误立即透传。
// 这是显式注入的包装器，调用点自行组合，不依赖隐式横切。
type RetryingClient struct {
	inner    ChatClient
	keys     *KeyStore
	provider ProviderName
	rebuild  RebuildFunc
	policy   RotationPolicy
	logger   *zap.Logger
}

// NewRetryingClient 构造轮换重试客户端。
func NewRetryingClient(inner ChatClient, keys *KeyStore, provider ProviderName, rebuild RebuildFunc, policy RotationPolicy, logger *zap.Logger) *RetryingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 1 * time.Second
	}
	return &RetryingClient{
		inner:    inner,
		keys:     keys,
		provider: provider,
		rebuild:  rebuild,
		policy:   policy,
		logger:   logger,
	}
}

func (c *RetryingClient) Model() string        { return c.inner.Model() }
func (c *RetryingClient) ProviderName() string { return c.inner.ProviderName() }

func (c *RetryingClient) Predict(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

// Chat 执行带凭据轮换的补全调用。
// 1. 调用底层客户端，成功立即返回
// 2. 非配额类错误立即透传（认证失败、参数错误等不重试）
// 3. 配额类错误：预算未耗尽时轮换凭据、重建客户端、抖动延迟后重试
// 4. 预算耗尽后透传最后一次观测到的错误
func (c *RetryingClient) Chat(ctx context.Context, messages []Message) (string, error) {
	start := time.Now()
	result, err := c.chat(ctx, messages)
	if c.policy.OnRequest != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.policy.OnRequest(c.provider, status, time.Since(start))
	}
	return result, err
}

func (c *RetryingClient) chat(ctx context.Context, messages []Message) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		result, err := c.inner.Chat(ctx, messages)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("轮换重试成功", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !IsQuotaError(err) {
			c.logger.Debug("错误不属于配额类，不轮换", zap.Error(err))
			return "", err
		}
		if attempt >= c.policy.MaxRetries {
			break
		}

		newKey := c.keys.Rotate(c.provider)
		if newKey == "" {
			c.logger.Warn("没有可轮换的凭据", zap.String("provider", string(c.provider)))
		} else if rebuilt, rerr := c.rebuild(newKey); rerr != nil {
			c.logger.Error("重建客户端失败", zap.Error(rerr))
		} else {
			c.inner = rebuilt
		}
		if c.policy.OnRotate != nil {
			c.policy.OnRotate(c.provider, attempt+1)
		}

		delay := c.policy.BaseDelay + jitter()
		c.logger.Info("配额错误，轮换凭据后重试",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", c.policy.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		if c.policy.OnRetry != nil {
			c.policy.OnRetry(c.provider, attempt+1)
		}
	}

	c.logger.Warn("重试预算耗尽", zap.Int("attempts", c.policy.MaxRetries+1), zap.Error(lastErr))
	return "", lastErr
}

// jitter 返回 [100ms, 500ms) 的均匀随机抖动，防止多路调用同步重试。
func jitter() time.Duration {
	return time.Duration(100+rand.Intn(400)) * time.Millisecond
}
