package llm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ChatClient 是绑定到具体厂商、模型与温度参数的会话客户端。
// 与 Provider 的区别：Provider 是协议适配层，ChatClient 是按逻辑用途
// 配置好的调用入口，agent 层只依赖这个接口。
type ChatClient interface {
	// Predict 发起单条 prompt 的一次补全调用，返回纯文本结果
	Predict(ctx context.Context, prompt string) (string, error)

	// Chat 以完整消息序列发起补全调用
	Chat(ctx context.Context, messages []Message) (string, error)

	// Model 返回绑定的模型标识
	Model() string

	// ProviderName 返回绑定的厂商标识
	ProviderName() string
}

// boundClient 把 Provider + 模型 + 温度组合成 ChatClient。
type boundClient struct {
	provider    Provider
	model       string
	temperature float32
}

// NewBoundClient 构造绑定客户端。
func NewBoundClient(provider Provider, model string, temperature float32) ChatClient {
	return &boundClient{provider: provider, model: model, temperature: temperature}
}

func (c *boundClient) Predict(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

func (c *boundClient) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.provider.Completion(ctx, &ChatRequest{
		TraceID:     uuid.NewString(),
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.provider.Name(), err)
	}
	return resp.Text(), nil
}

func (c *boundClient) Model() string        { return c.model }
func (c *boundClient) ProviderName() string { return c.provider.Name() }
