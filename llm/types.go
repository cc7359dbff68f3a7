package llm

import (
	"context"
	"time"
)

// ProviderName 标识受支持的上游 LLM 厂商。
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderGemini ProviderName = "gemini"
)

// Valid 检查是否为受支持的厂商标识。
func (p ProviderName) Valid() bool {
	return p == ProviderOpenAI || p == ProviderGemini
}

// Other 返回另一个厂商，用于凭据耗尽时的降级切换。
func (p ProviderName) Other() ProviderName {
	if p == ProviderOpenAI {
		return ProviderGemini
	}
	return ProviderOpenAI
}

// ModelRole 是 LLM 实例的逻辑用途，每个用途按厂商独立映射到模型标识。
type ModelRole string

const (
	RoleGeneralAssistant ModelRole = "general_assistant"
	RoleTeamAssistant    ModelRole = "team_assistant"
	RolePlanner          ModelRole = "planner"
	RoleMatcher          ModelRole = "matcher"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	TraceID     string        `json:"trace_id,omitempty"`
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// Text 返回首个候选的文本内容，无候选时返回空串。
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Provider 定义统一的 LLM 适配接口。
// 实现方负责把 ChatRequest 翻译为各厂商的私有协议，并把错误映射为 *Error。
type Provider interface {
	// Completion 发起同步聊天请求，返回完整响应
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name 返回 Provider 的唯一标识
	Name() string
}
