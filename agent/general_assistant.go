package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/factory"
	"github.com/BaSui01/skillmate/llm/tokenizer"
	"github.com/BaSui01/skillmate/memory"
)

// GeneralAssistant 面向单用户的通用对话助手。
// 历史按 token 预算截断后注入系统提示词。
type GeneralAssistant struct {
	factory    *factory.Factory
	store      *memory.Store
	counter    tokenizer.Counter
	tokenLimit int
	logger     *zap.Logger
}

// RespondResult 是一次通用助手对话的完整结果。
// ErrorType 仅在失败时有值，MessageCount 为处理结束后该用户会话的消息总数。
type RespondResult struct {
	Success      bool          `json:"success"`
	Response     string        `json:"response"`
	ErrorType    llm.ErrorType `json:"error_type,omitempty"`
	MessageCount int           `json:"message_count"`
}

// AssistantInfo 助手能力与当前模型配置的自描述。
type AssistantInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	MemoryType   string   `json:"memory_type"`
}

// NewGeneralAssistant 创建通用助手。tokenLimit<=0 时不限制历史长度。
func NewGeneralAssistant(f *factory.Factory, store *memory.Store, counter tokenizer.Counter, tokenLimit int, logger *zap.Logger) *GeneralAssistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneralAssistant{
		factory:    f,
		store:      store,
		counter:    counter,
		tokenLimit: tokenLimit,
		logger:     logger,
	}
}

// historyText 把会话历史渲染为提示词片段，从最新消息往前
// 累计 token，超出预算的旧消息直接丢弃。
func (a *GeneralAssistant) historyText(userID string) string {
	history := a.store.ChatHistory(userID)
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history))
	budget := a.tokenLimit
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		line := fmt.Sprintf("%s: %s", strings.ToUpper(string(msg.Role)), msg.Content)
		if budget > 0 && a.counter != nil {
			cost := a.counter.CountTokens(line)
			if cost > budget {
				break
			}
			budget -= cost
		}
		lines = append(lines, line)
	}
	// 反转回时间顺序
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

// RespondToUser 处理用户消息并返回结构化结果。
// 历史片段在追加当前消息之前截取，当前消息只以正文出现一次；
// 回复成功后助手消息同样落存储，LLM 失败时返回分类后的友好话术
// 与错误类别（此时不写入助手消息）。
func (a *GeneralAssistant) RespondToUser(ctx context.Context, userID, message string) RespondResult {
	if strings.TrimSpace(message) == "" {
		return RespondResult{
			Response:     "⚠️ Please provide a message for me to respond to.",
			MessageCount: len(a.store.Messages(userID)),
		}
	}

	history := a.historyText(userID)
	a.store.Append(userID, memory.NewMessage(message, userID, llm.RoleUser))

	client, err := a.factory.CreateLLM(llm.RoleGeneralAssistant, 0.7)
	if err != nil {
		a.logger.Error("assistant client unavailable", zap.String("user_id", userID), zap.Error(err))
		return a.respondFailure(userID, err)
	}

	prompt := generalSystemPrompt(history) + "\n" + message
	response, err := client.Predict(ctx, prompt)
	if err != nil {
		a.logger.Error("assistant response failed", zap.String("user_id", userID), zap.Error(err))
		return a.respondFailure(userID, err)
	}
	if strings.TrimSpace(response) == "" {
		response = "I apologize, but I wasn't able to generate a proper response. Could you please rephrase your question?"
	}

	a.store.Append(userID, memory.NewMessage(response, "assistant", llm.RoleAssistant))
	return RespondResult{
		Success:      true,
		Response:     response,
		MessageCount: len(a.store.Messages(userID)),
	}
}

// respondFailure 把 LLM 错误收敛为带类别的失败结果。
func (a *GeneralAssistant) respondFailure(userID string, err error) RespondResult {
	return RespondResult{
		Response:     friendlyAssistantError(err),
		ErrorType:    llm.ClassifyErrorType(err),
		MessageCount: len(a.store.Messages(userID)),
	}
}

// friendlyAssistantError 单用户对话场景的错误话术。
func friendlyAssistantError(err error) string {
	switch llm.ClassifyErrorType(err) {
	case llm.ErrorTypeQuota:
		return "🚫 I'm currently experiencing high demand due to API limits. Please try again in a few minutes."
	case llm.ErrorTypeAuthentication:
		return "🔑 There's an authentication issue with the API. Please check your API key configuration."
	case llm.ErrorTypeModelUnavailable:
		return "🤖 The requested AI model is not available. Please contact support."
	case llm.ErrorTypeRateLimit:
		return "⏱️ I'm processing requests too quickly. Please wait a moment and try again."
	case llm.ErrorTypeTimeout:
		return "⏰ The request timed out. Please try again."
	default:
		return fmt.Sprintf("⚠️ I encountered a technical issue while processing your request: %s Please try again in a moment.",
			llm.TruncateDetail(err.Error(), 100))
	}
}

// SuggestProjectIdeas 按技能与兴趣生成项目点子，一次性调用不落历史。
func (a *GeneralAssistant) SuggestProjectIdeas(ctx context.Context, skills, interests []string, teamSize int, timeConstraint, domain string, numIdeas int) string {
	client, err := a.factory.CreateLLM(llm.RoleGeneralAssistant, 0.7)
	if err == nil {
		var response string
		response, err = client.Predict(ctx, projectIdeaPrompt(skills, interests, teamSize, timeConstraint, domain, numIdeas))
		if err == nil {
			return response
		}
	}
	a.logger.Error("project idea generation failed", zap.Error(err))
	return fmt.Sprintf("⚠️ I encountered an issue while generating project ideas: %s Please try again in a moment.",
		llm.TruncateDetail(err.Error(), 100))
}

// ConversationHistory 返回用户会话消息，limit>0 时只取最近 limit 条。
func (a *GeneralAssistant) ConversationHistory(userID string, limit int) []memory.Message {
	messages := a.store.Messages(userID)
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages
}

// ClearConversation 清空用户会话历史。
func (a *GeneralAssistant) ClearConversation(userID string) {
	a.store.Clear(userID)
}

// Info 返回助手自描述，包含当前生效的厂商与模型。
func (a *GeneralAssistant) Info() AssistantInfo {
	return AssistantInfo{
		Name:        "SkillMate AI Assistant",
		Description: "A helpful AI assistant for the SkillMate platform",
		Capabilities: []string{
			"General conversation and assistance",
			"Technical guidance and questions",
			"Project idea suggestions",
			"Career and skill development advice",
			"Resume improvement suggestions",
			"Team collaboration support",
		},
		Provider:   string(a.factory.GetProvider()),
		Model:      a.factory.GetModelName(llm.RoleGeneralAssistant),
		MemoryType: "conversation_buffer",
	}
}
