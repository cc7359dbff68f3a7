package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/factory"
	"github.com/BaSui01/skillmate/memory"
)

// fixedCounter 每行固定记 per 个 token，便于精确控制历史预算。
type fixedCounter struct{ per int }

func (c fixedCounter) CountTokens(string) int { return c.per }

func TestGeneralAssistant_RespondToUserEmptyMessage(t *testing.T) {
	store := newTestStore(t)
	a := NewGeneralAssistant(newEmptyFactory(t), store, nil, 0, zaptest.NewLogger(t))

	result := a.RespondToUser(context.Background(), "u-1", "   ")
	assert.False(t, result.Success)
	assert.Equal(t, "⚠️ Please provide a message for me to respond to.", result.Response)
	assert.Equal(t, 0, result.MessageCount)
	// 空消息不落存储
	assert.Empty(t, store.Messages("u-1"))
}

func TestGeneralAssistant_RespondToUserSuccess(t *testing.T) {
	f := newScriptedFactory(t, []string{"Sure, happy to help!"})
	store := newTestStore(t)
	a := NewGeneralAssistant(f, store, nil, 0, zaptest.NewLogger(t))

	result := a.RespondToUser(context.Background(), "u-1", "how do I learn Go?")
	assert.True(t, result.Success)
	assert.Equal(t, "Sure, happy to help!", result.Response)
	assert.Equal(t, llm.ErrorTypeNone, result.ErrorType)
	assert.Equal(t, 2, result.MessageCount)

	messages := store.Messages("u-1")
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleUser, messages[0].Role)
	assert.Equal(t, "how do I learn Go?", messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, messages[1].Role)
	assert.Equal(t, "Sure, happy to help!", messages[1].Content)
}

func TestGeneralAssistant_RespondToUserNoCredentials(t *testing.T) {
	store := newTestStore(t)
	a := NewGeneralAssistant(newEmptyFactory(t), store, nil, 0, zaptest.NewLogger(t))

	result := a.RespondToUser(context.Background(), "u-1", "hello")
	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Response, "⚠️ I encountered a technical issue"), result.Response)
	assert.Equal(t, llm.ErrorTypeGeneral, result.ErrorType)
	assert.Equal(t, 1, result.MessageCount)
	// 失败时用户消息已落存储，助手消息没有
	assert.Len(t, store.Messages("u-1"), 1)
}

func TestGeneralAssistant_RespondToUserQuotaErrorType(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded for this key"}}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	keys := llm.NewKeyStore(llm.KeyStoreConfig{
		Path: filepath.Join(t.TempDir(), "api_keys.json"),
	}, zaptest.NewLogger(t))
	keys.Add(llm.ProviderOpenAI, "sk-test")
	f := factory.New(factory.Config{
		OpenAIBaseURL: srv.URL,
		Policy:        llm.RotationPolicy{MaxRetries: 1, BaseDelay: time.Millisecond},
	}, keys, zaptest.NewLogger(t))

	store := newTestStore(t)
	a := NewGeneralAssistant(f, store, nil, 0, zaptest.NewLogger(t))

	result := a.RespondToUser(context.Background(), "u-1", "hello")
	assert.False(t, result.Success)
	assert.Equal(t, llm.ErrorTypeQuota, result.ErrorType)
	assert.Contains(t, result.Response, "high demand due to API limits")
	assert.Equal(t, 1, result.MessageCount)
}

func TestGeneralAssistant_PromptIncludesCurrentMessageOnce(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(raw))
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-1",
			"model": "gpt-3.5-turbo",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	keys := llm.NewKeyStore(llm.KeyStoreConfig{
		Path: filepath.Join(t.TempDir(), "api_keys.json"),
	}, zaptest.NewLogger(t))
	keys.Add(llm.ProviderOpenAI, "sk-test")
	f := factory.New(factory.Config{OpenAIBaseURL: srv.URL}, keys, zaptest.NewLogger(t))

	store := newTestStore(t)
	store.Append("u-1", memory.NewMessage("earlier question", "u-1", llm.RoleUser))
	store.Append("u-1", memory.NewMessage("earlier answer", "assistant", llm.RoleAssistant))
	a := NewGeneralAssistant(f, store, nil, 0, zaptest.NewLogger(t))

	result := a.RespondToUser(context.Background(), "u-1", "what about testing?")
	require.True(t, result.Success)
	require.Len(t, bodies, 1)

	// 历史片段只含早前轮次，当前消息在提示词里只出现一次
	assert.Contains(t, bodies[0], "USER: earlier question")
	assert.Contains(t, bodies[0], "ASSISTANT: earlier answer")
	assert.Equal(t, 1, strings.Count(bodies[0], "what about testing?"))
	assert.NotContains(t, bodies[0], "USER: what about testing?")
}

func TestGeneralAssistant_HistoryTextBudget(t *testing.T) {
	store := newTestStore(t)
	store.Append("u-1", memory.NewMessage("first", "u-1", llm.RoleUser))
	store.Append("u-1", memory.NewMessage("second", "assistant", llm.RoleAssistant))
	store.Append("u-1", memory.NewMessage("third", "u-1", llm.RoleUser))

	// 每行 10 个 token、预算 25：只装得下最新两条
	a := NewGeneralAssistant(newEmptyFactory(t), store, fixedCounter{per: 10}, 25, zaptest.NewLogger(t))
	text := a.historyText("u-1")

	assert.NotContains(t, text, "first")
	// 保留时间顺序：second 在 third 前面
	assert.Equal(t, "ASSISTANT: second\nUSER: third", text)
}

func TestGeneralAssistant_HistoryTextUnlimited(t *testing.T) {
	store := newTestStore(t)
	store.Append("u-1", memory.NewMessage("first", "u-1", llm.RoleUser))
	store.Append("u-1", memory.NewMessage("second", "assistant", llm.RoleAssistant))

	// tokenLimit<=0 时不截断
	a := NewGeneralAssistant(newEmptyFactory(t), store, fixedCounter{per: 1000}, 0, zaptest.NewLogger(t))
	assert.Equal(t, "USER: first\nASSISTANT: second", a.historyText("u-1"))

	assert.Empty(t, a.historyText("u-nobody"))
}

func TestGeneralAssistant_SuggestProjectIdeas(t *testing.T) {
	f := newScriptedFactory(t, []string{"1. Build a chat app"})
	a := NewGeneralAssistant(f, newTestStore(t), nil, 0, zaptest.NewLogger(t))

	out := a.SuggestProjectIdeas(context.Background(), []string{"Go"}, []string{"ai"}, 3, "2 weeks", "web", 3)
	assert.Equal(t, "1. Build a chat app", out)

	broken := NewGeneralAssistant(newEmptyFactory(t), newTestStore(t), nil, 0, zaptest.NewLogger(t))
	out = broken.SuggestProjectIdeas(context.Background(), nil, nil, 0, "", "", 3)
	assert.True(t, strings.HasPrefix(out, "⚠️ I encountered an issue while generating project ideas"), out)
}

func TestGeneralAssistant_ConversationHistoryAndClear(t *testing.T) {
	store := newTestStore(t)
	a := NewGeneralAssistant(newEmptyFactory(t), store, nil, 0, zaptest.NewLogger(t))

	for _, content := range []string{"a", "b", "c"} {
		store.Append("u-1", memory.NewMessage(content, "u-1", llm.RoleUser))
	}

	assert.Len(t, a.ConversationHistory("u-1", 0), 3)
	recent := a.ConversationHistory("u-1", 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Content)

	a.ClearConversation("u-1")
	assert.Empty(t, a.ConversationHistory("u-1", 0))
}

func TestGeneralAssistant_Info(t *testing.T) {
	a := NewGeneralAssistant(newEmptyFactory(t), newTestStore(t), nil, 0, zaptest.NewLogger(t))

	info := a.Info()
	assert.Equal(t, "SkillMate AI Assistant", info.Name)
	assert.Equal(t, "openai", info.Provider)
	assert.Equal(t, "gpt-3.5-turbo", info.Model)
	assert.Equal(t, "conversation_buffer", info.MemoryType)
	assert.Contains(t, info.Capabilities, "Project idea suggestions")
}
