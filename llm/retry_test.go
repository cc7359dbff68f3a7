package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedClient 按脚本依次返回预设结果，并记录调用时绑定的凭据。
type scriptedClient struct {
	apiKey  string
	script  *[]error
	calls   *int
	usedKey *[]string
}

func (c *scriptedClient) Predict(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

func (c *scriptedClient) Chat(ctx context.Context, messages []Message) (string, error) {
	*c.calls++
	*c.usedKey = append(*c.usedKey, c.apiKey)
	if len(*c.script) == 0 {
		return "ok", nil
	}
	err := (*c.script)[0]
	*c.script = (*c.script)[1:]
	if err != nil {
		return "", err
	}
	return "ok", nil
}

func (c *scriptedClient) Model() string        { return "test-model" }
func (c *scriptedClient) ProviderName() string { return "openai" }

func newScriptedSetup(t *testing.T, keys []string, script []error) (*RetryingClient, *int, *[]string) {
	t.Helper()
	clearKeyEnv(t)

	store := NewKeyStore(KeyStoreConfig{}, zaptest.NewLogger(t))
	for _, key := range keys {
		store.Add(ProviderOpenAI, key)
	}

	calls := new(int)
	usedKeys := new([]string)
	rebuild := func(apiKey string) (ChatClient, error) {
		return &scriptedClient{apiKey: apiKey, script: &script, calls: calls, usedKey: usedKeys}, nil
	}
	inner := &scriptedClient{apiKey: keys[0], script: &script, calls: calls, usedKey: usedKeys}

	policy := RotationPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}
	client := NewRetryingClient(inner, store, ProviderOpenAI, rebuild, policy, zaptest.NewLogger(t))
	return client, calls, usedKeys
}

func TestRetryingClient_SuccessNoRetry(t *testing.T) {
	client, calls, _ := newScriptedSetup(t, []string{"sk-1"}, nil)

	out, err := client.Predict(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, *calls)
}

func TestRetryingClient_NonQuotaFailsFast(t *testing.T) {
	authErr := errors.New("401 authentication failed")
	client, calls, _ := newScriptedSetup(t, []string{"sk-1", "sk-2"}, []error{authErr})

	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, authErr)
	// 非配额错误不消耗重试预算
	assert.Equal(t, 1, *calls)
}

func TestRetryingClient_QuotaRotatesAndSucceeds(t *testing.T) {
	quotaErr := errors.New("insufficient quota for this request")
	client, calls, usedKeys := newScriptedSetup(t, []string{"sk-1", "sk-2"}, []error{quotaErr})

	out, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, *calls)
	// 第二次调用必须绑定轮换后的凭据
	assert.Equal(t, []string{"sk-1", "sk-2"}, *usedKeys)
}

func TestRetryingClient_ExhaustsBudgetThenReturnsLastError(t *testing.T) {
	quotaErr := errors.New("429 rate_limit exceeded")
	// 比预算多的连续配额错误
	script := []error{quotaErr, quotaErr, quotaErr, quotaErr}
	client, calls, _ := newScriptedSetup(t, []string{"sk-1", "sk-2"}, script)

	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, quotaErr)
	// MaxRetries=2 → 最多 3 次底层调用
	assert.Equal(t, 3, *calls)
}

func TestRetryingClient_ContextCancelDuringBackoff(t *testing.T) {
	quotaErr := errors.New("quota exceeded")
	client, _, _ := newScriptedSetup(t, []string{"sk-1", "sk-2"}, []error{quotaErr, quotaErr, quotaErr})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryingClient_OnRotateCallback(t *testing.T) {
	clearKeyEnv(t)
	quotaErr := errors.New("quota exceeded")
	script := []error{quotaErr}

	store := NewKeyStore(KeyStoreConfig{}, zaptest.NewLogger(t))
	store.Add(ProviderGemini, "g-1")
	store.Add(ProviderGemini, "g-2")

	calls := new(int)
	usedKeys := new([]string)
	rebuild := func(apiKey string) (ChatClient, error) {
		return &scriptedClient{apiKey: apiKey, script: &script, calls: calls, usedKey: usedKeys}, nil
	}

	var rotations int
	policy := RotationPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		OnRotate:   func(provider ProviderName, attempt int) { rotations++ },
	}
	inner := &scriptedClient{apiKey: "g-1", script: &script, calls: calls, usedKey: usedKeys}
	client := NewRetryingClient(inner, store, ProviderGemini, rebuild, policy, zaptest.NewLogger(t))

	_, err := client.Predict(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, rotations)
}

func TestRetryingClient_RequestAndRetryCallbacks(t *testing.T) {
	clearKeyEnv(t)
	quotaErr := errors.New("quota exceeded")
	script := []error{quotaErr}

	store := NewKeyStore(KeyStoreConfig{}, zaptest.NewLogger(t))
	store.Add(ProviderOpenAI, "sk-1")
	store.Add(ProviderOpenAI, "sk-2")

	calls := new(int)
	usedKeys := new([]string)
	rebuild := func(apiKey string) (ChatClient, error) {
		return &scriptedClient{apiKey: apiKey, script: &script, calls: calls, usedKey: usedKeys}, nil
	}

	var retries []int
	type request struct {
		provider ProviderName
		status   string
		elapsed  time.Duration
	}
	var requests []request
	policy := RotationPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		OnRetry:    func(provider ProviderName, attempt int) { retries = append(retries, attempt) },
		OnRequest: func(provider ProviderName, status string, elapsed time.Duration) {
			requests = append(requests, request{provider, status, elapsed})
		},
	}
	inner := &scriptedClient{apiKey: "sk-1", script: &script, calls: calls, usedKey: usedKeys}
	client := NewRetryingClient(inner, store, ProviderOpenAI, rebuild, policy, zaptest.NewLogger(t))

	_, err := client.Predict(context.Background(), "hi")
	require.NoError(t, err)

	// 一次配额错误触发一次重试，但整个逻辑调用只上报一次
	assert.Equal(t, []int{1}, retries)
	require.Len(t, requests, 1)
	assert.Equal(t, ProviderOpenAI, requests[0].provider)
	assert.Equal(t, "success", requests[0].status)
	assert.Greater(t, requests[0].elapsed, time.Duration(0))
}

func TestRetryingClient_RequestCallbackOnFailure(t *testing.T) {
	clearKeyEnv(t)

	store := NewKeyStore(KeyStoreConfig{}, zaptest.NewLogger(t))
	store.Add(ProviderOpenAI, "sk-1")

	authErr := errors.New("401 authentication failed")
	script := []error{authErr}
	calls := new(int)
	usedKeys := new([]string)

	var statuses []string
	policy := RotationPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		OnRequest: func(provider ProviderName, status string, elapsed time.Duration) {
			statuses = append(statuses, status)
		},
	}
	inner := &scriptedClient{apiKey: "sk-1", script: &script, calls: calls, usedKey: usedKeys}
	rebuild := func(apiKey string) (ChatClient, error) {
		return &scriptedClient{apiKey: apiKey, script: &script, calls: calls, usedKey: usedKeys}, nil
	}
	client := NewRetryingClient(inner, store, ProviderOpenAI, rebuild, policy, zaptest.NewLogger(t))

	_, err := client.Predict(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, []string{"error"}, statuses)
}

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"quota marker", errors.New("You exceeded your current quota"), true},
		{"rate_limit marker", errors.New("rate_limit_exceeded"), true},
		{"429 marker", errors.New("HTTP 429 Too Many Requests"), true},
		{"limit exceeded marker", errors.New("daily limit exceeded"), true},
		{"auth error", errors.New("401 unauthorized"), false},
		{"generic", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsQuotaError(tc.err))
		})
	}
}

func TestClassifyErrorType(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeNone},
		{"quota", errors.New("insufficient_quota"), ErrorTypeQuota},
		{"rate limit", errors.New("rate_limit hit"), ErrorTypeRateLimit},
		{"auth", errors.New("authentication failed"), ErrorTypeAuthentication},
		{"model", errors.New("404 model not found"), ErrorTypeModelUnavailable},
		{"timeout", errors.New("context deadline exceeded"), ErrorTypeTimeout},
		{"other", errors.New("boom"), ErrorTypeGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyErrorType(tc.err))
		})
	}
}

func TestMapHTTPError(t *testing.T) {
	e := MapHTTPError(429, "too many requests", "openai")
	assert.Equal(t, ErrRateLimited, e.Code)
	assert.True(t, e.Retryable)

	e = MapHTTPError(400, "quota exhausted for project", "gemini")
	assert.Equal(t, ErrQuotaExceeded, e.Code)
	assert.True(t, e.Retryable)

	e = MapHTTPError(400, "bad message format", "openai")
	assert.Equal(t, ErrInvalidRequest, e.Code)
	assert.False(t, e.Retryable)

	e = MapHTTPError(401, "invalid key", "openai")
	assert.Equal(t, ErrUnauthorized, e.Code)
	assert.False(t, e.Retryable)

	e = MapHTTPError(503, "upstream down", "openai")
	assert.Equal(t, ErrUpstreamError, e.Code)
	assert.True(t, e.Retryable)
}

func TestTruncateDetail(t *testing.T) {
	assert.Equal(t, "short", TruncateDetail("short", 100))
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	got := TruncateDetail(string(long), 100)
	assert.Len(t, got, 103)
	assert.Equal(t, "...", got[100:])
}
