package llm

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNoCredentials 表示两个厂商都没有可用凭据，LLM 客户端无法构造。
	ErrNoCredentials = errors.New("no credentials available for any provider")
	// ErrInvalidProvider 表示厂商标识不在受支持集合内。
	ErrInvalidProvider = errors.New("invalid provider: must be 'openai' or 'gemini'")
)

// 统一的 LLM 错误码，用于对齐 HTTP 状态、可重试性与降级策略。
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "LLM_INVALID_REQUEST"  // 参数/格式错误
	ErrUnauthorized    ErrorCode = "LLM_UNAUTHORIZED"     // 未授权或密钥失效
	ErrRateLimited     ErrorCode = "LLM_RATE_LIMITED"     // 上游或本地限流
	ErrQuotaExceeded   ErrorCode = "LLM_QUOTA_EXCEEDED"   // 额度/配额用尽
	ErrModelNotFound   ErrorCode = "LLM_MODEL_NOT_FOUND"  // 模型不存在或不可用
	ErrUpstreamTimeout ErrorCode = "LLM_UPSTREAM_TIMEOUT" // 上游超时
	ErrUpstreamError   ErrorCode = "LLM_UPSTREAM_ERROR"   // 上游 5xx/网络错误
)

type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 *Error。
// 所有厂商适配层共用这一个映射函数。
func MapHTTPError(status int, msg, provider string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Code: ErrUnauthorized, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusTooManyRequests:
		return &Error{Code: ErrRateLimited, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	case http.StatusNotFound:
		return &Error{Code: ErrModelNotFound, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusBadRequest:
		// 部分厂商把配额耗尽报成 400，按关键字识别
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "limit") {
			return &Error{Code: ErrQuotaExceeded, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
		}
		return &Error{Code: ErrInvalidRequest, Message: msg, HTTPStatus: status, Provider: provider}
	case http.StatusGatewayTimeout:
		return &Error{Code: ErrUpstreamTimeout, Message: msg, HTTPStatus: status, Retryable: true, Provider: provider}
	default:
		return &Error{
			Code:       ErrUpstreamError,
			Message:    msg,
			HTTPStatus: status,
			Retryable:  status >= 500,
			Provider:   provider,
		}
	}
}

// quotaMarkers 是配额/限流类错误消息的识别子串。
// 命中任意一个即触发凭据轮换重试，其余错误一律快速失败。
var quotaMarkers = []string{"quota", "rate_limit", "429", "limit exceeded"}

// IsQuotaError 按错误消息判断是否属于可通过轮换凭据绕开的配额类错误。
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ErrorType 是面向调用方的粗粒度错误分类标签。
type ErrorType string

const (
	ErrorTypeNone             ErrorType = ""
	ErrorTypeQuota            ErrorType = "api_quota"
	ErrorTypeRateLimit        ErrorType = "rate_limit"
	ErrorTypeAuthentication   ErrorType = "authentication"
	ErrorTypeModelUnavailable ErrorType = "model_unavailable"
	ErrorTypeTimeout          ErrorType = "timeout"
	ErrorTypeGeneral          ErrorType = "general_error"
)

// ClassifyErrorType 把任意错误归入固定的用户可见分类。
// 只做消息级分类，不展开堆栈，调用方负责拼装用户话术。
func ClassifyErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypeNone
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return ErrorTypeQuota
	case strings.Contains(msg, "rate_limit"):
		return ErrorTypeRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		return ErrorTypeAuthentication
	case strings.Contains(msg, "404") || strings.Contains(msg, "model"):
		return ErrorTypeModelUnavailable
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ErrorTypeTimeout
	default:
		return ErrorTypeGeneral
	}
}

// TruncateDetail 把诊断信息截断到用户可见长度，避免整段堆栈泄露给终端用户。
func TruncateDetail(msg string, limit int) string {
	if limit <= 0 || len(msg) <= limit {
		return msg
	}
	return msg[:limit] + "..."
}
