// Package tokenizer 提供对话历史裁剪所需的 token 计数能力。
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter 统计一段文本的 token 数。
type Counter interface {
	CountTokens(text string) int
}

// TiktokenCounter 用 tiktoken 编码做精确计数，编码初始化失败时
// 退回字符数估算，保证计数永不失败。
type TiktokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
}

// NewTiktokenCounter 创建计数器。OpenAI 与 Gemini 的聊天模型都可以用
// cl100k_base 做足够好的近似，这里不按模型细分。
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{encoding: "cl100k_base"}
}

// init 惰性初始化编码（首次使用可能触发数据下载）。
func (c *TiktokenCounter) init() {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err == nil {
			c.enc = enc
		}
	})
}

func (c *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	c.init()
	if c.enc == nil {
		// 编码不可用时的粗略估算
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
