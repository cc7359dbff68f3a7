// Package memory 实现按会话标识分键的追加式消息日志，
// 内存缓存 + 每会话一个 JSON 文件镜像落盘。
package memory

import (
	"time"

	"github.com/BaSui01/skillmate/llm"
)

// Message 是会话中的单条消息。创建后不再修改，按追加顺序排序。
type Message struct {
	Content   string         `json:"content"`
	SenderID  string         `json:"sender_id"`
	Timestamp time.Time      `json:"timestamp"`
	Role      llm.Role       `json:"role"`
	Metadata  map[string]any `json:"metadata"`
}

// NewMessage 构造消息，时间戳取当前时刻，metadata 保证非 nil。
func NewMessage(content, senderID string, role llm.Role) Message {
	return Message{
		Content:   content,
		SenderID:  senderID,
		Timestamp: time.Now(),
		Role:      role,
		Metadata:  map[string]any{},
	}
}

// Conversation 是一个会话的全部消息与元数据。
// 由 Store 独占持有，通过追加单调增长。
type Conversation struct {
	ConversationID string         `json:"conversation_id"`
	Messages       []Message      `json:"messages"`
	Metadata       map[string]any `json:"metadata"`
}

// ChatMessages 把消息序列转成 {role, content} 对，供 prompt 构造使用。
func (c *Conversation) ChatMessages() []llm.Message {
	out := make([]llm.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
