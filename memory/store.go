package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/skillmate/llm"
	"go.uber.org/zap"
)

// persistenceMetrics 是持久化失败的上报口，允许为 nil。
type persistenceMetrics interface {
	RecordPersistenceError(op string)
}

// Store 是按会话标识分键的持久化消息日志。
// 会话首次访问时从磁盘惰性加载，之后缓存在内存中直到进程结束。
// 磁盘 I/O 错误记日志后吞掉：内存视图在进程生命周期内保持权威，
// 落盘失败可能让磁盘副本悄悄落后（已知可靠性缺口，见 DESIGN.md）。
type Store struct {
	mu            sync.Mutex
	dir           string
	conversations map[string]*Conversation
	logger        *zap.Logger
	metrics       persistenceMetrics
}

// NewStore 创建会话存储，storage 目录不存在时尝试创建。
func NewStore(dir string, logger *zap.Logger, metrics persistenceMetrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("创建会话存储目录失败", zap.String("dir", dir), zap.Error(err))
	}
	return &Store{
		dir:           dir,
		conversations: make(map[string]*Conversation),
		logger:        logger,
		metrics:       metrics,
	}
}

func (s *Store) path(conversationID string) string {
	return filepath.Join(s.dir, conversationID+".json")
}

// GetOrCreate 返回缓存中的会话；未缓存时尝试从磁盘加载；
// 文件不存在则构造空会话。永不失败。
func (s *Store) GetOrCreate(conversationID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(conversationID)
}

func (s *Store) getOrCreateLocked(conversationID string) *Conversation {
	if conv, ok := s.conversations[conversationID]; ok {
		return conv
	}

	conv := &Conversation{
		ConversationID: conversationID,
		Messages:       []Message{},
		Metadata:       map[string]any{},
	}
	if data, err := os.ReadFile(s.path(conversationID)); err == nil {
		var loaded Conversation
		if uerr := json.Unmarshal(data, &loaded); uerr != nil {
			s.logger.Error("解析会话文件失败，按空会话处理",
				zap.String("conversation_id", conversationID), zap.Error(uerr))
			if s.metrics != nil {
				s.metrics.RecordPersistenceError("load")
			}
		} else {
			conv = &loaded
			if conv.Metadata == nil {
				conv.Metadata = map[string]any{}
			}
			if conv.Messages == nil {
				conv.Messages = []Message{}
			}
		}
	} else if !os.IsNotExist(err) {
		s.logger.Error("读取会话文件失败", zap.String("conversation_id", conversationID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordPersistenceError("load")
		}
	}

	s.conversations[conversationID] = conv
	return conv
}

// Append 追加消息并立即把整个会话写回磁盘（write-through，不做批处理）。
// 检索顺序严格等于追加顺序，不做重排或去重。
func (s *Store) Append(conversationID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreateLocked(conversationID)
	conv.Messages = append(conv.Messages, msg)
	s.saveLocked(conv)
}

// Messages 返回会话的全部消息记录（追加顺序）。
func (s *Store) Messages(conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreateLocked(conversationID)
	out := make([]Message, len(conv.Messages))
	copy(out, conv.Messages)
	return out
}

// ChatHistory 返回 {role, content} 形式的历史，供 prompt 构造。
func (s *Store) ChatHistory(conversationID string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(conversationID).ChatMessages()
}

// Clear 原地清空消息列表（会话身份与元数据保留）并落盘。
func (s *Store) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreateLocked(conversationID)
	conv.Messages = []Message{}
	s.saveLocked(conv)
}

// Delete 移除内存条目与磁盘文件。幂等：不存在时返回 false。
func (s *Store) Delete(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, cached := s.conversations[conversationID]
	delete(s.conversations, conversationID)

	err := os.Remove(s.path(conversationID))
	if err != nil && !os.IsNotExist(err) {
		s.logger.Error("删除会话文件失败", zap.String("conversation_id", conversationID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordPersistenceError("delete")
		}
	}
	return cached || err == nil
}

// LoadAll 扫描存储目录，把所有会话文件载入缓存。
// 单个文件损坏只影响该文件，不中断整体加载。
func (s *Store) LoadAll() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("扫描会话存储目录失败", zap.String("dir", s.dir), zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, ok := s.conversations[id]; ok {
			continue
		}
		s.getOrCreateLocked(id)
	}
	s.logger.Info("会话存储已加载", zap.Int("conversations", len(s.conversations)))
}

// Stats 汇总一个会话的活跃度信息。
type Stats struct {
	ConversationID string     `json:"conversation_id"`
	TotalMessages  int        `json:"total_messages"`
	Active         bool       `json:"active"`
	LastTimestamp  *time.Time `json:"last_timestamp,omitempty"`
}

// ConversationStats 返回会话的消息统计。
func (s *Store) ConversationStats(conversationID string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getOrCreateLocked(conversationID)
	st := Stats{
		ConversationID: conversationID,
		TotalMessages:  len(conv.Messages),
		Active:         len(conv.Messages) > 0,
	}
	if n := len(conv.Messages); n > 0 {
		ts := conv.Messages[n-1].Timestamp
		st.LastTimestamp = &ts
	}
	return st
}

// saveLocked 把会话整体序列化落盘，I/O 错误记日志后吞掉。调用方持有 s.mu。
func (s *Store) saveLocked(conv *Conversation) {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		s.logger.Error("序列化会话失败", zap.String("conversation_id", conv.ConversationID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordPersistenceError("save")
		}
		return
	}
	if err := os.WriteFile(s.path(conv.ConversationID), data, 0o644); err != nil {
		s.logger.Error("保存会话失败", zap.String("conversation_id", conv.ConversationID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordPersistenceError("save")
		}
	}
}
