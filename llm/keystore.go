package llm

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
)

// keysFile 是凭据文件的持久化格式：{"openai_keys": [...], "gemini_keys": [...]}。
// 该文件只是本地便利缓存，环境变量在重新加载时仍然是权威来源。
type keysFile struct {
	OpenAIKeys []string `json:"openai_keys"`
	GeminiKeys []string `json:"gemini_keys"`
}

// KeyStore 管理各厂商的凭据列表与当前活跃下标，支持循环轮换。
// 不变式：列表非空时 0 <= index < len(keys)；轮换是循环的。
// 所有方法都持锁，允许并发请求共享同一实例。
type KeyStore struct {
	mu       sync.Mutex
	path     string
	seedPath string
	keys     map[ProviderName][]string
	index    map[ProviderName]int
	logger   *zap.Logger
}

// KeyStoreConfig 配置 KeyStore 的文件路径与种子来源。
type KeyStoreConfig struct {
	// Path 是凭据 JSON 文件路径，文件不存在不是错误
	Path string
	// SeedPath 可选：gemini 列表为空时，从该文件加载演示用凭据。
	// 这是对"源码内置默认密钥"的替代方案，必须显式配置才会生效。
	SeedPath string
}

// NewKeyStore 创建 KeyStore 并立即执行 Load。
func NewKeyStore(cfg KeyStoreConfig, logger *zap.Logger) *KeyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &KeyStore{
		path:     cfg.Path,
		seedPath: cfg.SeedPath,
		keys:     make(map[ProviderName][]string),
		index:    make(map[ProviderName]int),
		logger:   logger,
	}
	s.Load()
	return s
}

// Load 从凭据文件加载（不存在则视为空表），再合并环境变量中的凭据。
// 合并是幂等的：已存在的凭据不会重复加入。
// gemini 列表仍为空且配置了种子文件时，从种子文件补齐。
func (s *KeyStore) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != "" {
		if data, err := os.ReadFile(s.path); err == nil {
			var f keysFile
			if err := json.Unmarshal(data, &f); err != nil {
				s.logger.Error("解析凭据文件失败", zap.String("path", s.path), zap.Error(err))
			} else {
				s.keys[ProviderOpenAI] = f.OpenAIKeys
				s.keys[ProviderGemini] = f.GeminiKeys
				s.logger.Info("凭据文件已加载",
					zap.Int("openai_keys", len(f.OpenAIKeys)),
					zap.Int("gemini_keys", len(f.GeminiKeys)))
			}
		} else if !os.IsNotExist(err) {
			s.logger.Error("读取凭据文件失败", zap.String("path", s.path), zap.Error(err))
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if s.appendUnique(ProviderOpenAI, key) {
			s.logger.Info("已合并环境变量中的 OpenAI 凭据")
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if s.appendUnique(ProviderGemini, key) {
			s.logger.Info("已合并环境变量中的 Gemini 凭据")
		}
	}

	if len(s.keys[ProviderGemini]) == 0 && s.seedPath != "" {
		s.seedGeminiKeys()
	}

	s.clampIndexes()
}

// seedGeminiKeys 从种子文件加载 gemini 演示凭据。种子文件与持久化
// 文件同构，JSON 形如 {"openai_keys":[...],"gemini_keys":[...]}，
// 只取 gemini_keys 字段。调用方持有 s.mu。
func (s *KeyStore) seedGeminiKeys() {
	data, err := os.ReadFile(s.seedPath)
	if err != nil {
		s.logger.Warn("种子凭据文件不可读，gemini 保持无凭据状态",
			zap.String("path", s.seedPath), zap.Error(err))
		return
	}
	var f keysFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("种子凭据文件格式错误", zap.String("path", s.seedPath), zap.Error(err))
		return
	}
	count := 0
	for _, key := range f.GeminiKeys {
		if s.appendUnique(ProviderGemini, key) {
			count++
		}
	}
	if count > 0 {
		s.logger.Info("已从种子文件加载 gemini 演示凭据", zap.Int("count", count))
		s.saveLocked()
	}
}

// appendUnique 幂等追加，调用方持有 s.mu。返回是否实际加入。
func (s *KeyStore) appendUnique(provider ProviderName, key string) bool {
	for _, k := range s.keys[provider] {
		if k == key {
			return false
		}
	}
	s.keys[provider] = append(s.keys[provider], key)
	return true
}

// clampIndexes 保证不变式：活跃下标落在列表范围内。调用方持有 s.mu。
func (s *KeyStore) clampIndexes() {
	for provider, keys := range s.keys {
		if len(keys) == 0 {
			s.index[provider] = 0
		} else if s.index[provider] >= len(keys) {
			s.index[provider] = 0
		}
	}
}

// Get 返回当前活跃凭据，列表为空时返回空串。无副作用。
func (s *KeyStore) Get(provider ProviderName) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.keys[provider]
	if len(keys) == 0 {
		return ""
	}
	return keys[s.index[provider]]
}

// Rotate 循环推进活跃下标并返回新的活跃凭据，列表为空时返回空串。
// 只改内存下标，不触发落盘。
func (s *KeyStore) Rotate(provider ProviderName) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.keys[provider]
	if len(keys) == 0 {
		return ""
	}
	s.index[provider] = (s.index[provider] + 1) % len(keys)
	s.logger.Info("凭据已轮换",
		zap.String("provider", string(provider)),
		zap.Int("active", s.index[provider]+1),
		zap.Int("total", len(keys)))
	return keys[s.index[provider]]
}

// Count 返回某厂商的凭据数量。
func (s *KeyStore) Count(provider ProviderName) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys[provider])
}

// Add 集合式追加凭据并同步落盘。凭据已存在时返回 false。
func (s *KeyStore) Add(provider ProviderName, key string) bool {
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.appendUnique(provider, key) {
		return false
	}
	s.saveLocked()
	return true
}

// Remove 移除凭据并同步落盘。凭据不存在时返回 false。
func (s *KeyStore) Remove(provider ProviderName, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.keys[provider]
	for i, k := range keys {
		if k == key {
			s.keys[provider] = append(keys[:i], keys[i+1:]...)
			s.clampIndexes()
			s.saveLocked()
			return true
		}
	}
	return false
}

// Save 把完整的凭据映射序列化落盘，覆盖旧文件。
// 写入不是原子的：该文件只是本地缓存，损坏后可由环境变量重建。
func (s *KeyStore) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked()
}

// saveLocked 执行落盘，I/O 错误记日志后吞掉。调用方持有 s.mu。
func (s *KeyStore) saveLocked() {
	if s.path == "" {
		return
	}
	f := keysFile{
		OpenAIKeys: s.keys[ProviderOpenAI],
		GeminiKeys: s.keys[ProviderGemini],
	}
	if f.OpenAIKeys == nil {
		f.OpenAIKeys = []string{}
	}
	if f.GeminiKeys == nil {
		f.GeminiKeys = []string{}
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		s.logger.Error("序列化凭据失败", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Error("保存凭据文件失败", zap.String("path", s.path), zap.Error(err))
	}
}
