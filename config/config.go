// Package config 提供统一配置加载：默认值 → YAML 文件 → 环境变量。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings 是 SkillMate AI 核心的完整配置。所有字段都有默认值。
type Settings struct {
	// ModelProvider 活跃厂商（openai 或 gemini）
	ModelProvider string `yaml:"model_provider"`

	// OpenAIModels / GeminiModels 逻辑角色到模型标识的覆盖映射
	OpenAIModels map[string]string `yaml:"openai_models"`
	GeminiModels map[string]string `yaml:"gemini_models"`

	// KeysFile 凭据 JSON 文件路径
	KeysFile string `yaml:"keys_file"`
	// DemoKeysFile 可选的 gemini 演示凭据种子文件；留空表示无种子，
	// 无凭据时直接报错（安全默认）
	DemoKeysFile string `yaml:"demo_keys_file"`

	// ConversationDir 会话存储目录
	ConversationDir string `yaml:"conversation_dir"`

	// EmbeddingModel OpenAI 嵌入模型名
	EmbeddingModel string `yaml:"embedding_model"`
	// VectorDBType / VectorDBPath 向量索引设置（索引实现在外部）
	VectorDBType string `yaml:"vector_db_type"`
	VectorDBPath string `yaml:"vector_db_path"`

	// MemoryTokenLimit 构造 prompt 时历史的 token 上限
	MemoryTokenLimit int `yaml:"memory_token_limit"`

	// ChunkSize / ChunkOverlap 文档切分参数
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// 功能开关
	EnableRoadmapGenerator bool `yaml:"enable_roadmap_generator"`
	EnableProjectPlanner   bool `yaml:"enable_project_planner"`
	EnableSmartMatching    bool `yaml:"enable_smart_matching"`
}

// Default 返回全部默认值。
func Default() Settings {
	return Settings{
		ModelProvider:          "openai",
		OpenAIModels:           map[string]string{},
		GeminiModels:           map[string]string{},
		KeysFile:               "api_keys.json",
		ConversationDir:        "./conversation_storage",
		EmbeddingModel:         "text-embedding-3-small",
		VectorDBType:           "faiss",
		VectorDBPath:           "./vector_db",
		MemoryTokenLimit:       4000,
		ChunkSize:              1000,
		ChunkOverlap:           200,
		EnableRoadmapGenerator: true,
		EnableProjectPlanner:   true,
		EnableSmartMatching:    true,
	}
}

// Load 按 默认值 → YAML 文件（path 非空且存在时）→ 环境变量 的优先级加载配置。
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return s, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse config file: %w", err)
		}
	}

	s.applyEnv()
	return s, nil
}

// applyEnv 用环境变量覆盖配置，全部可选。
func (s *Settings) applyEnv() {
	setString(&s.ModelProvider, "MODEL_PROVIDER")
	setString(&s.KeysFile, "API_KEYS_FILE")
	setString(&s.DemoKeysFile, "SKILLMATE_DEMO_KEYS_FILE")
	setString(&s.ConversationDir, "CONVERSATION_STORAGE_PATH")
	setString(&s.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&s.VectorDBType, "VECTOR_DB_TYPE")
	setString(&s.VectorDBPath, "VECTOR_DB_PATH")
	setInt(&s.MemoryTokenLimit, "MEMORY_TOKEN_LIMIT")
	setInt(&s.ChunkSize, "CHUNK_SIZE")
	setInt(&s.ChunkOverlap, "CHUNK_OVERLAP")
	setBool(&s.EnableRoadmapGenerator, "ENABLE_ROADMAP_GENERATOR")
	setBool(&s.EnableProjectPlanner, "ENABLE_PROJECT_PLANNER")
	setBool(&s.EnableSmartMatching, "ENABLE_SMART_MATCHING")

	if s.OpenAIModels == nil {
		s.OpenAIModels = map[string]string{}
	}
	if s.GeminiModels == nil {
		s.GeminiModels = map[string]string{}
	}
	setRole(s.OpenAIModels, "general_assistant", "GENERAL_ASSISTANT_MODEL")
	setRole(s.OpenAIModels, "team_assistant", "TEAM_ASSISTANT_MODEL")
	setRole(s.OpenAIModels, "planner", "PLANNER_MODEL")
	setRole(s.OpenAIModels, "matcher", "MATCHER_MODEL")
	setRole(s.GeminiModels, "general_assistant", "GEMINI_GENERAL_MODEL")
	setRole(s.GeminiModels, "team_assistant", "GEMINI_TEAM_MODEL")
	setRole(s.GeminiModels, "planner", "GEMINI_PLANNER_MODEL")
	setRole(s.GeminiModels, "matcher", "GEMINI_MATCHER_MODEL")

	s.ModelProvider = strings.ToLower(s.ModelProvider)
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func setRole(m map[string]string, role, env string) {
	if v := os.Getenv(env); v != "" {
		m[role] = v
	}
}
