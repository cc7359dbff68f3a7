package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearConfigEnv 清掉会影响加载结果的环境变量，避免宿主环境泄漏进测试。
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"MODEL_PROVIDER", "API_KEYS_FILE", "SKILLMATE_DEMO_KEYS_FILE",
		"CONVERSATION_STORAGE_PATH", "EMBEDDING_MODEL",
		"VECTOR_DB_TYPE", "VECTOR_DB_PATH",
		"MEMORY_TOKEN_LIMIT", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"ENABLE_ROADMAP_GENERATOR", "ENABLE_PROJECT_PLANNER", "ENABLE_SMART_MATCHING",
		"GENERAL_ASSISTANT_MODEL", "TEAM_ASSISTANT_MODEL", "PLANNER_MODEL", "MATCHER_MODEL",
		"GEMINI_GENERAL_MODEL", "GEMINI_TEAM_MODEL", "GEMINI_PLANNER_MODEL", "GEMINI_MATCHER_MODEL",
	} {
		t.Setenv(env, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", s.ModelProvider)
	assert.Equal(t, "api_keys.json", s.KeysFile)
	assert.Empty(t, s.DemoKeysFile)
	assert.Equal(t, "./conversation_storage", s.ConversationDir)
	assert.Equal(t, "text-embedding-3-small", s.EmbeddingModel)
	assert.Equal(t, 4000, s.MemoryTokenLimit)
	assert.True(t, s.EnableRoadmapGenerator)
	assert.True(t, s.EnableProjectPlanner)
	assert.True(t, s.EnableSmartMatching)
	assert.NotNil(t, s.OpenAIModels)
	assert.NotNil(t, s.GeminiModels)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)

	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", s.ModelProvider)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model_provider: gemini
memory_token_limit: 2000
enable_smart_matching: false
openai_models:
  planner: gpt-4
`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", s.ModelProvider)
	assert.Equal(t, 2000, s.MemoryTokenLimit)
	assert.False(t, s.EnableSmartMatching)
	assert.Equal(t, "gpt-4", s.OpenAIModels["planner"])
	// 文件没写的字段仍是默认值
	assert.Equal(t, "api_keys.json", s.KeysFile)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model_provider: gemini\nchunk_size: 500\n"), 0o644))

	t.Setenv("MODEL_PROVIDER", "OpenAI") // 大小写归一
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("ENABLE_PROJECT_PLANNER", "false")
	t.Setenv("PLANNER_MODEL", "gpt-4-turbo")
	t.Setenv("GEMINI_PLANNER_MODEL", "gemini-1.5-pro")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", s.ModelProvider)
	assert.Equal(t, 800, s.ChunkSize)
	assert.False(t, s.EnableProjectPlanner)
	assert.Equal(t, "gpt-4-turbo", s.OpenAIModels["planner"])
	assert.Equal(t, "gemini-1.5-pro", s.GeminiModels["planner"])
}

func TestLoad_InvalidEnvValuesIgnored(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MEMORY_TOKEN_LIMIT", "not-a-number")
	t.Setenv("ENABLE_SMART_MATCHING", "banana")

	s, err := Load("")
	require.NoError(t, err)
	// 解析不了的整数保持默认值，布尔按 false 处理
	assert.Equal(t, 4000, s.MemoryTokenLimit)
	assert.False(t, s.EnableSmartMatching)
}

func TestLoad_CorruptYAMLIsError(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model_provider: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
