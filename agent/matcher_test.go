package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/factory"
)

// newEmptyFactory 构造一个没有任何凭据的工厂：
// LLM 调用全部失败，嵌入降级为零向量，兼容分退回中性值。
func newEmptyFactory(t *testing.T) *factory.Factory {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	keys := llm.NewKeyStore(llm.KeyStoreConfig{
		Path: filepath.Join(t.TempDir(), "api_keys.json"),
	}, zaptest.NewLogger(t))
	return factory.New(factory.Config{}, keys, zaptest.NewLogger(t))
}

// stubEmbeddings 按画像文本返回固定向量，便于验证余弦信号。
type stubEmbeddings struct {
	fn func(text string) []float64
}

func (s *stubEmbeddings) EmbedQuery(_ context.Context, query string) ([]float64, error) {
	return s.fn(query), nil
}

func (s *stubEmbeddings) EmbedDocuments(_ context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i, doc := range documents {
		out[i] = s.fn(doc)
	}
	return out, nil
}

func (s *stubEmbeddings) Name() string    { return "stub" }
func (s *stubEmbeddings) Dimensions() int { return 2 }

func TestUserProfile_Key(t *testing.T) {
	assert.Equal(t, "u-1", UserProfile{UserID: "u-1", Name: "Alice"}.Key())
	assert.Equal(t, "Alice", UserProfile{Name: "Alice"}.Key())
	assert.Equal(t, "unknown", UserProfile{}.Key())
}

func TestSmartMatcher_AnalyzeSkills(t *testing.T) {
	m := NewSmartMatcher(newEmptyFactory(t), &stubEmbeddings{}, zaptest.NewLogger(t))
	target := UserProfile{UserID: "t", Skills: []string{"Go", "Python"}}

	scores := m.analyzeSkills(target, []UserProfile{
		{UserID: "partial", Skills: []string{"Go", "Rust"}},
		{UserID: "identical", Skills: []string{"Go", "Python"}},
		{UserID: "empty"},
	})

	// 重叠 1/2 * 0.6 + 互补 1/2 * 0.4
	assert.InDelta(t, 0.5, scores["partial"], 1e-9)
	// 完全重叠：0.6 封顶，没有互补加成
	assert.InDelta(t, 0.6, scores["identical"], 1e-9)
	assert.Zero(t, scores["empty"])
}

func TestSmartMatcher_AnalyzeSkillsBothEmpty(t *testing.T) {
	m := NewSmartMatcher(newEmptyFactory(t), &stubEmbeddings{}, zaptest.NewLogger(t))

	scores := m.analyzeSkills(UserProfile{UserID: "t"}, []UserProfile{{UserID: "c"}})
	assert.Zero(t, scores["c"])
}

func TestSmartMatcher_MatchInterests(t *testing.T) {
	m := NewSmartMatcher(newEmptyFactory(t), &stubEmbeddings{}, zaptest.NewLogger(t))
	target := UserProfile{UserID: "t", Interests: []string{"AI", "web"}}

	scores := m.matchInterests(target, []UserProfile{
		// 大小写无关：ai 命中 AI，交并比 1/2
		{UserID: "half", Interests: []string{"ai"}},
		{UserID: "full", Interests: []string{"WEB", "Ai"}},
		{UserID: "none", Interests: []string{"music"}},
		{UserID: "empty"},
	})

	assert.InDelta(t, 0.5, scores["half"], 1e-9)
	assert.InDelta(t, 1.0, scores["full"], 1e-9)
	assert.Zero(t, scores["none"])
	assert.Zero(t, scores["empty"])
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	// 零向量与维度不一致都按 0 处理
	assert.Zero(t, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, cosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func TestProfileText(t *testing.T) {
	text := profileText(UserProfile{
		Name:       "Alice",
		Skills:     []string{"Go", "Rust"},
		Interests:  []string{"ai"},
		Experience: "3 years",
		Bio:        "builds tools",
	})
	assert.Contains(t, text, "Name: Alice")
	assert.Contains(t, text, "Skills: Go, Rust")
	assert.Contains(t, text, "Interests: ai")
	assert.Contains(t, text, "Experience: 3 years")
	assert.Contains(t, text, "Bio: builds tools")

	assert.Empty(t, profileText(UserProfile{}))
}

func TestSmartMatcher_FindMatchesDeterministic(t *testing.T) {
	embeddings := &stubEmbeddings{fn: func(text string) []float64 {
		switch {
		case strings.Contains(text, "Bob"):
			return []float64{0, 1}
		default:
			return []float64{1, 0}
		}
	}}
	m := NewSmartMatcher(newEmptyFactory(t), embeddings, zaptest.NewLogger(t))

	target := UserProfile{UserID: "u-target", Name: "Target", Skills: []string{"Go", "Python"}, Interests: []string{"ai"}}
	candidates := []UserProfile{
		{UserID: "u-bob", Name: "Bob"},
		{UserID: "u-alice", Name: "Alice", Skills: []string{"Go", "Rust"}, Interests: []string{"AI"}},
	}

	result := m.FindMatches(context.Background(), target, candidates, 0)
	require.True(t, result.Success)
	assert.Equal(t, "u-target", result.TargetUser)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, 2, result.MatchCount)

	// alice：技能 0.5、兴趣 1.0、嵌入 1.0、兼容兜底 0.5
	// → 0.5*0.3 + 1*0.2 + 1*0.2 + 0.5*0.3 = 0.70
	best := result.Matches[0]
	assert.Equal(t, "u-alice", best.UserID)
	assert.Equal(t, "Alice", best.Name)
	assert.Equal(t, 70, best.MatchScore)
	// 无凭据时解释为空串
	assert.Empty(t, best.Explanation)

	// bob：只有兼容兜底 0.5*0.3 = 0.15
	assert.Equal(t, "u-bob", result.Matches[1].UserID)
	assert.Equal(t, 15, result.Matches[1].MatchScore)
}

func TestSmartMatcher_FindMatchesHonorsLimit(t *testing.T) {
	m := NewSmartMatcher(newEmptyFactory(t), &stubEmbeddings{fn: func(string) []float64 {
		return []float64{1, 0}
	}}, zaptest.NewLogger(t))

	target := UserProfile{UserID: "t", Skills: []string{"Go"}}
	candidates := []UserProfile{
		{UserID: "a", Skills: []string{"Go"}},
		{UserID: "b"},
		{UserID: "c"},
	}

	result := m.FindMatches(context.Background(), target, candidates, 1)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "a", result.Matches[0].UserID)
}

func TestSmartMatcher_NoCandidates(t *testing.T) {
	m := NewSmartMatcher(newEmptyFactory(t), &stubEmbeddings{fn: func(string) []float64 {
		return []float64{1, 0}
	}}, zaptest.NewLogger(t))

	result := m.FindMatches(context.Background(), UserProfile{UserID: "t"}, nil, 5)
	assert.True(t, result.Success)
	assert.Zero(t, result.MatchCount)
	assert.Empty(t, result.Matches)
}
