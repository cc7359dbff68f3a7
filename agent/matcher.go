package agent

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/embedding"
	"github.com/BaSui01/skillmate/llm/factory"
)

// 综合评分权重。四路分数加权求和后换算为百分比。
var matchWeights = struct {
	Skills        float64
	Interests     float64
	Embeddings    float64
	Compatibility float64
}{
	Skills:        0.3,
	Interests:     0.2,
	Embeddings:    0.2,
	Compatibility: 0.3,
}

// 技能分内部的重叠/互补配比。
const (
	skillOverlapWeight    = 0.6
	skillComplementWeight = 0.4
)

// compatibilityFallback LLM 评分不可用时的中性兼容分。
const compatibilityFallback = 0.5

// UserProfile 参与匹配的用户画像。
type UserProfile struct {
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	Skills     []string `json:"skills"`
	Interests  []string `json:"interests"`
	Experience string   `json:"experience"`
	Bio        string   `json:"bio"`
}

// Key 候选人的标识：优先 user_id，退回 name，最后 unknown。
func (u UserProfile) Key() string {
	if u.UserID != "" {
		return u.UserID
	}
	if u.Name != "" {
		return u.Name
	}
	return "unknown"
}

// Match 单个匹配结果，分数为 0~100 的整数百分比。
type Match struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	MatchScore  int      `json:"match_score"`
	Skills      []string `json:"skills"`
	Interests   []string `json:"interests"`
	Explanation string   `json:"explanation"`
}

// MatchResult 一次匹配请求的完整结果。
type MatchResult struct {
	Success    bool    `json:"success"`
	TargetUser string  `json:"target_user"`
	Matches    []Match `json:"matches"`
	MatchCount int     `json:"match_count"`
}

// SmartMatcher 多信号队友匹配器：技能重叠/互补、兴趣交并比、
// 画像向量余弦相似度与 LLM 兼容性评分加权合成。
type SmartMatcher struct {
	factory    *factory.Factory
	embeddings embedding.Provider
	logger     *zap.Logger
}

// NewSmartMatcher 创建匹配器。embeddings 为 nil 时从工厂按当前
// 凭据状态构造（无凭据时得到零向量的降级实现）。
func NewSmartMatcher(f *factory.Factory, embeddings embedding.Provider, logger *zap.Logger) *SmartMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if embeddings == nil {
		embeddings = f.CreateEmbeddings()
	}
	return &SmartMatcher{factory: f, embeddings: embeddings, logger: logger}
}

// analyzeSkills 技能分：与目标的重叠率 0.6 + 候选自身的互补率 0.4。
func (m *SmartMatcher) analyzeSkills(target UserProfile, candidates []UserProfile) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	targetSkills := toSet(target.Skills, false)

	for _, candidate := range candidates {
		candidateSkills := toSet(candidate.Skills, false)
		overlap := 0
		for skill := range candidateSkills {
			if _, ok := targetSkills[skill]; ok {
				overlap++
			}
		}
		complement := len(candidateSkills) - overlap

		var score float64
		if len(targetSkills)+len(candidateSkills) > 0 {
			var overlapScore, complementScore float64
			if len(targetSkills) > 0 {
				overlapScore = float64(overlap) / float64(len(targetSkills))
			}
			if len(candidateSkills) > 0 {
				complementScore = float64(complement) / float64(len(candidateSkills))
			}
			score = overlapScore*skillOverlapWeight + complementScore*skillComplementWeight
		}
		scores[candidate.Key()] = score
	}
	return scores
}

// matchInterests 兴趣分：大小写无关的 Jaccard 交并比。
func (m *SmartMatcher) matchInterests(target UserProfile, candidates []UserProfile) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	targetInterests := toSet(target.Interests, true)

	for _, candidate := range candidates {
		candidateInterests := toSet(candidate.Interests, true)
		score := 0.0
		if len(targetInterests) > 0 && len(candidateInterests) > 0 {
			overlap := 0
			union := len(targetInterests)
			for interest := range candidateInterests {
				if _, ok := targetInterests[interest]; ok {
					overlap++
				} else {
					union++
				}
			}
			score = float64(overlap) / float64(union)
		}
		scores[candidate.Key()] = score
	}
	return scores
}

// profileText 把画像渲染成嵌入输入文本。
func profileText(u UserProfile) string {
	var parts []string
	if u.Name != "" {
		parts = append(parts, "Name: "+u.Name)
	}
	if len(u.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(u.Skills, ", "))
	}
	if len(u.Interests) > 0 {
		parts = append(parts, "Interests: "+strings.Join(u.Interests, ", "))
	}
	if u.Experience != "" {
		parts = append(parts, "Experience: "+u.Experience)
	}
	if u.Bio != "" {
		parts = append(parts, "Bio: "+u.Bio)
	}
	return strings.Join(parts, "\n")
}

// calculateEmbeddings 嵌入分：画像文本向量的余弦相似度。
// 嵌入服务失败时全部记 0，不影响其余信号。
func (m *SmartMatcher) calculateEmbeddings(ctx context.Context, target UserProfile, candidates []UserProfile) map[string]float64 {
	scores := make(map[string]float64, len(candidates))
	for _, candidate := range candidates {
		scores[candidate.Key()] = 0.0
	}

	targetVec, err := m.embeddings.EmbedQuery(ctx, profileText(target))
	if err != nil {
		m.logger.Warn("target embedding failed", zap.Error(err))
		return scores
	}
	for _, candidate := range candidates {
		vec, err := m.embeddings.EmbedQuery(ctx, profileText(candidate))
		if err != nil {
			m.logger.Warn("candidate embedding failed",
				zap.String("candidate", candidate.Key()),
				zap.Error(err),
			)
			continue
		}
		scores[candidate.Key()] = cosineSimilarity(targetVec, vec)
	}
	return scores
}

// cosineSimilarity 余弦相似度，零向量或维度不一致时返回 0。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// assessCompatibility 兼容性分：LLM 给出 0.0~1.0 的单值评分。
// 客户端不可用、调用失败或解析失败一律退回中性分 0.5。
func (m *SmartMatcher) assessCompatibility(ctx context.Context, target, candidate UserProfile) float64 {
	client, err := m.factory.CreateLLM(llm.RoleMatcher, 0.7)
	if err != nil {
		return compatibilityFallback
	}
	response, err := client.Predict(ctx, compatibilityPrompt(target, candidate))
	if err != nil {
		m.logger.Warn("compatibility assessment failed",
			zap.String("candidate", candidate.Key()),
			zap.Error(err),
		)
		return compatibilityFallback
	}
	return parseScore(response, compatibilityFallback)
}

// explainMatch 生成匹配解释，失败时返回空串。
func (m *SmartMatcher) explainMatch(ctx context.Context, target, candidate UserProfile, skillScore, interestScore, compatScore float64) string {
	client, err := m.factory.CreateLLM(llm.RoleMatcher, 0.7)
	if err != nil {
		return ""
	}
	explanation, err := client.Predict(ctx, matchExplanationPrompt(target, candidate, skillScore, interestScore, compatScore))
	if err != nil {
		m.logger.Warn("match explanation failed",
			zap.String("candidate", candidate.Key()),
			zap.Error(err),
		)
		return ""
	}
	return strings.TrimSpace(explanation)
}

// FindMatches 四路信号并行评分、加权合成并排序，取前 limit 名。
// limit<=0 按 5 处理。
func (m *SmartMatcher) FindMatches(ctx context.Context, target UserProfile, candidates []UserProfile, limit int) MatchResult {
	if limit <= 0 {
		limit = 5
	}

	skillScores := m.analyzeSkills(target, candidates)
	interestScores := m.matchInterests(target, candidates)
	embeddingScores := m.calculateEmbeddings(ctx, target, candidates)
	compatScores := make(map[string]float64, len(candidates))
	for _, candidate := range candidates {
		compatScores[candidate.Key()] = m.assessCompatibility(ctx, target, candidate)
	}

	byKey := make(map[string]UserProfile, len(candidates))
	type ranked struct {
		key   string
		score float64
	}
	var ranking []ranked
	for _, candidate := range candidates {
		key := candidate.Key()
		byKey[key] = candidate
		final := skillScores[key]*matchWeights.Skills +
			interestScores[key]*matchWeights.Interests +
			embeddingScores[key]*matchWeights.Embeddings +
			compatScores[key]*matchWeights.Compatibility
		ranking = append(ranking, ranked{key: key, score: final})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].score > ranking[j].score
	})

	var matches []Match
	for _, entry := range ranking {
		if len(matches) >= limit {
			break
		}
		candidate := byKey[entry.key]
		matches = append(matches, Match{
			UserID:     entry.key,
			Name:       orDefault(candidate.Name, entry.key),
			MatchScore: int(math.Round(entry.score * 100)),
			Skills:     candidate.Skills,
			Interests:  candidate.Interests,
			Explanation: m.explainMatch(ctx, target, candidate,
				skillScores[entry.key], interestScores[entry.key], compatScores[entry.key]),
		})
	}

	m.logger.Info("matches found",
		zap.String("target", target.Key()),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
	)
	return MatchResult{
		Success:    true,
		TargetUser: target.Key(),
		Matches:    matches,
		MatchCount: len(matches),
	}
}

// toSet 切片转集合，lower 为真时统一小写。
func toSet(items []string, lower bool) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if lower {
			item = strings.ToLower(item)
		}
		set[item] = struct{}{}
	}
	return set
}
