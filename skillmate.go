// Package skillmate is the AI core for the SkillMate platform: a unified
// entry point wiring credential-rotating LLM clients, persistent
// conversation memory, and the agent suite (general assistant, team
// workflow, project planner, roadmap generator, smart matcher).
//
// Usage:
//
//	import "github.com/BaSui01/skillmate"
//
//	ai, err := skillmate.New(skillmate.Options{})
//	result := ai.RespondToUser(ctx, "user-1", "How do I find teammates?")
//	fmt.Println(result.Response)
package skillmate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillmate/agent"
	"github.com/BaSui01/skillmate/config"
	"github.com/BaSui01/skillmate/internal/metrics"
	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/factory"
	"github.com/BaSui01/skillmate/llm/tokenizer"
	"github.com/BaSui01/skillmate/memory"
)

// Options 构造 AI 核心的可选项，零值全部可用。
type Options struct {
	// ConfigPath YAML 配置文件路径，留空只用默认值和环境变量
	ConfigPath string
	// Settings 直接注入配置，非 nil 时跳过 ConfigPath 加载
	Settings *config.Settings
	// Logger 为空时用 zap.NewNop()
	Logger *zap.Logger
}

// AI 聚合全部代理能力的门面。
type AI struct {
	settings config.Settings
	keys     *llm.KeyStore
	factory  *factory.Factory
	store    *memory.Store
	metrics  *metrics.Collector
	logger   *zap.Logger

	assistant *agent.GeneralAssistant
	team      *agent.TeamAssistant
	planner   *agent.ProjectPlanner
	roadmap   *agent.RoadmapGenerator
	matcher   *agent.SmartMatcher
}

// New 按配置组装 AI 核心。凭据文件缺失或为空不是错误，
// 后续 LLM 调用会按无凭据路径处理。
func New(opts Options) (*AI, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var settings config.Settings
	if opts.Settings != nil {
		settings = *opts.Settings
	} else {
		var err error
		settings, err = config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
	}

	collector := metrics.NewCollector("skillmate", logger.Named("metrics"))

	keys := llm.NewKeyStore(llm.KeyStoreConfig{
		Path:     settings.KeysFile,
		SeedPath: settings.DemoKeysFile,
	}, logger.Named("keystore"))

	policy := llm.DefaultRotationPolicy()
	policy.OnRotate = func(provider llm.ProviderName, _ int) {
		collector.RecordRotation(string(provider))
	}
	policy.OnRetry = func(provider llm.ProviderName, _ int) {
		collector.RecordRetry(string(provider))
	}

	f := factory.New(factory.Config{
		Provider:       llm.ProviderName(settings.ModelProvider),
		OpenAIModels:   roleModels(settings.OpenAIModels),
		GeminiModels:   roleModels(settings.GeminiModels),
		EmbeddingModel: settings.EmbeddingModel,
		Policy:         policy,
		OnRequest: func(provider llm.ProviderName, role llm.ModelRole, status string, elapsed time.Duration) {
			collector.RecordLLMRequest(string(provider), string(role), status, elapsed.Seconds())
		},
	}, keys, logger.Named("factory"))

	store := memory.NewStore(settings.ConversationDir, logger.Named("memory"), collector)

	counter := tokenizer.NewTiktokenCounter()
	ai := &AI{
		settings:  settings,
		keys:      keys,
		factory:   f,
		store:     store,
		metrics:   collector,
		logger:    logger,
		assistant: agent.NewGeneralAssistant(f, store, counter, settings.MemoryTokenLimit, logger.Named("assistant")),
		team:      agent.NewTeamAssistant(f, store, logger.Named("team")),
	}
	if settings.EnableProjectPlanner {
		ai.planner = agent.NewProjectPlanner(f, logger.Named("planner"))
	}
	if settings.EnableRoadmapGenerator {
		ai.roadmap = agent.NewRoadmapGenerator(f, logger.Named("roadmap"))
	}
	if settings.EnableSmartMatching {
		ai.matcher = agent.NewSmartMatcher(f, nil, logger.Named("matcher"))
	}
	return ai, nil
}

// roleModels 配置里的字符串键映射转为逻辑角色映射。
func roleModels(models map[string]string) map[llm.ModelRole]string {
	if len(models) == 0 {
		return nil
	}
	out := make(map[llm.ModelRole]string, len(models))
	for role, model := range models {
		out[llm.ModelRole(role)] = model
	}
	return out
}

// ErrFeatureDisabled 表示某个代理被配置开关关闭。
var ErrFeatureDisabled = fmt.Errorf("feature disabled by configuration")

// RespondToUser 通用助手对话，返回带成功标记、错误类别与
// 会话消息总数的结构化结果。
func (ai *AI) RespondToUser(ctx context.Context, userID, message string) agent.RespondResult {
	return ai.assistant.RespondToUser(ctx, userID, message)
}

// SuggestProjectIdeas 按技能与兴趣生成项目点子。
func (ai *AI) SuggestProjectIdeas(ctx context.Context, skills, interests []string, teamSize int, timeConstraint, domain string, numIdeas int) string {
	return ai.assistant.SuggestProjectIdeas(ctx, skills, interests, teamSize, timeConstraint, domain, numIdeas)
}

// AssistantInfo 返回通用助手的自描述。
func (ai *AI) AssistantInfo() agent.AssistantInfo {
	return ai.assistant.Info()
}

// ConversationHistory 返回某用户的会话历史，limit>0 时截取最近 limit 条。
func (ai *AI) ConversationHistory(userID string, limit int) []memory.Message {
	return ai.assistant.ConversationHistory(userID, limit)
}

// ClearConversation 清空某用户的会话历史。
func (ai *AI) ClearConversation(userID string) {
	ai.assistant.ClearConversation(userID)
}

// ProcessTeamMessage 团队助手工作流。
func (ai *AI) ProcessTeamMessage(ctx context.Context, teamID, message string, info agent.TeamInfo) agent.TeamResult {
	return ai.team.ProcessTeamMessage(ctx, teamID, message, info)
}

// TeamStatus 团队会话活跃度概览。
func (ai *AI) TeamStatus(teamID string) agent.TeamStatus {
	return ai.team.GetTeamStatus(teamID)
}

// GetRoadmap 生成技能学习路线图。
func (ai *AI) GetRoadmap(ctx context.Context, skill, userLevel, timeCommitment string) (agent.Roadmap, error) {
	if ai.roadmap == nil {
		return agent.Roadmap{Skill: skill}, ErrFeatureDisabled
	}
	return ai.roadmap.GenerateRoadmap(ctx, skill, userLevel, timeCommitment), nil
}

// SuggestProjectPlan 生成完整项目规划。
func (ai *AI) SuggestProjectPlan(ctx context.Context, projectName, projectGoal string, teamSize int, duration string, techPreferences []string) (agent.PlanResult, error) {
	if ai.planner == nil {
		return agent.PlanResult{ProjectName: projectName, ProjectGoal: projectGoal}, ErrFeatureDisabled
	}
	return ai.planner.CreateProjectPlan(ctx, projectName, projectGoal, teamSize, duration, techPreferences), nil
}

// GenerateDailyStandup 生成每日站会报告。
func (ai *AI) GenerateDailyStandup(ctx context.Context, teamID, projectName, recentActivity, currentBlockers string) (agent.StandupResult, error) {
	if ai.planner == nil {
		return agent.StandupResult{TeamID: teamID, ProjectName: projectName}, ErrFeatureDisabled
	}
	return ai.planner.GenerateDailyStandup(ctx, teamID, projectName, recentActivity, currentBlockers), nil
}

// SuggestMatches 为目标用户在候选人中找队友。
func (ai *AI) SuggestMatches(ctx context.Context, target agent.UserProfile, candidates []agent.UserProfile, limit int) (agent.MatchResult, error) {
	if ai.matcher == nil {
		return agent.MatchResult{TargetUser: target.Key()}, ErrFeatureDisabled
	}
	return ai.matcher.FindMatches(ctx, target, candidates, limit), nil
}

// AddCredential 为指定厂商追加一个 API key 并落盘。
func (ai *AI) AddCredential(provider, apiKey string) (bool, error) {
	p := llm.ProviderName(provider)
	if !p.Valid() {
		return false, llm.ErrInvalidProvider
	}
	return ai.keys.Add(p, apiKey), nil
}

// RemoveCredential 删除指定厂商的一个 API key 并落盘。
func (ai *AI) RemoveCredential(provider, apiKey string) (bool, error) {
	p := llm.ProviderName(provider)
	if !p.Valid() {
		return false, llm.ErrInvalidProvider
	}
	return ai.keys.Remove(p, apiKey), nil
}

// RotateCredential 手动推进指定厂商的轮换游标，返回新的当前 key。
func (ai *AI) RotateCredential(provider string) (string, error) {
	p := llm.ProviderName(provider)
	if !p.Valid() {
		return "", llm.ErrInvalidProvider
	}
	return ai.keys.Rotate(p), nil
}

// CredentialCount 返回指定厂商配置的 key 数量。
func (ai *AI) CredentialCount(provider string) int {
	return ai.keys.Count(llm.ProviderName(provider))
}

// SetActiveProvider 切换全局活跃厂商。
func (ai *AI) SetActiveProvider(provider string) error {
	return ai.factory.SetProvider(provider)
}

// ActiveProvider 返回当前活跃厂商。
func (ai *AI) ActiveProvider() string {
	return string(ai.factory.GetProvider())
}

// Metrics 暴露指标收集器（Prometheus registry 经由 Collector.Registry()）。
func (ai *AI) Metrics() *metrics.Collector {
	return ai.metrics
}
