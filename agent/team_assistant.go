package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/factory"
	"github.com/BaSui01/skillmate/memory"
	"github.com/BaSui01/skillmate/workflow"
)

// 意图识别关键字表。分析阶段对消息做小写包含匹配，
// 三类意图相互独立，互不排斥。
var (
	planningKeywords = []string{
		"plan", "sprint", "roadmap", "timeline", "schedule", "milestone", "project management",
	}
	technicalKeywords = []string{
		"bug", "error", "implement", "code", "debug", "api", "database", "sync", "socket",
		"real-time", "socket.io", "websocket", "conflict resolution", "technical", "implementation",
		"architecture", "design pattern", "algorithm", "data structure", "programming",
	}
	coordinationKeywords = []string{
		"assign", "delegate", "task", "who", "responsible", "deadline", "coordinate", "team",
	}
)

// stickyHistoryWindow 回看多少条历史消息来延续技术话题。
const stickyHistoryWindow = 5

// TeamInfo 团队上下文，由调用方提供。
type TeamInfo struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	ProjectGoal   string   `json:"project_goal"`
	Members       []string `json:"members"`
	TechStack     string   `json:"tech_stack"`
	CurrentSprint string   `json:"current_sprint"`
}

func (t TeamInfo) nameOr(def string) string        { return orDefault(t.Name, def) }
func (t TeamInfo) descriptionOr(def string) string { return orDefault(t.Description, def) }
func (t TeamInfo) goalOr(def string) string        { return orDefault(t.ProjectGoal, def) }
func (t TeamInfo) stackOr(def string) string       { return orDefault(t.TechStack, def) }
func (t TeamInfo) sprintOr(def string) string      { return orDefault(t.CurrentSprint, def) }

// TeamState 在工作流各阶段之间流转的可变状态。
type TeamState struct {
	TeamID             string
	Message            string
	TeamInfo           TeamInfo
	History            []llm.Message
	NeedsPlanning      bool
	NeedsTechnicalHelp bool
	NeedsCoordination  bool
	SpecializedContext string
	ActionItems        []string
	Response           string
}

// MessageType 按优先级规划 > 技术 > 协调 > 通用归类。
func (s *TeamState) MessageType() string {
	switch {
	case s.NeedsPlanning:
		return "planning"
	case s.NeedsTechnicalHelp:
		return "technical"
	case s.NeedsCoordination:
		return "coordination"
	default:
		return "general"
	}
}

// TeamResult 是一次团队消息处理的完整结果。
type TeamResult struct {
	Success          bool              `json:"success"`
	Response         string            `json:"response"`
	TeamID           string            `json:"team_id"`
	MessageType      string            `json:"message_type"`
	WorkflowComplete bool              `json:"workflow_complete"`
	Suggestions      []string          `json:"suggestions,omitempty"`
	Analysis         *WorkflowAnalysis `json:"workflow_analysis,omitempty"`
	ErrorType        llm.ErrorType     `json:"error_type,omitempty"`
	Err              string            `json:"error,omitempty"`
}

// WorkflowAnalysis 暴露分析阶段的意图标记与积累的行动项。
type WorkflowAnalysis struct {
	NeedsPlanning      bool     `json:"needs_planning"`
	NeedsTechnicalHelp bool     `json:"needs_technical_help"`
	NeedsCoordination  bool     `json:"needs_coordination"`
	ActionItems        []string `json:"action_items"`
}

// TeamStatus 团队会话活跃度概览。
type TeamStatus struct {
	TeamID             string `json:"team_id"`
	TotalMessages      int    `json:"total_messages"`
	RecentActivity     int    `json:"recent_activity"`
	ConversationActive bool   `json:"conversation_active"`
	LastInteraction    string `json:"last_interaction,omitempty"`
}

// TeamAssistant 基于三阶段工作流（分析→路由→回复）的团队助手。
type TeamAssistant struct {
	factory *factory.Factory
	store   *memory.Store
	chain   *workflow.Chain
	logger  *zap.Logger
}

// NewTeamAssistant 创建团队助手并组装工作流。
func NewTeamAssistant(f *factory.Factory, store *memory.Store, logger *zap.Logger) *TeamAssistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &TeamAssistant{factory: f, store: store, logger: logger}
	a.chain = a.buildChain()
	return a
}

// buildChain 组装 analyzer → router → responder 三段链。
// 路由键就是 MessageType 的四个取值，general 为默认路由。
func (a *TeamAssistant) buildChain() *workflow.Chain {
	analyzer := workflow.NewFuncStep("analyzer", func(ctx context.Context, input any) (any, error) {
		state := input.(*TeamState)
		a.analyze(state)
		return state, nil
	})

	router := workflow.RouterFunc(func(ctx context.Context, input any) (string, error) {
		return input.(*TeamState).MessageType(), nil
	})

	handlers := map[string]workflow.Handler{
		"planning":     workflow.NewFuncHandler("planning", a.handlePlanning),
		"technical":    workflow.NewFuncHandler("technical", a.handleTechnical),
		"coordination": workflow.NewFuncHandler("coordination", a.handleCoordination),
		"general":      workflow.NewFuncHandler("general", a.handleGeneral),
	}
	routing := workflow.NewRoutingStep("router", router, handlers, "general")

	responder := workflow.NewFuncStep("responder", func(ctx context.Context, input any) (any, error) {
		state := input.(*TeamState)
		if err := a.respond(ctx, state); err != nil {
			return nil, err
		}
		return state, nil
	})

	return workflow.NewChain("team_assistant", analyzer, routing, responder)
}

// analyze 关键字意图识别。历史窗口内出现过技术话题时，
// 即使当前消息没有技术关键字也延续技术分类。
func (a *TeamAssistant) analyze(state *TeamState) {
	lower := strings.ToLower(state.Message)
	state.NeedsPlanning = containsAny(lower, planningKeywords)
	state.NeedsTechnicalHelp = containsAny(lower, technicalKeywords)
	state.NeedsCoordination = containsAny(lower, coordinationKeywords)

	if state.NeedsTechnicalHelp {
		return
	}
	recent := state.History
	if len(recent) > stickyHistoryWindow {
		recent = recent[len(recent)-stickyHistoryWindow:]
	}
	for _, msg := range recent {
		if msg.Role != llm.RoleUser {
			continue
		}
		if containsAny(strings.ToLower(msg.Content), technicalKeywords) {
			state.NeedsTechnicalHelp = true
			return
		}
	}
}

func (a *TeamAssistant) handlePlanning(ctx context.Context, input any) (any, error) {
	state := input.(*TeamState)
	client, err := a.factory.CreateLLM(llm.RoleTeamAssistant, 0.7)
	if err != nil {
		return nil, err
	}
	out, err := client.Predict(ctx, planningHandlerPrompt(state.TeamInfo, state.Message))
	if err != nil {
		return nil, err
	}
	state.SpecializedContext = "Planning Context: " + out
	if strings.Contains(strings.ToLower(out), "action") {
		state.ActionItems = append(state.ActionItems, "Review and implement suggested planning steps")
	}
	return state, nil
}

func (a *TeamAssistant) handleTechnical(ctx context.Context, input any) (any, error) {
	state := input.(*TeamState)
	client, err := a.factory.CreateLLM(llm.RoleTeamAssistant, 0.7)
	if err != nil {
		return nil, err
	}
	out, err := client.Predict(ctx, technicalHandlerPrompt(state.TeamInfo, state.Message))
	if err != nil {
		return nil, err
	}
	state.SpecializedContext = "Technical Context: " + out
	return state, nil
}

func (a *TeamAssistant) handleCoordination(ctx context.Context, input any) (any, error) {
	state := input.(*TeamState)
	client, err := a.factory.CreateLLM(llm.RoleTeamAssistant, 0.7)
	if err != nil {
		return nil, err
	}
	out, err := client.Predict(ctx, coordinationHandlerPrompt(state.TeamInfo, state.Message))
	if err != nil {
		return nil, err
	}
	state.SpecializedContext = "Coordination Context: " + out
	if strings.Contains(strings.ToLower(out), "assign") {
		state.ActionItems = append(state.ActionItems, "Follow suggested task assignments")
	}
	return state, nil
}

// handleGeneral 通用分支不做专项分析，直接进入回复阶段。
func (a *TeamAssistant) handleGeneral(ctx context.Context, input any) (any, error) {
	return input, nil
}

// respond 汇总团队上下文、近 10 条历史与专项分析生成最终回复。
func (a *TeamAssistant) respond(ctx context.Context, state *TeamState) error {
	history := state.History
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	var sb strings.Builder
	for i, msg := range history {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.ToUpper(string(msg.Role)))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}

	prompt := teamSystemPrompt(state.TeamInfo, sb.String(), state.Message)
	if state.SpecializedContext != "" {
		prompt += "\n\nSpecialized Analysis: " + state.SpecializedContext
	}
	prompt += "\n\nIMPORTANT: Use the chat history to maintain context and provide a coherent response that builds on previous interactions."

	client, err := a.factory.CreateLLM(llm.RoleTeamAssistant, 0.7)
	if err != nil {
		return err
	}
	response, err := client.Predict(ctx, prompt)
	if err != nil {
		return err
	}
	if len(state.ActionItems) > 0 {
		var items strings.Builder
		for _, item := range state.ActionItems {
			items.WriteString("\n• ")
			items.WriteString(item)
		}
		response += "\n\n📋 **Action Items:**" + items.String()
	}
	state.Response = response
	return nil
}

// conversationID 团队会话在存储层的键。
func conversationID(teamID string) string { return "team_" + teamID }

// ProcessTeamMessage 处理一条团队消息：先落用户消息，跑完整工作流，
// 再落助手回复。任何失败都转换为带错误分类的友好话术，不向上抛错。
func (a *TeamAssistant) ProcessTeamMessage(ctx context.Context, teamID, message string, info TeamInfo) TeamResult {
	if strings.TrimSpace(teamID) == "" {
		return TeamResult{
			Success:  false,
			Err:      "Team ID cannot be empty",
			Response: "Please provide a valid team ID.",
			TeamID:   teamID,
		}
	}
	if strings.TrimSpace(message) == "" {
		return TeamResult{
			Success:  false,
			Err:      "Message cannot be empty",
			Response: "Please provide a message for the team assistant to process.",
			TeamID:   teamID,
		}
	}

	convID := conversationID(teamID)
	a.store.Append(convID, memory.NewMessage(message, teamID, llm.RoleUser))

	state := &TeamState{
		TeamID:   strings.TrimSpace(teamID),
		Message:  strings.TrimSpace(message),
		TeamInfo: info,
		History:  a.store.ChatHistory(convID),
	}

	if _, err := a.chain.Execute(ctx, state); err != nil {
		a.logger.Error("team workflow failed",
			zap.String("team_id", teamID),
			zap.Error(err),
		)
		return TeamResult{
			Success:     false,
			Err:         err.Error(),
			Response:    friendlyTeamError(err),
			TeamID:      teamID,
			MessageType: "error",
			ErrorType:   llm.ClassifyErrorType(err),
		}
	}

	response := state.Response
	if strings.TrimSpace(response) == "" {
		response = "I processed your message but couldn't generate a proper response. Could you please rephrase your request?"
	}
	a.store.Append(convID, memory.NewMessage(response, "team_assistant", llm.RoleAssistant))

	messageType := state.MessageType()
	a.logger.Info("team message processed",
		zap.String("team_id", teamID),
		zap.String("message_type", messageType),
	)
	return TeamResult{
		Success:          true,
		Response:         response,
		TeamID:           teamID,
		MessageType:      messageType,
		WorkflowComplete: true,
		Suggestions:      suggestionsFor(messageType),
		Analysis: &WorkflowAnalysis{
			NeedsPlanning:      state.NeedsPlanning,
			NeedsTechnicalHelp: state.NeedsTechnicalHelp,
			NeedsCoordination:  state.NeedsCoordination,
			ActionItems:        state.ActionItems,
		},
	}
}

// suggestionsFor 按消息类型给出固定的后续操作建议。
func suggestionsFor(messageType string) []string {
	switch messageType {
	case "planning":
		return []string{
			"Create sprint timeline",
			"Set up project milestones",
			"Schedule planning meeting",
		}
	case "technical":
		return []string{
			"Review technical architecture",
			"Set up development environment",
			"Create technical documentation",
		}
	case "coordination":
		return []string{
			"Assign tasks to team members",
			"Schedule team sync meeting",
			"Update project board",
		}
	default:
		return nil
	}
}

// friendlyTeamError 把底层错误转换为面向团队成员的提示话术。
func friendlyTeamError(err error) string {
	switch llm.ClassifyErrorType(err) {
	case llm.ErrorTypeQuota, llm.ErrorTypeRateLimit:
		return "🚫 I'm currently experiencing high demand due to API limits. Please try again in a few minutes."
	case llm.ErrorTypeTimeout:
		return "⏰ The request timed out while processing your team message. Please try again."
	default:
		return fmt.Sprintf("I encountered an issue processing your team message: %s Please try again.",
			llm.TruncateDetail(err.Error(), 100))
	}
}

// GetTeamStatus 返回团队会话的统计信息。
func (a *TeamAssistant) GetTeamStatus(teamID string) TeamStatus {
	stats := a.store.ConversationStats(conversationID(teamID))
	recent := stats.TotalMessages
	if recent > 10 {
		recent = 10
	}
	status := TeamStatus{
		TeamID:             teamID,
		TotalMessages:      stats.TotalMessages,
		RecentActivity:     recent,
		ConversationActive: stats.TotalMessages > 0,
	}
	if stats.LastTimestamp != nil {
		status.LastInteraction = stats.LastTimestamp.Format(time.RFC3339)
	}
	return status
}
