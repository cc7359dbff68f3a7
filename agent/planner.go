package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/factory"
)

// Requirements 需求分析结果。
type Requirements struct {
	CoreFeatures  []string `json:"core_features"`
	Technical     []string `json:"technical"`
	NonFunctional []string `json:"non_functional"`
	Complexity    string   `json:"complexity"`
}

// Architecture 技术架构设计结果。
type Architecture struct {
	Pattern    string   `json:"pattern"`
	Frontend   []string `json:"frontend"`
	Backend    []string `json:"backend"`
	Database   []string `json:"database"`
	Deployment []string `json:"deployment"`
	Workflow   []string `json:"workflow"`
}

// Sprint 单个冲刺计划。
type Sprint struct {
	Number       int      `json:"number"`
	Name         string   `json:"name"`
	Duration     string   `json:"duration"`
	Goals        []string `json:"goals"`
	Deliverables []string `json:"deliverables"`
	Tasks        []string `json:"tasks"`
}

// Risk 单项风险评估。
type Risk struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Probability string `json:"probability"`
	Mitigation  string `json:"mitigation"`
}

// Resources 资源分配结果。
type Resources struct {
	TeamRoles      []string          `json:"team_roles"`
	DevEnvironment []string          `json:"development_environment"`
	Tools          []string          `json:"tools"`
	Timeline       map[string]string `json:"timeline"`
	Budget         map[string]string `json:"budget"`
}

// ProjectPlan 完整项目规划。
type ProjectPlan struct {
	ProjectName  string       `json:"project_name"`
	ProjectGoal  string       `json:"project_goal"`
	TeamSize     int          `json:"team_size"`
	Duration     string       `json:"duration"`
	Requirements Requirements `json:"requirements"`
	Architecture Architecture `json:"architecture"`
	Sprints      []Sprint     `json:"sprints"`
	Risks        []Risk       `json:"risks"`
	Resources    Resources    `json:"resources"`
	FinalPlan    string       `json:"final_plan"`
}

// PlanResult 规划流水线的对外结果。
type PlanResult struct {
	Success     bool         `json:"success"`
	Plan        *ProjectPlan `json:"project_plan,omitempty"`
	ProjectName string       `json:"project_name"`
	ProjectGoal string       `json:"project_goal"`
	Err         string       `json:"error,omitempty"`
}

// StandupResult 每日站会报告结果。
type StandupResult struct {
	Success     bool   `json:"success"`
	TeamID      string `json:"team_id"`
	ProjectName string `json:"project_name"`
	Report      string `json:"standup_report,omitempty"`
	Err         string `json:"error,omitempty"`
}

// ProjectPlanner 六阶段项目规划器：
// 需求 → 架构 → 冲刺 → 风险 → 资源 → 汇总。
// 每个阶段都是一次 LLM 调用 + 尽力解析，调用失败或解析失败时
// 退回到该阶段的固定兜底结构，流水线整体不会因单阶段失败而中断。
type ProjectPlanner struct {
	factory *factory.Factory
	logger  *zap.Logger
}

// NewProjectPlanner 创建项目规划器。
func NewProjectPlanner(f *factory.Factory, logger *zap.Logger) *ProjectPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectPlanner{factory: f, logger: logger}
}

func (p *ProjectPlanner) predict(ctx context.Context, prompt string) (string, error) {
	client, err := p.factory.CreateLLM(llm.RolePlanner, 0.7)
	if err != nil {
		return "", err
	}
	return client.Predict(ctx, prompt)
}

// analyzeRequirements 阶段 1：拆解功能/技术/非功能需求与复杂度。
func (p *ProjectPlanner) analyzeRequirements(ctx context.Context, projectName, projectGoal string, teamSize int, duration string) Requirements {
	prompt := fmt.Sprintf(`Analyze the project "%s" with goal: "%s"

Team size: %d members
Duration: %s

Break down the project into:
1. Core functional requirements (5-8 key features)
2. Technical requirements (APIs, databases, frameworks)
3. Non-functional requirements (performance, security, scalability)
4. Project complexity level (Low/Medium/High)

Format as:
**Core Features:**
- Feature 1: Description
- Feature 2: Description

**Technical Requirements:**
- Requirement 1
- Requirement 2

**Non-functional:**
- Performance targets
- Security considerations

**Complexity:** Low/Medium/High with justification`, projectName, projectGoal, teamSize, duration)

	response, err := p.predict(ctx, prompt)
	if err != nil {
		p.logger.Warn("requirements analysis failed, using fallback", zap.Error(err))
		return Requirements{
			CoreFeatures: []string{
				"Core functionality for " + projectName,
				"User interface and experience",
				"Data management",
				"Core business logic",
			},
			Technical: []string{
				"API integration",
				"Database storage",
				"Authentication system",
			},
			NonFunctional: []string{
				"Performance optimization",
				"Security measures",
				"Scalability considerations",
			},
			Complexity: "medium",
		}
	}
	return parseRequirements(response)
}

// designArchitecture 阶段 2：按关键字从回复里提取技术栈组合。
func (p *ProjectPlanner) designArchitecture(ctx context.Context, projectName, projectGoal string, teamSize int, duration, complexity string, techPreferences []string) Architecture {
	techPrefs := "No specific preferences"
	if len(techPreferences) > 0 {
		techPrefs = strings.Join(techPreferences, ", ")
	}
	prompt := fmt.Sprintf(`Design the technical architecture for "%s":

Project Goal: %s
Team Size: %d
Duration: %s
Complexity: %s
Technology Preferences: %s

Provide:
1. Overall architecture pattern (MVC, Microservices, etc.)
2. Technology stack recommendations
3. Database design approach
4. API structure
5. Deployment strategy
6. Development workflow

Consider team size and timeline constraints. Recommend technologies suitable for a %s timeline with %d developers.`,
		projectName, projectGoal, teamSize, duration, complexity, techPrefs, duration, teamSize)

	fallback := Architecture{
		Pattern:    "MVC",
		Frontend:   []string{"React"},
		Backend:    []string{"Node.js"},
		Database:   []string{"MongoDB"},
		Deployment: []string{"Docker"},
		Workflow:   []string{"Agile"},
	}

	response, err := p.predict(ctx, prompt)
	if err != nil {
		p.logger.Warn("architecture design failed, using fallback", zap.Error(err))
		return fallback
	}

	lower := strings.ToLower(response)
	arch := Architecture{Pattern: "MVC"}
	techTable := []struct {
		markers []string
		target  *[]string
		label   string
	}{
		{[]string{"react"}, &arch.Frontend, "React"},
		{[]string{"vue"}, &arch.Frontend, "Vue.js"},
		{[]string{"angular"}, &arch.Frontend, "Angular"},
		{[]string{"node"}, &arch.Backend, "Node.js"},
		{[]string{"express"}, &arch.Backend, "Express"},
		{[]string{"python"}, &arch.Backend, "Python"},
		{[]string{"django"}, &arch.Backend, "Django"},
		{[]string{"flask"}, &arch.Backend, "Flask"},
		{[]string{"mongodb"}, &arch.Database, "MongoDB"},
		{[]string{"postgresql", "postgres"}, &arch.Database, "PostgreSQL"},
		{[]string{"mysql"}, &arch.Database, "MySQL"},
		{[]string{"docker"}, &arch.Deployment, "Docker"},
		{[]string{"kubernetes", "k8s"}, &arch.Deployment, "Kubernetes"},
		{[]string{"aws"}, &arch.Deployment, "AWS"},
		{[]string{"azure"}, &arch.Deployment, "Azure"},
		{[]string{"gcp", "google cloud"}, &arch.Deployment, "Google Cloud"},
		{[]string{"agile"}, &arch.Workflow, "Agile"},
		{[]string{"scrum"}, &arch.Workflow, "Scrum"},
		{[]string{"kanban"}, &arch.Workflow, "Kanban"},
		{[]string{"ci/cd", "continuous integration"}, &arch.Workflow, "CI/CD"},
	}
	for _, entry := range techTable {
		if containsAny(lower, entry.markers) {
			*entry.target = append(*entry.target, entry.label)
		}
	}

	switch {
	case strings.Contains(lower, "microservice"):
		arch.Pattern = "Microservices"
	case strings.Contains(lower, "serverless"):
		arch.Pattern = "Serverless"
	case strings.Contains(lower, "mvc"):
		arch.Pattern = "MVC"
	case strings.Contains(lower, "layered"):
		arch.Pattern = "Layered Architecture"
	}

	// 每个维度保底一个默认选型
	if len(arch.Frontend) == 0 {
		arch.Frontend = fallback.Frontend
	}
	if len(arch.Backend) == 0 {
		arch.Backend = fallback.Backend
	}
	if len(arch.Database) == 0 {
		arch.Database = fallback.Database
	}
	if len(arch.Deployment) == 0 {
		arch.Deployment = fallback.Deployment
	}
	if len(arch.Workflow) == 0 {
		arch.Workflow = fallback.Workflow
	}
	return arch
}

// planSprints 阶段 3：把核心功能拆到 2~4 个冲刺。
func (p *ProjectPlanner) planSprints(ctx context.Context, projectName, projectGoal, duration string, req Requirements) []Sprint {
	var features strings.Builder
	for _, feature := range req.CoreFeatures {
		features.WriteString("- ")
		features.WriteString(feature)
		features.WriteByte('\n')
	}
	prompt := fmt.Sprintf(`Create a sprint plan for the project "%s" with goal: "%s"
Duration: %s

Core features to implement:
%s
Break down the project into 2-4 sprints, each with:
1. Sprint name and duration
2. Sprint goals
3. Key deliverables
4. Main tasks to complete

Format as:
**Sprint 1: [Name] (X weeks)**
- Goals: goal1, goal2
- Deliverables: deliverable1, deliverable2
- Tasks:
  - Task 1: Description
  - Task 2: Description

**Sprint 2: [Name] (X weeks)**
...etc.`, projectName, projectGoal, duration, features.String())

	response, err := p.predict(ctx, prompt)
	if err != nil {
		p.logger.Warn("sprint planning failed, using fallback", zap.Error(err))
		return []Sprint{
			{
				Number:       1,
				Name:         "Sprint 1: Setup",
				Duration:     "2 weeks",
				Goals:        []string{"Project setup", "Initial implementation"},
				Deliverables: []string{"Project structure", "Basic functionality"},
				Tasks:        []string{"Set up development environment", "Implement core features"},
			},
			{
				Number:       2,
				Name:         "Sprint 2: Development",
				Duration:     "2 weeks",
				Goals:        []string{"Feature development"},
				Deliverables: []string{"Working prototype"},
				Tasks:        []string{"Implement remaining features", "Testing"},
			},
		}
	}

	sprints := parseSprints(response)
	if len(sprints) == 0 {
		sprints = []Sprint{{
			Number:       1,
			Name:         "Sprint 1",
			Duration:     "2 weeks",
			Goals:        []string{"Initial implementation"},
			Deliverables: []string{"Core functionality"},
			Tasks:        []string{"Set up project", "Implement basic features"},
		}}
	}
	return sprints
}

// assessRisks 阶段 4：识别风险及缓解策略。
func (p *ProjectPlanner) assessRisks(ctx context.Context, projectName, projectGoal string, teamSize int, duration, complexity string) []Risk {
	prompt := fmt.Sprintf(`Identify potential risks for the project "%s" with goal: "%s"

Team size: %d members
Duration: %s
Complexity: %s

For each risk, provide:
1. Risk description
2. Impact level (Low/Medium/High)
3. Probability (Low/Medium/High)
4. Mitigation strategy

Format as:
**Risk 1: [Risk Name]**
- Description: Detailed description
- Impact: Low/Medium/High
- Probability: Low/Medium/High
- Mitigation: Strategy to mitigate

**Risk 2: [Risk Name]**
...etc.`, projectName, projectGoal, teamSize, duration, complexity)

	response, err := p.predict(ctx, prompt)
	if err != nil {
		p.logger.Warn("risk assessment failed, using fallback", zap.Error(err))
		return []Risk{
			{
				Name:        "Timeline Risk",
				Description: "Project might take longer than expected",
				Impact:      "High",
				Probability: "Medium",
				Mitigation:  "Regular progress tracking and adjusting scope if necessary",
			},
			{
				Name:        "Technical Risk",
				Description: "Technical challenges might arise during development",
				Impact:      "Medium",
				Probability: "Medium",
				Mitigation:  "Research technical solutions early and have backup plans",
			},
		}
	}
	return parseRisks(response)
}

// allocateResources 阶段 5：按团队规模固定展开角色，按关键字提取工具。
func (p *ProjectPlanner) allocateResources(ctx context.Context, projectName string, teamSize int, duration string, arch Architecture) Resources {
	prompt := fmt.Sprintf(`Allocate resources for the project "%s"

Team size: %d members
Duration: %s
Frontend technologies: %s
Backend technologies: %s
Database: %s

Provide:
1. Team roles and responsibilities
2. Development environment setup
3. Required tools and software
4. Timeline allocation
5. Budget considerations (if applicable)

Format as clear sections with bullet points.`,
		projectName, teamSize, duration,
		strings.Join(arch.Frontend, ", "), strings.Join(arch.Backend, ", "),
		strings.Join(arch.Database, ", "))

	response, err := p.predict(ctx, prompt)
	if err != nil {
		p.logger.Warn("resource allocation failed, using fallback", zap.Error(err))
		return Resources{
			TeamRoles:      []string{"Project Manager", "Frontend Developer", "Backend Developer"},
			DevEnvironment: []string{"VS Code", "Terminal"},
			Tools:          []string{"Git", "GitHub", "Slack"},
			Timeline:       map[string]string{"planning": "20%", "development": "60%", "testing": "20%"},
			Budget:         map[string]string{"development": "70%", "tools": "20%", "contingency": "10%"},
		}
	}

	res := Resources{
		Timeline: map[string]string{},
		Budget:   map[string]string{},
	}
	roleLadder := []string{
		"Project Manager", "Frontend Developer", "Backend Developer",
		"UI/UX Designer", "QA Engineer", "DevOps Engineer",
	}
	for i, role := range roleLadder {
		if teamSize >= i+1 {
			res.TeamRoles = append(res.TeamRoles, role)
		}
	}

	lower := strings.ToLower(response)
	if strings.Contains(lower, "vs code") || strings.Contains(lower, "vscode") {
		res.DevEnvironment = append(res.DevEnvironment, "VS Code")
	}
	if strings.Contains(lower, "intellij") {
		res.DevEnvironment = append(res.DevEnvironment, "IntelliJ IDEA")
	}
	toolTable := []struct{ marker, label string }{
		{"git", "Git"},
		{"github", "GitHub"},
		{"gitlab", "GitLab"},
		{"jira", "Jira"},
		{"trello", "Trello"},
		{"slack", "Slack"},
		{"docker", "Docker"},
	}
	for _, entry := range toolTable {
		if strings.Contains(lower, entry.marker) {
			res.Tools = append(res.Tools, entry.label)
		}
	}
	if len(res.DevEnvironment) == 0 {
		res.DevEnvironment = []string{"VS Code", "Terminal"}
	}
	if len(res.Tools) == 0 {
		res.Tools = []string{"Git", "GitHub", "Slack"}
	}
	return res
}

// composeFinalPlan 阶段 6：把五个阶段的产物汇总成 Markdown 总计划。
func (p *ProjectPlanner) composeFinalPlan(ctx context.Context, plan *ProjectPlan) string {
	var features, sprintLines, riskLines strings.Builder
	for _, feature := range plan.Requirements.CoreFeatures {
		features.WriteString("- ")
		features.WriteString(feature)
		features.WriteByte('\n')
	}
	for i, sprint := range plan.Sprints {
		fmt.Fprintf(&sprintLines, "- Sprint %d: %s (%s)\n", i+1, sprint.Name, sprint.Duration)
	}
	for i, risk := range plan.Risks {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&riskLines, "- %s: %s impact, %s probability\n", risk.Name, risk.Impact, risk.Probability)
	}

	prompt := fmt.Sprintf(`You are a Project Planning Expert for SkillMate AI.

Create a comprehensive project plan for:

PROJECT: %s
GOAL: %s
TEAM SIZE: %d members
DURATION: %s

Use the following information to create a detailed, well-structured project plan:

CORE FEATURES:
%s
ARCHITECTURE:
- Pattern: %s
- Frontend: %s
- Backend: %s
- Database: %s

SPRINT PLAN:
%s
RISKS:
%s
TEAM ROLES:
%s

Format the project plan in a clear, structured way using Markdown. Include:
1. Project overview and goals
2. Technical architecture diagram (described in text)
3. Sprint plan with timeline
4. Detailed tasks for each sprint
5. Risk assessment and mitigation strategies
6. Resource allocation and team structure
7. Success criteria and deliverables

Make the plan comprehensive yet practical for the team size and duration.`,
		plan.ProjectName, plan.ProjectGoal, plan.TeamSize, plan.Duration,
		features.String(), plan.Architecture.Pattern,
		strings.Join(plan.Architecture.Frontend, ", "),
		strings.Join(plan.Architecture.Backend, ", "),
		strings.Join(plan.Architecture.Database, ", "),
		sprintLines.String(), riskLines.String(),
		strings.Join(plan.Resources.TeamRoles, ", "))

	response, err := p.predict(ctx, prompt)
	if err != nil {
		p.logger.Warn("final plan composition failed, using fallback", zap.Error(err))
		return p.fallbackPlan(plan, sprintLines.String(), riskLines.String())
	}
	return response
}

// fallbackPlan 汇总阶段失败时由已有产物拼出的 Markdown 兜底计划。
func (p *ProjectPlanner) fallbackPlan(plan *ProjectPlan, sprintLines, riskLines string) string {
	head := func(items []string, n int) string {
		if len(items) > n {
			items = items[:n]
		}
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf(`# Project Plan: %s

## Project Overview
- Goal: %s
- Team Size: %d
- Duration: %s

## Requirements
- Core Features: %s
- Technical Requirements: %s

## Architecture
- Pattern: %s
- Frontend: %s
- Backend: %s
- Database: %s

## Sprint Plan
%s
## Risks and Mitigations
%s
## Resource Allocation
- Team Roles: %s
- Tools: %s`,
		plan.ProjectName, plan.ProjectGoal, plan.TeamSize, plan.Duration,
		head(plan.Requirements.CoreFeatures, 3), head(plan.Requirements.Technical, 3),
		plan.Architecture.Pattern,
		strings.Join(plan.Architecture.Frontend, ", "),
		strings.Join(plan.Architecture.Backend, ", "),
		strings.Join(plan.Architecture.Database, ", "),
		sprintLines, riskLines,
		strings.Join(plan.Resources.TeamRoles, ", "),
		strings.Join(plan.Resources.Tools, ", "))
}

// CreateProjectPlan 跑完整六阶段流水线。teamSize<=0 按 4 人、
// duration 为空按 4 周处理。
func (p *ProjectPlanner) CreateProjectPlan(ctx context.Context, projectName, projectGoal string, teamSize int, duration string, techPreferences []string) PlanResult {
	if teamSize <= 0 {
		teamSize = 4
	}
	if strings.TrimSpace(duration) == "" {
		duration = "4 weeks"
	}

	req := p.analyzeRequirements(ctx, projectName, projectGoal, teamSize, duration)
	arch := p.designArchitecture(ctx, projectName, projectGoal, teamSize, duration, req.Complexity, techPreferences)
	sprints := p.planSprints(ctx, projectName, projectGoal, duration, req)
	risks := p.assessRisks(ctx, projectName, projectGoal, teamSize, duration, req.Complexity)
	resources := p.allocateResources(ctx, projectName, teamSize, duration, arch)

	plan := &ProjectPlan{
		ProjectName:  projectName,
		ProjectGoal:  projectGoal,
		TeamSize:     teamSize,
		Duration:     duration,
		Requirements: req,
		Architecture: arch,
		Sprints:      sprints,
		Risks:        risks,
		Resources:    resources,
	}
	plan.FinalPlan = p.composeFinalPlan(ctx, plan)

	p.logger.Info("project plan created",
		zap.String("project", projectName),
		zap.Int("sprints", len(sprints)),
		zap.Int("risks", len(risks)),
	)
	return PlanResult{
		Success:     true,
		Plan:        plan,
		ProjectName: projectName,
		ProjectGoal: projectGoal,
	}
}

// GenerateDailyStandup 生成每日站会报告，LLM 失败时返回带错误的结果。
func (p *ProjectPlanner) GenerateDailyStandup(ctx context.Context, teamID, projectName, recentActivity, currentBlockers string) StandupResult {
	report, err := p.predict(ctx, standupPrompt(projectName, recentActivity, currentBlockers))
	if err != nil {
		p.logger.Error("standup generation failed",
			zap.String("team_id", teamID),
			zap.Error(err),
		)
		return StandupResult{
			Success:     false,
			TeamID:      teamID,
			ProjectName: projectName,
			Err:         err.Error(),
		}
	}
	return StandupResult{
		Success:     true,
		TeamID:      teamID,
		ProjectName: projectName,
		Report:      report,
	}
}
