package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/skillmate/llm"
	"github.com/BaSui01/skillmate/llm/factory"
)

// SkillAnalysis 技能域分析结果，LLM 按 JSON 回复。
type SkillAnalysis struct {
	Domain       string   `json:"domain"`
	Complexity   string   `json:"complexity"`
	SubSkills    []string `json:"sub_skills"`
	Applications []string `json:"applications"`
}

// LearningPhase 学习阶段。
type LearningPhase struct {
	Name            string   `json:"name"`
	Duration        string   `json:"duration"`
	Concepts        []string `json:"concepts"`
	Skills          []string `json:"skills"`
	SuccessCriteria string   `json:"success_criteria"`
}

// ResourceCategory 一类学习资源。
type ResourceCategory struct {
	Type  string   `json:"type"`
	Items []string `json:"items"`
}

// ProjectSuggestion 分级练习项目建议。
type ProjectSuggestion struct {
	Name        string   `json:"name"`
	Level       string   `json:"level"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	Time        string   `json:"time"`
	Resources   []string `json:"resources"`
}

// Roadmap 完整学习路线图。
type Roadmap struct {
	Success        bool                `json:"success"`
	Skill          string              `json:"skill"`
	UserLevel      string              `json:"user_level"`
	TimeCommitment string              `json:"time_commitment"`
	SkillAnalysis  SkillAnalysis       `json:"skill_analysis"`
	Prerequisites  []string            `json:"prerequisites"`
	LearningPhases []LearningPhase     `json:"learning_phases"`
	Resources      []ResourceCategory  `json:"resources"`
	Projects       []ProjectSuggestion `json:"projects"`
	Content        string              `json:"roadmap"`
}

// RoadmapGenerator 六阶段学习路线图生成器：
// 技能分析 → 前置条件 → 学习阶段 → 资源 → 项目 → 汇总。
// 每阶段失败都有固定兜底，生成过程不会整体失败。
type RoadmapGenerator struct {
	factory *factory.Factory
	logger  *zap.Logger
}

// NewRoadmapGenerator 创建路线图生成器。
func NewRoadmapGenerator(f *factory.Factory, logger *zap.Logger) *RoadmapGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoadmapGenerator{factory: f, logger: logger}
}

func (g *RoadmapGenerator) predict(ctx context.Context, prompt string) (string, error) {
	client, err := g.factory.CreateLLM(llm.RolePlanner, 0.7)
	if err != nil {
		return "", err
	}
	return client.Predict(ctx, prompt)
}

// analyzeSkill 阶段 1：让 LLM 按 JSON 回复技能域分析。
func (g *RoadmapGenerator) analyzeSkill(ctx context.Context, skill string) SkillAnalysis {
	prompt := fmt.Sprintf(`Analyze the skill "%s" and provide:
1. Domain classification (e.g., Programming, Design, Data Science, etc.)
2. Complexity level (Beginner-friendly, Intermediate, Advanced)
3. Key sub-skills involved
4. Industry relevance and applications

Respond in JSON format:
{
    "domain": "domain_name",
    "complexity": "level",
    "sub_skills": ["skill1", "skill2"],
    "applications": ["app1", "app2"]
}`, skill)

	fallback := SkillAnalysis{
		Domain:       "Technology",
		Complexity:   "Intermediate",
		SubSkills:    []string{skill + " fundamentals"},
		Applications: []string{"Various industries"},
	}
	response, err := g.predict(ctx, prompt)
	if err != nil {
		g.logger.Warn("skill analysis failed, using fallback", zap.Error(err))
		return fallback
	}
	var analysis SkillAnalysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &analysis); err != nil {
		return fallback
	}
	return analysis
}

// findPrerequisites 阶段 2：前置条件，最多取 5 条。
func (g *RoadmapGenerator) findPrerequisites(ctx context.Context, skill string) []string {
	prompt := fmt.Sprintf(`What are the essential prerequisites for learning "%s"?
List 3-5 foundational concepts or skills someone should know before starting.
Include both technical and general prerequisites.

Format as a simple list:
- Prerequisite 1
- Prerequisite 2
- etc.`, skill)

	response, err := g.predict(ctx, prompt)
	if err != nil {
		g.logger.Warn("prerequisites lookup failed, using fallback", zap.Error(err))
		return []string{"Basic understanding related to " + skill}
	}
	prereqs := parseBullets(response, 5)
	if len(prereqs) == 0 {
		return []string{"Basic understanding related to " + skill}
	}
	return prereqs
}

// planLearningPhases 阶段 3：四段式学习阶段规划。
func (g *RoadmapGenerator) planLearningPhases(ctx context.Context, skill, userLevel string) []LearningPhase {
	prompt := fmt.Sprintf(`Create a structured learning plan for "%s" with 4 phases:
1. Foundation Phase (Beginner)
2. Building Phase (Intermediate)
3. Mastery Phase (Advanced)
4. Specialization Phase (Expert)

For each phase, specify:
- Duration estimate
- Key concepts to learn
- Skills to develop
- Success criteria

Format as:
Phase 1: Foundation (X weeks)
- Key concepts: concept1, concept2
- Skills: skill1, skill2
- Success: criteria

Phase 2: Building (X weeks)
...etc`, skill)

	fallback := []LearningPhase{
		{Name: "Foundation", Duration: "4-6 weeks", Concepts: []string{"Basic " + skill}, Skills: []string{"Fundamentals"}, SuccessCriteria: "Complete basic exercises"},
		{Name: "Building", Duration: "6-8 weeks", Concepts: []string{"Intermediate " + skill}, Skills: []string{"Practical application"}, SuccessCriteria: "Build first project"},
		{Name: "Mastery", Duration: "8-12 weeks", Concepts: []string{"Advanced " + skill}, Skills: []string{"Complex problem solving"}, SuccessCriteria: "Complete advanced project"},
		{Name: "Specialization", Duration: "12+ weeks", Concepts: []string{"Expert " + skill}, Skills: []string{"Teaching others"}, SuccessCriteria: "Contribute to community"},
	}
	response, err := g.predict(ctx, prompt)
	if err != nil {
		g.logger.Warn("phase planning failed, using fallback", zap.Error(err))
		return fallback
	}
	phases := parsePhases(response)
	if len(phases) == 0 {
		return fallback
	}
	return phases
}

// curateResources 阶段 4：五类学习资源推荐。
func (g *RoadmapGenerator) curateResources(ctx context.Context, skill string) []ResourceCategory {
	prompt := fmt.Sprintf(`Recommend specific learning resources for "%s":

1. Online Courses (2-3 recommendations)
2. Books (2-3 recommendations)
3. Tutorials/Websites (3-4 recommendations)
4. Practice Platforms (2-3 recommendations)
5. Communities/Forums (2-3 recommendations)

Include both free and paid options. Mention why each resource is valuable.

Format as:
**Online Courses:**
- Course Name (Platform) - Why it's good

**Books:**
- Book Title by Author - Why it's valuable

etc.`, skill)

	response, err := g.predict(ctx, prompt)
	if err != nil {
		g.logger.Warn("resource curation failed, using fallback", zap.Error(err))
		return []ResourceCategory{
			{Type: "courses", Items: []string{skill + " courses on popular platforms"}},
			{Type: "books", Items: []string{"Books about " + skill}},
			{Type: "tutorials", Items: []string{"Online tutorials for " + skill}},
			{Type: "practice", Items: []string{"Practice platforms for " + skill}},
			{Type: "communities", Items: []string{"Online communities for " + skill}},
		}
	}
	return parseResources(response)
}

// suggestProjects 阶段 5：分级练习项目建议。
func (g *RoadmapGenerator) suggestProjects(ctx context.Context, skill, userLevel string) []ProjectSuggestion {
	prompt := fmt.Sprintf(`Suggest practical projects for learning "%s" at different levels:

1. Beginner (2 projects)
2. Intermediate (2 projects)
3. Advanced (2 projects)

For each project, provide:
- Project name
- Brief description
- Key skills practiced
- Estimated time to complete
- Resources needed

Format as:
**Beginner Projects:**
1. Project Name
   - Description: Brief description
   - Skills: skill1, skill2
   - Time: X hours/days
   - Resources: resource1, resource2

**Intermediate Projects:**
...etc.`, skill)

	response, err := g.predict(ctx, prompt)
	if err != nil {
		g.logger.Warn("project suggestion failed, using fallback", zap.Error(err))
		return []ProjectSuggestion{
			{Name: "Basic " + skill + " project", Level: "Beginner", Description: "Simple project to practice " + skill, Skills: []string{skill + " basics"}, Time: "1-2 weeks", Resources: []string{"Online tutorials"}},
			{Name: "Intermediate " + skill + " project", Level: "Intermediate", Description: "More complex project using " + skill, Skills: []string{skill + " intermediate concepts"}, Time: "2-4 weeks", Resources: []string{"Documentation"}},
			{Name: "Advanced " + skill + " project", Level: "Advanced", Description: "Complex project showcasing " + skill + " mastery", Skills: []string{"Advanced " + skill}, Time: "4-8 weeks", Resources: []string{"Advanced tutorials"}},
		}
	}
	return parseProjects(response)
}

// composeRoadmap 阶段 6：汇总为 Markdown 路线图。
func (g *RoadmapGenerator) composeRoadmap(ctx context.Context, roadmap *Roadmap) string {
	var prereqs, phases, resources, projects strings.Builder
	for _, p := range roadmap.Prerequisites {
		fmt.Fprintf(&prereqs, "- %s\n", p)
	}
	for _, phase := range roadmap.LearningPhases {
		concepts := phase.Concepts
		if len(concepts) > 3 {
			concepts = concepts[:3]
		}
		fmt.Fprintf(&phases, "- %s (%s): %s\n", phase.Name, phase.Duration, strings.Join(concepts, ", "))
	}
	for _, cat := range roadmap.Resources {
		items := cat.Items
		if len(items) > 2 {
			items = items[:2]
		}
		fmt.Fprintf(&resources, "- %s: %s\n", capitalize(cat.Type), strings.Join(items, ", "))
	}
	for i, proj := range roadmap.Projects {
		if i >= 3 {
			break
		}
		desc := proj.Description
		if len(desc) > 50 {
			desc = desc[:50]
		}
		fmt.Fprintf(&projects, "- %s (%s): %s...\n", proj.Name, proj.Level, desc)
	}

	prompt := fmt.Sprintf(`You are a Learning Path Expert specializing in creating comprehensive roadmaps for skill development.

Create a detailed learning roadmap for: %s

User's current level: %s
Time commitment: %s

Use the following information to create a comprehensive, well-structured roadmap:

PREREQUISITES:
%s
LEARNING PHASES:
%s
RESOURCES:
%s
PROJECTS:
%s
Format the roadmap in a clear, structured way using Markdown. Include:
1. An introduction explaining the roadmap's purpose
2. Prerequisites section
3. Learning path with clear phases
4. Recommended resources organized by type
5. Practice projects with difficulty levels
6. Estimated timelines based on the user's time commitment
7. Success metrics for each phase

Make the roadmap visually organized, easy to follow, and motivating.`,
		roadmap.Skill, roadmap.UserLevel, roadmap.TimeCommitment,
		prereqs.String(), phases.String(), resources.String(), projects.String())

	response, err := g.predict(ctx, prompt)
	if err != nil {
		g.logger.Warn("roadmap composition failed, using fallback", zap.Error(err))
		return fmt.Sprintf("# Learning Roadmap for %s\n\nThis roadmap will help you learn %s efficiently. Start with the prerequisites, then follow the learning phases.",
			roadmap.Skill, roadmap.Skill)
	}
	return response
}

// GenerateRoadmap 跑完整六阶段流水线。
// userLevel 缺省 beginner，timeCommitment 缺省 moderate。
func (g *RoadmapGenerator) GenerateRoadmap(ctx context.Context, skill, userLevel, timeCommitment string) Roadmap {
	if strings.TrimSpace(userLevel) == "" {
		userLevel = "beginner"
	}
	if strings.TrimSpace(timeCommitment) == "" {
		timeCommitment = "moderate"
	}

	roadmap := Roadmap{
		Skill:          skill,
		UserLevel:      userLevel,
		TimeCommitment: timeCommitment,
	}
	roadmap.SkillAnalysis = g.analyzeSkill(ctx, skill)
	roadmap.Prerequisites = g.findPrerequisites(ctx, skill)
	roadmap.LearningPhases = g.planLearningPhases(ctx, skill, userLevel)
	roadmap.Resources = g.curateResources(ctx, skill)
	roadmap.Projects = g.suggestProjects(ctx, skill, userLevel)
	roadmap.Content = g.composeRoadmap(ctx, &roadmap)
	roadmap.Success = true

	g.logger.Info("roadmap generated",
		zap.String("skill", skill),
		zap.Int("phases", len(roadmap.LearningPhases)),
	)
	return roadmap
}
