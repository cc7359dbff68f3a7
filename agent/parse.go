package agent

import (
	"strconv"
	"strings"
)

// 本文件集中放置对 LLM 自由文本输出的尽力解析器。
// 所有解析器都是纯函数：解析不出结构时返回零值或调用方提供的兜底，
// 绝不因为格式偏差让整条流水线失败。

// parseBullets 提取以 - 或 • 开头的条目，limit>0 时截断条数。
func parseBullets(text string, limit int) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") {
			item := strings.TrimSpace(strings.TrimLeft(line, "-•"))
			if item != "" {
				items = append(items, item)
			}
		}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// parseScore 从 LLM 回复里解析 0.0~1.0 的浮点评分。
// 解析失败或越界时返回 fallback。
func parseScore(text string, fallback float64) float64 {
	score, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fallback
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// parseLabeledList 解析 "- Label: a, b, c" 形式的行，返回逗号分隔项。
func parseLabeledList(line, label string) []string {
	raw := strings.TrimSpace(strings.TrimPrefix(line, label))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// parseSprints 解析 "**Sprint N: Name (X weeks)**" 区块。
// Goals/Deliverables 是行内逗号列表，Tasks 是两格缩进的子条目。
// 解析不到任何 sprint 时返回 nil。
func parseSprints(text string) []Sprint {
	var sprints []Sprint
	var current *Sprint
	inTasks := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "**Sprint"):
			if current != nil {
				sprints = append(sprints, *current)
			}
			current = &Sprint{Number: len(sprints) + 1, Name: "Sprint", Duration: "2 weeks"}
			header := strings.Trim(line, "* ")
			if idx := strings.Index(header, ":"); idx >= 0 {
				rest := strings.TrimSpace(header[idx+1:])
				if open := strings.Index(rest, "("); open >= 0 {
					current.Name = strings.TrimSpace(rest[:open])
					if close := strings.Index(rest, ")"); close > open {
						current.Duration = strings.TrimSpace(rest[open+1 : close])
					}
				} else {
					current.Name = rest
				}
			}
			inTasks = false
		case current == nil:
			// sprint 头出现前的文字全部忽略
		case strings.HasPrefix(line, "- Goals:"):
			current.Goals = parseLabeledList(line, "- Goals:")
			inTasks = false
		case strings.HasPrefix(line, "- Deliverables:"):
			current.Deliverables = parseLabeledList(line, "- Deliverables:")
			inTasks = false
		case strings.HasPrefix(line, "- Tasks:"):
			inTasks = true
		case inTasks && (strings.HasPrefix(raw, "  -") || strings.HasPrefix(raw, "\t-")):
			if task := strings.TrimSpace(strings.TrimPrefix(line, "-")); task != "" {
				current.Tasks = append(current.Tasks, task)
			}
		}
	}
	if current != nil {
		sprints = append(sprints, *current)
	}
	return sprints
}

// normalizeLevel 把自由文本的等级描述收敛为 High/Medium/Low。
func normalizeLevel(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "high"):
		return "High"
	case strings.Contains(lower, "low"):
		return "Low"
	default:
		return "Medium"
	}
}

// parseRisks 解析 "**Risk N: Name**" 区块及其
// Description/Impact/Probability/Mitigation 字段。
// Impact/Probability 收敛为三档等级，缺省 Medium。
func parseRisks(text string) []Risk {
	var risks []Risk
	var current *Risk

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "**Risk"):
			if current != nil {
				risks = append(risks, *current)
			}
			name := strings.Trim(strings.TrimPrefix(line, "**Risk"), "* ")
			if idx := strings.Index(name, ":"); idx >= 0 {
				name = strings.TrimSpace(name[idx+1:])
			}
			current = &Risk{Name: name, Impact: "Medium", Probability: "Medium"}
		case current == nil:
		case strings.HasPrefix(line, "- Description:"):
			current.Description = strings.TrimSpace(strings.TrimPrefix(line, "- Description:"))
		case strings.HasPrefix(line, "- Impact:"):
			current.Impact = normalizeLevel(strings.TrimPrefix(line, "- Impact:"))
		case strings.HasPrefix(line, "- Probability:"):
			current.Probability = normalizeLevel(strings.TrimPrefix(line, "- Probability:"))
		case strings.HasPrefix(line, "- Mitigation:"):
			current.Mitigation = strings.TrimSpace(strings.TrimPrefix(line, "- Mitigation:"))
		}
	}
	if current != nil {
		risks = append(risks, *current)
	}
	return risks
}

// parseRequirements 解析需求分析回复的四个区块。
// 复杂度收敛为 low/medium/high，缺省 medium。
func parseRequirements(text string) Requirements {
	req := Requirements{Complexity: "medium"}
	section := ""
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "**Core Features:**"):
			section = "core"
		case strings.HasPrefix(line, "**Technical Requirements:**"):
			section = "technical"
		case strings.HasPrefix(line, "**Non-functional:**"):
			section = "nonfunctional"
		case strings.HasPrefix(line, "**Complexity:**"):
			section = ""
			req.Complexity = strings.ToLower(normalizeLevel(line))
		case strings.HasPrefix(line, "-") && section != "":
			item := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if item == "" {
				break
			}
			switch section {
			case "core":
				req.CoreFeatures = append(req.CoreFeatures, item)
			case "technical":
				req.Technical = append(req.Technical, item)
			case "nonfunctional":
				req.NonFunctional = append(req.NonFunctional, item)
			}
		}
	}
	return req
}

// parsePhases 解析 "Phase N: Name (duration)" 区块及其
// Key concepts/Skills/Success 字段。
func parsePhases(text string) []LearningPhase {
	var phases []LearningPhase
	var current *LearningPhase

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Phase"):
			if current != nil {
				phases = append(phases, *current)
			}
			current = &LearningPhase{Duration: "4-6 weeks"}
			if idx := strings.Index(line, ":"); idx >= 0 {
				rest := strings.TrimSpace(line[idx+1:])
				if open := strings.Index(rest, "("); open >= 0 {
					current.Name = strings.TrimSpace(rest[:open])
					if close := strings.Index(rest, ")"); close > open {
						current.Duration = rest[open+1 : close]
					}
				} else {
					current.Name = rest
				}
			}
		case current == nil:
		case strings.HasPrefix(line, "- Key concepts:"):
			current.Concepts = parseLabeledList(line, "- Key concepts:")
		case strings.HasPrefix(line, "- Skills:"):
			current.Skills = parseLabeledList(line, "- Skills:")
		case strings.HasPrefix(line, "- Success:"):
			current.SuccessCriteria = strings.TrimSpace(strings.TrimPrefix(line, "- Success:"))
		}
	}
	if current != nil {
		phases = append(phases, *current)
	}
	return phases
}

// resourceCategoryIndex 把 "**Online Courses:**" 之类的区块头映射到
// 固定的资源分类下标，识别不出时返回 -1。
func resourceCategoryIndex(header string) int {
	category := strings.ToLower(strings.Trim(header, "*: "))
	switch {
	case strings.Contains(category, "course"):
		return 0
	case strings.Contains(category, "book"):
		return 1
	case strings.Contains(category, "tutorial"), strings.Contains(category, "website"):
		return 2
	case strings.Contains(category, "practice"), strings.Contains(category, "platform"):
		return 3
	case strings.Contains(category, "communit"), strings.Contains(category, "forum"):
		return 4
	default:
		return -1
	}
}

// parseResources 解析五类学习资源区块，返回固定顺序的分类列表。
func parseResources(text string) []ResourceCategory {
	resources := []ResourceCategory{
		{Type: "courses"}, {Type: "books"}, {Type: "tutorials"},
		{Type: "practice"}, {Type: "communities"},
	}
	current := -1
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "**") && strings.HasSuffix(line, ":**"):
			current = resourceCategoryIndex(line)
		case strings.HasPrefix(line, "-") && current >= 0:
			item := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if item != "" {
				resources[current].Items = append(resources[current].Items, item)
			}
		}
	}
	return resources
}

// parseProjects 解析分级项目建议区块："**Beginner Projects:**" 下的
// "1. Name" 条目及 Description/Skills/Time/Resources 字段。
func parseProjects(text string) []ProjectSuggestion {
	var projects []ProjectSuggestion
	var current *ProjectSuggestion
	level := ""

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "**") && strings.HasSuffix(line, ":**"):
			level = strings.Trim(line, "*: ")
		case len(line) > 2 && line[0] >= '1' && line[0] <= '9' && line[1] == '.':
			if current != nil {
				projects = append(projects, *current)
			}
			current = &ProjectSuggestion{
				Name:  strings.TrimSpace(line[2:]),
				Level: level,
			}
		case current == nil:
		case strings.HasPrefix(line, "- Description:"):
			current.Description = strings.TrimSpace(strings.TrimPrefix(line, "- Description:"))
		case strings.HasPrefix(line, "- Skills:"):
			current.Skills = parseLabeledList(line, "- Skills:")
		case strings.HasPrefix(line, "- Time:"):
			current.Time = strings.TrimSpace(strings.TrimPrefix(line, "- Time:"))
		case strings.HasPrefix(line, "- Resources:"):
			current.Resources = parseLabeledList(line, "- Resources:")
		}
	}
	if current != nil {
		projects = append(projects, *current)
	}
	return projects
}

// capitalize 首字母大写（ASCII 足够，资源分类名都是英文）。
func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// containsAny 判断 text（已小写）是否含任一关键字。
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
