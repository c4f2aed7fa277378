package parsing

import (
	"regexp"
	"strings"
)

// skillAliases maps spelling variants to one canonical skill name.
var skillAliases = map[string]string{
	"golang":     "Go",
	"go lang":    "Go",
	"javascript": "JavaScript",
	"js":         "JavaScript",
	"typescript": "TypeScript",
	"ts":         "TypeScript",
	"k8s":        "Kubernetes",
	"kubernetes": "Kubernetes",
	"react.js":   "React",
	"reactjs":    "React",
	"node.js":    "Node.js",
	"nodejs":     "Node.js",
	"postgres":   "PostgreSQL",
	"postgresql": "PostgreSQL",
	"py":         "Python",
	"c++":        "C++",
	"cpp":        "C++",
	"ml":         "Machine Learning",
}

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeSkillName returns the canonical display form of a skill.
func NormalizeSkillName(skill string) string {
	s := spaceRun.ReplaceAllString(strings.TrimSpace(skill), " ")
	if s == "" {
		return ""
	}
	if canonical, ok := skillAliases[strings.ToLower(s)]; ok {
		return canonical
	}
	if strings.Contains(s, " ") {
		return s
	}
	if s == strings.ToUpper(s) || s == strings.ToLower(s) {
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	}
	return s
}

// SkillKey is the comparison key for a skill: its canonical name lower-cased.
func SkillKey(skill string) string {
	return strings.ToLower(NormalizeSkillName(skill))
}

// CollapseSpace trims s and collapses whitespace runs to single spaces.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
