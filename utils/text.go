package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)

	markdownBlockPatterns = []*regexp.Regexp{
		regexp.MustCompile("(?s)```markdown\\s*\\n(.*?)\\n```"),
		regexp.MustCompile("(?s)```\\s*\\n(.*?)\\n```"),
		regexp.MustCompile("(?s)```markdown(.*?)```"),
	}
)

// ExtractJSONBlock pulls the outermost {...} object out of raw model text,
// tolerating prose or code fences around it.
func ExtractJSONBlock(raw string) (string, error) {
	match := jsonBlockPattern.FindString(raw)
	if match == "" {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return match, nil
}

// ExtractMarkdownBlock pulls the content of a ```markdown fence out of raw
// model text, falling back to any fenced block, then to a line scan for a
// fence marker, then to the whole trimmed text.
func ExtractMarkdownBlock(raw string) string {
	for _, pattern := range markdownBlockPatterns {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	lines := strings.Split(raw, "\n")
	start := -1
	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), "```markdown") {
			start = i + 1
			break
		}
	}
	if start >= 0 {
		end := len(lines)
		for i := start; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "```" {
				end = i
				break
			}
		}
		return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
	}

	return strings.TrimSpace(raw)
}
