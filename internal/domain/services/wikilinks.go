package services

import (
	"regexp"
	"strings"
)

// wikilinkPattern matches [[Target]] and [[Target|label]].
var wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(\|[^\[\]]*)?\]\]`)

// ExtractWikilinks returns the distinct link targets in text, in order of
// first appearance.
func ExtractWikilinks(text string) []string {
	mentions := []string{}
	seen := make(map[string]bool)
	for _, m := range wikilinkPattern.FindAllStringSubmatch(text, -1) {
		target := strings.TrimSpace(m[1])
		key := strings.ToLower(target)
		if target == "" || seen[key] {
			continue
		}
		seen[key] = true
		mentions = append(mentions, target)
	}
	return mentions
}

// RewriteWikilinks points every link whose target equals one of names
// (case-insensitively) at replacement. Labels are kept.
func RewriteWikilinks(content string, names []string, replacement string) string {
	targets := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			targets[strings.ToLower(n)] = true
		}
	}
	if len(targets) == 0 {
		return content
	}

	return wikilinkPattern.ReplaceAllStringFunc(content, func(link string) string {
		m := wikilinkPattern.FindStringSubmatch(link)
		if !targets[strings.ToLower(strings.TrimSpace(m[1]))] {
			return link
		}
		return "[[" + replacement + m[2] + "]]"
	})
}
