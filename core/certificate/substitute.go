package certificate

import (
	"regexp"
	"strings"

	"github.com/digitalmadrasa/madrasa/core/scene"
)

var tokenRegex = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// SubstituteText replaces every recognized `{{token}}` of s with its value.
// Unrecognized tokens are kept verbatim, or blanked when strip is set.
// Values are inserted in a single pass and never rescanned.
func SubstituteText(s string, values ValueMap, strip bool) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return tokenRegex.ReplaceAllStringFunc(s, func(match string) string {
		token := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := values.Lookup(token); ok {
			return v
		}
		if strip {
			return ""
		}
		return match
	})
}

// Substitute rewrites the content of every text node of g in place, groups included,
// and returns how many nodes changed.
func Substitute(g *scene.Graph, values ValueMap, strip bool) int {
	var changed int
	for _, t := range g.Texts() {
		if out := SubstituteText(t.Content, values, strip); out != t.Content {
			t.Content = out
			changed++
		}
	}
	return changed
}

// UnknownTokens lists the unrecognized tokens left in the graph's text, once each.
func UnknownTokens(g *scene.Graph) []string {
	seen := make(map[string]bool)
	var unknown []string
	for _, t := range g.Texts() {
		for _, m := range tokenRegex.FindAllStringSubmatch(t.Content, -1) {
			token := strings.TrimSpace(m[1])
			if _, ok := (ValueMap{}).Lookup(token); ok || seen[token] {
				continue
			}
			seen[token] = true
			unknown = append(unknown, token)
		}
	}
	return unknown
}
