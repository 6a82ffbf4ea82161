package selector

import (
	"regexp"
	"strings"
)

// mentionRe matches @name tokens. The @ must sit at the start of the content
// or after whitespace: this is the deliberate mention-prefix convention, so
// an address like "a@b.com" never produces a mention.
var mentionRe = regexp.MustCompile(`(?:^|\s)@(\w+)`)

// ParseMentions extracts mentioned names from message content, lowercased,
// deduplicated, in order of first appearance.
func ParseMentions(content string) []string {
	matches := mentionRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var mentions []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if !seen[name] {
			seen[name] = true
			mentions = append(mentions, name)
		}
	}
	return mentions
}

// RemoveMentions strips @name tokens from content and collapses the
// leftover whitespace.
func RemoveMentions(content string) string {
	out := mentionRe.ReplaceAllString(content, " ")
	out = strings.Join(strings.Fields(out), " ")
	return out
}
