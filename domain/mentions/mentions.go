// Package mentions extracts @handle tokens from free text.
package mentions

import (
	"regexp"

	"golang.org/x/text/cases"
)

var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9_]+)`)

// Extract returns the distinct handles mentioned in text, in order of first
// appearance, without the leading '@'.
func Extract(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	handles := make([]string, 0, len(matches))
	for _, m := range matches {
		handle := m[1]
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}
	return handles
}

// Fold returns the case-insensitive matching key of a handle or username
func Fold(handle string) string {
	return cases.Fold().String(handle)
}

// Introduced returns handles mentioned in next that were not mentioned in prev,
// comparing case-insensitively
func Introduced(prev, next string) []string {
	before := make(map[string]struct{})
	for _, h := range Extract(prev) {
		before[Fold(h)] = struct{}{}
	}

	var added []string
	for _, h := range Extract(next) {
		if _, ok := before[Fold(h)]; !ok {
			added = append(added, h)
		}
	}
	return added
}
