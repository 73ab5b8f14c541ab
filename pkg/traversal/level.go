package traversal

import (
	"strings"

	"pricecrawl/pkg/checkpoint"
)

// Level is one tier of the hierarchy (for example cities, then categories).
type Level struct {
	// Name is passed to the PageDriver to identify the tier.
	Name string
	// Field, when set, is stamped onto each record with the item selected at this level.
	Field string
	// Checkpoint persists the items still owed at this level.
	Checkpoint *checkpoint.Checkpoint
	// Ignore filters enumerated items before they are seeded.
	Ignore IgnoreRule
	// Limit keeps only the first Limit enumerated items; zero keeps all.
	Limit int
}

// IgnoreRule skips items by case-insensitive substring match. Patterns in
// Under apply only while the selected parent item contains the map key.
type IgnoreRule struct {
	Always []string
	Under  map[string][]string
}

// Match reports whether item, enumerated beneath parent, should be skipped.
func (r IgnoreRule) Match(item, parent string) bool {
	if containsAny(item, r.Always) {
		return true
	}
	if parent == "" {
		return false
	}
	lowerParent := strings.ToLower(parent)
	for key, patterns := range r.Under {
		if strings.Contains(lowerParent, strings.ToLower(key)) && containsAny(item, patterns) {
			return true
		}
	}
	return false
}

func containsAny(item string, patterns []string) bool {
	lower := strings.ToLower(item)
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
