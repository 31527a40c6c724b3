// Package skills turns free text into normalized skill sets.
//
// Interpretation of the text is delegated to an external text-completion model behind the
// TextClassifier interface. This package owns normalization and the tolerant parsing of
// whatever the model replies.
package skills

import "strings"

// SkillSet is a deduplicated collection of normalized skill labels. It keeps the
// first-seen order of labels so responses are deterministic; equality ignores order.
type SkillSet []string

// Normalize returns the canonical form of a skill label: surrounding whitespace trimmed
// and lowercased. Two skills are equal iff their normalized forms are equal.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// NewSkillSet normalizes and deduplicates labels. Empty labels are dropped.
// The result is never nil.
func NewSkillSet(labels ...string) SkillSet {
	set := make(SkillSet, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		normalized := Normalize(label)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		set = append(set, normalized)
	}
	return set
}

// Len returns the number of skills.
func (s SkillSet) Len() int {
	return len(s)
}

// Contains reports whether label, once normalized, is in the set.
func (s SkillSet) Contains(label string) bool {
	normalized := Normalize(label)
	for _, skill := range s {
		if Normalize(skill) == normalized {
			return true
		}
	}
	return false
}

// Intersect returns the skills of s that are also in other, in the order of s.
// Both sides are normalized before comparison.
func (s SkillSet) Intersect(other SkillSet) SkillSet {
	lookup := make(map[string]struct{}, len(other))
	for _, skill := range other {
		lookup[Normalize(skill)] = struct{}{}
	}

	matched := make(SkillSet, 0)
	for _, skill := range NewSkillSet(s...) {
		if _, ok := lookup[skill]; ok {
			matched = append(matched, skill)
		}
	}
	return matched
}

// Equal reports whether both sets hold the same skills regardless of order.
func (s SkillSet) Equal(other SkillSet) bool {
	a, b := NewSkillSet(s...), NewSkillSet(other...)
	if len(a) != len(b) {
		return false
	}
	return len(a.Intersect(b)) == len(a)
}
