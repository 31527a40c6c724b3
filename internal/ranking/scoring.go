// Package ranking scores resumes against a job's required skills and orders them.
package ranking

import (
	"sort"

	"github.com/jonathan/resume-screener/internal/skills"
)

// Score computes the overlap between required and candidate skills.
// matched is required ∩ candidate in the order of required; overlap is
// |matched| / |required|, or 0 when required is empty.
func Score(required, candidate skills.SkillSet) (overlap float64, matched skills.SkillSet) {
	normalizedRequired := skills.NewSkillSet(required...)
	matched = normalizedRequired.Intersect(candidate)

	if normalizedRequired.Len() == 0 {
		return 0, matched
	}
	return float64(matched.Len()) / float64(normalizedRequired.Len()), matched
}

// Candidate is one resume offered for ranking. Skills may be nil when extraction
// never ran for the resume; it then scores 0.
type Candidate struct {
	ResumeID string
	Filename string
	Skills   skills.SkillSet
}

// MatchResult is the score of one candidate. It is computed per request and never stored.
type MatchResult struct {
	ResumeID      string          `json:"resume_id"`
	Filename      string          `json:"filename"`
	OverlapScore  float64         `json:"overlap_score"`
	MatchedSkills skills.SkillSet `json:"matched_skills"`
}

// Rank scores every candidate against required and sorts the results by overlap,
// highest first. Candidates with equal scores keep their input order.
func Rank(required skills.SkillSet, candidates []Candidate) []MatchResult {
	results := make([]MatchResult, 0, len(candidates))
	for _, candidate := range candidates {
		overlap, matched := Score(required, candidate.Skills)
		results = append(results, MatchResult{
			ResumeID:      candidate.ResumeID,
			Filename:      candidate.Filename,
			OverlapScore:  overlap,
			MatchedSkills: matched,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OverlapScore > results[j].OverlapScore
	})

	return results
}
