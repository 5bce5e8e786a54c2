package filter

import (
	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/rules"
)

// Field weights for the quality score. They sum to 1.0; placeholder values
// contribute nothing.
const (
	weightName        = 0.20
	weightDescription = 0.15
	weightStartDate   = 0.15
	weightEndDate     = 0.10
	weightLocation    = 0.15
	weightSpeakers    = 0.10
	weightThemes      = 0.10
	weightURL         = 0.05
)

// QualityScore measures how completely a candidate is populated, in [0,1].
// The score is monotone: filling any field never lowers it.
func QualityScore(cand event.Candidate) float64 {
	score := 0.0
	if !rules.IsPlaceholder(cand.Name) {
		score += weightName
	}
	if !rules.IsPlaceholder(cand.Description) {
		score += weightDescription
	}
	if !rules.IsPlaceholder(cand.StartDate) {
		score += weightStartDate
	}
	if !rules.IsPlaceholder(cand.EndDate) {
		score += weightEndDate
	}
	if !rules.IsPlaceholder(cand.Location) {
		score += weightLocation
	}
	if len(cand.Speakers) > 0 {
		score += weightSpeakers
	}
	if len(cand.Themes) > 0 {
		score += weightThemes
	}
	if !rules.IsPlaceholder(cand.URL) {
		score += weightURL
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
