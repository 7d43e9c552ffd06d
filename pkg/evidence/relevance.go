package evidence

import (
	"strings"
)

var variabilityMarkers = []string{"intra-subject", "within-subject", "intrasubject", "withinsubject"}

// Score rates how likely an article is to report intra-subject variability.
// Matching is case-insensitive over title and abstract; the score is additive and uncapped.
// It only ranks articles for targeted enrichment and never excludes evidence.
func Score(title, abstract string) int {
	text := strings.ToLower(title + " " + abstract)
	score := 0

	if strings.Contains(text, "bioequivalence") {
		score += 2
	}
	if strings.Contains(text, "crossover") || strings.Contains(text, "cross-over") {
		score += 2
	}
	if strings.Contains(text, "healthy volunteer") || strings.Contains(text, "healthy subjects") {
		score++
	}
	for _, marker := range variabilityMarkers {
		if strings.Contains(text, marker) {
			score += 3
			break
		}
	}
	if strings.Contains(text, "coefficient of variation") {
		score += 2
	}
	if strings.Contains(text, "variability") && !strings.Contains(text, "inter-individual") {
		score++
	}

	return score
}
