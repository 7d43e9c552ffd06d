package bioeq

import (
	"fmt"

	"github.com/bioeq-design-server/internal/domain"
)

// decision is one branch of the design selection procedure with its rationale.
type decision struct {
	design    domain.DesignType
	rationale string
}

// decide is the single source of the design selection thresholds. A long half-life
// takes precedence over every variability band.
func decide(cvIntra float64, tHalf *float64) decision {
	if tHalf != nil && *tHalf >= ParallelHalfLifeHours {
		return decision{
			design: domain.DesignParallel,
			rationale: fmt.Sprintf(
				"Parallel design: terminal half-life of %.1f h (%.1f days) is at least 14 days, so a crossover washout of %.0f half-lives is impractical.",
				*tHalf, *tHalf/24, WashoutHalfLives),
		}
	}

	switch {
	case cvIntra <= HighlyVariableCV:
		return decision{
			design: domain.DesignCrossover2x2,
			rationale: fmt.Sprintf(
				"2x2 crossover design: intra-subject CV of %.1f%% does not exceed %.0f%%, so a standard two-period, two-sequence study has adequate power.",
				cvIntra, HighlyVariableCV),
		}
	case cvIntra <= VeryHighlyVariableCV:
		return decision{
			design: domain.DesignReplicate3Way,
			rationale: fmt.Sprintf(
				"3-way replicate design: intra-subject CV of %.1f%% is above %.0f%% and at most %.0f%% (highly variable drug); replicating the reference product keeps the sample size manageable.",
				cvIntra, HighlyVariableCV, VeryHighlyVariableCV),
		}
	default:
		return decision{
			design: domain.DesignReplicate4Way,
			rationale: fmt.Sprintf(
				"4-way replicate design: intra-subject CV of %.1f%% exceeds %.0f%%; replicating both test and reference products gives the most precise within-subject variance estimate.",
				cvIntra, VeryHighlyVariableCV),
		}
	}
}

// ChooseDesignType selects the design class for the given intra-subject CV (percent)
// and optional terminal half-life (hours).
func ChooseDesignType(cvIntra float64, tHalf *float64) domain.DesignType {
	return decide(cvIntra, tHalf).design
}

// DesignExplanation justifies the design class selected for cvIntra and tHalf. When
// design differs from that selection, for instance because a caller requested it, the
// explanation says so.
func DesignExplanation(cvIntra float64, tHalf *float64, design domain.DesignType) string {
	d := decide(cvIntra, tHalf)
	if design == "" || design == d.design {
		return d.rationale
	}
	return fmt.Sprintf("%s design was requested; the recommended design is %s. %s", design, d.design, d.rationale)
}
