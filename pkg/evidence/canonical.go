// Package evidence turns untrusted extraction output into pharmacokinetic observations:
// parameter name canonicalization, candidate validation, article relevance scoring and
// the conservative reduction used by design generation.
package evidence

import (
	"strings"

	"github.com/bioeq-design-server/internal/domain"
)

// aliases maps normalized (trimmed, lower-cased, spaces as underscores) names to canonical ones.
var aliases = map[string]string{
	"cv_intra":          domain.ParamCVIntra,
	"cvintra":           domain.ParamCVIntra,
	"intra_subject_cv":  domain.ParamCVIntra,
	"intrasubject_cv":   domain.ParamCVIntra,
	"intra-subject_cv":  domain.ParamCVIntra,
	"within_subject_cv": domain.ParamCVIntra,
	"withinsubject_cv":  domain.ParamCVIntra,
	"within-subject_cv": domain.ParamCVIntra,

	"t1/2":      domain.ParamTHalf,
	"t1_2":      domain.ParamTHalf,
	"t_half":    domain.ParamTHalf,
	"thalf":     domain.ParamTHalf,
	"half_life": domain.ParamTHalf,
	"half-life": domain.ParamTHalf,
	"halflife":  domain.ParamTHalf,

	"cmax": domain.ParamCmax,
	"auc":  domain.ParamAUC,
	"tmax": domain.ParamTmax,
}

// Canonicalize maps a raw parameter name onto the fixed vocabulary. Unknown names are
// returned trimmed but otherwise verbatim; blank input yields "".
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	key := strings.ReplaceAll(strings.ToLower(trimmed), " ", "_")
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return trimmed
}

// IsCanonical reports whether name belongs to the fixed vocabulary.
func IsCanonical(name string) bool {
	switch name {
	case domain.ParamCVIntra, domain.ParamTHalf, domain.ParamCmax, domain.ParamAUC, domain.ParamTmax:
		return true
	}
	return false
}
