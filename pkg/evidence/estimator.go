package evidence

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/bioeq-design-server/internal/domain"
)

// MostConservative returns the largest reliable value recorded for name.
// Unreliable and non-finite observations are ignored; ok is false when nothing remains.
// The maximum is used for every parameter so designs are sized for the worst case.
func MostConservative(observations []domain.ParameterObservation, name string) (float64, bool) {
	values := reliableValues(observations, name)
	if len(values) == 0 {
		return 0, false
	}
	max, err := stats.Max(values)
	if err != nil {
		return 0, false
	}
	return max, true
}

// CriticalSet reduces observations to the parameters design generation depends on.
func CriticalSet(observations []domain.ParameterObservation) domain.CriticalParameterSet {
	var set domain.CriticalParameterSet
	if v, ok := MostConservative(observations, domain.ParamCVIntra); ok {
		set.CVIntra = &v
	}
	if v, ok := MostConservative(observations, domain.ParamTmax); ok {
		set.Tmax = &v
	}
	if v, ok := MostConservative(observations, domain.ParamTHalf); ok {
		set.THalf = &v
	}
	return set
}

// Describe computes descriptive statistics per parameter over reliable observations.
func Describe(m *domain.EvidenceMap) map[string]domain.ParameterStats {
	out := make(map[string]domain.ParameterStats)
	for _, name := range m.Names() {
		values := reliableValues(m.Get(name), name)
		if len(values) == 0 {
			continue
		}
		min, _ := stats.Min(values)
		max, _ := stats.Max(values)
		mean, _ := stats.Mean(values)
		median, _ := stats.Median(values)
		out[name] = domain.ParameterStats{
			Count:  len(values),
			Min:    min,
			Max:    max,
			Mean:   mean,
			Median: median,
		}
	}
	return out
}

func reliableValues(observations []domain.ParameterObservation, name string) stats.Float64Data {
	var values stats.Float64Data
	for _, obs := range observations {
		if obs.Name != name || !obs.IsReliable {
			continue
		}
		if math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) {
			continue
		}
		values = append(values, obs.Value)
	}
	return values
}
