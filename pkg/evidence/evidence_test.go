package evidence

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioeq-design-server/internal/domain"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"cv_intra", domain.ParamCVIntra},
		{"CVintra", domain.ParamCVIntra},
		{"  Intra subject CV ", domain.ParamCVIntra},
		{"intrasubject_cv", domain.ParamCVIntra},
		{"Within subject CV", domain.ParamCVIntra},
		{"withinsubject_cv", domain.ParamCVIntra},
		{"half_life", domain.ParamTHalf},
		{"Half-life", domain.ParamTHalf},
		{"t1_2", domain.ParamTHalf},
		{"t_half", domain.ParamTHalf},
		{"cmax", domain.ParamCmax},
		{"AUC", domain.ParamAUC},
		{"tmax", domain.ParamTmax},
		{"", ""},
		{"   ", ""},
		{"  Volume of Distribution ", "Volume of Distribution"},
		{"Kel", "Kel"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Canonicalize(tt.input))
		})
	}
}

func TestCanonicalize_IdempotentOnCanonicalNames(t *testing.T) {
	for _, name := range []string{domain.ParamCVIntra, domain.ParamTHalf, domain.ParamCmax, domain.ParamAUC, domain.ParamTmax} {
		assert.Equal(t, name, Canonicalize(name))
		assert.True(t, IsCanonical(Canonicalize(name)))
	}
	for alias, canonical := range aliases {
		assert.Equal(t, canonical, Canonicalize(alias), alias)
		assert.Equal(t, canonical, Canonicalize(Canonicalize(alias)), alias)
	}
}

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate *domain.RawCandidate
		wantOK    bool
		wantValue float64
		wantUnit  string
	}{
		{"nil candidate", nil, false, 0, ""},
		{"not found", &domain.RawCandidate{Value: 12.0, Found: false}, false, 0, ""},
		{"found missing", &domain.RawCandidate{Value: 12.0}, false, 0, ""},
		{"found as string no", &domain.RawCandidate{Value: 12.0, Found: "no"}, false, 0, ""},
		{"numeric value", &domain.RawCandidate{Value: 22.5, Found: true, Unit: strPtr(" % ")}, true, 22.5, "%"},
		{"string value", &domain.RawCandidate{Value: " 1.75 ", Found: true, Unit: strPtr("h")}, true, 1.75, "h"},
		{"json number", &domain.RawCandidate{Value: json.Number("430"), Found: "yes"}, true, 430, ""},
		{"negative accepted", &domain.RawCandidate{Value: -3.0, Found: true}, true, -3, ""},
		{"extreme accepted", &domain.RawCandidate{Value: 1e9, Found: 1.0}, true, 1e9, ""},
		{"range string rejected", &domain.RawCandidate{Value: "10-20", Found: true}, false, 0, ""},
		{"null value rejected", &domain.RawCandidate{Value: nil, Found: true}, false, 0, ""},
		{"nan rejected", &domain.RawCandidate{Value: "NaN", Found: true}, false, 0, ""},
		{"infinity rejected", &domain.RawCandidate{Value: math.Inf(1), Found: true}, false, 0, ""},
		{"bool value rejected", &domain.RawCandidate{Value: true, Found: true}, false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Validate(tt.candidate)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantOK, IsValid(tt.candidate))
			if tt.wantOK {
				assert.Equal(t, tt.wantValue, c.Value)
				assert.Equal(t, tt.wantUnit, c.Unit)
			}
		})
	}
}

func TestCandidate_Observation(t *testing.T) {
	c, ok := Validate(&domain.RawCandidate{Value: 18.0, Found: true, Unit: strPtr("%")})
	require.True(t, ok)

	obs := c.Observation(domain.ParamCVIntra, domain.Article{ID: "31415", Title: "BE of drug X"})
	assert.Equal(t, domain.ParameterObservation{
		Name:        domain.ParamCVIntra,
		Value:       18,
		Unit:        "%",
		SourceID:    "31415",
		SourceTitle: "BE of drug X",
		IsReliable:  true,
	}, obs)
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		abstract string
		expected int
	}{
		{"empty", "", "", 0},
		{"bioequivalence only", "A Bioequivalence study", "", 2},
		{"crossover hyphenated", "", "randomized cross-over design", 2},
		{"healthy volunteers", "", "in 24 healthy volunteers", 1},
		{"healthy subjects", "", "enrolled healthy subjects", 1},
		{"marker counted once", "", "intra-subject and within-subject variability", 3 + 1},
		{"coefficient of variation", "", "the coefficient of variation was 21%", 2},
		{"inter-individual suppresses variability", "", "inter-individual variability was high", 0},
		{
			"everything",
			"Bioequivalence of two formulations: a crossover study",
			"Healthy volunteers. The intrasubject coefficient of variation (variability) was 25%.",
			2 + 2 + 1 + 3 + 2 + 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Score(tt.title, tt.abstract))
		})
	}
}

func TestMostConservative(t *testing.T) {
	observations := []domain.ParameterObservation{
		{Name: domain.ParamCVIntra, Value: 18, IsReliable: true},
		{Name: domain.ParamCVIntra, Value: 41, IsReliable: true},
		{Name: domain.ParamCVIntra, Value: 95, IsReliable: false},
		{Name: domain.ParamCVIntra, Value: math.NaN(), IsReliable: true},
		{Name: domain.ParamTHalf, Value: 6.5, IsReliable: true},
		{Name: domain.ParamTmax, Value: 2, IsReliable: false},
	}

	cv, ok := MostConservative(observations, domain.ParamCVIntra)
	require.True(t, ok)
	assert.Equal(t, 41.0, cv)

	half, ok := MostConservative(observations, domain.ParamTHalf)
	require.True(t, ok)
	assert.Equal(t, 6.5, half)

	_, ok = MostConservative(observations, domain.ParamTmax)
	assert.False(t, ok, "unreliable observations never count")

	_, ok = MostConservative(nil, domain.ParamCVIntra)
	assert.False(t, ok)
}

func TestCriticalSet(t *testing.T) {
	set := CriticalSet([]domain.ParameterObservation{
		{Name: domain.ParamCVIntra, Value: 30, IsReliable: true},
		{Name: domain.ParamTmax, Value: 1.5, IsReliable: true},
		{Name: domain.ParamTmax, Value: 2.5, IsReliable: true},
	})

	require.NotNil(t, set.CVIntra)
	require.NotNil(t, set.Tmax)
	assert.Equal(t, 30.0, *set.CVIntra)
	assert.Equal(t, 2.5, *set.Tmax)
	assert.Nil(t, set.THalf)
}

func TestDescribe(t *testing.T) {
	m := domain.NewEvidenceMap()
	m.Merge([]domain.ParameterObservation{
		{Name: domain.ParamCmax, Value: 10, IsReliable: true},
		{Name: domain.ParamCmax, Value: 30, IsReliable: true},
		{Name: domain.ParamCmax, Value: 20, IsReliable: true},
		{Name: domain.ParamAUC, Value: 5, IsReliable: false},
	})

	described := Describe(m)
	require.Contains(t, described, domain.ParamCmax)
	assert.NotContains(t, described, domain.ParamAUC)

	s := described[domain.ParamCmax]
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 30.0, s.Max)
	assert.InDelta(t, 20.0, s.Mean, 1e-9)
	assert.Equal(t, 20.0, s.Median)
}
