package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceMap_AppendOnly(t *testing.T) {
	m := NewEvidenceMap()
	m.Add(ParameterObservation{Name: ParamCmax, Value: 120, SourceID: "1"})
	m.Merge([]ParameterObservation{
		{Name: ParamCVIntra, Value: 22.5, SourceID: "2", IsReliable: true},
		{Name: ParamCmax, Value: 135, SourceID: "3"},
	})

	assert.True(t, m.Has(ParamCVIntra))
	assert.False(t, m.Has(ParamTHalf))
	assert.Equal(t, []string{ParamCmax, ParamCVIntra}, m.Names())
	assert.Equal(t, map[string]int{ParamCmax: 2, ParamCVIntra: 1}, m.Counts())
	assert.Equal(t, 3, m.Len())

	got := m.Get(ParamCmax)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].SourceID)
	assert.Equal(t, "3", got[1].SourceID)

	// Mutating a returned slice must not leak into the map.
	got[0].Value = -1
	assert.Equal(t, 120.0, m.Get(ParamCmax)[0].Value)

	all := m.All()
	require.Len(t, all, 3)
	assert.Equal(t, ParamCVIntra, all[2].Name)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"CV_intra"`)
}

func TestParseDesignType(t *testing.T) {
	tests := []struct {
		input   string
		want    DesignType
		wantErr bool
	}{
		{"2x2-crossover", DesignCrossover2x2, false},
		{" Parallel ", DesignParallel, false},
		{"4-way-replicate", DesignReplicate4Way, false},
		{"latin-square", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDesignType(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProject_Substances(t *testing.T) {
	p := NewProject(ProjectInput{
		INNEn:                "ibuprofen",
		INNRu:                "ибупрофен",
		AdditionalSubstances: []string{"", "pseudoephedrine"},
	})

	assert.Equal(t, StatusSearching, p.Status)
	assert.False(t, p.Status.IsTerminal())
	assert.Equal(t, []string{"ibuprofen", "ибупрофен", "pseudoephedrine"}, p.Substances())
	assert.Equal(t, p.ID.String(), p.Metadata().ProjectID)
	assert.True(t, StatusDesignFailed.IsTerminal())
}

func TestProjectInput_Validate(t *testing.T) {
	assert.ErrorIs(t, ProjectInput{}.Validate(), ErrInvalidInput)
	assert.NoError(t, ProjectInput{INNEn: "metformin"}.Validate())
}
