package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioeq-design-server/internal/domain"
)

func TestCheckDesign(t *testing.T) {
	tests := []struct {
		name            string
		design          domain.DesignParameters
		expectCompliant bool
		expectCritical  int
		expectWarnings  []string
		expectStatus    string
	}{
		{
			name:            "compliant standard design",
			design:          domain.DesignParameters{SampleSize: 24, DesignType: domain.DesignCrossover2x2, CVIntra: 22, WashoutDays: f64(2)},
			expectCompliant: true,
			expectWarnings:  []string{},
			expectStatus:    domain.ComplianceApproved,
		},
		{
			name:            "sample size below floor",
			design:          domain.DesignParameters{SampleSize: 10, DesignType: domain.DesignCrossover2x2, CVIntra: 22},
			expectCritical:  1,
			expectWarnings:  []string{},
			expectStatus:    domain.ComplianceRejected,
		},
		{
			name:            "very high variability with 2x2",
			design:          domain.DesignParameters{SampleSize: 14, DesignType: domain.DesignCrossover2x2, CVIntra: 60},
			expectCompliant: true,
			expectWarnings: []string{
				"High intra-individual variability (60.0%). Consider replicate design for more accurate BE assessment.",
				"High variability with 2x2 crossover. Consider 2x2x4 or parallel design.",
			},
			expectStatus: domain.ComplianceApproved,
		},
		{
			name:            "moderate variability with 2x2",
			design:          domain.DesignParameters{SampleSize: 12, DesignType: domain.DesignCrossover2x2, CVIntra: 35},
			expectCompliant: true,
			expectWarnings:  []string{"High variability with 2x2 crossover. Consider 2x2x4 or parallel design."},
			expectStatus:    domain.ComplianceApproved,
		},
		{
			name:            "implausibly low variability",
			design:          domain.DesignParameters{SampleSize: 12, DesignType: domain.DesignCrossover2x2, CVIntra: 3},
			expectCompliant: true,
			expectWarnings:  []string{"Very low variability (3.0%). Verify data source."},
			expectStatus:    domain.ComplianceApproved,
		},
		{
			name:            "long washout",
			design:          domain.DesignParameters{SampleSize: 12, DesignType: domain.DesignReplicate3Way, CVIntra: 40, WashoutDays: f64(117)},
			expectCompliant: true,
			expectWarnings:  []string{"Very long washout period (117 days). Ensure practical feasibility and volunteer retention."},
			expectStatus:    domain.ComplianceApproved,
		},
		{
			name:            "negative recorded cv is implausible",
			design:          domain.DesignParameters{SampleSize: 12, DesignType: domain.DesignCrossover2x2, CVIntra: -12, CriticalParameters: domain.CriticalParameterSet{CVIntra: f64(-12)}},
			expectCompliant: true,
			expectWarnings:  []string{"Very low variability (-12.0%). Verify data source."},
			expectStatus:    domain.ComplianceApproved,
		},
		{
			name:            "negative cv without critical set",
			design:          domain.DesignParameters{SampleSize: 12, DesignType: domain.DesignCrossover2x2, CVIntra: -3},
			expectCompliant: true,
			expectWarnings:  []string{"Very low variability (-3.0%). Verify data source."},
			expectStatus:    domain.ComplianceApproved,
		},
		{
			name:            "recorded zero cv is implausible",
			design:          domain.DesignParameters{SampleSize: 12, DesignType: domain.DesignCrossover2x2, CriticalParameters: domain.CriticalParameterSet{CVIntra: f64(0)}},
			expectCompliant: true,
			expectWarnings:  []string{"Very low variability (0.0%). Verify data source."},
			expectStatus:    domain.ComplianceApproved,
		},
		{
			name:            "missing cv skips variability rules",
			design:          domain.DesignParameters{SampleSize: 8, DesignType: domain.DesignCrossover2x2},
			expectCritical:  1,
			expectWarnings:  []string{},
			expectStatus:    domain.ComplianceRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDesign(&tt.design)
			assert.Equal(t, tt.expectCompliant, result.IsCompliant)
			assert.Len(t, result.CriticalIssues, tt.expectCritical)
			assert.Equal(t, tt.expectWarnings, result.Warnings)
			assert.Equal(t, tt.expectStatus, result.Status)
			assert.Equal(t, tt.design.SampleSize, result.DesignSummary.SampleSize)
		})
	}
}

func TestCheckDesign_MinimumSampleSizeMessage(t *testing.T) {
	result := CheckDesign(&domain.DesignParameters{SampleSize: 10, CVIntra: 20, DesignType: domain.DesignCrossover2x2})
	require.Len(t, result.CriticalIssues, 1)
	assert.Contains(t, result.CriticalIssues[0], "minimum of 12")
	assert.False(t, result.IsCompliant)
}

func TestComplianceService_CheckProject(t *testing.T) {
	store := newMemStore()
	withDesign := store.seed(domain.ProjectInput{INNEn: "metformin"})
	require.NoError(t, store.SaveDesign(context.Background(), withDesign.ID, &domain.DesignParameters{
		SampleSize: 24, DesignType: domain.DesignCrossover2x2, CVIntra: 25,
	}))
	withoutDesign := store.seed(domain.ProjectInput{INNEn: "metformin"})

	svc := NewComplianceService(store, quietLogger())

	result, err := svc.CheckProject(context.Background(), withDesign.ID)
	require.NoError(t, err)
	assert.True(t, result.IsCompliant)

	stored, _ := store.GetProject(context.Background(), withDesign.ID)
	assert.Equal(t, result, stored.Compliance)

	_, err = svc.CheckProject(context.Background(), withoutDesign.ID)
	assert.ErrorIs(t, err, domain.ErrDesignNotYetGenerated)

	_, err = svc.CheckProject(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}
