package service

import (
	"fmt"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/pkg/bioeq"
)

// Plausibility thresholds applied to a finished design
const (
	LowVariabilityCV = 5.0
	MaxWashoutDays   = 90.0
)

// CheckDesign evaluates a design against fixed regulatory thresholds. Every rule is
// evaluated independently; only critical issues affect compliance. The variability
// rules are skipped only when the CV is unknown: no critical CV was recorded and the
// design carries a zero CV. Zero and negative known values get the low-CV warning.
func CheckDesign(design *domain.DesignParameters) *domain.ComplianceResult {
	result := &domain.ComplianceResult{
		CriticalIssues: []string{},
		Warnings:       []string{},
	}

	if design.SampleSize < bioeq.MinimumSampleSize {
		result.CriticalIssues = append(result.CriticalIssues,
			fmt.Sprintf("Sample size (%d) is below minimum of %d", design.SampleSize, bioeq.MinimumSampleSize))
	}

	if cv, known := designCV(design); known {
		if cv > bioeq.VeryHighlyVariableCV {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("High intra-individual variability (%.1f%%). Consider replicate design for more accurate BE assessment.", cv))
		}
		if cv < LowVariabilityCV {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Very low variability (%.1f%%). Verify data source.", cv))
		}
		if cv > bioeq.HighlyVariableCV && design.DesignType == domain.DesignCrossover2x2 {
			result.Warnings = append(result.Warnings,
				"High variability with 2x2 crossover. Consider 2x2x4 or parallel design.")
		}
	}

	if design.WashoutDays != nil && *design.WashoutDays > MaxWashoutDays {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Very long washout period (%.0f days). Ensure practical feasibility and volunteer retention.", *design.WashoutDays))
	}

	result.IsCompliant = len(result.CriticalIssues) == 0
	result.Status = domain.ComplianceApproved
	if !result.IsCompliant {
		result.Status = domain.ComplianceRejected
	}
	result.DesignSummary = domain.DesignSummary{
		SampleSize:  design.SampleSize,
		DesignType:  design.DesignType,
		CVIntra:     design.CVIntra,
		WashoutDays: design.WashoutDays,
	}
	return result
}

func designCV(design *domain.DesignParameters) (float64, bool) {
	if design.CriticalParameters.CVIntra != nil {
		return *design.CriticalParameters.CVIntra, true
	}
	return design.CVIntra, design.CVIntra != 0
}
