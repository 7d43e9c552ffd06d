// Package bioeq implements the closed-form bioequivalence design formulas: design class
// selection, sample size, recruitment adjustment, washout and blood sampling schedule.
//
// Sample sizes use the normal approximation for the two one-sided tests procedure on
// log-transformed data with fixed z quantiles (alpha 0.05 two-sided, power 0.80).
package bioeq

import (
	"fmt"
	"math"

	"github.com/bioeq-design-server/internal/domain"
)

// Regulatory and decision thresholds.
const (
	MinimumSampleSize       = 12
	ParallelHalfLifeHours   = 336.0 // 14 days
	HighlyVariableCV        = 30.0
	VeryHighlyVariableCV    = 50.0
	WashoutHalfLives        = 7.0
	DefaultPower            = 0.80
	DefaultAlpha            = 0.05
	DefaultTheta1           = 0.80
	DefaultTheta2           = 1.25
	zAlpha                  = 1.96
	zBeta                   = 0.84
	earlySamplingTmaxFactor = 0.25
)

// SampleSizeParams carries the statistical settings of a sample size calculation.
// Power and Alpha are recorded but the z quantiles are fixed.
type SampleSizeParams struct {
	Power  float64
	Alpha  float64
	Theta1 float64
	Theta2 float64
}

// DefaultSampleSizeParams returns 80% power, 5% alpha and 80-125% acceptance limits.
func DefaultSampleSizeParams() SampleSizeParams {
	return SampleSizeParams{
		Power:  DefaultPower,
		Alpha:  DefaultAlpha,
		Theta1: DefaultTheta1,
		Theta2: DefaultTheta2,
	}
}

// seFactor is the within-subject variance divisor of each design class.
func seFactor(design domain.DesignType) float64 {
	switch design {
	case domain.DesignReplicate3Way:
		return 1.0 / 3.0
	case domain.DesignReplicate4Way:
		return 1.0 / 4.0
	case domain.DesignParallel:
		return 1.0
	default:
		return 1.0 / 2.0
	}
}

// SampleSizeForDesign computes the number of subjects required for design at the given
// intra-subject CV (percent). Crossover and replicate sizes are rounded up to an even
// number; parallel sizes are total subjects over both arms. The result is never below
// MinimumSampleSize and the design is returned unchanged.
func SampleSizeForDesign(cvIntra float64, design domain.DesignType, params SampleSizeParams) (int, domain.DesignType) {
	if params.Theta1 <= 0 || params.Theta2 <= 0 {
		params.Theta1, params.Theta2 = DefaultTheta1, DefaultTheta2
	}

	factor := seFactor(design)
	cv := cvIntra / 100
	varLog := math.Log(cv*cv + 1)
	seSq := varLog * factor
	logTheta := math.Log(params.Theta2 / params.Theta1)

	z := (zAlpha + zBeta) / logTheta
	nRaw := 2 * z * z * seSq

	var n int
	if factor == 1 {
		n = int(math.Ceil(nRaw))
	} else {
		n = int(math.Ceil(nRaw/2)) * 2
	}
	if n < MinimumSampleSize {
		n = MinimumSampleSize
	}
	return n, design
}

// SampleSize sizes a standard 2x2 crossover.
//
// Deprecated: use ChooseDesignType with SampleSizeForDesign.
func SampleSize(cvIntra float64) int {
	n, _ := SampleSizeForDesign(cvIntra, domain.DesignCrossover2x2, DefaultSampleSizeParams())
	return n
}

// ValidateRates checks dropout and screen fail percentages before any calculation.
func ValidateRates(dropoutRate, screenFailRate float64) error {
	if math.IsNaN(dropoutRate) || dropoutRate < 0 || dropoutRate > 100 {
		return fmt.Errorf("dropout rate %v: %w", dropoutRate, domain.ErrInvalidRate)
	}
	if math.IsNaN(screenFailRate) || screenFailRate < 0 || screenFailRate > 100 {
		return fmt.Errorf("screen fail rate %v: %w", screenFailRate, domain.ErrInvalidRate)
	}
	if retention(dropoutRate, screenFailRate) <= 0 {
		return fmt.Errorf("dropout %v%% and screen fail %v%%: %w", dropoutRate, screenFailRate, domain.ErrInfeasible)
	}
	return nil
}

func retention(dropoutRate, screenFailRate float64) float64 {
	return (1 - dropoutRate/100) * (1 - screenFailRate/100)
}

// RecruitmentSize inflates sampleSize for expected dropout and screening failure,
// both given in percent.
func RecruitmentSize(sampleSize int, dropoutRate, screenFailRate float64) (int, error) {
	if err := ValidateRates(dropoutRate, screenFailRate); err != nil {
		return 0, err
	}
	return int(math.Ceil(float64(sampleSize) / retention(dropoutRate, screenFailRate))), nil
}

// WashoutPeriod returns the washout in whole days covering seven half-lives.
func WashoutPeriod(tHalf float64) float64 {
	days := math.Ceil(tHalf * WashoutHalfLives / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BloodSampling returns the six-point sampling schedule in hours after dosing.
func BloodSampling(tmax, tHalf float64) map[string]float64 {
	return map[string]float64{
		domain.SamplePredose: 0,
		domain.SampleEarly:   tmax * earlySamplingTmaxFactor,
		domain.SamplePeak:    tmax,
		domain.SampleLate1:   tmax + tHalf,
		domain.SampleLate2:   tmax + 3*tHalf,
		domain.SampleLate3:   tmax + 5*tHalf,
	}
}

// RandomizationScheme describes the sequence allocation for a design class.
func RandomizationScheme(design domain.DesignType) string {
	switch design {
	case domain.DesignReplicate3Way:
		return "Three sequences TRR/RTR/RRT, subjects randomized 1:1:1 across sequences"
	case domain.DesignReplicate4Way:
		return "Two sequences TRTR/RTRT, subjects randomized 1:1 across sequences"
	case domain.DesignParallel:
		return "Two parallel arms T and R, subjects randomized 1:1 between arms"
	default:
		return "Two sequences TR/RT, subjects randomized 1:1 across sequences"
	}
}
