package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/pkg/bioeq"
	"github.com/bioeq-design-server/pkg/evidence"
)

// DesignRequest holds explicit design inputs
type DesignRequest struct {
	CVIntra        float64  `json:"cv_intra"`
	Tmax           *float64 `json:"tmax,omitempty"`
	THalf          *float64 `json:"t_half,omitempty"`
	Power          float64  `json:"power,omitempty"`
	Alpha          float64  `json:"alpha,omitempty"`
	DropoutRate    float64  `json:"dropout_rate"`
	ScreenFailRate float64  `json:"screen_fail_rate"`
	DesiredDesign  string   `json:"desired_design,omitempty"`
	ProjectID      string   `json:"project_id,omitempty"`
}

// DesignService derives study designs from aggregated evidence or explicit inputs
type DesignService struct {
	store  domain.ProjectStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewDesignService creates a new design service. store may be nil when designs are
// only calculated, never persisted.
func NewDesignService(store domain.ProjectStore, logger *logrus.Logger) *DesignService {
	return &DesignService{store: store, logger: logger, now: time.Now}
}

// GenerateDesign builds a design from the stored observations of a project using the
// most conservative value of every critical parameter, and stores it.
func (s *DesignService) GenerateDesign(ctx context.Context, projectID uuid.UUID) (*domain.DesignParameters, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	observations, err := s.store.ListObservations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	critical := evidence.CriticalSet(observations)
	if critical.CVIntra == nil {
		return nil, fmt.Errorf("project %s: %s: %w", projectID, domain.ParamCVIntra, domain.ErrCriticalParameterMissing)
	}

	design := s.build(*critical.CVIntra, critical, "", bioeq.DefaultSampleSizeParams())
	design.RecruitmentSize = design.SampleSize

	if err := s.store.SaveDesign(ctx, projectID, design); err != nil {
		return nil, fmt.Errorf("failed to save design: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id":  projectID,
		"design_type": design.DesignType,
		"sample_size": design.SampleSize,
		"cv_intra":    design.CVIntra,
	}).Info("Design generated")

	return design, nil
}

// Calculate builds a design from explicit inputs. Rates are validated before any
// calculation. A desired design is honoured as given. When ProjectID is set the
// result is stored on that project.
func (s *DesignService) Calculate(ctx context.Context, req DesignRequest) (*domain.DesignParameters, error) {
	if err := bioeq.ValidateRates(req.DropoutRate, req.ScreenFailRate); err != nil {
		return nil, err
	}

	params := bioeq.DefaultSampleSizeParams()
	if req.Power != 0 {
		if req.Power <= 0 || req.Power >= 1 {
			return nil, domain.NewValidationError("power", "power must be between 0 and 1", req.Power)
		}
		params.Power = req.Power
	}
	if req.Alpha != 0 {
		if req.Alpha <= 0 || req.Alpha >= 1 {
			return nil, domain.NewValidationError("alpha", "alpha must be between 0 and 1", req.Alpha)
		}
		params.Alpha = req.Alpha
	}
	if math.IsNaN(req.CVIntra) || math.IsInf(req.CVIntra, 0) || req.CVIntra <= 0 {
		return nil, domain.NewValidationError("cv_intra", "intra-subject CV must be a positive percentage", req.CVIntra)
	}
	if err := validateOptionalHours("tmax", req.Tmax); err != nil {
		return nil, err
	}
	if err := validateOptionalHours("t_half", req.THalf); err != nil {
		return nil, err
	}

	var desired domain.DesignType
	if req.DesiredDesign != "" {
		d, err := domain.ParseDesignType(req.DesiredDesign)
		if err != nil {
			return nil, err
		}
		desired = d
	}

	var projectID uuid.UUID
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return nil, domain.NewValidationError("project_id", "invalid project id", req.ProjectID)
		}
		if s.store == nil {
			return nil, fmt.Errorf("design storage is not configured: %w", domain.ErrInvalidInput)
		}
		if _, err := s.store.GetProject(ctx, id); err != nil {
			return nil, err
		}
		projectID = id
	}

	cv := req.CVIntra
	critical := domain.CriticalParameterSet{CVIntra: &cv, Tmax: req.Tmax, THalf: req.THalf}
	design := s.build(cv, critical, desired, params)
	design.DropoutRate = req.DropoutRate
	design.ScreenFailRate = req.ScreenFailRate

	recruitment, err := bioeq.RecruitmentSize(design.SampleSize, req.DropoutRate, req.ScreenFailRate)
	if err != nil {
		return nil, err
	}
	design.RecruitmentSize = recruitment

	if projectID != uuid.Nil {
		if err := s.store.SaveDesign(ctx, projectID, design); err != nil {
			return nil, fmt.Errorf("failed to save design: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"design_type":      design.DesignType,
		"sample_size":      design.SampleSize,
		"recruitment_size": design.RecruitmentSize,
		"cv_intra":         design.CVIntra,
	}).Info("Design calculated")

	return design, nil
}

// build assembles a new design instance. An empty desired design selects the
// recommended one.
func (s *DesignService) build(cv float64, critical domain.CriticalParameterSet, desired domain.DesignType, params bioeq.SampleSizeParams) *domain.DesignParameters {
	designType := desired
	if designType == "" {
		designType = bioeq.ChooseDesignType(cv, critical.THalf)
	}
	sampleSize, designType := bioeq.SampleSizeForDesign(cv, designType, params)

	design := &domain.DesignParameters{
		SampleSize:          sampleSize,
		DesignType:          designType,
		CVIntra:             cv,
		Power:               params.Power,
		Alpha:               params.Alpha,
		DesignExplanation:   bioeq.DesignExplanation(cv, critical.THalf, designType),
		RandomizationScheme: bioeq.RandomizationScheme(designType),
		CriticalParameters:  critical,
		GeneratedAt:         s.now().UTC(),
	}
	if critical.THalf != nil {
		washout := bioeq.WashoutPeriod(*critical.THalf)
		design.WashoutDays = &washout
	}
	if critical.Tmax != nil && critical.THalf != nil {
		design.SamplingPlan = bioeq.BloodSampling(*critical.Tmax, *critical.THalf)
	}
	return design
}

func validateOptionalHours(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return domain.NewValidationError(field, "must be a non-negative number of hours", *v)
	}
	return nil
}
