package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/domain"
)

// ReportGenerator renders and stores the study synopsis of a project
type ReportGenerator interface {
	Generate(ctx context.Context, projectID uuid.UUID) (string, error)
}

// PipelineRunner drives a project from literature search to compliance check and
// records a terminal status for every outcome.
type PipelineRunner struct {
	store      domain.ProjectStore
	aggregator *EvidenceAggregator
	designs    *DesignService
	compliance *ComplianceService
	reports    ReportGenerator
	logger     *logrus.Logger

	wg sync.WaitGroup
}

// NewPipelineRunner creates a new pipeline runner. reports may be nil.
func NewPipelineRunner(
	store domain.ProjectStore,
	aggregator *EvidenceAggregator,
	designs *DesignService,
	compliance *ComplianceService,
	reports ReportGenerator,
	logger *logrus.Logger,
) *PipelineRunner {
	return &PipelineRunner{
		store:      store,
		aggregator: aggregator,
		designs:    designs,
		compliance: compliance,
		reports:    reports,
		logger:     logger,
	}
}

// Start creates a project and runs the pipeline for it in the background.
func (p *PipelineRunner) Start(ctx context.Context, input domain.ProjectInput) (*domain.Project, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	project := domain.NewProject(input)
	if err := p.store.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"project_id": project.ID,
		"inn_en":     project.INNEn,
	}).Info("Project created, starting pipeline")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// The request context ends with the response; the run outlives it.
		_ = p.Run(context.WithoutCancel(ctx), project.ID)
	}()

	return project, nil
}

// Wait blocks until every background run has finished.
func (p *PipelineRunner) Wait() {
	p.wg.Wait()
}

// Run executes the pipeline for an existing project. Stage failures are stored as the
// project's terminal status and returned; a panic is recovered and stored as failed.
func (p *PipelineRunner) Run(ctx context.Context, projectID uuid.UUID) (err error) {
	logger := p.logger.WithField("project_id", projectID)

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Pipeline panicked")
			err = fmt.Errorf("pipeline panic: %v", r)
			p.setStatus(ctx, projectID, domain.StatusFailed, err.Error())
		}
	}()

	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	result, err := p.aggregator.Aggregate(ctx, project.Substances())
	if err != nil {
		status := domain.StatusFailed
		if errors.Is(err, domain.ErrNoArticlesFound) || errors.Is(err, domain.ErrFetchFailed) {
			status = domain.StatusSearchFailed
		}
		return p.fail(ctx, logger, projectID, status, "literature search", err)
	}

	if err := p.store.AddObservations(ctx, projectID, result.Evidence.All()); err != nil {
		return p.fail(ctx, logger, projectID, domain.StatusFailed, "saving observations", err)
	}
	if err := p.store.SaveSearchSummary(ctx, projectID, result.Summary); err != nil {
		return p.fail(ctx, logger, projectID, domain.StatusFailed, "saving search summary", err)
	}
	p.setStatus(ctx, projectID, domain.StatusSearchingCompleted, "")

	if _, err := p.designs.GenerateDesign(ctx, projectID); err != nil {
		status := domain.StatusFailed
		if errors.Is(err, domain.ErrCriticalParameterMissing) {
			status = domain.StatusDesignFailed
		}
		return p.fail(ctx, logger, projectID, status, "design generation", err)
	}

	if _, err := p.compliance.CheckProject(ctx, projectID); err != nil {
		return p.fail(ctx, logger, projectID, domain.StatusRegulatoryCheckFailed, "regulatory check", err)
	}

	p.setStatus(ctx, projectID, domain.StatusCompleted, "")
	logger.Info("Pipeline completed")

	if p.reports != nil {
		if key, err := p.reports.Generate(ctx, projectID); err != nil {
			logger.WithError(err).Warn("Report generation failed")
		} else {
			logger.WithField("report_key", key).Info("Report generated")
		}
	}
	return nil
}

func (p *PipelineRunner) fail(ctx context.Context, logger *logrus.Entry, projectID uuid.UUID, status domain.ProjectStatus, stage string, err error) error {
	logger.WithFields(logrus.Fields{
		"stage":  stage,
		"status": status,
		"error":  err,
	}).Warn("Pipeline stage failed")
	p.setStatus(ctx, projectID, status, fmt.Sprintf("%s: %v", stage, err))
	return err
}

func (p *PipelineRunner) setStatus(ctx context.Context, projectID uuid.UUID, status domain.ProjectStatus, reason string) {
	if err := p.store.UpdateStatus(ctx, projectID, status, reason); err != nil {
		p.logger.WithFields(logrus.Fields{
			"project_id": projectID,
			"status":     status,
			"error":      err,
		}).Error("Failed to update project status")
	}
}
