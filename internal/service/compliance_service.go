package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/domain"
)

// ComplianceService runs the regulatory check for stored designs
type ComplianceService struct {
	store  domain.ProjectStore
	logger *logrus.Logger
}

// NewComplianceService creates a new compliance service
func NewComplianceService(store domain.ProjectStore, logger *logrus.Logger) *ComplianceService {
	return &ComplianceService{store: store, logger: logger}
}

// CheckProject evaluates and stores the compliance result of a project's design.
func (s *ComplianceService) CheckProject(ctx context.Context, projectID uuid.UUID) (*domain.ComplianceResult, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Design == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrDesignNotYetGenerated)
	}

	result := CheckDesign(project.Design)
	if err := s.store.SaveCompliance(ctx, projectID, result); err != nil {
		return nil, fmt.Errorf("failed to save compliance result: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id":      projectID,
		"status":          result.Status,
		"critical_issues": len(result.CriticalIssues),
		"warnings":        len(result.Warnings),
	}).Info("Regulatory check completed")

	return result, nil
}
