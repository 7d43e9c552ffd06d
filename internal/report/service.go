package report

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/domain"
)

// Formats accepted by Service.Load
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Document is a rendered report ready to serve
type Document struct {
	Key         string `json:"report_key"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Service renders project synopses and keeps them in a Store
type Service struct {
	projects domain.ProjectStore
	store    Store
	renderer *Renderer
	log      *logrus.Logger
}

// NewService creates a report service
func NewService(projects domain.ProjectStore, store Store, logger *logrus.Logger) *Service {
	return &Service{
		projects: projects,
		store:    store,
		renderer: NewRenderer(),
		log:      logger,
	}
}

// Key returns the storage key for a project's synopsis
func Key(project *domain.Project) string {
	inn := unsafeKeyChars.ReplaceAllString(strings.ToLower(project.INNEn), "_")
	inn = strings.Trim(inn, "_")
	if inn == "" {
		inn = "project"
	}
	return fmt.Sprintf("reports/%s_%s.md", inn, project.ID.String()[:8])
}

// Generate renders the synopsis of a project with a design, stores it and records its key.
func (s *Service) Generate(ctx context.Context, projectID uuid.UUID) (string, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if project.Design == nil {
		return "", fmt.Errorf("%s: %w", projectID, domain.ErrDesignNotYetGenerated)
	}

	md, err := s.renderer.Markdown(project.Metadata(), project.Design, project.Compliance)
	if err != nil {
		return "", err
	}

	key := Key(project)
	if err := s.store.Put(ctx, key, []byte(md), "text/markdown; charset=utf-8"); err != nil {
		return "", err
	}
	if err := s.projects.SaveReportKey(ctx, projectID, key); err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"project_id": projectID,
		"report_key": key,
	}).Info("Report generated")
	return key, nil
}

// Load returns a project's stored synopsis as Markdown or HTML.
func (s *Service) Load(ctx context.Context, projectID uuid.UUID, format string) (*Document, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.ReportKey == "" {
		return nil, fmt.Errorf("%s: %w", projectID, ErrReportNotFound)
	}

	data, err := s.store.Get(ctx, project.ReportKey)
	if err != nil {
		return nil, err
	}

	switch format {
	case "", FormatMarkdown:
		return &Document{Key: project.ReportKey, ContentType: "text/markdown; charset=utf-8", Content: string(data)}, nil
	case FormatHTML:
		return &Document{Key: project.ReportKey, ContentType: "text/html; charset=utf-8", Content: s.renderer.HTML(string(data))}, nil
	default:
		return nil, domain.NewValidationError("format", "must be markdown or html", format)
	}
}
