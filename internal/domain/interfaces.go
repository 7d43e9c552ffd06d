package domain

import (
	"context"

	"github.com/google/uuid"
)

// LiteratureSource searches a bibliographic database and fetches abstracts.
// An empty result is a valid outcome, not an error.
type LiteratureSource interface {
	Search(ctx context.Context, query SearchQuery) ([]string, error)
	FetchAbstracts(ctx context.Context, ids []string) ([]Article, error)
}

// Extractor turns free text into named parameter candidates. Its output is untrusted.
type Extractor interface {
	Extract(ctx context.Context, text, substance string, mode ExtractionMode) (map[string]*RawCandidate, error)
}

// ProjectStore persists projects, their observations and pipeline outputs
type ProjectStore interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ProjectStatus, reason string) error
	SaveSearchSummary(ctx context.Context, id uuid.UUID, summary *AggregationSummary) error
	SaveDesign(ctx context.Context, id uuid.UUID, design *DesignParameters) error
	SaveCompliance(ctx context.Context, id uuid.UUID, result *ComplianceResult) error
	SaveReportKey(ctx context.Context, id uuid.UUID, key string) error
	AddObservations(ctx context.Context, projectID uuid.UUID, observations []ParameterObservation) error
	ListObservations(ctx context.Context, projectID uuid.UUID) ([]ParameterObservation, error)
	Close() error
}

// ConfigManager handles application configuration
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	Validate() error
}
