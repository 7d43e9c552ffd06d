package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func f64(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

// fakeSource serves a fixed literature corpus and records every query
type fakeSource struct {
	mu        sync.Mutex
	results   [][]string // returned by successive Search calls
	articles  map[string]domain.Article
	searchErr error
	fetchErr  error
	panicOn   bool
	// withheld ids are missing from the first fetch only
	withheld map[string]bool

	queries []domain.SearchQuery
	fetched [][]string
}

func (f *fakeSource) Search(ctx context.Context, q domain.SearchQuery) ([]string, error) {
	if f.panicOn {
		panic("search exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	i := len(f.queries) - 1
	if i >= len(f.results) {
		return nil, nil
	}
	return f.results[i], nil
}

func (f *fakeSource) FetchAbstracts(ctx context.Context, ids []string) ([]domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ids)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []domain.Article
	for _, id := range ids {
		if len(f.fetched) == 1 && f.withheld[id] {
			continue
		}
		if a, ok := f.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeExtractor answers per article identifier, found by the abstract text
type fakeExtractor struct {
	mu      sync.Mutex
	byText  map[string]map[string]*domain.RawCandidate
	errText map[string]error
	calls   []extractCall
}

type extractCall struct {
	text string
	mode domain.ExtractionMode
}

func (f *fakeExtractor) Extract(ctx context.Context, text, substance string, mode domain.ExtractionMode) (map[string]*domain.RawCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, extractCall{text: text, mode: mode})
	if err, ok := f.errText[text]; ok {
		return nil, err
	}
	return f.byText[text], nil
}

func (f *fakeExtractor) modes() map[domain.ExtractionMode]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[domain.ExtractionMode]int)
	for _, c := range f.calls {
		out[c.mode]++
	}
	return out
}

func found(value interface{}, unit string) *domain.RawCandidate {
	return &domain.RawCandidate{Value: value, Unit: strPtr(unit), Found: true}
}

// memStore is an in-memory ProjectStore
type memStore struct {
	mu           sync.Mutex
	projects     map[uuid.UUID]*domain.Project
	observations map[uuid.UUID][]domain.ParameterObservation
	statuses     []domain.ProjectStatus
}

func newMemStore() *memStore {
	return &memStore{
		projects:     make(map[uuid.UUID]*domain.Project),
		observations: make(map[uuid.UUID][]domain.ParameterObservation),
	}
}

func (m *memStore) CreateProject(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *project
	m.projects[project.ID] = &cp
	return nil
}

func (m *memStore) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrProjectNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) update(id uuid.UUID, fn func(p *domain.Project)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, domain.ErrProjectNotFound)
	}
	fn(p)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus, reason string) error {
	return m.update(id, func(p *domain.Project) {
		p.Status = status
		p.StatusReason = reason
		m.statuses = append(m.statuses, status)
	})
}

func (m *memStore) SaveSearchSummary(ctx context.Context, id uuid.UUID, summary *domain.AggregationSummary) error {
	return m.update(id, func(p *domain.Project) { p.SearchSummary = summary })
}

func (m *memStore) SaveDesign(ctx context.Context, id uuid.UUID, design *domain.DesignParameters) error {
	return m.update(id, func(p *domain.Project) { p.Design = design })
}

func (m *memStore) SaveCompliance(ctx context.Context, id uuid.UUID, result *domain.ComplianceResult) error {
	return m.update(id, func(p *domain.Project) { p.Compliance = result })
}

func (m *memStore) SaveReportKey(ctx context.Context, id uuid.UUID, key string) error {
	return m.update(id, func(p *domain.Project) { p.ReportKey = key })
}

func (m *memStore) AddObservations(ctx context.Context, projectID uuid.UUID, observations []domain.ParameterObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations[projectID] = append(m.observations[projectID], observations...)
	return nil
}

func (m *memStore) ListObservations(ctx context.Context, projectID uuid.UUID) ([]domain.ParameterObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ParameterObservation(nil), m.observations[projectID]...), nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) seed(input domain.ProjectInput, observations ...domain.ParameterObservation) *domain.Project {
	project := domain.NewProject(input)
	m.CreateProject(context.Background(), project)
	m.AddObservations(context.Background(), project.ID, observations)
	return project
}

type fakeReports struct {
	calls int
	err   error
}

func (f *fakeReports) Generate(ctx context.Context, projectID uuid.UUID) (string, error) {
	f.calls++
	return "reports/x.md", f.err
}
