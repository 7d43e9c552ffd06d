package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/database"
	"github.com/bioeq-design-server/internal/domain"
)

// PostgresStore implements domain.ProjectStore on PostgreSQL. The schema is created
// by the migrations in internal/database.
type PostgresStore struct {
	db  *database.DB
	log *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL project store
func NewPostgresStore(db *database.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger,
	}
}

// CreateProject inserts a new project
func (s *PostgresStore) CreateProject(ctx context.Context, project *domain.Project) error {
	substances, err := encodeSubstances(project.AdditionalSubstances)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (
			project_id, inn_en, inn_ru, dosage, shape, drug_name_t, drug_name_r,
			additional_substances, status, status_reason, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err = s.db.Pool.Exec(ctx, query,
		project.ID,
		project.INNEn,
		project.INNRu,
		project.Dosage,
		project.Form,
		project.DrugNameT,
		project.DrugNameR,
		substances,
		string(project.Status),
		project.StatusReason,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"project_id": project.ID,
			"error":      err,
		}).Error("Failed to create project")
		return fmt.Errorf("creating project: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"project_id": project.ID,
		"inn_en":     project.INNEn,
	}).Info("Project created")
	return nil
}

// GetProject retrieves a project by its ID
func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT project_id, inn_en, inn_ru, dosage, shape, drug_name_t, drug_name_r,
			   additional_substances, status, status_reason, search_results,
			   design_parameters, regulatory_check, report_key, created_at, updated_at
		FROM projects
		WHERE project_id = $1`

	var (
		project                           domain.Project
		status                            string
		substances, search, design, check []byte
	)
	err := s.db.Pool.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.INNEn,
		&project.INNRu,
		&project.Dosage,
		&project.Form,
		&project.DrugNameT,
		&project.DrugNameR,
		&substances,
		&status,
		&project.StatusReason,
		&search,
		&design,
		&check,
		&project.ReportKey,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, domain.ErrProjectNotFound)
		}
		s.log.WithFields(logrus.Fields{
			"project_id": id,
			"error":      err,
		}).Error("Failed to get project")
		return nil, fmt.Errorf("getting project: %w", err)
	}

	project.Status = domain.ProjectStatus(status)
	if project.AdditionalSubstances, err = decodeSubstances(substances); err != nil {
		return nil, fmt.Errorf("project %s: %w", id, err)
	}
	if project.SearchSummary, err = fromJSON[domain.AggregationSummary](search); err != nil {
		return nil, err
	}
	if project.Design, err = fromJSON[domain.DesignParameters](design); err != nil {
		return nil, err
	}
	if project.Compliance, err = fromJSON[domain.ComplianceResult](check); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateStatus sets the pipeline status and its reason
func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus, reason string) error {
	return s.update(ctx, id, "status", `UPDATE projects SET status = $2, status_reason = $3, updated_at = $4 WHERE project_id = $1`,
		string(status), reason, time.Now().UTC())
}

// SaveSearchSummary stores the aggregation summary
func (s *PostgresStore) SaveSearchSummary(ctx context.Context, id uuid.UUID, summary *domain.AggregationSummary) error {
	data, err := toJSON(summary)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "search_results", `UPDATE projects SET search_results = $2, updated_at = $3 WHERE project_id = $1`,
		data, time.Now().UTC())
}

// SaveDesign stores the generated design, replacing any earlier one
func (s *PostgresStore) SaveDesign(ctx context.Context, id uuid.UUID, design *domain.DesignParameters) error {
	data, err := toJSON(design)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "design_parameters", `UPDATE projects SET design_parameters = $2, updated_at = $3 WHERE project_id = $1`,
		data, time.Now().UTC())
}

// SaveCompliance stores the regulatory check result
func (s *PostgresStore) SaveCompliance(ctx context.Context, id uuid.UUID, result *domain.ComplianceResult) error {
	data, err := toJSON(result)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "regulatory_check", `UPDATE projects SET regulatory_check = $2, updated_at = $3 WHERE project_id = $1`,
		data, time.Now().UTC())
}

// SaveReportKey records where the rendered report was stored
func (s *PostgresStore) SaveReportKey(ctx context.Context, id uuid.UUID, key string) error {
	return s.update(ctx, id, "report_key", `UPDATE projects SET report_key = $2, updated_at = $3 WHERE project_id = $1`,
		key, time.Now().UTC())
}

func (s *PostgresStore) update(ctx context.Context, id uuid.UUID, column, query string, args ...interface{}) error {
	tag, err := s.db.Pool.Exec(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"project_id": id,
			"column":     column,
			"error":      err,
		}).Error("Failed to update project")
		return fmt.Errorf("updating project %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrProjectNotFound)
	}
	return nil
}

var observationColumns = []string{
	"param_id", "project_id", "parameter", "value", "unit",
	"source_pmid", "source_title", "is_reliable", "created_at",
}

// AddObservations appends observations to a project in order
func (s *PostgresStore) AddObservations(ctx context.Context, projectID uuid.UUID, observations []domain.ParameterObservation) error {
	if len(observations) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := pgx.CopyFromSlice(len(observations), func(i int) ([]interface{}, error) {
		o := observations[i]
		return []interface{}{
			uuid.New(), projectID, o.Name, formatValue(o.Value), o.Unit,
			o.SourceID, o.SourceTitle, o.IsReliable, now,
		}, nil
	})

	count, err := s.db.Pool.CopyFrom(ctx, pgx.Identifier{"drug_parameters"}, observationColumns, rows)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"project_id": projectID,
			"count":      len(observations),
			"error":      err,
		}).Error("Failed to store observations")
		return fmt.Errorf("storing observations: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"project_id": projectID,
		"count":      count,
	}).Debug("Observations stored")
	return nil
}

// ListObservations returns a project's observations in insertion order. Rows whose
// value is not a finite number are skipped.
func (s *PostgresStore) ListObservations(ctx context.Context, projectID uuid.UUID) ([]domain.ParameterObservation, error) {
	query := `
		SELECT parameter, value, unit, source_pmid, source_title, is_reliable
		FROM drug_parameters
		WHERE project_id = $1
		ORDER BY param_seq`

	rows, err := s.db.Pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.ParameterObservation
	for rows.Next() {
		o, ok, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		if ok {
			observations = append(observations, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating observations: %w", err)
	}
	return observations, nil
}

// Close closes the underlying pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// scanner is implemented by pgx.Row, pgx.Rows, sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row scanner) (domain.ParameterObservation, bool, error) {
	var (
		o     domain.ParameterObservation
		value string
	)
	if err := row.Scan(&o.Name, &value, &o.Unit, &o.SourceID, &o.SourceTitle, &o.IsReliable); err != nil {
		return o, false, err
	}
	v, ok := parseValue(value)
	o.Value = v
	return o, ok, nil
}
