package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/bioeq-design-server/internal/domain"
)

// SQLiteStore implements domain.ProjectStore using SQLite. It is the default store
// for single-user deployments.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteStore creates a new SQLite project store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("SQLite project store opened")

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		log:    logger,
	}, nil
}

// createSchema mirrors the PostgreSQL migrations with SQLite column types.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		inn_en TEXT NOT NULL,
		inn_ru TEXT NOT NULL DEFAULT '',
		dosage TEXT NOT NULL DEFAULT '',
		shape TEXT NOT NULL DEFAULT '',
		drug_name_t TEXT NOT NULL DEFAULT '',
		drug_name_r TEXT NOT NULL DEFAULT '',
		additional_substances TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		status_reason TEXT NOT NULL DEFAULT '',
		search_results TEXT,
		design_parameters TEXT,
		regulatory_check TEXT,
		report_key TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS drug_parameters (
		param_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(project_id) ON DELETE CASCADE,
		parameter TEXT NOT NULL,
		value TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		source_pmid TEXT NOT NULL DEFAULT '',
		source_title TEXT NOT NULL DEFAULT '',
		is_reliable INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
	CREATE INDEX IF NOT EXISTS idx_drug_parameters_project ON drug_parameters(project_id);
	`

	_, err := db.Exec(schema)
	return err
}

// CreateProject inserts a new project
func (s *SQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	substances, err := encodeSubstances(project.AdditionalSubstances)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (
			project_id, inn_en, inn_ru, dosage, shape, drug_name_t, drug_name_r,
			additional_substances, status, status_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		project.ID.String(),
		project.INNEn,
		project.INNRu,
		project.Dosage,
		project.Form,
		project.DrugNameT,
		project.DrugNameR,
		string(substances),
		string(project.Status),
		project.StatusReason,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by its ID
func (s *SQLiteStore) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, inn_en, inn_ru, dosage, shape, drug_name_t, drug_name_r,
			   additional_substances, status, status_reason, search_results,
			   design_parameters, regulatory_check, report_key, created_at, updated_at
		FROM projects
		WHERE project_id = ?
	`, id.String())

	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func scanProject(row scanner) (*domain.Project, error) {
	var (
		project                    domain.Project
		id, status, substances     string
		search, design, compliance sql.NullString
	)
	err := row.Scan(
		&id, &project.INNEn, &project.INNRu, &project.Dosage, &project.Form,
		&project.DrugNameT, &project.DrugNameR, &substances, &status,
		&project.StatusReason, &search, &design, &compliance,
		&project.ReportKey, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if project.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid project id %q: %w", id, err)
	}
	project.Status = domain.ProjectStatus(status)
	if project.AdditionalSubstances, err = decodeSubstances([]byte(substances)); err != nil {
		return nil, fmt.Errorf("project %s: %w", project.ID, err)
	}
	if project.SearchSummary, err = fromJSON[domain.AggregationSummary]([]byte(search.String)); err != nil {
		return nil, err
	}
	if project.Design, err = fromJSON[domain.DesignParameters]([]byte(design.String)); err != nil {
		return nil, err
	}
	if project.Compliance, err = fromJSON[domain.ComplianceResult]([]byte(compliance.String)); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateStatus sets the pipeline status and its reason
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProjectStatus, reason string) error {
	return s.update(ctx, id, "UPDATE projects SET status = ?, status_reason = ?, updated_at = ? WHERE project_id = ?",
		string(status), reason, time.Now().UTC())
}

// SaveSearchSummary stores the aggregation summary
func (s *SQLiteStore) SaveSearchSummary(ctx context.Context, id uuid.UUID, summary *domain.AggregationSummary) error {
	data, err := toJSON(summary)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "UPDATE projects SET search_results = ?, updated_at = ? WHERE project_id = ?",
		nullable(data), time.Now().UTC())
}

// SaveDesign stores the generated design, replacing any earlier one
func (s *SQLiteStore) SaveDesign(ctx context.Context, id uuid.UUID, design *domain.DesignParameters) error {
	data, err := toJSON(design)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "UPDATE projects SET design_parameters = ?, updated_at = ? WHERE project_id = ?",
		nullable(data), time.Now().UTC())
}

// SaveCompliance stores the regulatory check result
func (s *SQLiteStore) SaveCompliance(ctx context.Context, id uuid.UUID, result *domain.ComplianceResult) error {
	data, err := toJSON(result)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "UPDATE projects SET regulatory_check = ?, updated_at = ? WHERE project_id = ?",
		nullable(data), time.Now().UTC())
}

// SaveReportKey records where the rendered report was stored
func (s *SQLiteStore) SaveReportKey(ctx context.Context, id uuid.UUID, key string) error {
	return s.update(ctx, id, "UPDATE projects SET report_key = ?, updated_at = ? WHERE project_id = ?",
		key, time.Now().UTC())
}

// update runs a single-row UPDATE whose last placeholder is the project id.
func (s *SQLiteStore) update(ctx context.Context, id uuid.UUID, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, append(args, id.String())...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrProjectNotFound)
	}
	return nil
}

// AddObservations appends observations to a project in a single transaction
func (s *SQLiteStore) AddObservations(ctx context.Context, projectID uuid.UUID, observations []domain.ParameterObservation) error {
	if len(observations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO drug_parameters (
			param_id, project_id, parameter, value, unit,
			source_pmid, source_title, is_reliable, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, o := range observations {
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), projectID.String(), o.Name, formatValue(o.Value), o.Unit,
			o.SourceID, o.SourceTitle, o.IsReliable, now,
		); err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}
	return nil
}

// ListObservations returns a project's observations in insertion order
func (s *SQLiteStore) ListObservations(ctx context.Context, projectID uuid.UUID) ([]domain.ParameterObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT parameter, value, unit, source_pmid, source_title, is_reliable
		FROM drug_parameters
		WHERE project_id = ?
		ORDER BY rowid
	`, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.ParameterObservation
	for rows.Next() {
		o, ok, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if !ok {
			s.log.WithField("parameter", o.Name).Warn("Skipping stored observation with non-numeric value")
			continue
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(data []byte) interface{} {
	if data == nil {
		return nil
	}
	return string(data)
}
