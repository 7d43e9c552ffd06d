package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus tracks where a study planning project is in the pipeline
type ProjectStatus string

const (
	StatusSearching             ProjectStatus = "searching"
	StatusSearchingCompleted    ProjectStatus = "searching_completed"
	StatusSearchFailed          ProjectStatus = "search_failed"
	StatusDesignFailed          ProjectStatus = "design_failed"
	StatusRegulatoryCheckFailed ProjectStatus = "regulatory_check_failed"
	StatusCompleted             ProjectStatus = "completed"
	StatusFailed                ProjectStatus = "failed"
)

// IsTerminal reports whether the pipeline will not change the status any further.
func (s ProjectStatus) IsTerminal() bool {
	switch s {
	case StatusSearchFailed, StatusDesignFailed, StatusRegulatoryCheckFailed, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ProjectInput is the request that starts a new project.
type ProjectInput struct {
	INNEn                string   `json:"inn_en"`
	INNRu                string   `json:"inn_ru,omitempty"`
	Dosage               string   `json:"dosage,omitempty"`
	Form                 string   `json:"form,omitempty"`
	DrugNameT            string   `json:"drug_name_t,omitempty"`
	DrugNameR            string   `json:"drug_name_r,omitempty"`
	AdditionalSubstances []string `json:"additional_substances,omitempty"`
}

// Validate checks the fields required to run a literature search.
func (in ProjectInput) Validate() error {
	if in.INNEn == "" {
		return NewValidationError("inn_en", "international nonproprietary name is required", in.INNEn)
	}
	return nil
}

// Project is a single study planning run and everything it produced.
type Project struct {
	ID                   uuid.UUID           `json:"project_id"`
	INNEn                string              `json:"inn_en"`
	INNRu                string              `json:"inn_ru,omitempty"`
	Dosage               string              `json:"dosage,omitempty"`
	Form                 string              `json:"form,omitempty"`
	DrugNameT            string              `json:"drug_name_t,omitempty"`
	DrugNameR            string              `json:"drug_name_r,omitempty"`
	AdditionalSubstances []string            `json:"additional_substances,omitempty"`
	Status               ProjectStatus       `json:"status"`
	StatusReason         string              `json:"status_reason,omitempty"`
	SearchSummary        *AggregationSummary `json:"search_results,omitempty"`
	Design               *DesignParameters   `json:"design_parameters,omitempty"`
	Compliance           *ComplianceResult   `json:"regulatory_check,omitempty"`
	ReportKey            string              `json:"report_key,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// NewProject creates a project in the searching state.
func NewProject(in ProjectInput) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:                   uuid.New(),
		INNEn:                in.INNEn,
		INNRu:                in.INNRu,
		Dosage:               in.Dosage,
		Form:                 in.Form,
		DrugNameT:            in.DrugNameT,
		DrugNameR:            in.DrugNameR,
		AdditionalSubstances: in.AdditionalSubstances,
		Status:               StatusSearching,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Substances returns the primary substance followed by the alternatives.
func (p *Project) Substances() []string {
	out := []string{p.INNEn}
	if p.INNRu != "" && p.INNRu != p.INNEn {
		out = append(out, p.INNRu)
	}
	for _, s := range p.AdditionalSubstances {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Metadata returns the descriptive fields consumed by report rendering.
func (p *Project) Metadata() ProjectMetadata {
	return ProjectMetadata{
		ProjectID: p.ID.String(),
		INNEn:     p.INNEn,
		INNRu:     p.INNRu,
		Dosage:    p.Dosage,
		Form:      p.Form,
		DrugNameT: p.DrugNameT,
		DrugNameR: p.DrugNameR,
	}
}

// ProjectMetadata describes the drug under study.
type ProjectMetadata struct {
	ProjectID string `json:"project_id"`
	INNEn     string `json:"inn_en"`
	INNRu     string `json:"inn_ru,omitempty"`
	Dosage    string `json:"dosage,omitempty"`
	Form      string `json:"form,omitempty"`
	DrugNameT string `json:"drug_name_t,omitempty"`
	DrugNameR string `json:"drug_name_r,omitempty"`
}
