// Package domain contains the core entities for bioequivalence study planning:
// pharmacokinetic parameter observations mined from literature, the study designs
// derived from them and the regulatory compliance results evaluated on those designs.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Canonical pharmacokinetic parameter names. Every key of an EvidenceMap is one of
// these or an unrecognised name passed through verbatim.
const (
	ParamCVIntra = "CV_intra"
	ParamTmax    = "Tmax"
	ParamTHalf   = "T1/2"
	ParamCmax    = "Cmax"
	ParamAUC     = "AUC"
)

// CriticalParameters lists the parameters whose absence blocks design generation.
var CriticalParameters = []string{ParamCVIntra}

// DesignType represents the bioequivalence study design class
type DesignType string

const (
	DesignCrossover2x2  DesignType = "2x2-crossover"
	DesignReplicate3Way DesignType = "3-way-replicate"
	DesignReplicate4Way DesignType = "4-way-replicate"
	DesignParallel      DesignType = "parallel"
)

// IsValid reports whether d is one of the supported design classes.
func (d DesignType) IsValid() bool {
	switch d {
	case DesignCrossover2x2, DesignReplicate3Way, DesignReplicate4Way, DesignParallel:
		return true
	}
	return false
}

// ParseDesignType converts a user supplied design name into a DesignType.
func ParseDesignType(s string) (DesignType, error) {
	d := DesignType(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", NewValidationError("desired_design", fmt.Sprintf("unsupported design type %q", s), s)
	}
	return d, nil
}

// ExtractionMode narrows what the extraction adapter is asked to look for.
type ExtractionMode string

const (
	ModeGeneral ExtractionMode = "general"
	ModeCVOnly  ExtractionMode = "cv_only"
)

// SortOrder controls literature search ranking.
const (
	SortRelevance = "relevance"
	SortDate      = "pub_date"
)

// SearchQuery describes a literature search request.
type SearchQuery struct {
	Substances []string `json:"substances"`
	MaxResults int      `json:"max_results"`
	Sort       string   `json:"sort,omitempty"`
	FocusTerms []string `json:"focus_terms,omitempty"`
}

// Article is a fetched literature record.
type Article struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// Text returns the title and abstract concatenated for scoring and extraction.
func (a Article) Text() string {
	if a.Title == "" {
		return a.Abstract
	}
	return a.Title + "\n" + a.Abstract
}

// RawCandidate is one untrusted parameter value as returned by an extraction adapter.
// Value and Found keep whatever JSON shape the model produced; nothing downstream of
// validation reads them directly.
type RawCandidate struct {
	Value     interface{} `json:"value"`
	Unit      *string     `json:"unit,omitempty"`
	Found     interface{} `json:"found"`
	Converted bool        `json:"converted,omitempty"`
}

// ParameterObservation is a single accepted measurement of a pharmacokinetic parameter.
// Observations are values; the EvidenceMap hands out copies only.
type ParameterObservation struct {
	Name        string  `json:"canonical_name"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit,omitempty"`
	SourceID    string  `json:"source_id,omitempty"`
	SourceTitle string  `json:"source_title,omitempty"`
	IsReliable  bool    `json:"is_reliable"`
}

// CriticalParameterSet is the transient projection of an EvidenceMap that design
// generation depends on. Nil means no reliable observation was found.
type CriticalParameterSet struct {
	CVIntra *float64 `json:"CV_intra"`
	Tmax    *float64 `json:"Tmax"`
	THalf   *float64 `json:"T1/2"`
}

// Sampling plan point names in schedule order.
const (
	SamplePredose = "predose"
	SampleEarly   = "post_dose_early"
	SamplePeak    = "post_dose_peak"
	SampleLate1   = "post_dose_late_1"
	SampleLate2   = "post_dose_late_2"
	SampleLate3   = "post_dose_late_3"
)

// SamplingPointOrder lists sampling plan keys in chronological order.
var SamplingPointOrder = []string{SamplePredose, SampleEarly, SamplePeak, SampleLate1, SampleLate2, SampleLate3}

// DesignParameters is an immutable study design produced by one design generation run.
type DesignParameters struct {
	SampleSize          int                  `json:"sample_size"`
	RecruitmentSize     int                  `json:"recruitment_size"`
	DesignType          DesignType           `json:"design_type"`
	CVIntra             float64              `json:"cv_intra"`
	Power               float64              `json:"power"`
	Alpha               float64              `json:"alpha"`
	DropoutRate         float64              `json:"dropout_rate"`
	ScreenFailRate      float64              `json:"screen_fail_rate"`
	WashoutDays         *float64             `json:"washout_days,omitempty"`
	SamplingPlan        map[string]float64   `json:"sampling_plan,omitempty"`
	DesignExplanation   string               `json:"design_explanation"`
	RandomizationScheme string               `json:"randomization_scheme"`
	CriticalParameters  CriticalParameterSet `json:"critical_parameters"`
	GeneratedAt         time.Time            `json:"generated_at"`
}

// Compliance statuses reported alongside the boolean verdict.
const (
	ComplianceApproved = "APPROVED"
	ComplianceRejected = "REJECTED WITH ISSUES"
)

// DesignSummary is the short design recap attached to a compliance result.
type DesignSummary struct {
	SampleSize  int        `json:"sample_size"`
	DesignType  DesignType `json:"design_type"`
	CVIntra     float64    `json:"cv_intra"`
	WashoutDays *float64   `json:"washout_days,omitempty"`
}

// ComplianceResult is the outcome of the regulatory rule check.
type ComplianceResult struct {
	IsCompliant    bool          `json:"is_compliant"`
	CriticalIssues []string      `json:"critical_issues"`
	Warnings       []string      `json:"warnings"`
	Status         string        `json:"status"`
	DesignSummary  DesignSummary `json:"design_summary"`
}

// ParameterStats holds descriptive statistics over the observations of one parameter.
type ParameterStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// AggregationSummary describes an evidence aggregation run.
type AggregationSummary struct {
	ArticlesProcessed   int                       `json:"articles_processed"`
	ParametersFound     map[string]int            `json:"parameters_found"`
	CriticalCoverage    map[string]bool           `json:"critical_coverage"`
	MissingCritical     []string                  `json:"missing_critical"`
	EnrichmentPerformed bool                      `json:"enrichment_performed"`
	EnrichmentArticles  int                       `json:"enrichment_articles"`
	ParameterStats      map[string]ParameterStats `json:"parameter_stats,omitempty"`
	Timestamp           time.Time                 `json:"timestamp"`
}
