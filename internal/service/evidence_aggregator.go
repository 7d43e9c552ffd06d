package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/pkg/evidence"
)

// DefaultFocusTerms narrow the enrichment search to studies reporting intra-subject variability.
var DefaultFocusTerms = []string{
	"intra-subject variability",
	"within-subject CV",
	"bioequivalence crossover",
}

// AggregatorConfig bounds the literature passes of an aggregation run
type AggregatorConfig struct {
	MaxArticles       int
	EnrichmentMinimum int
	EnrichmentTopN    int
	MaxConcurrency    int
	FocusTerms        []string
}

func (c *AggregatorConfig) setDefaults() {
	if c.MaxArticles <= 0 {
		c.MaxArticles = 10
	}
	if c.EnrichmentMinimum <= 0 {
		c.EnrichmentMinimum = 15
	}
	if c.EnrichmentTopN <= 0 {
		c.EnrichmentTopN = 10
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if len(c.FocusTerms) == 0 {
		c.FocusTerms = DefaultFocusTerms
	}
}

// AggregationResult is the evidence gathered for one substance and its summary
type AggregationResult struct {
	Evidence     *domain.EvidenceMap
	Summary      *domain.AggregationSummary
	ProcessedIDs []string
}

// EvidenceAggregator searches the literature, extracts parameter candidates from each
// abstract and accumulates the accepted observations. When the critical parameter is
// still missing it runs one targeted enrichment pass.
type EvidenceAggregator struct {
	source    domain.LiteratureSource
	extractor domain.Extractor
	config    AggregatorConfig
	logger    *logrus.Logger
}

// NewEvidenceAggregator creates a new evidence aggregator
func NewEvidenceAggregator(source domain.LiteratureSource, extractor domain.Extractor, config AggregatorConfig, logger *logrus.Logger) *EvidenceAggregator {
	config.setDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	return &EvidenceAggregator{
		source:    source,
		extractor: extractor,
		config:    config,
		logger:    logger,
	}
}

// Aggregate gathers evidence for substances; the first entry is the primary substance.
// It fails with ErrNoArticlesFound or ErrFetchFailed when the literature stage yields
// nothing usable. A critical parameter still missing after enrichment is reported in
// the summary, not as an error.
func (a *EvidenceAggregator) Aggregate(ctx context.Context, substances []string) (*AggregationResult, error) {
	substances = cleanSubstances(substances)
	if len(substances) == 0 {
		return nil, domain.NewValidationError("substances", "primary substance is required", "")
	}
	primary := substances[0]

	logger := a.logger.WithField("substance", primary)
	logger.Info("Starting evidence aggregation")

	ids, err := a.source.Search(ctx, domain.SearchQuery{
		Substances: substances,
		MaxResults: a.config.MaxArticles,
	})
	if err != nil {
		return nil, fmt.Errorf("literature search for %s: %w: %w", primary, domain.ErrNoArticlesFound, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("literature search for %s: %w", primary, domain.ErrNoArticlesFound)
	}

	articles, err := a.source.FetchAbstracts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching %d abstracts: %w: %w", len(ids), domain.ErrFetchFailed, err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("fetching %d abstracts: %w", len(ids), domain.ErrFetchFailed)
	}

	// ids that search returned but fetch could not deliver stay eligible for enrichment
	seen := make(map[string]bool, len(articles))
	var processed []string
	for _, article := range articles {
		seen[article.ID] = true
		processed = append(processed, article.ID)
	}

	batches, err := a.extractAll(ctx, articles, primary, domain.ModeGeneral)
	if err != nil {
		return nil, err
	}
	evidenceMap := domain.NewEvidenceMap()
	for _, batch := range batches {
		evidenceMap.Merge(batch)
	}

	summary := &domain.AggregationSummary{}
	if !evidenceMap.Has(domain.ParamCVIntra) {
		enriched, err := a.enrich(ctx, substances, seen, evidenceMap)
		if err != nil {
			return nil, err
		}
		summary.EnrichmentPerformed = true
		summary.EnrichmentArticles = len(enriched)
		processed = append(processed, enriched...)
	}

	summary.ArticlesProcessed = len(processed)
	summary.ParametersFound = evidenceMap.Counts()
	summary.CriticalCoverage = make(map[string]bool, len(domain.CriticalParameters))
	summary.MissingCritical = []string{}
	for _, name := range domain.CriticalParameters {
		covered := evidenceMap.Has(name)
		summary.CriticalCoverage[name] = covered
		if !covered {
			summary.MissingCritical = append(summary.MissingCritical, name)
		}
	}
	summary.ParameterStats = evidence.Describe(evidenceMap)
	summary.Timestamp = time.Now().UTC()

	logger.WithFields(logrus.Fields{
		"articles_processed": summary.ArticlesProcessed,
		"observations":       evidenceMap.Len(),
		"enrichment":         summary.EnrichmentPerformed,
		"missing_critical":   summary.MissingCritical,
	}).Info("Evidence aggregation completed")

	return &AggregationResult{
		Evidence:     evidenceMap,
		Summary:      summary,
		ProcessedIDs: processed,
	}, nil
}

// enrich re-queries with focus terms, ranks unseen articles by relevance and extracts
// intra-subject CV from the best of them. Failures of this pass are logged and leave
// the evidence unchanged. It returns the identifiers it processed.
func (a *EvidenceAggregator) enrich(ctx context.Context, substances []string, seen map[string]bool, evidenceMap *domain.EvidenceMap) ([]string, error) {
	logger := a.logger.WithField("substance", substances[0])
	logger.Info("Critical parameter missing, running enrichment search")

	maxResults := a.config.MaxArticles
	if maxResults < a.config.EnrichmentMinimum {
		maxResults = a.config.EnrichmentMinimum
	}

	ids, err := a.source.Search(ctx, domain.SearchQuery{
		Substances: substances,
		MaxResults: maxResults,
		Sort:       domain.SortRelevance,
		FocusTerms: a.config.FocusTerms,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.WithError(err).Warn("Enrichment search failed")
		return nil, nil
	}

	var fresh []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		logger.Info("Enrichment search returned no unseen articles")
		return nil, nil
	}

	articles, err := a.source.FetchAbstracts(ctx, fresh)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.WithError(err).Warn("Enrichment fetch failed")
		return nil, nil
	}

	ranked := RankByRelevance(articles)
	if len(ranked) > a.config.EnrichmentTopN {
		ranked = ranked[:a.config.EnrichmentTopN]
	}

	batches, err := a.extractAll(ctx, ranked, substances[0], domain.ModeCVOnly)
	if err != nil {
		return nil, err
	}
	for _, batch := range batches {
		evidenceMap.Merge(batch)
	}

	processed := make([]string, 0, len(ranked))
	for _, article := range ranked {
		processed = append(processed, article.ID)
	}
	logger.WithFields(logrus.Fields{
		"candidates": len(articles),
		"processed":  len(processed),
		"found":      evidenceMap.Has(domain.ParamCVIntra),
	}).Info("Enrichment pass completed")
	return processed, nil
}

// RankByRelevance orders articles by descending relevance score; ties keep source order.
func RankByRelevance(articles []domain.Article) []domain.Article {
	ranked := make([]domain.Article, len(articles))
	copy(ranked, articles)
	scores := make(map[string]int, len(ranked))
	for _, article := range ranked {
		scores[article.ID] = evidence.Score(article.Title, article.Abstract)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})
	return ranked
}

// extractAll runs extraction for every article with bounded concurrency. Each article
// writes only its own batch; batches are returned in article order.
func (a *EvidenceAggregator) extractAll(ctx context.Context, articles []domain.Article, substance string, mode domain.ExtractionMode) ([][]domain.ParameterObservation, error) {
	batches := make([][]domain.ParameterObservation, len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.MaxConcurrency)
	for i, article := range articles {
		g.Go(func() error {
			batches[i] = a.extractArticle(gctx, article, substance, mode)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evidence extraction interrupted: %w", err)
	}
	return batches, nil
}

// extractArticle returns the accepted observations of one article. Extraction errors
// skip the article.
func (a *EvidenceAggregator) extractArticle(ctx context.Context, article domain.Article, substance string, mode domain.ExtractionMode) []domain.ParameterObservation {
	if strings.TrimSpace(article.Abstract) == "" {
		return nil
	}

	logger := a.logger.WithFields(logrus.Fields{
		"pmid": article.ID,
		"mode": mode,
	})

	candidates, err := a.extractor.Extract(ctx, article.Text(), substance, mode)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		logger.WithError(err).Warn("Parameter extraction failed, skipping article")
		return nil
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	var batch []domain.ParameterObservation
	for _, raw := range names {
		name := evidence.Canonicalize(raw)
		if name == "" {
			continue
		}
		if mode == domain.ModeCVOnly && name != domain.ParamCVIntra {
			continue
		}
		candidate, ok := evidence.Validate(candidates[raw])
		if !ok {
			logger.WithField("parameter", raw).Debug("Rejected extraction candidate")
			continue
		}
		batch = append(batch, candidate.Observation(name, article))
	}

	if len(batch) > 0 {
		logger.WithField("accepted", len(batch)).Debug("Extracted parameters")
	}
	return batch
}

func cleanSubstances(substances []string) []string {
	out := make([]string, 0, len(substances))
	seen := make(map[string]bool, len(substances))
	for _, s := range substances {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
