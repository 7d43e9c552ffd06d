package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/internal/report"
	"github.com/bioeq-design-server/internal/service"
)

func projectID(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("project_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("project_id", "must be a UUID", raw)
	}
	return id, nil
}

func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return domain.NewValidationError("body", err.Error(), nil)
	}
	return nil
}

// handleHealth reports liveness plus the state of each backing service
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

// handleStartSearch creates a project and starts its pipeline
func (s *Server) handleStartSearch(c *gin.Context) {
	var input domain.ProjectInput
	if err := bindJSON(c, &input); err != nil {
		s.respondError(c, err)
		return
	}

	project, err := s.deps.Pipeline.Start(c.Request.Context(), input)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"project_id": project.ID,
		"status":     project.Status,
	})
}

// handleSearchResults returns the search status and the observations found so far
func (s *Server) handleSearchResults(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	project, err := s.deps.Projects.GetProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	observations, err := s.deps.Projects.ListObservations(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if observations == nil {
		observations = []domain.ParameterObservation{}
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id":     project.ID,
		"status":         project.Status,
		"status_reason":  project.StatusReason,
		"search_results": project.SearchSummary,
		"parameters":     observations,
	})
}

func (s *Server) handleGetProject(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	project, err := s.deps.Projects.GetProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// handleCalculateDesign sizes a study from explicit inputs
func (s *Server) handleCalculateDesign(c *gin.Context) {
	var req service.DesignRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	design, err := s.deps.Designs.Calculate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, design)
}

// handleGenerateDesign derives the design from the project's stored evidence
func (s *Server) handleGenerateDesign(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	design, err := s.deps.Designs.GenerateDesign(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, design)
}

func (s *Server) handleRegulatoryCheck(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.deps.Compliance.CheckProject(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGenerateReport(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	key, err := s.deps.Reports.Generate(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"project_id": id,
		"report_key": key,
	})
}

// handleGetReport serves the stored synopsis; ?format=html renders it
func (s *Server) handleGetReport(c *gin.Context) {
	id, err := projectID(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	doc, err := s.deps.Reports.Load(c.Request.Context(), id, c.DefaultQuery("format", report.FormatMarkdown))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, doc.ContentType, []byte(doc.Content))
}
