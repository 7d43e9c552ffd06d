package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/internal/service"
	"github.com/bioeq-design-server/pkg/evidence"
)

// CalculateDesignResult pairs a design with its regulatory check
type CalculateDesignResult struct {
	Design     *domain.DesignParameters `json:"design"`
	Compliance *domain.ComplianceResult `json:"regulatory_check"`
}

// CheckComplianceParams defines parameters for check_compliance tool
type CheckComplianceParams struct {
	SampleSize  int      `json:"sample_size" jsonschema:"number of evaluable subjects"`
	DesignType  string   `json:"design_type" jsonschema:"2x2-crossover, 3-way-replicate, 4-way-replicate or parallel"`
	CVIntra     *float64 `json:"cv_intra,omitempty" jsonschema:"intra-subject coefficient of variation in percent; omit when unknown"`
	WashoutDays *float64 `json:"washout_days,omitempty" jsonschema:"washout period in days"`
}

// CanonicalizeParams defines parameters for canonicalize_parameter tool
type CanonicalizeParams struct {
	Name string `json:"name" jsonschema:"parameter name as written in the source"`
}

// CanonicalizeResult defines the result structure for canonicalize_parameter tool
type CanonicalizeResult struct {
	Input      string `json:"input"`
	Canonical  string `json:"canonical"`
	Recognized bool   `json:"recognized"`
}

// ScoreRelevanceParams defines parameters for score_relevance tool
type ScoreRelevanceParams struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
}

// ScoreRelevanceResult defines the result structure for score_relevance tool
type ScoreRelevanceResult struct {
	Score int `json:"score"`
}

// handleCalculateDesign handles the calculate_design tool invocation
func (s *Server) handleCalculateDesign(ctx context.Context, req *mcp.CallToolRequest, params service.DesignRequest) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolCalculateDesign).Info("Tool invoked")

	design, err := s.designs.Calculate(ctx, params)
	if err != nil {
		return s.createErrorResult("Design calculation failed", err), nil, nil
	}

	result := CalculateDesignResult{
		Design:     design,
		Compliance: service.CheckDesign(design),
	}
	return s.createJSONResult(fmt.Sprintf("%s design with %d subjects (recruit %d)",
		design.DesignType, design.SampleSize, design.RecruitmentSize), result)
}

// handleCheckCompliance handles the check_compliance tool invocation
func (s *Server) handleCheckCompliance(ctx context.Context, req *mcp.CallToolRequest, params CheckComplianceParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolCheckCompliance).Info("Tool invoked")

	designType, err := domain.ParseDesignType(params.DesignType)
	if err != nil {
		return s.createErrorResult("Invalid design type", err), nil, nil
	}
	if params.SampleSize <= 0 {
		return s.createErrorResult("Missing required parameter", domain.NewValidationError("sample_size", "must be positive", params.SampleSize)), nil, nil
	}

	design := &domain.DesignParameters{
		SampleSize:  params.SampleSize,
		DesignType:  designType,
		WashoutDays: params.WashoutDays,
	}
	if params.CVIntra != nil {
		design.CVIntra = *params.CVIntra
		design.CriticalParameters.CVIntra = params.CVIntra
	}
	result := service.CheckDesign(design)
	return s.createJSONResult(result.Status, result)
}

// handleCanonicalizeParameter handles the canonicalize_parameter tool invocation
func (s *Server) handleCanonicalizeParameter(ctx context.Context, req *mcp.CallToolRequest, params CanonicalizeParams) (*mcp.CallToolResult, any, error) {
	canonical := evidence.Canonicalize(params.Name)
	if canonical == "" {
		return s.createErrorResult("Missing required parameter", domain.NewValidationError("name", "is required", params.Name)), nil, nil
	}

	result := CanonicalizeResult{
		Input:      params.Name,
		Canonical:  canonical,
		Recognized: evidence.IsCanonical(canonical),
	}
	return s.createJSONResult(canonical, result)
}

// handleScoreRelevance handles the score_relevance tool invocation
func (s *Server) handleScoreRelevance(ctx context.Context, req *mcp.CallToolRequest, params ScoreRelevanceParams) (*mcp.CallToolResult, any, error) {
	result := ScoreRelevanceResult{Score: evidence.Score(params.Title, params.Abstract)}
	return s.createJSONResult(fmt.Sprintf("relevance score %d", result.Score), result)
}

// createJSONResult returns a summary line followed by the indented JSON payload
func (s *Server) createJSONResult(summary string, payload any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, payload, nil
}

// createErrorResult reports a tool-level failure to the client without failing the call
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	s.logger.WithError(err).Warn(message)

	apiErr := domain.NewAPIError(domain.ErrorCode(err), message, err.Error(), "")
	data, _ := json.Marshal(apiErr)
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}
