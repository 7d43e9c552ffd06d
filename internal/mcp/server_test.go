package mcp

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	server, err := NewServer(domain.MCPConfig{}, service.NewDesignService(nil, logger), logger)
	require.NoError(t, err)
	return server
}

func textOf(t *testing.T, result *mcp.CallToolResult, i int) string {
	t.Helper()
	require.Greater(t, len(result.Content), i)
	text, ok := result.Content[i].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)
	assert.NotNil(t, server.mcpServer)
	assert.Equal(t, "bioeq-design-server", server.config.ServerName)

	_, err := NewServer(domain.MCPConfig{}, nil, logrus.New())
	assert.Error(t, err)
}

func TestHandleCalculateDesign(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, out, err := server.handleCalculateDesign(ctx, nil, service.DesignRequest{CVIntra: 60, DesiredDesign: "2x2-crossover"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	payload, ok := out.(CalculateDesignResult)
	require.True(t, ok)
	assert.Equal(t, 14, payload.Design.SampleSize)
	assert.True(t, payload.Compliance.IsCompliant)
	assert.Len(t, payload.Compliance.Warnings, 2)
	assert.Contains(t, textOf(t, result, 0), "2x2-crossover design with 14 subjects")

	var decoded CalculateDesignResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 1)), &decoded))
	assert.Equal(t, domain.DesignCrossover2x2, decoded.Design.DesignType)

	result, out, err = server.handleCalculateDesign(ctx, nil, service.DesignRequest{CVIntra: 20, DropoutRate: 100})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Nil(t, out)
	assert.Contains(t, textOf(t, result, 0), domain.CodeInvalidInput)
}

func TestHandleCheckCompliance(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		params         CheckComplianceParams
		expectError    bool
		expectState    string
		expectWarnings int
	}{
		{name: "compliant", params: CheckComplianceParams{SampleSize: 24, DesignType: "2x2-crossover", CVIntra: cvPtr(20)}, expectState: domain.ComplianceApproved},
		{name: "negative cv is flagged", params: CheckComplianceParams{SampleSize: 24, DesignType: "2x2-crossover", CVIntra: cvPtr(-12)}, expectState: domain.ComplianceApproved, expectWarnings: 1},
		{name: "zero cv is flagged", params: CheckComplianceParams{SampleSize: 24, DesignType: "2x2-crossover", CVIntra: cvPtr(0)}, expectState: domain.ComplianceApproved, expectWarnings: 1},
		{name: "undersized", params: CheckComplianceParams{SampleSize: 10, DesignType: "parallel"}, expectState: domain.ComplianceRejected},
		{name: "unknown design", params: CheckComplianceParams{SampleSize: 24, DesignType: "latin-square"}, expectError: true},
		{name: "missing sample size", params: CheckComplianceParams{DesignType: "parallel"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, out, err := server.handleCheckCompliance(ctx, nil, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.expectError, result.IsError)
			if tt.expectError {
				return
			}
			compliance, ok := out.(*domain.ComplianceResult)
			require.True(t, ok)
			assert.Equal(t, tt.expectState, compliance.Status)
			assert.Len(t, compliance.Warnings, tt.expectWarnings)
		})
	}
}

func TestHandleCanonicalizeParameter(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		input      string
		canonical  string
		recognized bool
	}{
		{"Intra Subject CV", domain.ParamCVIntra, true},
		{"half-life", domain.ParamTHalf, true},
		{" Vd ", "Vd", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, out, err := server.handleCanonicalizeParameter(context.Background(), nil, CanonicalizeParams{Name: tt.input})
			require.NoError(t, err)
			result := out.(CanonicalizeResult)
			assert.Equal(t, tt.canonical, result.Canonical)
			assert.Equal(t, tt.recognized, result.Recognized)
		})
	}

	result, _, err := server.handleCanonicalizeParameter(context.Background(), nil, CanonicalizeParams{Name: "  "})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleScoreRelevance(t *testing.T) {
	server := newTestServer(t)

	_, out, err := server.handleScoreRelevance(context.Background(), nil, ScoreRelevanceParams{
		Title:    "Bioequivalence crossover study",
		Abstract: "Intra-subject variability in healthy volunteers.",
	})
	require.NoError(t, err)
	assert.Equal(t, 9, out.(ScoreRelevanceResult).Score)
}

func cvPtr(v float64) *float64 { return &v }
