// Package mcp exposes the design calculator and evidence helpers as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/internal/service"
)

// Tool names
const (
	ToolCalculateDesign       = "calculate_design"
	ToolCheckCompliance       = "check_compliance"
	ToolCanonicalizeParameter = "canonicalize_parameter"
	ToolScoreRelevance        = "score_relevance"
)

// Server represents the bioequivalence design MCP server
type Server struct {
	config    domain.MCPConfig
	mcpServer *mcp.Server
	designs   *service.DesignService
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with all tools registered
func NewServer(config domain.MCPConfig, designs *service.DesignService, logger *logrus.Logger) (*Server, error) {
	if designs == nil {
		return nil, fmt.Errorf("design service is required")
	}
	if config.ServerName == "" {
		config.ServerName = "bioeq-design-server"
	}
	if config.ServerVersion == "" {
		config.ServerVersion = "v0.1.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    config.ServerName,
		Version: config.ServerVersion,
	}

	server := &Server{
		config:    config,
		mcpServer: mcp.NewServer(serverInfo, nil),
		designs:   designs,
		logger:    logger,
	}

	server.registerTools()

	return server, nil
}

// registerTools registers every tool with the MCP SDK
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCalculateDesign,
		Description: "Calculate a bioequivalence study design (design type, sample and recruitment size, washout, sampling plan) from intra-subject CV and optional PK parameters, and check it against regulatory rules.",
	}, s.handleCalculateDesign)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCheckCompliance,
		Description: "Check a study design against regulatory rules: minimum sample size, variability warnings and washout feasibility.",
	}, s.handleCheckCompliance)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCanonicalizeParameter,
		Description: "Map a pharmacokinetic parameter name as written in the literature onto the canonical vocabulary (CV_intra, T1/2, Cmax, AUC, Tmax).",
	}, s.handleCanonicalizeParameter)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolScoreRelevance,
		Description: "Score how likely an article reports intra-subject variability data, from its title and abstract.",
	}, s.handleScoreRelevance)

	s.logger.WithField("tool_count", 4).Info("Registered MCP tools")
}

// Start runs the server over stdio until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"name":    s.config.ServerName,
		"version": s.config.ServerVersion,
	}).Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
