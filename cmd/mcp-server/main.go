package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/config"
	"github.com/bioeq-design-server/internal/logging"
	"github.com/bioeq-design-server/internal/mcp"
	"github.com/bioeq-design-server/internal/repository"
	"github.com/bioeq-design-server/internal/service"
	"github.com/bioeq-design-server/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI(os.Stdout, "").Run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	_ = godotenv.Load(".env")

	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	// stdout carries the protocol stream
	logConfig := cfg.Logging
	if logConfig.Output == "" || logConfig.Output == "stdout" {
		logConfig.Output = "stderr"
	}
	logger, err := logging.New(logConfig)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	opened, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open project store")
	}
	defer opened.Store.Close()

	mcpServer, err := mcp.NewServer(cfg.MCP, service.NewDesignService(opened.Store, logger), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	if err := mcpServer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}

	logger.Info("MCP server stopped")
}
