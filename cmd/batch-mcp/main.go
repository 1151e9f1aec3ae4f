package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/conf"
	"github.com/DevRickLin/feishu-batch-bot/internal/service"
	"github.com/DevRickLin/feishu-batch-bot/mcpserver"
)

// batch-mcp serves the batch feedback tools over MCP stdio.
// Stdout carries the protocol, so logs go to stderr.

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := conf.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	defer logger.Sync()

	svc, err := service.NewFeedbackService(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build feedback service", zap.Error(err))
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.NewServer(svc.Feedback, svc.Repos.Audit, logger.Named("mcp"))
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("mcp server stopped", zap.Error(err))
	}
}
