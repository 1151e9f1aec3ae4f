package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/api"
	"github.com/DevRickLin/feishu-batch-bot/internal/conf"
	"github.com/DevRickLin/feishu-batch-bot/internal/server"
	"github.com/DevRickLin/feishu-batch-bot/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
}

func run(cfg *conf.Config, logger *zap.Logger) error {
	svc, err := service.NewFeedbackService(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	dedup, err := server.NewDeduper(cfg.Pipeline.DedupPolicy, cfg.Pipeline.DedupSize)
	if err != nil {
		return err
	}
	pipeline := server.NewPipeline(dedup, svc.Feedback, cfg.Pipeline.StaleAfter, logger.Named("pipeline"))

	websocket := cfg.Server.ConnectionMode == conf.ConnectionModeWebSocket
	apiServer := api.NewServer(pipeline, svc.Feedback.Registry(), svc.Repos.Audit, api.Options{
		Addr:              cfg.Addr(),
		WebhookPath:       cfg.Server.WebhookPath,
		VerificationToken: cfg.Feishu.VerificationToken,
		DisableWebhook:    websocket,
	}, logger.Named("api"))

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- apiServer.Start() }()

	var feishuServer *server.FeishuServer
	if websocket {
		feishuServer = server.NewFeishuServer(svc.FeishuClient, pipeline, logger.Named("ws"))
		go func() { errCh <- feishuServer.Start(ctx) }()
	}

	logger.Info("batch feedback bot running", zap.String("mode", cfg.Server.ConnectionMode), zap.String("addr", cfg.Addr()))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server error", zap.Error(err))
		}
	}

	if feishuServer != nil {
		feishuServer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("http shutdown", zap.Error(stopErr))
	}
	return err
}
