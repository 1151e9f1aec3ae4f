package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/conf"
	"github.com/DevRickLin/feishu-batch-bot/internal/service"
)

// batch-search prints which projects hold records for a batch.
// Handy for checking table bindings before pointing a group at the bot.

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: batch-search <batch> [project]")
		os.Exit(1)
	}
	batch := os.Args[1]

	_ = godotenv.Load()

	cfg, err := conf.LoadFromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	svc, err := service.NewFeedbackService(cfg, zap.NewNop())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if len(os.Args) > 2 {
		project, ok := svc.Feedback.Registry().Find(os.Args[2])
		if !ok {
			fmt.Printf("Unknown project %q\n", os.Args[2])
			os.Exit(1)
		}
		records := svc.Feedback.SearchProject(ctx, project, batch)
		fmt.Printf("%s: %d record(s)\n", project.Name, len(records))
		for _, r := range records {
			fmt.Printf("  %s\n", r.RecordID)
		}
		return
	}

	matches := svc.Feedback.SearchAll(ctx, batch)
	if len(matches) == 0 {
		fmt.Printf("Batch %q not found in any project\n", batch)
		return
	}
	for _, m := range matches {
		fmt.Printf("%s: %d record(s)\n", m.Project.Name, len(m.Records))
		for _, r := range m.Records {
			fmt.Printf("  %s\n", r.RecordID)
		}
	}
}
