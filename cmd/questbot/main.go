package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kerhoff/QuestboT/internal/api"
	"github.com/Kerhoff/QuestboT/internal/config"
	"github.com/Kerhoff/QuestboT/internal/handlers"
	"github.com/Kerhoff/QuestboT/internal/repository/postgres"
	"github.com/Kerhoff/QuestboT/internal/service"
	"github.com/Kerhoff/QuestboT/internal/telegram"
	"github.com/Kerhoff/QuestboT/pkg/logger"

	"github.com/hashicorp/go-multierror"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting QuestboT...")

	// Database
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := db.Migrate("migrations"); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Photo storage
	if err := os.MkdirAll(cfg.PhotosDir, 0o755); err != nil {
		l.Fatalf("Failed to create photos directory: %v", err)
	}

	// Repositories
	linkRepo := postgres.NewFamilyLinkRepository(db.DB)
	submissionRepo := postgres.NewSubmissionRepository(db.DB)
	botMessageRepo := postgres.NewBotMessageRepository(db.DB)

	// Service layer
	svc := service.New(l, linkRepo, submissionRepo, botMessageRepo)

	// Telegram bot
	bot, err := telegram.NewBot(cfg.BotToken, svc, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}

	// Review conversation
	review := handlers.NewReviewHandler(svc, l)
	bot.SetReviewReset(review.Reset)
	bot.SetTextHandler(review)

	// Commands
	bot.RegisterCommand("start", handlers.NewStartHandler(svc, review, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	// Review buttons
	bot.RegisterCallback("approve_comment_", telegram.CallbackFunc(review.ApproveWithComment))
	bot.RegisterCallback("reject_comment_", telegram.CallbackFunc(review.RejectWithComment))
	bot.RegisterCallback("approve_", telegram.CallbackFunc(review.Approve))
	bot.RegisterCallback("reject_", telegram.CallbackFunc(review.Reject))
	bot.RegisterCallback("comment_", telegram.CallbackFunc(review.RequestComment))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Start HTTP server for photo uploads and status polling
	apiServer := api.NewServer(svc, bot, cfg, l)
	httpServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.APIHost, cfg.APIPort),
		Handler: apiServer.Handler(),
	}

	go func() {
		l.Infof("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			l.Errorf("Bot error: %v", err)
		}
	}()

	l.Info("QuestboT started successfully")

	<-ctx.Done()

	l.Info("Shutting down...")

	var shutdownErr *multierror.Error

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = multierror.Append(shutdownErr, err)
	}
	if err := db.Close(); err != nil {
		shutdownErr = multierror.Append(shutdownErr, err)
	}

	if err := shutdownErr.ErrorOrNil(); err != nil {
		l.Errorf("Shutdown finished with errors: %v", err)
	}

	l.Info("QuestboT stopped")
}
