package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skysift/shiftwatch/internal/agents"
	"github.com/skysift/shiftwatch/internal/analysis"
	"github.com/skysift/shiftwatch/internal/api"
	"github.com/skysift/shiftwatch/internal/config"
	"github.com/skysift/shiftwatch/internal/llm"
	"github.com/skysift/shiftwatch/internal/storage/sqlite"
	"github.com/skysift/shiftwatch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "shiftwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting shiftwatch",
		logger.String("db_path", cfg.Storage.DBPath),
		logger.String("llm_model", cfg.LLM.Model))

	db, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	shifts, err := sqlite.NewShiftStorage(db, log)
	if err != nil {
		return err
	}
	reports, err := sqlite.NewReportStorage(db, log)
	if err != nil {
		return err
	}

	backend := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	}, log)

	templates, err := agents.LoadTemplates(cfg.Analysis.PromptTemplateDir)
	if err != nil {
		return fmt.Errorf("failed to load prompt templates: %w", err)
	}

	invoker := agents.NewInvoker(backend, templates, agents.Config{
		Timeout:            cfg.LLMTimeout(),
		MaxTokens:          cfg.Analysis.MaxTokens,
		SampleSize:         cfg.Analysis.TranscriptSampleSize,
		MaxConcurrentCalls: cfg.Analysis.MaxConcurrentBackend,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator := analysis.NewOrchestrator(ctx, shifts, shifts, reports, invoker, log)

	router := api.NewRouter(orchestrator, shifts, reports, cfg, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", logger.Error(err))
	}

	orchestrator.Stop()
	log.Info("Shutdown complete")
	return nil
}
