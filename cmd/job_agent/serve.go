package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/logger"
	"github.com/jonathan/job-matcher/internal/orchestrator"
	"github.com/jonathan/job-matcher/internal/resume"
	"github.com/jonathan/job-matcher/internal/server"
	"github.com/jonathan/job-matcher/internal/tracing"
	"github.com/jonathan/job-matcher/internal/types"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the job listing, resume upload, matching and scan endpoints.
With the inprocess queue backend uploaded resumes are processed by this process as well.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startTracing installs the tracer provider and returns its shutdown hook.
func startTracing(ctx context.Context) func() {
	shutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing disabled")
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signalContext()
	defer stop()
	defer startTracing(ctx)()

	a := newApp(cfg)
	defer a.Close()

	database, err := a.DB(ctx)
	if err != nil {
		return err
	}
	svc, queue, err := a.ResumeService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create resume service: %w", err)
	}
	postings, err := a.Postings(ctx)
	if err != nil {
		return err
	}
	newMachine, err := a.machineFactory(ctx)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Users:      database,
		Listings:   a.Listings(),
		Postings:   postings,
		Resumes:    svc,
		Strategies: a.Strategies(ctx),
		Scan: func(ctx context.Context, in orchestrator.ScanInput, progress orchestrator.ProgressCallback) (*types.ScanReport, error) {
			return newMachine(progress).Run(ctx, in)
		},
	}
	if provider := server.NewProviderClient(cfg.Auth, a.authClient()); provider != nil {
		deps.Provider = provider
	}
	if cfg.Auth.Enabled() {
		deps.Verifier = server.NewJWKSVerifier(cfg.Auth, a.authClient())
	}

	if cfg.Queue.Backend != "rabbitmq" {
		go consume(ctx, queue, svc)
	}

	srv := server.New(cfg, deps)
	return srv.Start(ctx)
}

// consume processes queued resumes until ctx is cancelled.
func consume(ctx context.Context, queue resume.Queue, svc *resume.Service) {
	log := logger.With("worker")
	log.Info().Str("backend", cfg.Queue.Backend).Int("workers", cfg.Queue.Workers).Msg("consuming resume jobs")
	if err := queue.Consume(ctx, svc.Process); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("resume consumer stopped")
	}
}
