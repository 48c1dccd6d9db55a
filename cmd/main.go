package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpu-genie-allocator/admission"
	"gpu-genie-allocator/config"
	"gpu-genie-allocator/controller"
	"gpu-genie-allocator/health"
	"gpu-genie-allocator/llm"
	"gpu-genie-allocator/metrics"
	"gpu-genie-allocator/queues"
	qpubsub "gpu-genie-allocator/queues/pubsub"
	"gpu-genie-allocator/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	setLogger()
	log.Info().Msgf("Starting gpu-genie-allocator version: %s", version)
	cfg := config.Load()
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	// Preflight required configuration
	if cfg.GoogleProjectID == "" {
		log.Fatal().Msg("missing Google project id; set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_PROJECT_ID or GENIE_PUBSUB_PROJECT_ID")
	}
	if cfg.Subscription == "" {
		log.Fatal().Msg("missing Pub/Sub subscription; set RESERVATION_REQUEST_SUBSCRIPTION or GENIE_PUBSUB_SUBSCRIPTION")
	}
	if cfg.PubsubTopic == "" {
		log.Fatal().Msg("missing Pub/Sub topic; set RESERVATION_RESULT_TOPIC or GENIE_PUBSUB_TOPIC")
	}

	// Context and shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics and health HTTP server
	mux := http.NewServeMux()
	metrics.Register(mux)
	health.Register(mux)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting metrics/health server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	st := newStore(ctx, cfg)

	mode := admission.Mode(cfg.Mode)
	var interpretCompleter, evaluateCompleter llm.Completer
	if mode == admission.ModeAI {
		ic, err := llm.NewBedrockCompleter(ctx, cfg.AWSRegion, cfg.InterpretModelID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize interpretation model client")
		}
		ec, err := llm.NewBedrockCompleter(ctx, cfg.AWSRegion, cfg.EvaluateModelID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize evaluation model client")
		}
		interpretCompleter, evaluateCompleter = ic, ec
	}

	pipeline := admission.NewPipeline(admission.PipelineConfig{
		Mode:               mode,
		InterpretCompleter: interpretCompleter,
		EvaluateCompleter:  evaluateCompleter,
		Queries:            st,
		GraceWindow:        cfg.GraceWindow,
		AITimeout:          cfg.AITimeout,
	})

	publisher := qpubsub.NewPublisher(cfg.GoogleProjectID, cfg.PubsubTopic, cfg.CredentialsFile)
	ctrl := controller.New(publisher, st, pipeline, mode)
	subscriber := qpubsub.NewSubscriber(cfg.GoogleProjectID, cfg.Subscription, cfg.CredentialsFile)

	// Start subscriber loop
	go func() {
		log.Info().Str("subscription", cfg.Subscription).Msg("starting subscriber loop")
		if err := subscriber.Start(ctx, func(ctx context.Context, req *queues.ReservationRequest) error {
			return ctrl.Handle(ctx, req)
		}); err != nil {
			// Non-recoverable: if we can't receive from Pub/Sub, terminate the process
			log.Fatal().Err(err).Msg("subscriber exited with fatal error; shutting down")
		}
	}()

	// Block until shutdown
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

func newStore(ctx context.Context, cfg *config.Config) store.Store {
	if cfg.StoreBackend == config.StoreDynamoDB {
		st, err := store.NewDynamo(ctx, cfg.AWSRegion, store.DynamoTables{
			Reservations: cfg.ReservationsTable,
			Users:        cfg.UsersTable,
			Servers:      cfg.ServersTable,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize dynamodb store")
		}
		log.Info().Str("reservationsTable", cfg.ReservationsTable).Msg("using dynamodb store")
		return st
	}

	// Dev store with seed data so rules-mode runs end to end out of the box.
	mem := store.NewMemory()
	mem.AddUser(admission.Requester{ID: "demo-user", Name: "Demo User", Role: admission.RoleUser, BasePriority: 50})
	mem.AddUser(admission.Requester{ID: "demo-admin", Name: "Demo Admin", Role: admission.RoleAdmin, BasePriority: 80})
	for _, t := range admission.Catalog {
		mem.AddServer(store.GPUServer{
			ID:            "srv-" + string(t),
			Name:          string(t) + " pool",
			GPUType:       t,
			TotalGPUs:     8,
			AvailableGPUs: 8,
			Status:        store.ServerActive,
		})
	}
	log.Info().Msg("using in-memory store with seed data")
	return mem
}
