package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/caretrail/caretrail/internal/alert"
	"github.com/caretrail/caretrail/internal/config"
	"github.com/caretrail/caretrail/internal/domain"
	"github.com/caretrail/caretrail/internal/ledger"
	"github.com/caretrail/caretrail/internal/secrets"
	"github.com/caretrail/caretrail/internal/server"
	"github.com/caretrail/caretrail/internal/store/memory"
	"github.com/caretrail/caretrail/internal/store/postgres"
	redisstore "github.com/caretrail/caretrail/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("CARETRAIL_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("CARETRAIL_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Open storage: in-memory for dev mode, PostgreSQL otherwise.
	var (
		entries     domain.EntryRepository
		checkpoints domain.CheckpointRepository
		secretRepo  secrets.SecretRepository
	)
	if cfg.DevMode {
		log.Warn().Msg("dev mode: using in-memory storage, ledger is not durable")
		mem := memory.New()
		entries = mem.Entries()
		checkpoints = mem.Checkpoints()
		secretRepo = mem.Secrets()
	} else {
		if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}

		store, pgErr := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if pgErr != nil {
			return pgErr
		}
		defer store.Close()

		if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
			return schemaErr
		}

		entries = store.Entries()
		checkpoints = store.Checkpoints()
		secretRepo = store.Secrets()
	}

	// Resolve the ledger signing key once; it is cached for the process
	// lifetime rather than re-fetched per entry.
	signingKey, err := resolveSigningKey(ctx, cfg, secretRepo)
	if err != nil {
		return err
	}

	// Connect Redis for integrity alerts (optional in dev mode).
	var alerter ledger.Alerter
	if !cfg.DevMode {
		pubsub, redisErr := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if redisErr != nil {
			return redisErr
		}
		defer func() { _ = pubsub.Close() }()

		alerter = alert.New(pubsub, nil)
	}

	// Create the ledger service.
	svc := ledger.NewService(entries, checkpoints, signingKey, ledger.Config{
		CheckpointInterval: cfg.Ledger.CheckpointInterval,
		AppendRetries:      cfg.Ledger.AppendRetries,
		ExportPageSize:     cfg.Ledger.ExportPageSize,
		VerifySampleLimit:  cfg.Ledger.VerifySampleLimit,
	}, alerter)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, svc)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// resolveSigningKey derives the ledger signing key. When a vault KEK is
// configured the master secret comes from the encrypted store record;
// otherwise it comes from the environment. Dev mode without either falls
// back to an ephemeral key: chains remain verifiable within the process but
// not across restarts.
func resolveSigningKey(ctx context.Context, cfg *config.Config, secretRepo secrets.SecretRepository) ([]byte, error) {
	var provider secrets.Provider

	if cfg.Ledger.VaultKey != "" {
		vault, err := secrets.NewVault([]byte(cfg.Ledger.VaultKey))
		if err != nil {
			return nil, fmt.Errorf("signing key: open vault: %w", err)
		}
		provider = secrets.NewVaultProvider(vault, secretRepo)
	} else {
		secret := cfg.Ledger.SigningSecret
		if secret == "" && cfg.DevMode {
			log.Warn().Msg("dev mode: deriving ephemeral signing key")
			secret = fmt.Sprintf("caretrail-dev-ephemeral-%d-not-for-production", time.Now().UnixNano())
		}

		p, err := secrets.NewMasterKeyProvider([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
		provider = p
	}

	key, err := provider.SigningKey(ctx, cfg.Ledger.KeyName)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	return key, nil
}
