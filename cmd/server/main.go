package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stockdash/internal/config"
	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/core/tables"
	"github.com/JonMunkholm/stockdash/internal/credentials"
	"github.com/JonMunkholm/stockdash/internal/logging"
	"github.com/JonMunkholm/stockdash/internal/memstore"
	"github.com/JonMunkholm/stockdash/internal/postgres"
	"github.com/JonMunkholm/stockdash/internal/stockimport"
	"github.com/JonMunkholm/stockdash/internal/web"
)

// backend is the storage a driver provides.
type backend struct {
	store core.Store
	tx    core.Transactor
	audit core.AuditSink
	stats core.StatsStore
	close func()
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"auth_enabled", cfg.Auth.Enabled,
	)

	ctx := context.Background()
	be, err := openBackend(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer be.close()

	registry := core.Default
	mutator := core.NewMutator(registry, be.store, be.tx, core.WithAuditSink(be.audit))

	slog.Info("record types registered", "count", registry.Len())

	deps := web.Deps{
		Mutator:     mutator,
		Synthesizer: core.NewSynthesizer(registry, be.store),
		Sheets:      stockimport.New(mutator),
		Limiter:     core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		Audit:       be.audit,
		Stats:       core.NewStats(be.stats),
	}

	if cfg.Auth.Enabled {
		dir, err := credentials.Open(cfg.Auth.CredentialsFile)
		if err != nil {
			slog.Error("failed to open credentials", "error", err)
			os.Exit(1)
		}
		users, err := mutator.List(ctx, tables.Users, core.ListOptions{})
		if err != nil {
			slog.Error("failed to list users", "error", err)
			os.Exit(1)
		}
		if n, err := credentials.Reconcile(ctx, dir, users); err != nil {
			slog.Error("failed to reconcile credentials", "error", err)
			os.Exit(1)
		} else if n > 0 {
			slog.Info("stale credentials removed", "count", n)
		}
		if dir.Len() == 0 {
			slog.Warn("no credentials configured, nobody can sign in", "file", cfg.Auth.CredentialsFile)
		}
		mutator.RegisterHooks(tables.Users, credentials.Hooks(dir))
		deps.Directory = dir
		deps.Tokens = credentials.NewTokenManager(dir, cfg.Auth.CookieKey, cfg.Auth.Expiry())
	}

	server := web.NewServer(cfg, deps)

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stops the listener, then waits for running imports
		if status := deps.Limiter.Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Database.Driver == config.DriverMemory {
		slog.Warn("using in-memory storage, data is lost on exit")
		store := memstore.New(core.Default)
		return &backend{store: store, tx: store, audit: store, stats: store, close: func() {}}, nil
	}

	if cfg.Database.MigrateOnStart {
		n, err := postgres.Migrate(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		slog.Info("migrations applied", "count", n)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := postgres.NewStore(pool)
	return &backend{
		store: store,
		tx:    postgres.NewTxManager(pool),
		audit: postgres.NewAuditRepo(pool),
		stats: store,
		close: pool.Close,
	}, nil
}
