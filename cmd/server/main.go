// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	_ "github.com/opentrusty/obralog/docs"
	"github.com/opentrusty/obralog/internal/audit"
	"github.com/opentrusty/obralog/internal/config"
	"github.com/opentrusty/obralog/internal/guard"
	"github.com/opentrusty/obralog/internal/identity"
	"github.com/opentrusty/obralog/internal/observability/logger"
	"github.com/opentrusty/obralog/internal/observability/metrics"
	"github.com/opentrusty/obralog/internal/observability/tracing"
	"github.com/opentrusty/obralog/internal/rbac"
	"github.com/opentrusty/obralog/internal/roster"
	"github.com/opentrusty/obralog/internal/store/postgres"
	"github.com/opentrusty/obralog/internal/token"
	transportHTTP "github.com/opentrusty/obralog/internal/transport/http"
	"github.com/opentrusty/obralog/internal/worklog"
)

const usage = `usage: obralog [--config FILE] [serve|migrate|bootstrap]

  serve      run the HTTP API (default)
  migrate    apply the embedded schema and exit
  bootstrap  create the initial administrator and exit (alias: seed)
`

func main() {
	flags := pflag.NewFlagSet("obralog", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML configuration file (defaults to $CONFIG_FILE)")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		DisableOTel: !cfg.Observability.OTELEnabled,
	})

	command := flags.Arg(0)
	if command == "" {
		command = "serve"
	}

	ctx := context.Background()
	switch command {
	case "serve":
		err = serve(ctx, cfg)
	case "migrate":
		err = migrate(ctx, cfg)
	case "bootstrap", "seed":
		err = bootstrap(ctx, cfg)
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", slog.String("command", command), logger.Error(err))
		os.Exit(1)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", slog.Any("applied", applied))
	return nil
}

func newHasher(cfg *config.Config) *identity.PasswordHasher {
	return identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
}

func bootstrapConfig(cfg *config.Config) identity.BootstrapConfig {
	return identity.BootstrapConfig{
		OrganizationKey: cfg.Bootstrap.OrganizationKey,
		MemberKey:       cfg.Bootstrap.MemberKey,
		Password:        cfg.Bootstrap.Password,
		AdminRole:       cfg.Bootstrap.AdminRole,
		Module:          cfg.Bootstrap.Module,
	}
}

func bootstrap(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	auditLogger := audit.NewSlogLogger()
	identities := postgres.NewIdentityRepository(db)
	access := rbac.NewService(
		postgres.NewModuleRepository(db),
		postgres.NewRoleRepository(db),
		postgres.NewGrantRepository(db),
		identities,
		auditLogger,
	)

	admin, err := identity.NewBootstrapService(identities, newHasher(cfg), access, auditLogger).
		Bootstrap(ctx, bootstrapConfig(cfg))
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	if admin != nil {
		slog.Info("administrator ready", logger.IdentityID(admin.ID))
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting obralog",
		slog.String("version", cfg.Observability.ServiceVersion),
		slog.String("host", cfg.Server.Host),
		slog.String("port", cfg.Server.Port),
	)

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			slog.Error("failed to shutdown tracer", logger.Error(err))
		}
	}()

	if _, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if len(applied) > 0 {
		slog.Info("schema migrated", slog.Any("applied", applied))
	}

	// The roster tables are read through database/sql.
	rosterDB, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open roster connection: %w", err)
	}
	defer rosterDB.Close()
	rosterDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	rosterDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	rosterDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	directory := roster.NewSQLDirectory(rosterDB)

	identities := postgres.NewIdentityRepository(db)
	auditLogger := audit.NewSlogLogger()
	hasher := newHasher(cfg)

	tokens, err := token.NewService(cfg.Auth.JWTSecret,
		token.WithIssuer(cfg.Auth.Issuer),
		token.WithAccessTTL(cfg.Auth.AccessTTL),
		token.WithRefreshTTL(cfg.Auth.RefreshTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	access := rbac.NewService(
		postgres.NewModuleRepository(db),
		postgres.NewRoleRepository(db),
		postgres.NewGrantRepository(db),
		identities,
		auditLogger,
	)

	var notifier identity.ResetNotifier = identity.LogNotifier{}
	if cfg.Mail.Enabled() {
		notifier = identity.NewSMTPNotifier(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	} else {
		slog.Warn("SMTP is not configured; password reset links are only logged")
	}

	credentials := identity.NewService(identities, hasher, tokens, auditLogger,
		identity.WithRoleResolver(access),
		identity.WithEmployeeDirectory(directory),
		identity.WithNotifier(notifier),
		identity.WithResetTTL(cfg.Auth.ResetTTL),
		identity.WithResetLinkBase(cfg.Auth.ResetLinkBase),
		identity.WithExposeResetToken(cfg.Auth.ExposeResetToken),
	)

	siteLog := worklog.NewService(
		postgres.NewHeaderRepository(db),
		postgres.NewDetailRepository(db),
		directory,
		worklog.NewPolicy(cfg.Auth.SupervisorRole, cfg.TimeLocation()),
	)

	if _, err := identity.NewBootstrapService(identities, hasher, access, auditLogger).
		Bootstrap(ctx, bootstrapConfig(cfg)); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	handler := transportHTTP.NewHandler(
		credentials,
		access,
		siteLog,
		directory,
		tokens,
		guard.New(access, auditLogger),
		transportHTTP.Options{
			AdminModule:     cfg.Bootstrap.Module,
			AdminRole:       cfg.Bootstrap.AdminRole,
			RequestTimeout:  cfg.Server.RequestTimeout,
			AuthRateLimiter: transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
			Registry:        registry,
			Version:         cfg.Observability.ServiceVersion,
		},
	)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      transportHTTP.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-quit:
		slog.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
