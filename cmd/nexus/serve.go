package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leuf-systems/nexus/config"
	httpHandler "github.com/leuf-systems/nexus/internal/adapter/http/handler"
	pgStorage "github.com/leuf-systems/nexus/internal/adapter/storage/postgres"
	redisStorage "github.com/leuf-systems/nexus/internal/adapter/storage/redis"
	"github.com/leuf-systems/nexus/internal/core/domain"
	"github.com/leuf-systems/nexus/internal/core/ports"
	"github.com/leuf-systems/nexus/internal/crypto"
	"github.com/leuf-systems/nexus/internal/ebics"
	"github.com/leuf-systems/nexus/internal/isoxml"
	"github.com/leuf-systems/nexus/internal/scheduler"
	"github.com/leuf-systems/nexus/internal/service"
	"github.com/leuf-systems/nexus/pkg/logger"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port          int
		localhostOnly bool
		ipv4Only      bool
		unixSocket    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Nexus HTTP API and background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if localhostOnly {
				cfg.Server.LocalhostOnly = true
			}
			if ipv4Only {
				cfg.Server.IPv4Only = true
			}
			if unixSocket != "" {
				cfg.Server.UnixSocketPath = unixSocket
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override the configured HTTP port")
	cmd.Flags().BoolVar(&localhostOnly, "localhost-only", false, "bind only to 127.0.0.1")
	cmd.Flags().BoolVar(&ipv4Only, "ipv4-only", false, "bind only an IPv4 listener")
	cmd.Flags().StringVar(&unixSocket, "unix-socket", "", "serve over a unix domain socket instead of TCP")

	return cmd
}

func runServe(cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("mode", cfg.Server.Mode).Int("port", cfg.Server.Port).Msg("starting nexus")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()

	connRepo := pgStorage.NewBankConnectionRepo(pool)
	subRepo := pgStorage.NewEbicsSubscriberRepo(pool)
	acctRepo := pgStorage.NewBankAccountRepo(pool)
	offeredRepo := pgStorage.NewOfferedAccountRepo(pool)
	msgRepo := pgStorage.NewBankMessageRepo(pool)
	entryRepo := pgStorage.NewTransactionEntryRepo(pool)
	initRepo := pgStorage.NewInitiationRepo(pool)
	taskRepo := pgStorage.NewScheduledTaskRepo(pool)
	apiUserRepo := pgStorage.NewAPIUserRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	transactor := pgStorage.NewTransactor(pool)

	clock := domain.SystemClock{}
	cryptoSvc := crypto.New()
	isoSvc := isoxml.NewService()
	ebicsClient := ebics.New(&http.Client{Timeout: 60 * time.Second}, cryptoSvc, log)
	hashSvc := service.NewArgon2HashService()
	auditSvc := service.NewAuditService(auditRepo, log)
	bus := service.NewInProcessFacadeBus(log)
	notifier := redisStorage.NewNotifier(rdb)

	connSvc := service.NewConnectionService(connRepo, subRepo, offeredRepo, acctRepo, ebicsClient, cryptoSvc, transactor, clock, log)
	ledgerSvc := service.NewLedgerService(acctRepo, connRepo, subRepo, msgRepo, entryRepo, ebicsClient, isoSvc, transactor, bus, notifier, clock, log)
	initSvc := service.NewInitiationService(initRepo, acctRepo, connRepo, subRepo, ebicsClient, isoSvc, transactor, clock, log)
	bus.OnIngested(initSvc.HandleIngested)

	schedulerSvc := scheduler.New(taskRepo, ledgerSvc, initSvc, clock, log)
	if cfg.Scheduler.Enabled {
		if err := schedulerSvc.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer schedulerSvc.Stop()
	}

	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ConnectionSvc:  connSvc,
		LedgerSvc:      ledgerSvc,
		InitiationSvc:  initSvc,
		SchedulerSvc:   schedulerSvc,
		TaskRepo:       taskRepo,
		APIUserRepo:    apiUserRepo,
		HashSvc:        hashSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Notifier:       notifier,
		Logger:         log,
	})

	srv := &http.Server{Handler: router}

	listener, addr, err := listen(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind listener")
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

// listen picks the listener implied by the server config: a unix socket
// takes priority, then a host/port TCP listener honoring
// localhost-only/ipv4-only overrides.
func listen(cfg *config.Config) (net.Listener, string, error) {
	if cfg.Server.UnixSocketPath != "" {
		_ = os.Remove(cfg.Server.UnixSocketPath)
		l, err := net.Listen("unix", cfg.Server.UnixSocketPath)
		return l, "unix:" + cfg.Server.UnixSocketPath, err
	}

	host := cfg.Server.Host
	if cfg.Server.LocalhostOnly {
		host = "127.0.0.1"
	}
	network := "tcp"
	if cfg.Server.IPv4Only {
		network = "tcp4"
	}
	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	l, err := net.Listen(network, addr)
	return l, addr, err
}
