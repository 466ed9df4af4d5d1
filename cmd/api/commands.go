package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	httpadp "collateral-loans/internal/adapter/http"
	"collateral-loans/internal/adapter/middleware"
	"collateral-loans/internal/adapter/publisher"
	"collateral-loans/internal/adapter/repository/mysql"
	"collateral-loans/internal/config"
	"collateral-loans/internal/domain/event"
	"collateral-loans/internal/infrastructure/broker"
	"collateral-loans/internal/infrastructure/cache"
	"collateral-loans/internal/infrastructure/db"
	"collateral-loans/internal/infrastructure/observability"
	accountuc "collateral-loans/internal/usecase/account"
	loanuc "collateral-loans/internal/usecase/loan"
)

var (
	rootCmd = &cobra.Command{
		Use:   "loans",
		Short: "Collateralized peer-to-peer loan registry",
		Long: `loans keeps a registry of over-collateralized loans between accounts.
Borrowers lock collateral, lenders fund the loan, and the borrower either repays
with interest or the lender claims the collateral after the due date.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger = observability.NewLogger("loans", cfg.LogLevel)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox relay",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	}

	relayCmd = &cobra.Command{
		Use:   "relay",
		Short: "Publish pending loan events once and exit",
		RunE:  runRelay,
	}

	cfg    *config.Config
	logger zerolog.Logger

	skipMigrate bool
)

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not migrate the schema on start")
	rootCmd.AddCommand(serveCmd, migrateCmd, relayCmd)
}

func openDB() (*gorm.DB, error) {
	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return gdb, nil
}

// openPublisher returns the JetStream publisher when NATS is configured, the log
// publisher otherwise. The returned close func is never nil.
func openPublisher(ctx context.Context) (event.Publisher, func(), error) {
	if cfg.NATSURL == "" {
		logger.Info().Msg("NATS_URL not set, events go to the log")
		return publisher.NewLog(logger.With().Str("component", "events").Logger()), func() {}, nil
	}
	nc, js, err := broker.OpenNATS(cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	if err := broker.EnsureStream(ctx, js, cfg.NATSSubjectPrefix); err != nil {
		nc.Close()
		return nil, nil, err
	}
	return publisher.NewJetStream(js, cfg.NATSSubjectPrefix), func() { drainNATS(nc) }, nil
}

func drainNATS(nc *nats.Conn) {
	if err := nc.Drain(); err != nil {
		logger.Warn().Err(err).Msg("drain nats")
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	gdb, err := openDB()
	if err != nil {
		return err
	}
	if err := mysql.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Msg("schema up to date")
	return nil
}

func runRelay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gdb, err := openDB()
	if err != nil {
		return err
	}
	pub, closePub, err := openPublisher(ctx)
	if err != nil {
		return err
	}
	defer closePub()

	relay := publisher.NewRelay(mysql.NewEventRepository(gdb), pub, logger)
	total := 0
	for {
		n, err := relay.Drain(ctx)
		total += n
		if err != nil {
			return fmt.Errorf("relay after %d events: %w", total, err)
		}
		if n == 0 {
			break
		}
	}
	logger.Info().Int("published", total).Msg("relay done")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := openDB()
	if err != nil {
		return err
	}
	if !skipMigrate {
		if err := mysql.Migrate(gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}
	defer rdb.Close()

	pub, closePub, err := openPublisher(ctx)
	if err != nil {
		return err
	}
	defer closePub()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	loans := mysql.NewLoanRepository(gdb)
	events := mysql.NewEventRepository(gdb)
	tx := mysql.NewGormUoW(gdb)

	loanUC := loanuc.NewUsecase(loans, events, tx,
		loanuc.WithEscrow(cfg.Escrow()),
		loanuc.WithPublisher(pub),
		loanuc.WithLogger(logger.With().Str("component", "registry").Logger()),
		loanuc.WithMetrics(metrics),
	)
	accountUC := accountuc.NewUsecase(mysql.NewAccountRepository(gdb), tx, logger)

	e := newServer(gdb, rdb, reg, loanUC, accountUC)

	relay := publisher.NewRelay(events, pub, logger.With().Str("component", "relay").Logger())
	go func() {
		if err := relay.Run(ctx, cfg.RelayInterval()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("relay stopped")
		}
	}()

	addr := ":" + cfg.AppPort
	go func() {
		logger.Info().Str("addr", addr).Str("escrow", loanUC.Escrow().Hex()).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down")
	return e.Shutdown(shutdownCtx)
}

func newServer(gdb *gorm.DB, rdb *redis.Client, reg *prometheus.Registry, loanUC *loanuc.Usecase, accountUC *accountuc.Usecase) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.RequestLogger(logger), echomw.Recover())

	h := httpadp.NewHandler(
		httpadp.Check{Name: "mysql", Ping: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		httpadp.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
	)
	httpadp.Register(e, h,
		httpadp.NewLoanHandler(loanUC),
		httpadp.NewAccountHandler(accountUC),
		middleware.IdempotencyMiddleware(rdb, cfg.IdempTTL()),
	)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	return e
}
