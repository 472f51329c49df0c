package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/config"
	"github.com/iliyamo/canteen-ledger/internal/database"
	"github.com/iliyamo/canteen-ledger/internal/handler"
	"github.com/iliyamo/canteen-ledger/internal/logger"
	"github.com/iliyamo/canteen-ledger/internal/metrics"
	"github.com/iliyamo/canteen-ledger/internal/middleware"
	"github.com/iliyamo/canteen-ledger/internal/queue"
	"github.com/iliyamo/canteen-ledger/internal/repository"
	"github.com/iliyamo/canteen-ledger/internal/router"
	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
	"github.com/iliyamo/canteen-ledger/internal/utils"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFile string

	seed service.Registration

	consumeLogDir string

	rootCmd = &cobra.Command{
		Use:   "canteen-ledger",
		Short: "Multi-tenant canteen debt ledger",
		Long:  `canteen-ledger tracks what users consume from each admin's products and what they owe.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	}

	seedAdminCmd = &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account, or promote the account with that email",
		RunE: func(cmd *cobra.Command, args []string) error {
			return seedAdmin()
		},
	}

	consumeCmd = &cobra.Command{
		Use:   "consume",
		Short: "Consume debt.cleared events and append them to the notification log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return consume()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("canteen-ledger version %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	f := seedAdminCmd.Flags()
	f.StringVar(&seed.Email, "email", "", "admin email (required)")
	f.StringVar(&seed.Password, "password", "", "password, used only when the account is created")
	f.StringVar(&seed.WarName, "war-name", "", "display name / login alias")
	f.StringVar(&seed.Rank, "rank", "", "rank")
	f.StringVar(&seed.Company, "company", "", "company")
	f.StringVar(&seed.Phone, "phone", "", "phone number")
	_ = seedAdminCmd.MarkFlagRequired("email")

	consumeCmd.Flags().StringVar(&consumeLogDir, "log-dir", "logs", "directory of the notification log")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedAdminCmd, consumeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv reads the dotenv file when present; real environment variables
// take precedence.
func loadEnv() {
	if envFile == "" {
		return
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load %s: %v", envFile, err)
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	return l
}

func serve() error {
	cfg := config.Load()
	lg := newLogger(cfg)
	defer func() { _ = lg.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Error("database connection failed", zap.Error(err))
		return err
	}
	defer db.Close()

	met := metrics.New(cfg.Metrics)
	hasher := utils.Hasher{Cost: cfg.BcryptCost}
	sessions := session.NewManager(session.NewCodec(cfg.SessionSecret), cfg.CookieSecure)

	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		publisher = service.NewAMQPPublisher(cfg.AMQPURL, lg)
	}

	rlCfg := config.LoadRateLimitConfig()
	var limiter = middleware.NewTokenBucket(rlCfg, nil, lg)
	if rlCfg.Enabled {
		if rdb := config.NewRedisClient(); rdb != nil {
			defer rdb.Close()
			limiter = middleware.NewTokenBucket(rlCfg, rdb, lg)
		} else {
			lg.Warn("redis unavailable, login rate limiting disabled")
		}
	}

	users := repository.NewUserRepo(db)
	products := repository.NewProductRepo(db)
	lines := repository.NewConsumptionRepo(db)
	notifications := repository.NewNotificationRepo(db)

	e := router.New(router.Handlers{
		Auth:          handler.NewAuthHandler(service.NewAuthService(users, hasher, cfg.ResetTokenTTL, lg, met), sessions, lg),
		Users:         handler.NewUserHandler(service.NewUserService(users, lines, lg), lg),
		Products:      handler.NewProductHandler(service.NewProductService(products, lg), lg),
		Consumptions:  handler.NewConsumptionHandler(service.NewConsumptionService(lines, products, lg), lg),
		Admin:         handler.NewAdminHandler(service.NewLedgerService(users, lines, publisher, met, lg), lg),
		Notifications: handler.NewNotificationHandler(service.NewNotificationService(notifications), lg),
	}, router.Options{
		Sessions:     sessions,
		Metrics:      met,
		LoginLimiter: limiter,
		Logger:       lg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("version", version))
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func migrate() error {
	cfg := config.Load()
	lg := newLogger(cfg)
	defer func() { _ = lg.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Error("database connection failed", zap.Error(err))
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := database.NewMigrator(db, lg).Up(ctx, database.Migrations())
	if err != nil {
		lg.Error("migration failed", zap.Error(err))
		return err
	}
	lg.Info("migrations applied", zap.Int("count", n))
	return nil
}

func seedAdmin() error {
	cfg := config.Load()
	lg := newLogger(cfg)
	defer func() { _ = lg.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Error("database connection failed", zap.Error(err))
		return err
	}
	defer db.Close()

	auth := service.NewAuthService(repository.NewUserRepo(db), utils.Hasher{Cost: cfg.BcryptCost}, cfg.ResetTokenTTL, lg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	u, created, err := auth.SeedAdmin(ctx, seed)
	if err != nil {
		lg.Error("seed admin failed", zap.Error(err))
		return err
	}
	if created {
		lg.Info("admin created", zap.String("id", u.ID), zap.String("email", u.Email))
	} else {
		lg.Info("existing user promoted to admin", zap.String("id", u.ID), zap.String("email", u.Email))
	}
	return nil
}

// consume does not need the database; it only reads the broker URL and
// logger settings.
func consume() error {
	lg, err := logger.New(config.LoadLoggerConfig())
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := queue.NewConsumer(config.AMQPURL(), consumeLogDir, lg)
	lg.Info("consumer started", zap.String("queue", queue.DebtClearedQueue), zap.String("log_dir", consumeLogDir))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("consumer stopped", zap.Error(err))
		return err
	}
	return nil
}
