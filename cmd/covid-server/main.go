package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/covidtrack/covid-server/internal/config"
	"github.com/covidtrack/covid-server/internal/domain/caserecord"
	"github.com/covidtrack/covid-server/internal/domain/dashboard"
	"github.com/covidtrack/covid-server/internal/domain/forecast"
	"github.com/covidtrack/covid-server/internal/domain/identity"
	"github.com/covidtrack/covid-server/internal/domain/location"
	"github.com/covidtrack/covid-server/internal/domain/reminder"
	"github.com/covidtrack/covid-server/internal/domain/statestats"
	"github.com/covidtrack/covid-server/internal/domain/vaccination"
	"github.com/covidtrack/covid-server/internal/platform/auth"
	"github.com/covidtrack/covid-server/internal/platform/db"
	"github.com/covidtrack/covid-server/internal/platform/middleware"
	"github.com/covidtrack/covid-server/internal/platform/notification"
	"github.com/covidtrack/covid-server/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "covid-server",
		Short:         "COVID-19 patient, case and vaccination records API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(countCmd())
	rootCmd.AddCommand(remindCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:          cfg.DatabaseURL,
		MaxConns:     cfg.DBMaxConns,
		MinConns:     cfg.DBMinConns,
		PingAttempts: 5,
		PingBackoff:  500 * time.Millisecond,
	}
}

// connect loads and validates the configuration and opens the pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print row counts per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			counts, err := dashboard.NewRepoPG(pool).TableCounts(ctx)
			if err != nil {
				return err
			}
			printCounts(cmd.OutOrStdout(), counts)
			return nil
		},
	}
}

func printCounts(w io.Writer, c dashboard.TableCounts) {
	for _, row := range []struct {
		table string
		n     int
	}{
		{"users", c.Users},
		{"patients", c.Patients},
		{"locations", c.Locations},
		{"case_records", c.CaseRecords},
		{"vaccinations", c.Vaccinations},
		{"state_stats", c.StateStats},
	} {
		fmt.Fprintf(w, "%-14s %d\n", row.table, row.n)
	}
}

func remindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Compute due reminders once and publish them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			logger := newLogger(cfg.Env, os.Stderr)

			pub, err := newPublisher(cfg, logger)
			if err != nil {
				return err
			}
			dispatcher := notification.NewDispatcher(pub, 0)
			defer dispatcher.Close()

			svc := reminder.NewService(reminder.NewRepoPG(pool), db.PoolTxRunner{Pool: pool})
			res := reminder.NewSweeper(svc, dispatcher, logger).RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "due=%d sent=%d failed=%d\n", res.Due, res.Sent, res.Failed)
			return nil
		},
	}
}

// newPublisher publishes to RabbitMQ when AMQP_URL is set and to the log
// otherwise.
func newPublisher(cfg *config.Config, logger zerolog.Logger) (notification.Publisher, error) {
	if cfg.AMQPURL == "" {
		return notification.NewLogPublisher(logger), nil
	}
	pub, err := notification.NewAMQPPublisher(cfg.AMQPURL, cfg.ReminderQueue)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("queue", cfg.ReminderQueue).Msg("publishing reminders to RabbitMQ")
	return pub, nil
}

// apiOnly applies mw to requests under /api and passes the rest through.
func apiOnly(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := mw(next)
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				return wrapped(c)
			}
			return next(c)
		}
	}
}

type routes struct {
	identity     *identity.Handler
	locations    *location.Handler
	cases        *caserecord.Handler
	vaccinations *vaccination.Handler
	reminders    *reminder.Handler
	deliveries   *notification.Handler
	stream       *websocket.Handler
	stateStats   *statestats.Handler
	dashboard    *dashboard.Handler
	forecast     *forecast.Handler
}

// newEcho builds the HTTP server: global middleware first, then every route
// group under /api.
func newEcho(cfg *config.Config, logger zerolog.Logger, verifier auth.Verifier, pinger db.Pinger, r routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(apiOnly(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	})))
	e.Use(auth.Authenticate(verifier, auth.AuthSkipper))

	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})
	if pinger != nil {
		e.GET("/health/db", db.HealthHandler(pinger))
	}

	api := e.Group("/api")
	r.identity.RegisterRoutes(api)
	r.locations.RegisterRoutes(api)
	r.cases.RegisterRoutes(api)
	r.vaccinations.RegisterRoutes(api)
	r.reminders.RegisterRoutes(api)
	r.deliveries.RegisterRoutes(api.Group("/notifications/admin", auth.RequireRole(auth.RoleAdmin)))
	r.stream.RegisterRoutes(api)
	r.stateStats.RegisterRoutes(api)
	r.dashboard.RegisterRoutes(api)
	r.forecast.RegisterRoutes(api)
	return e
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tx := db.PoolTxRunner{Pool: pool}
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	hub := websocket.NewHub()
	dispatcher := notification.NewDispatcher(notification.Fanout{pub, hub}, 0)
	defer dispatcher.Close()

	identitySvc := identity.NewService(identity.NewUserRepoPG(pool), identity.NewPatientRepoPG(pool), tx, issuer, cfg.BcryptCost)
	reminderSvc := reminder.NewService(reminder.NewRepoPG(pool), tx)
	dashboardRepo := dashboard.NewRepoPG(pool)

	e := newEcho(cfg, logger, issuer, pool, routes{
		identity:     identity.NewHandler(identitySvc),
		locations:    location.NewHandler(location.NewService(location.NewRepoPG(pool))),
		cases:        caserecord.NewHandler(caserecord.NewService(caserecord.NewRepoPG(pool))),
		vaccinations: vaccination.NewHandler(vaccination.NewService(vaccination.NewRepoPG(pool), tx)),
		reminders:    reminder.NewHandler(reminderSvc),
		deliveries:   notification.NewHandler(dispatcher),
		stream:       websocket.NewHandler(hub, logger),
		stateStats:   statestats.NewHandler(statestats.NewService(statestats.NewRepoPG(pool))),
		dashboard:    dashboard.NewHandler(dashboardRepo),
		forecast:     forecast.NewHandler(forecast.NewService(forecast.NewSource(cfg.PredictCSVPath), forecast.LinearForecaster{})),
	})

	if cfg.ReminderCron != "" {
		sweeper := reminder.NewSweeper(reminderSvc, dispatcher, logger)
		if err := sweeper.Start(ctx, cfg.ReminderCron); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule reminder sweep")
		}
		defer sweeper.Stop()
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
