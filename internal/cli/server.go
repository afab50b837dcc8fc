package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"liveclass-service/internal/app"
	"liveclass-service/internal/config"
	"liveclass-service/internal/infra/memory"
	infrapg "liveclass-service/internal/infra/postgres"
	infraredis "liveclass-service/internal/infra/redis"
	transport "liveclass-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ticketTTL := config.TTLDuration(cfg.Ticket.TTL, 30*time.Second)

	var tickets app.TicketStore
	if cfg.Redis.Addr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		tickets = infraredis.NewTicketStore(redisClient, ticketTTL)
	} else {
		log.Warn("redis not configured, using in-memory ticket store")
		tickets = memory.NewTicketStore(ticketTTL)
	}

	var store app.Store
	var reader app.LiveReader
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store = infrapg.NewStore(db)
		reader = infrapg.NewLiveLoader(pool)
	} else {
		log.Warn("postgres not configured, using in-memory store")
		mem := memory.NewStore()
		store = mem
		reader = mem
	}

	hub := transport.NewHub(log)
	service := app.NewLiveService(store, reader, hub, log)
	wsHandler := transport.NewWSHandler(service, tickets, hub, log)
	apiHandler := transport.NewAPIHandler(service, tickets, cfg.Auth.Secret, log)

	mux := http.NewServeMux()
	apiHandler.Register(mux)
	mux.HandleFunc("GET /ws/instructor", wsHandler.ServeInstructor)
	mux.HandleFunc("GET /ws/student", wsHandler.ServeStudent)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections are long-lived.
	}

	go func() {
		log.Info("starting live quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(mode string) (*zap.Logger, error) {
	switch mode {
	case "prod", "production":
		return zap.NewProduction()
	default:
		return zap.NewDevelopment()
	}
}
