package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/openmarkets/totem/internal/config"
	"github.com/openmarkets/totem/internal/engine"
	"github.com/openmarkets/totem/internal/events"
	"github.com/openmarkets/totem/internal/handler"
	"github.com/openmarkets/totem/internal/ledger"
	"github.com/openmarkets/totem/internal/logger"
	"github.com/openmarkets/totem/internal/oracle"
	"github.com/openmarkets/totem/internal/service"
	"github.com/openmarkets/totem/internal/store"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "totem",
		Usage: "LMSR binary prediction market engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the market API server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.StringFlag{
						Name:    "database-url",
						Usage:   "PostgreSQL connection string (empty disables persistence)",
						EnvVars: []string{"DATABASE_URL"},
					},
					&cli.StringFlag{
						Name:    "redis-url",
						Usage:   "Redis URL for the event stream (empty logs events instead)",
						EnvVars: []string{"REDIS_URL"},
					},
					&cli.StringFlag{
						Name:    "oracle-url",
						Usage:   "Base URL of the price feed oracle",
						EnvVars: []string{"ORACLE_URL"},
					},
					&cli.Int64Flag{
						Name:    "price-move-limit",
						Value:   config.DefaultPriceMoveLimit,
						Usage:   "Max spot price move per trade chunk (18-decimal fraction)",
						EnvVars: []string{"PRICE_MOVE_LIMIT"},
					},
					&cli.DurationFlag{
						Name:    "oracle-timeout",
						Value:   config.DefaultOracleTimeout,
						Usage:   "Timeout for oracle reads during resolution",
						EnvVars: []string{"ORACLE_TIMEOUT"},
					},
					&cli.DurationFlag{
						Name:    "oracle-max-age",
						Value:   config.DefaultOracleMaxAge,
						Usage:   "Staleness cutoff for oracle readings",
						EnvVars: []string{"ORACLE_MAX_AGE"},
					},
					&cli.StringFlag{
						Name:    "treasury-account",
						Value:   config.TreasuryAccount,
						Usage:   "Ledger account receiving the treasury fee cut",
						EnvVars: []string{"TREASURY_ACCOUNT"},
					},
				},
				Action: runServe,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context
	log := slog.Default()

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	// Event sink: Redis when configured, structured logs otherwise.
	var sink events.Sink
	if redisURL := c.String("redis-url"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		defer rdb.Close()
		sink = events.MultiSink{events.NewRedisSink(rdb, config.EventsChannel), events.NewLogSink(log)}
	}

	var src oracle.Source
	if oracleURL := c.String("oracle-url"); oracleURL != "" {
		src = oracle.NewHTTPClient(oracleURL)
	}

	eng := engine.New(ledger.NewInMemory(), src, sink, engine.Config{
		PriceMoveLimit:  sdkmath.NewInt(c.Int64("price-move-limit")),
		OracleTimeout:   c.Duration("oracle-timeout"),
		OracleMaxAge:    c.Duration("oracle-max-age"),
		DustThreshold:   config.DustThreshold,
		TreasuryAccount: c.String("treasury-account"),
	}, log)

	var db service.Persistence
	if databaseURL := c.String("database-url"); databaseURL != "" {
		st, err := store.New(ctx, databaseURL)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
		db = st
	}

	marketService := service.NewMarketService(eng, db, log)
	marketHandler := handler.NewMarketHandler(marketService, log)

	mux := http.NewServeMux()
	marketHandler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server",
			"addr", "http://localhost:"+port,
			"persistence", db != nil,
			"events", sink != nil,
			"oracle", src != nil,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}
