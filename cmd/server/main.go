package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "kudos/internal/jwt_token"
	"kudos/internal/karma"
	"kudos/internal/karma/handler"
	karmametrics "kudos/internal/karma/metrics"
	"kudos/internal/ledger"
	"kudos/internal/notify"
	"kudos/internal/platform/config"
	"kudos/internal/platform/httpserver"
	"kudos/internal/platform/logger"
	platformmetrics "kudos/internal/platform/metrics"
	"kudos/internal/platform/middleware"
	platformredis "kudos/internal/platform/redis"
	"kudos/internal/platform/secrets"
	"kudos/internal/rank"
	"kudos/internal/stream"
)

const (
	jwtIssuer   = "kudos"
	jwtAudience = "kudos-api"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable ledger: postgres in production, in-memory for local runs.
	var store ledger.Store
	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		pg := ledger.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
		log.Info("ledger backed by postgres")
	} else {
		store = ledger.NewMemory()
		log.Warn("no postgres configured, ledger is in-memory")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	source, publisher, closePublisher, err := buildStream(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	m := karmametrics.New()

	worker := notify.NewWorker(notify.NewSlogSink(log),
		notify.WithLogger(log),
		notify.WithDropCallback(m.NotificationsDropped.Inc),
	)

	agg := karma.New(store, source, worker, rank.Default(),
		karma.WithLogger(log),
		karma.WithMetrics(m),
		karma.WithSnapshotLimit(cfg.SnapshotLimit),
	)
	defer agg.Close()

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)
	validator := jwttoken.NewJWTServiceAdapter(jwtService)
	apiKeys := secrets.NewVerifier(cfg.APIKeyHash)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Latency(platformmetrics.New()))
	router.Get("/healthz", healthz(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, apiKeys, log))
		handler.New(agg, store, publisher, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting kudos server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStream selects the live transport: kafka when brokers are configured,
// redis pub/sub when a redis URL is set, otherwise an in-process stream.
func buildStream(ctx context.Context, cfg config.Server, redisClient *platformredis.Client, log *slog.Logger) (karma.Source, handler.Publisher, func(), error) {
	noop := func() {}

	if len(cfg.Kafka.Brokers) > 0 {
		source, err := stream.NewKafkaSource(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return nil, nil, noop, err
		}
		publisher, err := stream.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, noop, err
		}
		log.Info("live stream backed by kafka", "topic", cfg.Kafka.Topic)
		return source, publisher, func() { _ = publisher.Close() }, nil
	}

	if redisClient != nil {
		log.Info("live stream backed by redis pub/sub")
		return stream.NewRedisSource(redisClient.Client, log), stream.NewRedisPublisher(redisClient.Client), noop, nil
	}

	log.Warn("no kafka or redis configured, live stream is in-process")
	source := stream.NewMemorySource()
	return source, source, noop, nil
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
