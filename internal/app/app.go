package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-import/internal/auth/jwt"
	"github.com/gokatarajesh/quiz-import/internal/config"
	"github.com/gokatarajesh/quiz-import/internal/db"
	"github.com/gokatarajesh/quiz-import/internal/db/repository"
	"github.com/gokatarajesh/quiz-import/internal/logging"
	"github.com/gokatarajesh/quiz-import/internal/quizimport"
	"github.com/gokatarajesh/quiz-import/internal/server"
	"github.com/gokatarajesh/quiz-import/internal/storage"
	"github.com/gokatarajesh/quiz-import/internal/store"
	"github.com/gokatarajesh/quiz-import/internal/store/pgstore"
	"github.com/gokatarajesh/quiz-import/internal/store/sqlstore"
	ws "github.com/gokatarajesh/quiz-import/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	sqlDB *sql.DB
	redis *redis.Client
	http  *http.Server

	sweeper   *quizimport.OrphanSweeper
	bgCancels []context.CancelFunc
}

type tableStore interface {
	store.TableStore
	server.Pinger
}

// New bootstraps logger, database, Redis, storage and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("starting application bootstrap")

	a := &Application{
		cfg:       cfg,
		logger:    logger,
		bgCancels: make([]context.CancelFunc, 0, 1),
	}

	tables, err := a.openStore(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	var previewCache quizimport.PreviewCache
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		previewCache = quizimport.NewCache(a.redis, cfg.Import.PreviewCacheTTL)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; preview cache disabled")
	}

	objects, err := storage.NewFSStore(cfg.Storage.BasePath, cfg.Storage.PublicBaseURL)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	quizRepo := repository.NewQuizRepository(tables, repository.QuizRepositoryOptions{
		Transactional: cfg.Database.Transactional,
	}, logger)
	uploadRepo := repository.NewUploadRepository(tables)

	hub := ws.NewHub(logger)
	importer := quizimport.NewImporter(
		quizRepo,
		objects,
		uploadRepo,
		previewCache,
		quizimport.NewHubReporter(hub, logger),
		quizimport.Options{
			StrictImages:      cfg.Import.StrictImages,
			MaxImageBytes:     cfg.Import.MaxImageBytes,
			MaxEntryBytes:     cfg.Import.MaxEntryBytes,
			PreviewQuestions:  cfg.Import.PreviewQuestions,
			UploadConcurrency: cfg.Import.UploadConcurrency,
			ImagePathPrefix:   cfg.Import.ImagePathPrefix,
		},
		logger,
	)

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Security.JWTIssuer,
	})

	a.http = server.NewHTTPServer(cfg, logger, tables, a.redis, server.Handlers{
		Import:   quizimport.NewHTTPHandler(importer, quizRepo, cfg.Import.MaxUploadBytes, logger),
		Progress: quizimport.NewProgressHandler(hub, server.WSUpgrader, logger),
		Media:    objects.Handler(),
		Tokens:   tokens,
	})

	a.sweeper = quizimport.NewOrphanSweeper(uploadRepo, quizRepo, cfg.Sweeper.Interval, logger)

	return a, nil
}

func (a *Application) openStore(ctx context.Context) (tableStore, error) {
	switch db.Driver(a.cfg.Database.Driver) {
	case db.DriverSQLite:
		conn, err := db.Open(ctx, db.DriverSQLite, a.cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		a.sqlDB = conn
		if a.cfg.Database.AutoMigrate {
			if err := db.Migrate(conn, db.DriverSQLite); err != nil {
				return nil, fmt.Errorf("migrate sqlite: %w", err)
			}
		}
		return sqlstore.New(conn), nil

	default:
		dsn := a.cfg.Postgres.DSN()
		if a.cfg.Database.AutoMigrate {
			conn, err := db.Open(ctx, db.DriverPostgres, dsn)
			if err != nil {
				return nil, err
			}
			err = db.Migrate(conn, db.DriverPostgres)
			conn.Close()
			if err != nil {
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		pool, err := pgxpool.New(ctx, a.cfg.Postgres.PoolDSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		return pgstore.New(pool), nil
	}
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.closeResources()
	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) closeResources() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.logger.Error().Err(err).Msg("sqlite shutdown error")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.sweeper != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.sweeper.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("orphan sweeper stopped")
			}
		}()
	}
}
