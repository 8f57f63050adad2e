// Package server wires the photomagic server together: storage, object
// store, vision client, background dispatch and the HTTP API. It also
// handles signals and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/dmitrijs2005/photomagic/internal/server/auth"
	"github.com/dmitrijs2005/photomagic/internal/server/cache"
	"github.com/dmitrijs2005/photomagic/internal/server/config"
	"github.com/dmitrijs2005/photomagic/internal/server/dispatch"
	"github.com/dmitrijs2005/photomagic/internal/server/httpapi"
	"github.com/dmitrijs2005/photomagic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/photomagic/internal/server/services"
	"github.com/dmitrijs2005/photomagic/internal/server/signer"
	"github.com/dmitrijs2005/photomagic/internal/server/storage"
	"github.com/dmitrijs2005/photomagic/internal/server/vision"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	vision   *vision.Client
	pool     *dispatch.Pool
	consumer *dispatch.KafkaConsumer
	server   *httpapi.Server
	closers  []func() error
}

// openStore returns the repository manager for the configured backend. db
// is nil for the memory store.
func openStore(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	switch c.Store {
	case config.StoreMemory:
		return nil, repomanager.NewMemoryRepositoryManager(), nil
	case config.StorePostgres:
		db, err := sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db init error: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("db ping error: %w", err)
		}
		rm := repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrations error: %w", err)
		}
		return db, rm, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", c.Store)
	}
}

type syncer interface {
	Sync() error
}

// syncLogger flushes buffered log entries. Sync on a terminal or pipe
// reports EINVAL or ENOTTY, which is not a lost write.
func syncLogger(s syncer) func() error {
	return func() error {
		err := s.Sync()
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return err
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	if s, isSyncer := logger.(syncer); isSyncer {
		app.closers = append(app.closers, syncLogger(s))
	}
	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	db, rm, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	app.db = db
	if db != nil {
		app.closers = append(app.closers, db.Close)
	}

	if c.RedisAddr != "" {
		rc, err := cache.ConnectRedis(ctx, c.RedisAddr)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rc.Close)
		rm = cache.WrapManager(rm, rc, c.StatusCacheTTL, logger.With("module", "task_cache"))
	}

	objects, err := storage.NewS3Store(ctx, storage.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	vc, err := vision.New(vision.Options{
		Endpoint:    c.VisionEndpoint,
		Credentials: signer.Credentials{AccessKey: c.VisionAccessKey, SecretKey: c.VisionSecretKey},
		Scope:       signer.Scope{Region: c.VisionRegion, Service: c.VisionService},
		Timeout:     c.VisionTimeout,
		Logger:      logger.With("module", "vision"),
	})
	if err != nil {
		return nil, fmt.Errorf("vision client init error: %w", err)
	}
	app.vision = vc

	// The pool runs TaskService.Run, which in turn needs the dispatcher.
	var svc *services.TaskService
	app.pool = dispatch.NewPool(c.Workers, func(ctx context.Context, job dispatch.Job) error {
		return svc.Run(ctx, job)
	}, logger.With("module", "dispatch"))

	var dispatcher dispatch.Dispatcher = app.pool
	if c.Dispatch == config.DispatchKafka {
		producer, err := dispatch.NewKafkaProducer(c.KafkaBrokers, c.KafkaTopic)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, producer.Close)
		dispatcher = producer

		consumer, err := dispatch.NewKafkaConsumer(c.KafkaBrokers, c.KafkaGroup, c.KafkaTopic, app.pool, logger.With("module", "kafka_consumer"))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, consumer.Close)
		app.consumer = consumer
	} else if c.Dispatch != config.DispatchPool {
		return nil, fmt.Errorf("unknown dispatch mode %q", c.Dispatch)
	}

	svc = services.NewTaskService(db, rm, objects, vc, dispatcher, logger.With("module", "tasks"), c)

	app.server = httpapi.NewServer(c.EndpointAddrHTTP, logger, svc, auth.NewVerifier([]byte(c.SecretKey)), c.ShutdownTimeout)

	ok = true
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) checkVision(ctx context.Context) {
	if err := app.vision.TestConnection(ctx); err != nil {
		app.logger.Warn(ctx, "vision API unreachable", "error", err)
		return
	}
	app.logger.Info(ctx, "vision API reachable")
}

// Run serves until a signal arrives or ctx is cancelled, then drains
// running jobs and releases resources.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "dispatch", app.config.Dispatch, "store", app.config.Store)

	app.initSignalHandler(cancelFunc)

	if app.config.VisionCheckOnStart {
		go app.checkVision(ctx)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	if app.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.consumer.Run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				cancelFunc()
			}
		}()
	}

	wg.Wait()

	app.logger.Info(ctx, "Waiting for running tasks...")
	app.close()
	app.logger.Info(ctx, "Stopped")
}

// close stops the pool, then closes resources in reverse order.
func (app *App) close() {
	if app.pool != nil {
		app.pool.Close()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
