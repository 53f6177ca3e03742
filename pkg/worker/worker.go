package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/queue"
)

type Worker interface {
	// Run serves tasks until ctx is cancelled, then drains in-flight work.
	Run(ctx context.Context) error
}

type Config struct {
	RedisOpt        asynq.RedisConnOpt
	Concurrency     int
	Queues          map[string]int
	ShutdownTimeout time.Duration
}

// NewConfig builds a worker Config listening on the single configured queue.
func NewConfig(cfg config.QueueConfig) (*Config, error) {
	opt, err := queue.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return &Config{
		RedisOpt:        opt,
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{cfg.Name: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

type BaseWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger logger.Logger
}

func newBaseWorker(cfg *Config, log logger.Logger) BaseWorker {
	server := asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          cfg.Queues,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          asynqLogger{log: log.Named("asynq")},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Error("Task failed",
				logger.String("type", t.Type()),
				logger.Int("retried", retried),
				logger.Int("maxRetry", maxRetry),
				logger.Error(err),
			)
		}),
	})
	return BaseWorker{
		server: server,
		mux:    asynq.NewServeMux(),
		logger: log,
	}
}

func (w *BaseWorker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.logger.Info("Worker started")

	<-ctx.Done()
	w.logger.Info("Shutting down worker...")
	w.server.Shutdown()
	return nil
}

// asynqLogger routes asynq's own logging through our logger.
type asynqLogger struct {
	log logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }
