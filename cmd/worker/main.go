package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/internal/pipeline"
	"github.com/feichai0017/document-intake/internal/repository"
	"github.com/feichai0017/document-intake/pkg/database"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/queue"
	"github.com/feichai0017/document-intake/pkg/storage"
	"github.com/feichai0017/document-intake/pkg/worker"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log, "worker")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Worker exited with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}

	dispatcher, err := queue.NewDispatcher(cfg.Queue, log)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	workerCfg, err := worker.NewConfig(cfg.Queue)
	if err != nil {
		return err
	}

	stub := pipeline.NewStub(repository.NewDocumentRepository(db), store, log)
	var w worker.Worker = worker.NewUploadWorker(workerCfg, stub, dispatcher, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	return g.Wait()
}
