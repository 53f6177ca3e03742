package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-intake/api/handlers"
	"github.com/feichai0017/document-intake/api/routes"
	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/internal/repository"
	"github.com/feichai0017/document-intake/internal/security"
	"github.com/feichai0017/document-intake/internal/service/account"
	"github.com/feichai0017/document-intake/internal/service/upload"
	"github.com/feichai0017/document-intake/internal/utils/validator"
	"github.com/feichai0017/document-intake/pkg/database"
	"github.com/feichai0017/document-intake/pkg/logger"
	"github.com/feichai0017/document-intake/pkg/queue"
	"github.com/feichai0017/document-intake/pkg/storage"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log, "api")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
		log.Info("Database migrations applied")
	}

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}

	dispatcher, err := queue.NewDispatcher(cfg.Queue, log)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	tokens, err := security.NewTokenService(cfg.JWT)
	if err != nil {
		return err
	}

	vcfg := validator.DefaultConfig()
	vcfg.MaxFileSize = cfg.Server.MaxUploadBytes

	accounts := account.NewService(repository.NewUserRepository(db), tokens, cfg.JWT.AccessTokenTTL(), log)
	uploads := upload.NewService(
		repository.NewDocumentRepository(db),
		store,
		dispatcher,
		validator.NewDocumentValidator(log, vcfg),
		log,
	)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	routes.SetupRoutes(r, handlers.NewHandlers(uploads, accounts, cfg.Server.MaxUploadBytes, log), routes.Options{
		AllowOrigins:  cfg.Server.AllowOrigins,
		Authenticator: accounts,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		// graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
