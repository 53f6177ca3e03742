// Command migrate applies or reverts the embedded database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/feichai0017/document-intake/config"
	"github.com/feichai0017/document-intake/pkg/database"
	"github.com/feichai0017/document-intake/pkg/logger"
)

func main() {
	down := flag.Bool("down", false, "revert the most recent migration instead of applying all")
	flag.Parse()

	cfg, err := config.Get()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, "migrate")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", logger.Error(err))
	}
	defer db.Close()

	if *down {
		err = database.Rollback(ctx, db.DB)
	} else {
		err = database.Migrate(ctx, db.DB)
	}
	if err != nil {
		log.Fatal("Migration failed", logger.Error(err))
	}
	log.Info("Migrations finished", logger.Bool("down", *down))
}
