package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dcervantes/foliovault/internal/agreements"
	"github.com/dcervantes/foliovault/internal/api"
	"github.com/dcervantes/foliovault/internal/blobstore"
	"github.com/dcervantes/foliovault/internal/config"
	"github.com/dcervantes/foliovault/internal/database"
	"github.com/dcervantes/foliovault/internal/documents"
	"github.com/dcervantes/foliovault/internal/extract"
	"github.com/dcervantes/foliovault/internal/queue"
	"github.com/dcervantes/foliovault/internal/repository"
	"github.com/dcervantes/foliovault/internal/signing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	docStore := repository.NewDocumentRepository(pool)
	agrStore := repository.NewAgreementRepository(pool)

	blobs, err := blobstore.NewMinio(cfg)
	if err != nil {
		log.Fatalf("init blob store: %v", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	// With Redis configured, extraction runs on the dedicated asynq worker;
	// otherwise an in-process pool keeps single-binary deployments working.
	var extractor documents.Extractor
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		extractor = queue.NewEnqueuer(client)
	} else {
		pool := extract.NewPool(docStore, blobs, cfg.ExtractWorkers)
		pool.Start(ctx)
		extractor = pool
	}

	docs := documents.NewManager(docStore, blobs, extractor, cfg.DeleteReplacedPayloads)
	agrs := agreements.NewManager(agrStore, cfg.WindowDays)
	signer := signing.NewSigner(cfg.SigningSecret)

	srv := api.New(cfg, docs, agrs, blobs, signer)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
