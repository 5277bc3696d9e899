package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promptstats/internal/artifact"
	"promptstats/internal/cachestore"
	"promptstats/internal/civitai"
	"promptstats/internal/config"
	"promptstats/internal/hashing"
	"promptstats/internal/modelfs"
	"promptstats/internal/promptstats"
	"promptstats/internal/server"
)

func main() {
	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	svc, err := buildService(cfg)
	if err != nil {
		log.Fatalf("build service: %v", err)
	}

	checkpoints, err := modelfs.New(cfg.CheckpointDirs...)
	if err != nil {
		log.Printf("checkpoint directories unavailable: %v", err)
	}
	loras, err := modelfs.New(cfg.LoRADirs...)
	if err != nil {
		log.Printf("lora directories unavailable: %v", err)
	}

	handler := server.NewHandler(svc, checkpoints, loras)
	srv := server.New(*port, server.NewMux(handler))

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func buildService(cfg *config.Config) (*promptstats.Service, error) {
	memo, err := cachestore.NewHashMemo(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	identifier, err := hashing.NewIdentifier(memo)
	if err != nil {
		return nil, err
	}
	results, err := cachestore.NewResultStoreFromEnv(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	triggers, err := cachestore.NewTriggerStore(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	var archive promptstats.ReportArchive
	if cfg.Archive.Enabled {
		store, err := artifact.NewReportStore(artifact.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			log.Printf("report archive disabled: %v", err)
		} else {
			archive = store
		}
	}

	return promptstats.New(promptstats.Options{
		Identifier: identifier,
		Client:     civitai.NewClient(cfg.CivitaiBaseURL),
		Results:    results,
		Triggers:   triggers,
		Archive:    archive,
	})
}
