package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"promptstats/internal/artifact"
	"promptstats/internal/cachestore"
	"promptstats/internal/civitai"
	"promptstats/internal/config"
	"promptstats/internal/hashing"
	"promptstats/internal/modelfs"
	"promptstats/internal/promptstats"
)

func main() {
	var (
		fileName = flag.String("file", "", "model file name (relative to a model directory)")
		kind     = flag.String("kind", "checkpoint", "model kind: checkpoint or lora")
		listOnly = flag.Bool("list", false, "list model files and exit")
		topN     = flag.Int("top", 20, "number of report lines (1-200)")
		pages    = flag.Int("pages", 3, "image pages to fetch (1-50)")
		sort     = flag.String("sort", civitai.SortMostReactions, `sort order: "Most Reactions", "Most Comments" or "Newest"`)
		timeout  = flag.Int("timeout", 10, "per-request timeout in seconds (1-60)")
		retries  = flag.Int("retries", 2, "retries per page (0-5)")
		force    = flag.Bool("force", false, "bypass the result cache")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dirs := cfg.CheckpointDirs
	isLoRA := strings.EqualFold(*kind, "lora")
	if isLoRA {
		dirs = cfg.LoRADirs
	}
	roots, err := modelfs.New(dirs...)
	if err != nil {
		log.Fatalf("model directories: %v", err)
	}

	if *listOnly {
		names, err := roots.List()
		if err != nil {
			log.Fatalf("list models: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	if strings.TrimSpace(*fileName) == "" {
		flag.Usage()
		os.Exit(2)
	}
	path, err := roots.Resolve(*fileName)
	if err != nil {
		log.Fatalf("resolve model: %v", err)
	}

	svc, err := buildService(cfg)
	if err != nil {
		log.Fatalf("build service: %v", err)
	}

	params := promptstats.Params{
		FileName:     *fileName,
		TopN:         *topN,
		MaxPages:     *pages,
		Sort:         *sort,
		Timeout:      time.Duration(*timeout) * time.Second,
		MaxRetries:   *retries,
		ForceRefresh: *force,
	}

	ctx := context.Background()
	if isLoRA {
		rep := svc.ExecuteLoRA(ctx, path, params)
		printReport(rep.Report)
		fmt.Printf("\n== trigger words (embedded) ==\n%s\n", rep.LocalTriggers)
		fmt.Printf("\n== trigger words (civitai) ==\n%s\n", rep.RemoteTriggers)
		return
	}
	printReport(svc.Execute(ctx, path, params))
}

func printReport(rep promptstats.Report) {
	fmt.Printf("== positive prompt tags ==\n%s\n", rep.Positive)
	fmt.Printf("\n== negative prompt tags ==\n%s\n", rep.Negative)
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
