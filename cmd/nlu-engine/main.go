// cmd/nlu-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storewaladotcom/snips-nlu/internal/common/config"
	"github.com/storewaladotcom/snips-nlu/internal/common/logger"
	"github.com/storewaladotcom/snips-nlu/internal/dataset"
	"github.com/storewaladotcom/snips-nlu/internal/nlu"
	"github.com/storewaladotcom/snips-nlu/internal/server"

	// Intent parser strategies register themselves at import time.
	_ "github.com/storewaladotcom/snips-nlu/internal/parsers/deterministic"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(os.Args[2:])
	case "parse":
		err = runParse(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: nlu-engine <command> [flags]

commands:
  train   fit an engine on a dataset and persist the trained model
  parse   parse an input with a trained model
  serve   expose a trained model over HTTP`)
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	datasetPath := fs.String("dataset", "", "path to the JSON dataset")
	outDir := fs.String("out", "", "output directory for the trained model (must not exist)")
	force := fs.Bool("force", false, "retrain sub-units that are already fitted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *datasetPath == "" || *outDir == "" {
		return fmt.Errorf("train: -dataset and -out are required")
	}

	log := logger.New("info", "console")
	defer func() { _ = log.Sync() }()

	doc, err := os.ReadFile(*datasetPath)
	if err != nil {
		return fmt.Errorf("reading dataset: %w", err)
	}
	ds, err := dataset.FromJSON(doc)
	if err != nil {
		return err
	}

	engine := nlu.New(nil, nlu.WithLogger(logger.NewZapAdapter(log)))
	start := time.Now()
	if err := engine.Fit(ds, *force); err != nil {
		return err
	}
	log.Info("engine fitted",
		zap.String("language", ds.Language),
		zap.Int("intents", len(ds.Intents)),
		zap.Duration("duration", time.Since(start)))

	if err := engine.Persist(*outDir); err != nil {
		return err
	}
	log.Info("model persisted", zap.String("dir", *outDir))
	return nil
}

func runParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	modelDir := fs.String("model", "", "directory of the trained model")
	text := fs.String("text", "", "input to parse")
	intents := fs.String("intents", "", "comma-separated intent restriction")
	topN := fs.Int("top-n", 0, "return the top N intents instead of the single best")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelDir == "" || *text == "" {
		return fmt.Errorf("parse: -model and -text are required")
	}

	engine, err := nlu.FromPath(*modelDir)
	if err != nil {
		return err
	}

	var restriction []string
	if *intents != "" {
		restriction = strings.Split(*intents, ",")
	}

	var payload interface{}
	if *topN > 0 {
		payload, err = engine.ParseTopN(*text, restriction, *topN)
	} else {
		payload, err = engine.Parse(*text, restriction)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	modelDir := fs.String("model", "", "directory of the trained model (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *modelDir != "" {
		cfg.Engine.ModelDir = *modelDir
	}
	if cfg.Engine.ModelDir == "" {
		return fmt.Errorf("serve: no model directory configured")
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	engine, err := nlu.FromPath(cfg.Engine.ModelDir, nlu.WithLogger(log))
	if err != nil {
		return err
	}
	zapLog.Info("model loaded", zap.String("dir", cfg.Engine.ModelDir))

	opts := []server.Option{server.WithLogger(log)}
	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Address,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			zapLog.Warn("redis unreachable, parse cache disabled", zap.Error(err))
		} else {
			opts = append(opts, server.WithCache(client, time.Duration(cfg.Cache.TTL)*time.Second))
			zapLog.Info("parse cache enabled", zap.String("addr", cfg.Cache.Address))
		}
		cancel()
	}

	srv := server.New(engine, opts...)
	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("http server listening", zap.String("addr", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		zapLog.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
