package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cognicore/lexcase/internal/corpus"
	"github.com/cognicore/lexcase/pkg/lexcase"
	"github.com/cognicore/lexcase/pkg/lexcase/config"
	"github.com/cognicore/lexcase/pkg/lexcase/document"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Pipeline config YAML (optional)")
		dataPath      = flag.String("data", "", "Input JSONL file (required)")
		termsPath     = flag.String("terms", "", "Term dictionary file (optional)")
		gazetteerPath = flag.String("gazetteer", "", "Gazetteer YAML for name and address masking (optional)")
		envPath       = flag.String("env", ".env", "Environment file (optional)")
		metricsAddr   = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while indexing (optional)")
	)
	flag.Parse()

	log := logrus.New()
	if *dataPath == "" {
		log.Fatal("--data required")
	}
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.Loader{
		ConfigPath:    *configPath,
		TermsPath:     *termsPath,
		GazetteerPath: *gazetteerPath,
		Getenv:        os.Getenv,
	}
	comp, err := loader.Load(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	log = comp.Logger

	engine := lexcase.New(lexcase.Options{
		Pipeline: comp.Pipeline(),
		Store:    comp.Store,
		Index:    comp.Index,
		Versions: comp.Versions,
		Monitor:  comp.Monitor,
		Closer:   comp.Close,
	})
	defer engine.Close()
	if *metricsAddr != "" {
		serveMetrics(ctx, *metricsAddr, comp.Monitor.Handler(), log)
	}

	records, err := corpus.LoadFromJSONL(*dataPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load documents")
	}
	log.WithFields(logrus.Fields{"file": *dataPath, "documents": len(records)}).Info("loaded corpus")

	docs := make([]document.Input, len(records))
	for i, rec := range records {
		docs[i] = rec.Input()
	}

	ids, err := engine.Ingest(ctx, docs)
	if err != nil {
		log.WithError(err).Warn("indexing interrupted")
	}

	stats := engine.Stats()
	metrics := engine.Metrics()
	log.WithFields(logrus.Fields{
		"total":        stats.Total,
		"processed":    stats.Processed,
		"failed":       stats.Failed,
		"succeeded":    len(ids),
		"duration":     stats.Duration().String(),
		"success_rate": fmt.Sprintf("%.1f%%", stats.SuccessRate()*100),
	}).Info("indexing complete")
	for stage, s := range metrics.Stages {
		log.WithFields(logrus.Fields{
			"stage":      stage,
			"runs":       s.Count,
			"failures":   s.Failures,
			"average_ms": s.Average().Milliseconds(),
		}).Debug("stage timing")
	}
	for rule, n := range metrics.ValidationErrors {
		log.WithFields(logrus.Fields{"rule": rule, "count": n}).Info("validation errors")
	}
}

// serveMetrics exposes the monitor's registry on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, h http.Handler, log logrus.FieldLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.WithField("addr", addr).Info("serving metrics")
}
