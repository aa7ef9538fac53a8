package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cognicore/lexcase/internal/corpus"
	"github.com/cognicore/lexcase/internal/inbox"
	"github.com/cognicore/lexcase/pkg/lexcase"
	"github.com/cognicore/lexcase/pkg/lexcase/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "Pipeline config YAML (optional)")
		dir        = flag.String("inbox", "", "Directory to watch (required)")
		settle     = flag.Duration("settle", inbox.DefaultSettle, "Quiet period before a file is processed")
		envPath    = flag.String("env", ".env", "Environment file (optional)")
		metrics    = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (optional)")
	)
	flag.Parse()

	log := logrus.New()
	if *dir == "" {
		log.Fatal("--inbox required")
	}
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comp, err := (&config.Loader{ConfigPath: *configPath, Getenv: os.Getenv}).Load(ctx)
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
	if *metrics != "" {
		serveMetrics(ctx, *metrics, comp.Monitor.Handler(), log)
	}

	w, err := inbox.New(nil, *settle, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create watcher")
	}
	defer w.Stop()

	paths, err := w.Watch(ctx, *dir)
	if err != nil {
		log.WithError(err).Fatal("failed to watch inbox")
	}
	log.WithField("inbox", *dir).Info("watching for case files")

	for path := range paths {
		in, err := corpus.LoadFile(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("skipping file")
			continue
		}
		start := time.Now()
		out, err := engine.IngestOne(ctx, in, nil)
		if err != nil {
			log.WithError(err).WithField("file", path).Error("processing failed")
			continue
		}
		log.WithFields(logrus.Fields{
			"file":        path,
			"doc_id":      out.DocID,
			"version_id":  out.VersionID,
			"chunks":      len(out.ChunkIDs),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("processed")
	}

	s := engine.Stats()
	log.WithFields(logrus.Fields{"processed": s.Processed, "failed": s.Failed}).Info("watcher stopped")
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
