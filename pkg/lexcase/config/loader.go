package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cognicore/lexcase/pkg/lexcase/index"
	"github.com/cognicore/lexcase/pkg/lexcase/index/memindex"
	"github.com/cognicore/lexcase/pkg/lexcase/index/ollama"
	"github.com/cognicore/lexcase/pkg/lexcase/index/pgvector"
	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/legal"
	"github.com/cognicore/lexcase/pkg/lexcase/monitor"
	"github.com/cognicore/lexcase/pkg/lexcase/ner"
	"github.com/cognicore/lexcase/pkg/lexcase/pii"
	"github.com/cognicore/lexcase/pkg/lexcase/pipeline"
	"github.com/cognicore/lexcase/pkg/lexcase/store"
	"github.com/cognicore/lexcase/pkg/lexcase/store/memstore"
	"github.com/cognicore/lexcase/pkg/lexcase/store/postgres"
	"github.com/cognicore/lexcase/pkg/lexcase/store/sqlite"
	"github.com/cognicore/lexcase/pkg/lexcase/validate"
	"github.com/cognicore/lexcase/pkg/lexcase/versions"
	"github.com/cognicore/lexcase/pkg/lexcase/versions/s3store"
)

// Loader loads configuration files and opens the configured backends.
// TermsPath and GazetteerPath override the paths named in the config.
type Loader struct {
	ConfigPath    string
	TermsPath     string
	GazetteerPath string
	Getenv        func(string) string
	Logger        *logrus.Logger
}

// Components holds everything needed to build a pipeline.
type Components struct {
	Config    Config
	Logger    *logrus.Logger
	Store     store.Store
	Versions  *versions.Manager
	Index     index.Index
	Masker    *pii.Masker
	Extractor *legal.Extractor
	Validator *validate.Validator
	Monitor   *monitor.Monitor

	closers []func() error
}

// Load reads all configuration and returns initialized components. On
// error anything already opened is closed.
func (l *Loader) Load(ctx context.Context) (_ *Components, err error) {
	cfg := Default()
	if l.ConfigPath != "" {
		if cfg, err = Load(l.ConfigPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if l.Getenv != nil {
		cfg.ApplyEnv(l.Getenv)
	}
	if l.TermsPath != "" {
		cfg.TermsPath = l.TermsPath
	}
	if l.GazetteerPath != "" {
		cfg.GazetteerPath = l.GazetteerPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	comp := &Components{Config: cfg, Logger: l.Logger, Monitor: monitor.New()}
	if comp.Logger == nil {
		comp.Logger = cfg.NewLogger()
	}
	defer func() {
		if err != nil {
			comp.Close()
		}
	}()

	dict := legal.DefaultDictionary()
	if cfg.TermsPath != "" {
		entries, err := LoadDict(cfg.TermsPath)
		if err != nil {
			return nil, fmt.Errorf("load dictionary: %w", err)
		}
		dict = legal.NewDictionary(append(append([]legal.DictEntry(nil), legal.DefaultEntries...), entries...))
	}
	comp.Extractor = legal.NewExtractor(dict)

	maskOpts := []pii.Option{
		pii.WithLogger(comp.Logger),
		pii.WithDegradeHook(comp.Monitor.NERDegraded),
	}
	if cfg.GazetteerPath != "" {
		gaz, err := ner.LoadGazetteer(cfg.GazetteerPath)
		if err != nil {
			return nil, fmt.Errorf("load gazetteer: %w", err)
		}
		maskOpts = append(maskOpts, pii.WithRecognizer(gaz))
	}
	comp.Masker = pii.New(cfg.PII, maskOpts...)
	comp.Validator = validate.New(cfg.Validation)

	if err := comp.openStore(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := comp.openVersions(ctx); err != nil {
		return nil, fmt.Errorf("open version store: %w", err)
	}
	if err := comp.openIndex(ctx); err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return comp, nil
}

func (c *Components) openStore(ctx context.Context) error {
	switch c.Config.Store.Driver {
	case "memory":
		c.Store = memstore.New()
	case "sqlite":
		s, err := sqlite.Open(ctx, c.Config.Store.DSN)
		if err != nil {
			return err
		}
		c.Store = s
	case "postgres":
		s, err := postgres.Open(ctx, c.Config.Store.DSN)
		if err != nil {
			return err
		}
		c.Store = s
	}
	c.closers = append(c.closers, c.Store.Close)
	return nil
}

func (c *Components) openVersions(ctx context.Context) error {
	vc := c.Config.Versions
	var vs versions.Store
	switch vc.Driver {
	case "memory":
		vs = versions.NewMemoryStore()
	case "file":
		fs, err := versions.NewFileStore(vc.Dir)
		if err != nil {
			return err
		}
		vs = fs
	case "sqlite":
		if s, ok := c.Store.(*sqlite.Store); ok && (vc.DSN == "" || vc.DSN == c.Config.Store.DSN) {
			vs = s
			break
		}
		if vc.DSN == "" {
			return fmt.Errorf("versions.dsn is required unless the store is sqlite: %w", internalerr.ErrInvalidConfig)
		}
		s, err := sqlite.Open(ctx, vc.DSN)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, s.Close)
		vs = s
	case "postgres":
		if s, ok := c.Store.(*postgres.Store); ok && (vc.DSN == "" || vc.DSN == c.Config.Store.DSN) {
			vs = s
			break
		}
		if vc.DSN == "" {
			return fmt.Errorf("versions.dsn is required unless the store is postgres: %w", internalerr.ErrInvalidConfig)
		}
		s, err := postgres.Open(ctx, vc.DSN)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, s.Close)
		vs = s
	case "s3":
		s, err := s3store.Open(ctx, s3store.Config{
			Bucket:    vc.S3.Bucket,
			Region:    vc.S3.Region,
			Prefix:    vc.S3.Prefix,
			Endpoint:  vc.S3.Endpoint,
			AccessKey: vc.S3.AccessKey,
			SecretKey: vc.S3.SecretKey,
		})
		if err != nil {
			return err
		}
		vs = s
	}
	c.Versions = versions.NewManager(vs)
	return nil
}

func (c *Components) openIndex(ctx context.Context) error {
	ic := c.Config.Index
	var emb index.Embedder
	switch ic.Embedder {
	case "hash":
		emb = index.HashEmbedder{Dims: ic.Dimensions}
	case "ollama":
		e, err := ollama.New(ic.Host, ic.Model, ic.Dimensions)
		if err != nil {
			return err
		}
		emb = e
	}

	switch ic.Driver {
	case "memory":
		c.Index = memindex.New(emb)
	case "pgvector":
		dsn := ic.DSN
		if dsn == "" && c.Config.Store.Driver == "postgres" {
			dsn = c.Config.Store.DSN
		}
		if dsn == "" {
			return fmt.Errorf("index.dsn is required for pgvector: %w", internalerr.ErrInvalidConfig)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		x, err := pgvector.New(pool, emb, ic.Table)
		if err != nil {
			return err
		}
		if err := x.Init(ctx); err != nil {
			return err
		}
		c.Index = x
	}
	return nil
}

// Pipeline builds a pipeline over the components.
func (c *Components) Pipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Logger:           c.Logger,
		Store:            c.Store,
		Index:            c.Index,
		Versions:         c.Versions,
		Masker:           c.Masker,
		Extractor:        c.Extractor,
		Validator:        c.Validator,
		Monitor:          c.Monitor,
		Splitter:         c.Config.Splitter(),
		MaxWorkers:       c.Config.MaxWorkers,
		BatchSize:        c.Config.BatchSize,
		SourceTracking:   c.Config.SourceTracking,
		Collector:        c.Config.Collector,
		StrictValidation: c.Config.StrictValidation,
		SkipPIIMasking:   !c.Config.MaskPII,
	})
}

// Close releases every opened backend, last opened first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
