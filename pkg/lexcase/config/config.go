// Package config loads the pipeline configuration and the term dictionary.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/lexcase/pkg/lexcase/chunk"
	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
	"github.com/cognicore/lexcase/pkg/lexcase/legal"
	"github.com/cognicore/lexcase/pkg/lexcase/pii"
	"github.com/cognicore/lexcase/pkg/lexcase/pipeline"
	"github.com/cognicore/lexcase/pkg/lexcase/validate"
)

// Config is the YAML pipeline configuration.
type Config struct {
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
	MaxWorkers       int    `yaml:"max_workers"`
	BatchSize        int    `yaml:"batch_size"`
	SourceTracking   bool   `yaml:"source_tracking"`
	Collector        string `yaml:"collector"`
	StrictValidation bool   `yaml:"strict_validation"`
	MaskPII          bool   `yaml:"mask_pii"`
	TermsPath        string `yaml:"terms_path"`
	GazetteerPath    string `yaml:"gazetteer_path"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`

	PII        pii.Config     `yaml:"pii_config"`
	Validation validate.Rules `yaml:"validation_rules"`

	Store    StoreConfig    `yaml:"store"`
	Versions VersionsConfig `yaml:"versions"`
	Index    IndexConfig    `yaml:"index"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// VersionsConfig selects the version store.
type VersionsConfig struct {
	Driver string   `yaml:"driver"` // memory, file, sqlite, postgres or s3
	Dir    string   `yaml:"dir"`
	DSN    string   `yaml:"dsn"`
	S3     S3Config `yaml:"s3"`
}

// S3Config locates the version bucket. Credentials come from the AWS
// default chain unless both keys are set.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// IndexConfig selects the vector index and its embedder.
type IndexConfig struct {
	Driver     string `yaml:"driver"` // memory or pgvector
	DSN        string `yaml:"dsn"`
	Table      string `yaml:"table"`
	Embedder   string `yaml:"embedder"` // hash or ollama
	Model      string `yaml:"model"`
	Host       string `yaml:"host"`
	Dimensions int    `yaml:"dimensions"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ChunkSize:      chunk.DefaultSize,
		ChunkOverlap:   chunk.DefaultOverlap,
		MaxWorkers:     pipeline.DefaultMaxWorkers,
		BatchSize:      pipeline.DefaultBatchSize,
		SourceTracking: true,
		MaskPII:        true,
		LogLevel:       "info",
		LogFormat:      "text",
		PII:            pii.DefaultConfig(),
		Validation:     validate.DefaultRules(),
		Store:          StoreConfig{Driver: "memory"},
		Versions:       VersionsConfig{Driver: "memory"},
		Index:          IndexConfig{Driver: "memory", Embedder: "hash", Dimensions: 256},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %v: %w", path, err, internalerr.ErrInvalidConfig)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides connection settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("LEXCASE_DATABASE_URL"); v != "" {
		if c.Store.Driver == "postgres" || c.Store.Driver == "sqlite" {
			c.Store.DSN = v
		}
		if c.Index.Driver == "pgvector" {
			c.Index.DSN = v
		}
	}
	if v := getenv("LEXCASE_S3_BUCKET"); v != "" {
		c.Versions.S3.Bucket = v
	}
	if v := getenv("AWS_REGION"); v != "" && c.Versions.S3.Region == "" {
		c.Versions.S3.Region = v
	}
	if v := getenv("OLLAMA_HOST"); v != "" && c.Index.Host == "" {
		c.Index.Host = v
	}
}

// Validate checks ranges and driver names.
func (c Config) Validate() error {
	var problems []string
	if c.ChunkSize <= 0 {
		problems = append(problems, "chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "chunk_overlap must be in [0, chunk_size)")
	}
	if c.MaxWorkers <= 0 {
		problems = append(problems, "max_workers must be positive")
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch_size must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level %q", c.LogLevel))
	}
	check := func(name, got string, allowed ...string) {
		for _, a := range allowed {
			if got == a {
				return
			}
		}
		problems = append(problems, fmt.Sprintf("%s %q (want %s)", name, got, strings.Join(allowed, "|")))
	}
	check("store.driver", c.Store.Driver, "memory", "sqlite", "postgres")
	check("versions.driver", c.Versions.Driver, "memory", "file", "sqlite", "postgres", "s3")
	check("index.driver", c.Index.Driver, "memory", "pgvector")
	check("index.embedder", c.Index.Embedder, "hash", "ollama")

	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		problems = append(problems, "store.dsn is required for "+c.Store.Driver)
	}
	if c.Versions.Driver == "file" && c.Versions.Dir == "" {
		problems = append(problems, "versions.dir is required for file")
	}
	if c.Versions.Driver == "s3" && c.Versions.S3.Bucket == "" {
		problems = append(problems, "versions.s3.bucket is required for s3")
	}
	if c.Index.Driver == "pgvector" && c.Index.Dimensions <= 0 {
		problems = append(problems, "index.dimensions is required for pgvector")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), internalerr.ErrInvalidConfig)
	}
	return nil
}

// Splitter returns the chunk splitter for the configured sizes.
func (c Config) Splitter() chunk.Splitter {
	return chunk.Splitter{Size: c.ChunkSize, Overlap: c.ChunkOverlap}
}

// NewLogger builds a logrus logger from log_level and log_format.
func (c Config) NewLogger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// LoadDict loads the term dictionary.
// Format: canonical|variant1|variant2|category
func LoadDict(path string) ([]legal.DictEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []legal.DictEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		// A two-field line has no category: canonical|variant.
		entry := legal.DictEntry{Canonical: parts[0], Category: "general"}
		if len(parts) == 2 {
			entry.Variants = []string{parts[1]}
		} else {
			entry.Variants = parts[1 : len(parts)-1]
			entry.Category = parts[len(parts)-1]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
