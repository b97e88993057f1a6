// Package config handles feedgraph configuration from environment variables
// and YAML files.
//
// Configuration starts from DefaultConfig(). LoadFile() overlays a YAML file,
// LoadFromEnv() overlays FEEDGRAPH_* environment variables, and
// LoadFromEnvOrFile() does both with the environment taking precedence.
// Validate() should be called before the Config is used.
//
// Example Usage:
//
//	cfg, err := config.LoadFromEnvOrFile("feedgraph.yaml")
//	if err != nil {
//		log.Fatalf("load config: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	cfg.Memory.ApplyRuntimeMemory()
//
//	logger, err := config.NewLogger(cfg.Logging)
//
// Environment Variables:
//
// Recommender:
//   - FEEDGRAPH_COUNT=10
//   - FEEDGRAPH_SEED=42 (0 seeds from the clock)
//   - FEEDGRAPH_CACHE_LIMIT=100
//   - FEEDGRAPH_SELECTION="rank" or "distribution"
//   - FEEDGRAPH_TASTE_WEIGHT=2, FEEDGRAPH_COENGAGED_WEIGHT=2,
//     FEEDGRAPH_SIMILAR_USERS_WEIGHT=2, FEEDGRAPH_POPULAR_WEIGHT=2,
//     FEEDGRAPH_RANDOM_WEIGHT=2
//   - FEEDGRAPH_DISABLED_FEATURES="taste,lastSeen"
//   - FEEDGRAPH_EXCLUDE_SIGNIFICANCE=true
//
// Storage:
//   - FEEDGRAPH_DATA_DIR="./data"
//   - FEEDGRAPH_SNAPSHOT_PATH="graph.json"
//   - FEEDGRAPH_SYNC_WRITES=true
//
// Logging:
//   - FEEDGRAPH_LOG_LEVEL="info"
//   - FEEDGRAPH_LOG_FORMAT="json" or "console"
//   - FEEDGRAPH_LOG_OUTPUT="stderr"
//
// Runtime:
//   - FEEDGRAPH_MEMORY_LIMIT="2GiB" (SI units such as "2GB" are powers of 1000)
//   - FEEDGRAPH_GC_PERCENT=100
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/feedgraph/pkg/recommend"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all feedgraph configuration.
//
// Configuration is organized into logical sections:
//   - Recommender: serving count, randomness and recommendation options
//   - Storage: badger snapshot store and JSON snapshot locations
//   - Logging: zap logger settings
//   - Memory: Go runtime tuning
type Config struct {
	Recommender RecommenderConfig `yaml:"recommender"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Memory      MemoryConfig      `yaml:"memory"`
}

// RecommenderConfig holds recommendation settings.
type RecommenderConfig struct {
	// Count of recommendations served per request
	Count int `yaml:"count" validate:"gte=1"`
	// Seed for the random source; 0 seeds from the clock
	Seed uint64 `yaml:"seed"`
	// CacheLimit is the number of recent recommendations kept per user;
	// 0 keeps everything
	CacheLimit int `yaml:"cacheLimit" validate:"gte=0"`
	// Options are the strategy weights and scoring switches
	Options recommend.RecommendationOptions `yaml:"options"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// DataDir of the badger snapshot store
	DataDir string `yaml:"dataDir"`
	// SnapshotPath of the JSON snapshot file
	SnapshotPath string `yaml:"snapshotPath"`
	// SyncWrites forces fsync after each badger write
	SyncWrites bool `yaml:"syncWrites"`
}

// BadgerOptions returns the options for opening the snapshot store.
func (s StorageConfig) BadgerOptions() storage.BadgerOptions {
	return storage.BadgerOptions{
		DataDir:    s.DataDir,
		SyncWrites: s.SyncWrites,
	}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string `yaml:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	// Format (json, console)
	Format string `yaml:"format" validate:"oneof=json console"`
	// Output path (stdout, stderr, or file path)
	Output string `yaml:"output" validate:"required"`
}

// MemoryConfig holds Go runtime memory management settings.
type MemoryConfig struct {
	// Limit is the soft memory limit, e.g. "2GiB" or "512MB".
	// "0", "unlimited" or empty leave the runtime default.
	Limit string `yaml:"limit"`
	// RuntimeLimit is Limit in bytes, set by the loaders
	RuntimeLimit int64 `yaml:"-" validate:"gte=0"`
	// GCPercent is GOGC; -1 disables the collector
	GCPercent int `yaml:"gcPercent" validate:"gte=-1"`
}

// resolve parses Limit into RuntimeLimit.
func (m *MemoryConfig) resolve() error {
	n, err := parseMemorySize(m.Limit)
	if err != nil {
		return err
	}
	m.RuntimeLimit = n
	return nil
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Recommender: RecommenderConfig{
			Count:      10,
			CacheLimit: 100,
			Options: recommend.RecommendationOptions{
				CandidateOptions: recommend.DefaultCandidateOptions(),
				ScoringOptions: recommend.ScoringOptions{
					Selection: recommend.SelectionDistribution,
				},
			},
		},
		Storage: StorageConfig{
			DataDir:      "./data",
			SnapshotPath: "graph.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Memory: MemoryConfig{
			Limit:     "0",
			GCPercent: 100,
		},
	}
}

// LoadFromEnv loads configuration from environment variables on top of
// DefaultConfig().
//
// Every well-formed variable is applied. Malformed values keep the previous
// setting and are reported together in the returned error, which wraps
// ErrInvalidConfig. Unknown names in FEEDGRAPH_DISABLED_FEATURES are
// reported the same way and wrap recommend.ErrInvalidOptions instead.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	err := cfg.applyEnv()
	return cfg, err
}

// LoadFile loads a YAML configuration file on top of DefaultConfig().
//
// Example:
//
//	cfg, err := config.LoadFile("feedgraph.yaml")
//	if err != nil {
//		return err
//	}
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Memory.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnvOrFile loads the YAML file if path is set and exists, then
// applies environment variables, which take precedence.
func LoadFromEnvOrFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	env := &envReader{}

	rc := &c.Recommender
	env.setInt("FEEDGRAPH_COUNT", &rc.Count)
	env.setUint64("FEEDGRAPH_SEED", &rc.Seed)
	env.setInt("FEEDGRAPH_CACHE_LIMIT", &rc.CacheLimit)

	co := &rc.Options.CandidateOptions
	env.setFloat("FEEDGRAPH_TASTE_WEIGHT", &co.Taste)
	env.setFloat("FEEDGRAPH_COENGAGED_WEIGHT", &co.Coengaged)
	env.setFloat("FEEDGRAPH_SIMILAR_USERS_WEIGHT", &co.SimilarUsers)
	env.setFloat("FEEDGRAPH_POPULAR_WEIGHT", &co.Popular)
	env.setFloat("FEEDGRAPH_RANDOM_WEIGHT", &co.Random)

	so := &rc.Options.ScoringOptions
	if v, ok := env.lookup("FEEDGRAPH_SELECTION"); ok {
		so.Selection = recommend.SelectionPolicy(v)
	}
	env.setBool("FEEDGRAPH_EXCLUDE_SIGNIFICANCE", &so.ExcludeSignificance)
	if names := env.list("FEEDGRAPH_DISABLED_FEATURES"); len(names) > 0 {
		features := make([]recommend.Feature, len(names))
		for i, n := range names {
			features[i] = recommend.Feature(n)
		}
		if err := so.Disable(features...); err != nil {
			env.errs = append(env.errs, fmt.Errorf("FEEDGRAPH_DISABLED_FEATURES: %w", err))
		}
	}

	env.setString("FEEDGRAPH_DATA_DIR", &c.Storage.DataDir)
	env.setString("FEEDGRAPH_SNAPSHOT_PATH", &c.Storage.SnapshotPath)
	env.setBool("FEEDGRAPH_SYNC_WRITES", &c.Storage.SyncWrites)

	env.setString("FEEDGRAPH_LOG_LEVEL", &c.Logging.Level)
	env.setString("FEEDGRAPH_LOG_FORMAT", &c.Logging.Format)
	env.setString("FEEDGRAPH_LOG_OUTPUT", &c.Logging.Output)

	if v, ok := env.lookup("FEEDGRAPH_MEMORY_LIMIT"); ok {
		m := c.Memory
		m.Limit = v
		if err := m.resolve(); err != nil {
			env.errs = append(env.errs, fmt.Errorf("FEEDGRAPH_MEMORY_LIMIT: %w", err))
		} else {
			c.Memory = m
		}
	}
	env.setInt("FEEDGRAPH_GC_PERCENT", &c.Memory.GCPercent)

	return errors.Join(env.errs...)
}

// envReader applies set FEEDGRAPH_* variables to config fields and collects
// the ones that fail to parse.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (r *envReader) fail(key, val string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, val, err))
}

func (r *envReader) setString(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) setInt(key string, dst *int) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) setUint64(key string, dst *uint64) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) setFloat(key string, dst *float64) {
	if v, ok := r.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

// setBool accepts strconv.ParseBool forms plus yes/no and on/off.
func (r *envReader) setBool(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		*dst = true
	case "no", "off":
		*dst = false
	default:
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}

// list splits a comma-separated value, dropping empty entries.
func (r *envReader) list(key string) []string {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var validate = newValidator()

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for invalid values.
//
// Returns nil if configuration is valid, or an error wrapping
// ErrInvalidConfig that lists every problem.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}

// String returns a compact representation of the Config for logging.
func (c *Config) String() string {
	limit := "unlimited"
	if c.Memory.RuntimeLimit > 0 {
		limit = humanize.IBytes(uint64(c.Memory.RuntimeLimit))
	}
	return fmt.Sprintf(
		"Config{Count: %d, Selection: %s, CacheLimit: %d, DataDir: %s, Log: %s/%s, MemoryLimit: %s}",
		c.Recommender.Count,
		c.Recommender.Options.Selection,
		c.Recommender.CacheLimit,
		c.Storage.DataDir,
		strings.ToLower(c.Logging.Level), c.Logging.Format,
		limit,
	)
}

// NewLogger builds a zap logger from the logging settings. The json format
// uses the production encoder, console the development one.
func NewLogger(lc LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(lc.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}

	var zc zap.Config
	switch lc.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if lc.Output != "" {
		zc.OutputPaths = []string{lc.Output}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// parseMemorySize parses a memory size such as "512MB" (SI) or "2GiB"
// (IEC). Empty, "0" and "unlimited" mean no limit.
func parseMemorySize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || strings.EqualFold(s, "unlimited") {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: memory limit %q: %v", ErrInvalidConfig, s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: memory limit %q is too large", ErrInvalidConfig, s)
	}
	return int64(n), nil
}

// ApplyRuntimeMemory sets the runtime memory limit and GC percent and
// returns a function that restores the previous values. Call it before
// loading large datasets.
func (m *MemoryConfig) ApplyRuntimeMemory() (restore func()) {
	prevLimit := debug.SetMemoryLimit(-1)
	prevGC := debug.SetGCPercent(-1)
	debug.SetGCPercent(prevGC)

	if m.RuntimeLimit > 0 {
		debug.SetMemoryLimit(m.RuntimeLimit)
	}
	if m.GCPercent != prevGC {
		debug.SetGCPercent(m.GCPercent)
	}
	return func() {
		debug.SetMemoryLimit(prevLimit)
		debug.SetGCPercent(prevGC)
	}
}
