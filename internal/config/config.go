// Package config loads the engine configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals from YAML strings like "30s" or "5m". Bare integers
// are read as nanoseconds for compatibility with older config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration value %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the root configuration for the verdict engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Judge     JudgeConfig     `yaml:"judge"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// PipelineConfig configures the controller.
type PipelineConfig struct {
	// CacheableUnits lists unit IDs whose results may be served from the
	// content-keyed cache. Units not listed are always re-invoked.
	CacheableUnits []string `yaml:"cacheable_units"`
	CacheTTL       Duration `yaml:"cache_ttl"`
	CacheMaxSize   int      `yaml:"cache_max_size"`
	StageTimeout   Duration `yaml:"stage_timeout"`
	// ProxyFeedback enables the meta-evaluation-derived reinforcement
	// path. Explicit ground-truth feedback is always applied.
	ProxyFeedback bool `yaml:"proxy_feedback"`
}

// Cacheable reports whether the given unit may use the stage cache.
func (p PipelineConfig) Cacheable(unitID string) bool {
	for _, id := range p.CacheableUnits {
		if id == unitID {
			return true
		}
	}
	return false
}

// JudgeConfig configures verdict synthesis.
type JudgeConfig struct {
	RealThreshold       float64 `yaml:"real_threshold"`
	FakeThreshold       float64 `yaml:"fake_threshold"`
	DebateWeight        float64 `yaml:"debate_weight"`
	BaseMargin          float64 `yaml:"base_margin"`
	MarginPerMissing    float64 `yaml:"margin_per_missing"`
	FactCheckConfidence float64 `yaml:"fact_check_confidence"`
}

// OptimizerConfig configures the reinforcement loop.
type OptimizerConfig struct {
	// LearningRate smooths explicit ground-truth outcomes into the
	// accuracy EMA. ProxyRate does the same for meta-evaluation proxy
	// feedback and must stay below LearningRate to bound drift.
	LearningRate float64 `yaml:"learning_rate"`
	ProxyRate    float64 `yaml:"proxy_rate"`
}

// StorageConfig configures the sqlite persistence boundary.
type StorageConfig struct {
	Path               string   `yaml:"path"`
	CheckpointInterval Duration `yaml:"checkpoint_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8090",
		},
		Pipeline: PipelineConfig{
			CacheableUnits: []string{"source_tracker", "textual", "visual"},
			CacheTTL:       Duration(30 * time.Minute),
			CacheMaxSize:   1024,
			StageTimeout:   Duration(20 * time.Second),
			ProxyFeedback:  true,
		},
		Judge: JudgeConfig{
			RealThreshold:       0.65,
			FakeThreshold:       0.35,
			DebateWeight:        0.2,
			BaseMargin:          0.05,
			MarginPerMissing:    0.1,
			FactCheckConfidence: 0.92,
		},
		Optimizer: OptimizerConfig{
			LearningRate: 0.1,
			ProxyRate:    0.02,
		},
		Storage: StorageConfig{
			Path:               "veridict.db",
			CheckpointInterval: Duration(5 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error; the defaults and
// environment alone configure the engine.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VERIDICT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("VERIDICT_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("VERIDICT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("VERIDICT_PROXY_FEEDBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Pipeline.ProxyFeedback = b
		}
	}
	if v := os.Getenv("VERIDICT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Pipeline.CacheTTL = Duration(d)
		}
	}
}

// Validate checks threshold ordering and rate bounds.
func (c *Config) Validate() error {
	if c.Judge.FakeThreshold >= c.Judge.RealThreshold {
		return fmt.Errorf("config: fake_threshold %.2f must be below real_threshold %.2f",
			c.Judge.FakeThreshold, c.Judge.RealThreshold)
	}
	if c.Optimizer.LearningRate <= 0 || c.Optimizer.LearningRate > 1 {
		return fmt.Errorf("config: learning_rate %.2f out of (0,1]", c.Optimizer.LearningRate)
	}
	if c.Optimizer.ProxyRate < 0 || c.Optimizer.ProxyRate > c.Optimizer.LearningRate {
		return fmt.Errorf("config: proxy_rate %.2f must be within [0, learning_rate]", c.Optimizer.ProxyRate)
	}
	if c.Pipeline.CacheMaxSize < 0 {
		return fmt.Errorf("config: cache_max_size must be non-negative")
	}
	return nil
}
