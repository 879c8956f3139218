// Package config loads and validates the YAML configuration shared by the
// broker, worker, producer, and store commands.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Broker    BrokerConfig    `yaml:"broker"`
	Store     StoreConfig     `yaml:"store"`
	Worker    WorkerConfig    `yaml:"worker"`
	Producer  ProducerConfig  `yaml:"producer"`
	Fuzz      FuzzConfig      `yaml:"fuzz"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// FrameworkConfig contains general process settings.
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// BrokerConfig contains broker listener and queue-management settings.
type BrokerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	AckPollInterval time.Duration `yaml:"ack_poll_interval"`
	AckTimeout      time.Duration `yaml:"ack_timeout"`
	// DBQMax is the pending result-store queue depth above which queue
	// shedding engages: newly-ready workers stay unmatched until the
	// pending result-store queue has drained to empty.
	DBQMax int `yaml:"dbq_max"`
}

// StoreConfig contains the result store's SQLite database and
// content-addressed file layout.
type StoreConfig struct {
	DBPath        string `yaml:"db_path"`
	CrashfilesDir string `yaml:"crashfiles_dir"`
	CrashdataDir  string `yaml:"crashdata_dir"`
	TemplatesDir  string `yaml:"templates_dir"`
}

// WorkerConfig contains worker-harness connection settings.
type WorkerConfig struct {
	BrokerAddr     string        `yaml:"broker_addr"`
	Queue          string        `yaml:"queue"`
	DeliverTimeout time.Duration `yaml:"deliver_timeout"`
	// WorkDir is where a delivery hook may stage per-test scratch files
	// (e.g. an input file handed to the target binary).
	WorkDir string `yaml:"work_dir"`
	// PollInterval is how long worker.Serve waits before retrying a failed
	// dial and before redialing after a connection ends (one second when
	// unset).
	PollInterval time.Duration `yaml:"poll_interval"`
	// TargetCmd is the external target program invoked as the delivery
	// hook: each test case is written to a scratch file under WorkDir and
	// passed as this command's final argument. A nonzero exit status not
	// matching one of CrashExitCodes is reported as an error, not a crash.
	TargetCmd      []string `yaml:"target_cmd"`
	CrashExitCodes []int    `yaml:"crash_exit_codes"`
}

// ProducerConfig contains producer-harness connection settings.
type ProducerConfig struct {
	BrokerAddr string `yaml:"broker_addr"`
	Queue      string `yaml:"queue"`
}

// FuzzConfig contains the default mutation-engine parameters applied when
// a producer does not override them per-structure.
type FuzzConfig struct {
	FuzzLevel   int  `yaml:"fuzz_level"`
	RandomCases int  `yaml:"random_cases"`
	PreserveLen bool `yaml:"preserve_length"`
	SendUnfixed bool `yaml:"send_unfixed"`
}

// MetricsConfig contains the Prometheus exposition listener settings.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Enabled    bool   `yaml:"enabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Broker: BrokerConfig{
			ListenAddr:      "0.0.0.0:7777",
			AckPollInterval: 5 * time.Second,
			AckTimeout:      30 * time.Second,
			DBQMax:          10000,
		},
		Store: StoreConfig{
			DBPath:        "./data/results.db",
			CrashfilesDir: "./data/crashfiles",
			CrashdataDir:  "./data/crashdata",
			TemplatesDir:  "./data/templates",
		},
		Worker: WorkerConfig{
			BrokerAddr:     "127.0.0.1:7777",
			Queue:          "default",
			DeliverTimeout: 10 * time.Second,
			WorkDir:        "./work",
			PollInterval:   time.Second,
			CrashExitCodes: []int{139, 134, 132, 136},
		},
		Producer: ProducerConfig{
			BrokerAddr: "127.0.0.1:7777",
			Queue:      "default",
		},
		Fuzz: FuzzConfig{
			FuzzLevel:   1,
			RandomCases: 8,
		},
		Metrics: MetricsConfig{
			ListenAddr: "127.0.0.1:9600",
			Enabled:    true,
		},
	}
}

// Load reads a YAML configuration file, expanding ${VAR} environment
// references, and overlays it on DefaultConfig. A missing path yields
// plain defaults rather than an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "fuzzbroker.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for obviously unusable values.
func (c *Config) Validate() error {
	if c.Broker.ListenAddr == "" {
		return fmt.Errorf("broker.listen_addr is required")
	}
	if c.Broker.DBQMax < 1 {
		return fmt.Errorf("broker.dbq_max must be at least 1")
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	if c.Worker.BrokerAddr == "" {
		return fmt.Errorf("worker.broker_addr is required")
	}
	if c.Producer.BrokerAddr == "" {
		return fmt.Errorf("producer.broker_addr is required")
	}
	if c.Fuzz.FuzzLevel < 1 {
		return fmt.Errorf("fuzz.fuzz_level must be at least 1")
	}
	return nil
}
