// Package config holds tiergc configuration: defaults, YAML loading and
// validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tiergc/domain/registry"
	"tiergc/infra/kafka"
)

type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Collector CollectorConfig `yaml:"collector"`
	WAL       WALConfig       `yaml:"wal"`
	Journal   JournalConfig   `yaml:"journal"`
	Census    CensusConfig    `yaml:"census"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Broker    BrokerConfig    `yaml:"broker"`
	Server    ServerConfig    `yaml:"server"`
}

type RegistryConfig struct {
	Policy   string `yaml:"policy"` // "eager" or "deferred"
	Capacity int    `yaml:"capacity"`
	Verbose  bool   `yaml:"verbose"`
}

type CollectorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type WALConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dir         string `yaml:"dir"`
	SegmentSize int64  `yaml:"segment_size"`
	Sync        bool   `yaml:"sync"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// SnapshotConfig requires the WAL: a snapshot only exists to let the
// log be truncated.
type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
}

type CensusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type BrokerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Driver     string        `yaml:"driver"` // "sarama" or "kafka-go"
	Brokers    []string      `yaml:"brokers"`
	Topic      string        `yaml:"topic"`
	Interval   time.Duration `yaml:"interval"`
	MaxRetries uint32        `yaml:"max_retries"`
}

type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// Default returns a Config with sensible defaults. Persistence and the
// broker are off until configured.
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			Policy:   registry.Eager.String(),
			Capacity: 1024,
		},
		Collector: CollectorConfig{
			Enabled:  true,
			Interval: 2 * time.Second,
		},
		WAL: WALConfig{
			Dir:         "./data/wal",
			SegmentSize: 4 << 20,
		},
		Journal: JournalConfig{
			Dir: "./data/journal",
		},
		Census: CensusConfig{
			Path: "./data/census.db",
		},
		Snapshot: SnapshotConfig{
			Dir:      "./data/snapshot",
			Interval: time.Minute,
		},
		Broker: BrokerConfig{
			Driver:     kafka.DriverSarama,
			Topic:      "tiergc.events",
			Interval:   250 * time.Millisecond,
			MaxRetries: 5,
		},
		Server: ServerConfig{
			GRPCAddr: ":50051",
			HTTPAddr: "127.0.0.1:8080",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if _, err := registry.ParsePolicy(c.Registry.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Collector.Enabled && c.Collector.Interval <= 0 {
		errs = append(errs, errors.New("collector.interval must be positive"))
	}
	if c.WAL.Enabled && c.WAL.Dir == "" {
		errs = append(errs, errors.New("wal.dir is required when wal is enabled"))
	}
	if c.Journal.Enabled && c.Journal.Dir == "" {
		errs = append(errs, errors.New("journal.dir is required when journal is enabled"))
	}
	if c.Census.Enabled && c.Census.Path == "" {
		errs = append(errs, errors.New("census.path is required when census is enabled"))
	}
	if c.Snapshot.Enabled {
		if !c.WAL.Enabled {
			errs = append(errs, errors.New("snapshot requires the wal"))
		}
		if c.Snapshot.Dir == "" {
			errs = append(errs, errors.New("snapshot.dir is required when snapshot is enabled"))
		}
		if c.Snapshot.Interval <= 0 {
			errs = append(errs, errors.New("snapshot.interval must be positive"))
		}
	}
	if c.Broker.Enabled {
		if !c.Journal.Enabled {
			errs = append(errs, errors.New("broker requires the journal"))
		}
		if len(c.Broker.Brokers) == 0 {
			errs = append(errs, errors.New("broker.brokers is empty"))
		}
		if c.Broker.Driver != kafka.DriverSarama && c.Broker.Driver != kafka.DriverKafkaGo {
			errs = append(errs, fmt.Errorf("broker.driver %q unknown", c.Broker.Driver))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Policy returns the parsed destruction policy.
func (c *Config) Policy() registry.Policy {
	p, _ := registry.ParsePolicy(c.Registry.Policy)
	return p
}

// KafkaConfig maps the broker section to the publisher config.
func (c *Config) KafkaConfig() kafka.Config {
	return kafka.Config{
		Driver:  c.Broker.Driver,
		Brokers: c.Broker.Brokers,
		Topic:   c.Broker.Topic,
	}
}
