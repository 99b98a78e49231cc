// Package config loads service configuration from a YAML file with
// environment-variable overrides. Every knob has a documented default and none
// of them changes the scoring contracts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Duration wraps time.Duration so YAML values like "5s" decode naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full configuration surface.
type Config struct {
	Dataset struct {
		Path string `yaml:"path"`
	} `yaml:"dataset"`

	Model struct {
		ArtifactPath  string  `yaml:"artifact_path"`
		Trees         int     `yaml:"trees"`
		SubsampleSize int     `yaml:"subsample_size"`
		Seed          int64   `yaml:"seed"`
		Contamination float64 `yaml:"contamination"`
		Threshold     float64 `yaml:"threshold"`
	} `yaml:"model"`

	Server struct {
		Addr           string   `yaml:"addr"`
		RequestTimeout Duration `yaml:"request_timeout"`
	} `yaml:"server"`

	Simulator struct {
		TargetURL    string   `yaml:"target_url"`
		Interval     Duration `yaml:"interval"`
		AnomalyEvery int      `yaml:"anomaly_every"`
		Seed         int64    `yaml:"seed"`
	} `yaml:"simulator"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file or override is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Dataset.Path = "data/predictive_maintenance.csv"
	cfg.Model.ArtifactPath = "results/isolation_forest_model.gob"
	cfg.Model.Trees = 100
	cfg.Model.SubsampleSize = 256
	cfg.Model.Seed = 42
	cfg.Model.Contamination = 0.05
	cfg.Model.Threshold = 0.5
	cfg.Server.Addr = ":8080"
	cfg.Server.RequestTimeout = Duration(5 * time.Second)
	cfg.Simulator.TargetURL = "http://localhost:8080/predict"
	cfg.Simulator.Interval = Duration(time.Second)
	cfg.Simulator.AnomalyEvery = 10
	cfg.Simulator.Seed = 7
	cfg.Log.Level = "info"
	return cfg
}

// Load reads path (if it exists) over the defaults, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err == nil {
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("open config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Dataset.Path = getEnv("MACHINESENTRY_DATASET_PATH", c.Dataset.Path)
	c.Model.ArtifactPath = getEnv("MACHINESENTRY_ARTIFACT_PATH", c.Model.ArtifactPath)
	c.Model.Trees = getEnvAsInt("MACHINESENTRY_TREES", c.Model.Trees)
	c.Model.SubsampleSize = getEnvAsInt("MACHINESENTRY_SUBSAMPLE_SIZE", c.Model.SubsampleSize)
	c.Model.Seed = int64(getEnvAsInt("MACHINESENTRY_SEED", int(c.Model.Seed)))
	c.Model.Contamination = getEnvAsFloat("MACHINESENTRY_CONTAMINATION", c.Model.Contamination)
	c.Model.Threshold = getEnvAsFloat("MACHINESENTRY_THRESHOLD", c.Model.Threshold)
	c.Server.Addr = getEnv("MACHINESENTRY_ADDR", c.Server.Addr)
	c.Simulator.TargetURL = getEnv("MACHINESENTRY_TARGET_URL", c.Simulator.TargetURL)
	c.Simulator.AnomalyEvery = getEnvAsInt("MACHINESENTRY_ANOMALY_EVERY", c.Simulator.AnomalyEvery)
	c.Log.Level = getEnv("MACHINESENTRY_LOG_LEVEL", c.Log.Level)
}

// getEnv returns the environment variable or the default.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt returns the environment variable as int.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat returns the environment variable as float64.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value float64
	if _, err := fmt.Sscanf(valueStr, "%f", &value); err != nil {
		return defaultValue
	}
	return value
}
