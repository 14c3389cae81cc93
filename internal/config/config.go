// Package config loads service configuration from an optional YAML file with
// environment-variable overrides, defaults matching local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "48h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	*d = Duration(v)
	return nil
}

type TemporalConfig struct {
	HostPort  string `yaml:"hostPort"`
	Namespace string `yaml:"namespace"`
}

type EscalationConfig struct {
	Window Duration `yaml:"window"`
}

type SMTPConfig struct {
	Host       string              `yaml:"host"`
	Port       int                 `yaml:"port"`
	Username   string              `yaml:"username"`
	Password   string              `yaml:"password"`
	From       string              `yaml:"from"`
	Recipients map[string][]string `yaml:"recipients"`
}

type Config struct {
	HTTPAddr   string           `yaml:"httpAddr"`
	LogLevel   string           `yaml:"logLevel"`
	Temporal   TemporalConfig   `yaml:"temporal"`
	Escalation EscalationConfig `yaml:"escalation"`
	SMTP       SMTPConfig       `yaml:"smtp"`
}

func Default() Config {
	return Config{
		HTTPAddr: ":8090",
		LogLevel: "info",
		Temporal: TemporalConfig{HostPort: "localhost:7233", Namespace: "default"},
		Escalation: EscalationConfig{
			Window: Duration(48 * time.Hour),
		},
		SMTP: SMTPConfig{Port: 587},
	}
}

// Load reads path (when non-empty) over the defaults and applies environment
// overrides last. A missing file at an explicitly given path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.HTTPAddr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TEMPORAL_ADDRESS"); v != "" {
		c.Temporal.HostPort = v
	}
	if v := os.Getenv("TEMPORAL_NAMESPACE"); v != "" {
		c.Temporal.Namespace = v
	}
	if v := os.Getenv("ESCALATION_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Escalation.Window = Duration(d)
		}
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = p
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		c.SMTP.From = v
	}
}
