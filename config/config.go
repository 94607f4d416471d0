// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/absmach/courier/broker/amqp091"
	"github.com/absmach/courier/consumer"
	mtls "github.com/absmach/courier/pkg/tls"
	"github.com/absmach/courier/publisher"
	"github.com/absmach/courier/telemetry"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration of a courier process.
type Config struct {
	Connection ConnectionConfig   `yaml:"connection"`
	Log        LogConfig          `yaml:"log"`
	Telemetry  telemetry.Config   `yaml:"telemetry"`
	Consumers  []consumer.Config  `yaml:"consumers"`
	Publishers []publisher.Config `yaml:"publishers"`
}

// ConnectionConfig holds the broker connection settings.
type ConnectionConfig struct {
	URL         string        `yaml:"url"` // overrides hosts and credentials
	Hosts       []string      `yaml:"hosts"`
	Port        int           `yaml:"port"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Vhost       string        `yaml:"vhost"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	TLS         mtls.Config   `yaml:"tls"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Hosts:       []string{amqp091.DefaultHost},
			Port:        amqp091.DefaultPort,
			Username:    "guest",
			Password:    "guest",
			Vhost:       "/",
			DialTimeout: amqp091.DefaultDialTimeout,
			Heartbeat:   amqp091.DefaultHeartbeat,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Connection.URL == "" && len(c.Connection.Hosts) == 0 {
		return fmt.Errorf("connection.url or connection.hosts must be set")
	}
	if c.Connection.Port < 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection.port must be between 0 and 65535")
	}
	if c.Connection.DialTimeout < 0 {
		return fmt.Errorf("connection.dial_timeout cannot be negative")
	}
	if err := c.Connection.TLS.Validate(); err != nil {
		return fmt.Errorf("connection.tls: %w", err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	if err := c.Telemetry.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for i, cc := range c.Consumers {
		if err := cc.Validate(); err != nil {
			return fmt.Errorf("consumers[%d]: %w", i, err)
		}
		if seen[cc.Name] {
			return fmt.Errorf("consumers[%d]: duplicate name %s", i, cc.Name)
		}
		seen[cc.Name] = true
	}

	seen = make(map[string]bool)
	for i, pc := range c.Publishers {
		if err := pc.Validate(); err != nil {
			return fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if seen[pc.Name] {
			return fmt.Errorf("publishers[%d]: duplicate name %s", i, pc.Name)
		}
		seen[pc.Name] = true
	}

	return nil
}

// Consumer returns the consumer configuration named name.
func (c *Config) Consumer(name string) (consumer.Config, bool) {
	for _, cc := range c.Consumers {
		if cc.Name == name {
			return cc, true
		}
	}
	return consumer.Config{}, false
}

// Publisher returns the publisher configuration named name.
func (c *Config) Publisher(name string) (publisher.Config, bool) {
	for _, pc := range c.Publishers {
		if pc.Name == name {
			return pc, true
		}
	}
	return publisher.Config{}, false
}

// Options returns the broker connection options.
func (c ConnectionConfig) Options() (*amqp091.Options, error) {
	tlsCfg, err := mtls.LoadTLSConfig(&c.TLS)
	if err != nil {
		return nil, err
	}

	opts := amqp091.NewOptions().
		SetURL(c.URL).
		SetHosts(c.Hosts...).
		SetPort(c.Port).
		SetCredentials(c.Username, c.Password).
		SetVhost(c.Vhost).
		SetTLSConfig(tlsCfg)
	if c.DialTimeout > 0 {
		opts.SetDialTimeout(c.DialTimeout)
	}
	if c.Heartbeat > 0 {
		opts.SetHeartbeat(c.Heartbeat)
	}
	return opts, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
