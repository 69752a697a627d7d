// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ghttp "github.com/golang-auth/go-spnego/http"
)

// Config is the serve command configuration.
type Config struct {
	Listen           string        `yaml:"listen"`
	Keytab           string        `yaml:"keytab"`
	Krb5Config       string        `yaml:"krb5_config"`
	ServicePrincipal string        `yaml:"service_principal"`
	MaxClockSkew     time.Duration `yaml:"max_clock_skew"`
	ChannelBinding   string        `yaml:"channel_binding"`
	DisableJDKFix    bool          `yaml:"disable_jdk_fix"`
	MetricsPath      string        `yaml:"metrics_path"`
	LogLevel         string        `yaml:"log_level"`

	TLS   TLSConfig   `yaml:"tls"`
	Basic BasicConfig `yaml:"basic"`
}

type TLSConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

func (c TLSConfig) Enabled() bool {
	return c.Cert != "" || c.Key != ""
}

// BasicConfig enables the Basic fallback, checked against the KDC.
type BasicConfig struct {
	Enabled bool   `yaml:"enabled"`
	Realm   string `yaml:"realm"`
	// Challenge is the realm shown to browsers.
	Challenge string `yaml:"challenge"`
}

func DefaultConfig() Config {
	return Config{
		Listen:       ":8080",
		MaxClockSkew: 5 * time.Minute,
		MetricsPath:  "/metrics",
		LogLevel:     "info",
	}
}

// LoadConfig reads a YAML configuration file.  Environment variables in the
// file are expanded, and SPNEGO_KEYTAB and KRB5_CONFIG override the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}

		if err := parseConfig(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if kt, ok := os.LookupEnv("SPNEGO_KEYTAB"); ok {
		cfg.Keytab = kt
	}
	if conf, ok := os.LookupEnv("KRB5_CONFIG"); ok {
		cfg.Krb5Config = conf
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration invalid: %w", err)
	}

	return cfg, nil
}

func parseConfig(data []byte, cfg *Config) error {
	data = []byte(os.ExpandEnv(string(data)))

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	return nil
}

func (c Config) Validate() error {
	if c.Keytab == "" {
		return errors.New("keytab is required")
	}
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return errors.New("tls needs both cert and key")
	}
	if c.MaxClockSkew < 0 {
		return errors.New("max_clock_skew must not be negative")
	}

	d, err := ghttp.ParseChannelBindingDisposition(c.ChannelBinding)
	if err != nil {
		return err
	}
	if d != ghttp.ChannelBindingDispositionIgnore && !c.TLS.Enabled() {
		return fmt.Errorf("channel_binding %q needs tls", d)
	}

	if _, err := c.logLevel(); err != nil {
		return err
	}

	return nil
}

func (c Config) channelBindingDisposition() ghttp.ChannelBindingDisposition {
	d, _ := ghttp.ParseChannelBindingDisposition(c.ChannelBinding)
	return d
}

func (c Config) logLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
