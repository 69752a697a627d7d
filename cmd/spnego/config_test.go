// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghttp "github.com/golang-auth/go-spnego/http"
)

const sampleConfig = `
listen: ":8443"
keytab: /etc/http.keytab
krb5_config: /etc/krb5.conf
service_principal: HTTP/www.example.com
max_clock_skew: 2m
channel_binding: if-available
log_level: debug
tls:
  cert: server.crt
  key: server.key
basic:
  enabled: true
  realm: EXAMPLE.COM
  challenge: Intranet
`

func TestParseConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, parseConfig([]byte(sampleConfig), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8443", cfg.Listen)
	assert.Equal(t, "/etc/http.keytab", cfg.Keytab)
	assert.Equal(t, "/etc/krb5.conf", cfg.Krb5Config)
	assert.Equal(t, "HTTP/www.example.com", cfg.ServicePrincipal)
	assert.Equal(t, 2*time.Minute, cfg.MaxClockSkew)
	assert.Equal(t, ghttp.ChannelBindingDispositionIfAvailable, cfg.channelBindingDisposition())
	assert.True(t, cfg.TLS.Enabled())
	assert.True(t, cfg.Basic.Enabled)
	assert.Equal(t, "EXAMPLE.COM", cfg.Basic.Realm)
	assert.Equal(t, "Intranet", cfg.Basic.Challenge)
	assert.Equal(t, "/metrics", cfg.MetricsPath)

	level, err := cfg.logLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParseConfigUnknownField(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, parseConfig([]byte("keytab: a\nkeytabs: b\n"), &cfg))
}

func TestParseConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SPNEGO_DIR", "/srv/spnego")

	cfg := DefaultConfig()
	require.NoError(t, parseConfig([]byte("keytab: ${TEST_SPNEGO_DIR}/http.keytab\n"), &cfg))
	assert.Equal(t, "/srv/spnego/http.keytab", cfg.Keytab)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spnego.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keytab: /etc/http.keytab\nlisten: \":9000\"\n"), 0o600))

	t.Setenv("SPNEGO_KEYTAB", "/run/secrets/http.keytab")
	t.Setenv("KRB5_CONFIG", "/run/krb5.conf")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "/run/secrets/http.keytab", cfg.Keytab)
	assert.Equal(t, "/run/krb5.conf", cfg.Krb5Config)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Keytab = "/etc/http.keytab"
		return cfg
	}

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no keytab", func(c *Config) { c.Keytab = "" }},
		{"no listen address", func(c *Config) { c.Listen = "" }},
		{"cert without key", func(c *Config) { c.TLS.Cert = "server.crt" }},
		{"negative skew", func(c *Config) { c.MaxClockSkew = -time.Second }},
		{"bad channel binding", func(c *Config) { c.ChannelBinding = "always" }},
		{"channel binding without tls", func(c *Config) { c.ChannelBinding = "require" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
