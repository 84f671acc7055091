// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CrawX/go-imap-otp/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigToml(t *testing.T) {
	config, err := ReadConfig("testdata/config.toml")
	require.NoError(t, err)

	assert.Equal(t, "user@corp.example", config.Email)
	assert.Equal(t, "secret", config.Password)
	assert.Equal(t, "", config.Host)
	assert.Equal(t, 993, config.Port)
	assert.Equal(t, "Verification", config.Mailbox)
	assert.Equal(t, 500*time.Millisecond, config.PollInterval.Duration)
	assert.Equal(t, 90*time.Second, config.MaxWait.Duration)
	assert.Equal(t, 30*time.Second, config.ConnectTimeout.Duration)
	assert.True(t, config.Compress)
	assert.True(t, config.MoveMatched)
	assert.Equal(t, "Used", config.MatchedFolder)
	require.NotNil(t, config.Loglevel)
	assert.Equal(t, "debug", *config.Loglevel)
	assert.Equal(t, &transport.Proxy{Host: "127.0.0.1", Port: 1080, Username: "proxyuser", Password: "proxypass"}, config.Proxy)
	assert.Equal(t, map[string]string{"corp.example": "mail.corp.example"}, config.KnownServers)
	assert.Len(t, config.WatcherConfigs(), 1)
}

func TestReadConfigYaml(t *testing.T) {
	config, err := ReadConfig("testdata/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "user@gmail.com", config.Email)
	assert.Equal(t, "imap.example.org", config.Host)
	assert.Equal(t, 1993, config.Port)
	assert.Equal(t, "INBOX", config.Mailbox)
	assert.Equal(t, 10*time.Second, config.CommandTimeout.Duration)
	assert.Equal(t, 2*time.Second, config.PollInterval.Duration)
	assert.Equal(t, 5*time.Minute, config.MaxWait.Duration)
	assert.True(t, config.DeleteMatched)
	assert.Nil(t, config.Proxy)
	assert.Nil(t, config.Loglevel)
}

func TestReadConfigErrors(t *testing.T) {
	tests := []struct {
		file string
		err  string
	}{
		{"testdata/conflict.toml", "move_matched and delete_matched cannot be set at the same time"},
		{"testdata/nopassword.yaml", "password must not be empty, set to the password of email on the imap server"},
		{"testdata/badduration.toml", "invalid duration"},
		{"testdata/missing.toml", "could not read config file"},
	}
	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			config, err := ReadConfig(tc.file)
			assert.Nil(t, config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestClientConfig(t *testing.T) {
	config, err := ReadConfig("testdata/config.toml")
	require.NoError(t, err)

	cfg, err := config.ClientConfig()
	require.NoError(t, err)

	assert.Equal(t, "user@corp.example", cfg.Email)
	assert.Equal(t, "Verification", cfg.Mailbox)
	assert.Equal(t, 90*time.Second, cfg.MaxWait)
	assert.Equal(t, config.Proxy, cfg.Proxy)
	assert.Nil(t, cfg.TLSConfig)
	require.NotNil(t, cfg.Registry)

	host, err := cfg.Registry.Discover(cfg.Email)
	require.NoError(t, err)
	assert.Equal(t, "mail.corp.example", host)
	assert.True(t, cfg.Registry.IsKnown("gmail.com"))

	assert.NoError(t, cfg.WithDefaults().Validate())
}

func TestClientConfigCAFile(t *testing.T) {
	hs := httptest.NewTLSServer(http.NotFoundHandler())
	defer hs.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: hs.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, data, 0600))

	config, err := ReadConfig("testdata/minimal.yml")
	require.NoError(t, err)

	config.CAFile = caFile
	cfg, err := config.ClientConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.TLSConfig)
	assert.NotNil(t, cfg.TLSConfig.RootCAs)

	config.CAFile = filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(config.CAFile, []byte("nothing"), 0600))
	_, err = config.ClientConfig()
	assert.Error(t, err)
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
