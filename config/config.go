// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CrawX/go-imap-otp/client"
	"github.com/CrawX/go-imap-otp/knownservers"
	"github.com/CrawX/go-imap-otp/transport"
	"github.com/CrawX/go-imap-otp/watcher"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Duration reads values like "2s" or "5m" from both toml and yaml.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Email    string `toml:"email" yaml:"email"`
	Password string `toml:"password" yaml:"password"`

	Host    string `toml:"host" yaml:"host"`
	Port    int    `toml:"port" yaml:"port"`
	Mailbox string `toml:"mailbox" yaml:"mailbox"`

	Proxy *transport.Proxy `toml:"proxy" yaml:"proxy"`

	ConnectTimeout Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	CommandTimeout Duration `toml:"command_timeout" yaml:"command_timeout"`
	PollInterval   Duration `toml:"poll_interval" yaml:"poll_interval"`
	MaxWait        Duration `toml:"max_wait" yaml:"max_wait"`

	// CAFile is a PEM bundle trusted instead of the system roots.
	CAFile   string `toml:"ca_file" yaml:"ca_file"`
	Compress bool   `toml:"compress" yaml:"compress"`

	// KnownServers maps mail domains to imap hosts ahead of the built-in table.
	KnownServers map[string]string `toml:"known_servers" yaml:"known_servers"`

	DeleteMatched bool   `toml:"delete_matched" yaml:"delete_matched"`
	MoveMatched   bool   `toml:"move_matched" yaml:"move_matched"`
	MatchedFolder string `toml:"matched_folder" yaml:"matched_folder"`

	Loglevel *string `toml:"loglevel" yaml:"loglevel"`
}

// ReadConfig decodes filename as yaml for .yaml/.yml files and as toml
// otherwise.
func ReadConfig(filename string) (*Config, error) {
	config := &Config{
		Port:           client.DefaultPort,
		Mailbox:        client.DefaultMailbox,
		ConnectTimeout: Duration{client.DefaultConnectTimeout},
		CommandTimeout: Duration{client.DefaultCommandTimeout},
		PollInterval:   Duration{client.DefaultPollInterval},
		MaxWait:        Duration{client.DefaultMaxWait},
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
		err = yaml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	default:
		_, err := toml.DecodeFile(filename, config)
		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	err := config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Email, "email must not be empty, set to the login of the mailbox"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Password, "password must not be empty, set to the password of email on the imap server"); err != nil {
		return err
	}

	if c.Proxy != nil {
		if err := validateNonEmptyStringField(c.Proxy.Host, "proxy.host must not be empty if a proxy is configured"); err != nil {
			return err
		}
	}

	if c.MoveMatched && c.DeleteMatched {
		return fmt.Errorf("move_matched and delete_matched cannot be set at the same time")
	}
	if c.MoveMatched {
		if err := validateNonEmptyStringField(c.MatchedFolder, "matched_folder must be set if move_matched is set"); err != nil {
			return err
		}
	}

	for domain, host := range c.KnownServers {
		if err := validateNonEmptyStringField(host, fmt.Sprintf("known_servers entry for %s must not be empty", domain)); err != nil {
			return err
		}
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}

// ClientConfig converts c into the connection settings of package client.
func (c *Config) ClientConfig() (client.Config, error) {
	cfg := client.Config{
		Email:          c.Email,
		Password:       c.Password,
		Host:           c.Host,
		Port:           c.Port,
		Mailbox:        c.Mailbox,
		Proxy:          c.Proxy,
		ConnectTimeout: c.ConnectTimeout.Duration,
		CommandTimeout: c.CommandTimeout.Duration,
		PollInterval:   c.PollInterval.Duration,
		MaxWait:        c.MaxWait.Duration,
		Compress:       c.Compress,
	}

	if len(c.CAFile) > 0 {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return client.Config{}, fmt.Errorf("could not read ca_file: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return client.Config{}, fmt.Errorf("ca_file %s contains no certificates", c.CAFile)
		}
		cfg.TLSConfig = &tls.Config{RootCAs: roots}
	}

	if len(c.KnownServers) > 0 {
		registry := knownservers.NewRegistryWithDefaults()
		for domain, host := range c.KnownServers {
			registry.Register(domain, host)
		}
		cfg.Registry = registry
	}

	return cfg, nil
}

// WatcherConfigs returns the options for handling matched messages.
func (c *Config) WatcherConfigs() []watcher.ConfigFunc {
	configs := []watcher.ConfigFunc{}
	if c.DeleteMatched {
		configs = append(configs, watcher.DeleteMatched())
	}
	if c.MoveMatched {
		configs = append(configs, watcher.MoveMatched(c.MatchedFolder))
	}
	return configs
}
