// SPDX-License-Identifier: GPL-3.0-or-later
package client

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/CrawX/go-imap-otp/classifier"
	"github.com/CrawX/go-imap-otp/knownservers"
	"github.com/CrawX/go-imap-otp/transport"
	"github.com/CrawX/go-imap-otp/watcher"
)

const (
	DefaultPort           = 993
	DefaultMailbox        = "INBOX"
	DefaultConnectTimeout = transport.DefaultTimeout
	DefaultCommandTimeout = 30 * time.Second
	DefaultPollInterval   = watcher.DefaultPollInterval
	DefaultMaxWait        = watcher.DefaultMaxWait
)

// Config describes one mailbox. Zero values are replaced by the defaults
// above; Host is discovered from Email when empty.
type Config struct {
	Email    string
	Password string

	Host    string
	Port    int
	Mailbox string

	Proxy *transport.Proxy

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	PollInterval   time.Duration
	MaxWait        time.Duration

	// TLSConfig overrides the default tls settings, e.g. to trust custom roots.
	TLSConfig *tls.Config
	// Registry resolves Host instead of the built-in provider table.
	Registry *knownservers.Registry

	Compress bool
}

// WithDefaults returns a copy of c with every unset field defaulted.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if len(strings.TrimSpace(c.Mailbox)) == 0 {
		c.Mailbox = DefaultMailbox
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxWait == 0 {
		c.MaxWait = DefaultMaxWait
	}
	return c
}

// Validate checks c after defaults were applied. All errors are
// classifier.Configuration errors.
func (c Config) Validate() error {
	if len(strings.TrimSpace(c.Email)) == 0 {
		return classifier.Invalid(classifier.OpConfig, "Email must not be empty, set to the login of the mailbox")
	}
	if len(c.Password) == 0 {
		return classifier.Invalid(classifier.OpConfig, "Password must not be empty")
	}
	if len(strings.TrimSpace(c.Host)) == 0 {
		if _, err := knownservers.Domain(c.Email); err != nil {
			return err
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return classifier.Invalid(classifier.OpConfig, "Port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ConnectTimeout < 0 || c.CommandTimeout < 0 || c.PollInterval < 0 || c.MaxWait < 0 {
		return classifier.Invalid(classifier.OpConfig, "timeouts and intervals must not be negative")
	}

	if c.Proxy != nil {
		return c.Proxy.Validate()
	}
	return nil
}

func (c Config) resolveHost() (string, error) {
	if host := strings.TrimSpace(c.Host); len(host) > 0 {
		return host, nil
	}
	if c.Registry != nil {
		return c.Registry.Discover(c.Email)
	}
	return knownservers.Discover(c.Email)
}
