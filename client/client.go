// SPDX-License-Identifier: GPL-3.0-or-later

// Package client connects to a mailbox and extracts one-time codes or links
// from the mail it receives.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/CrawX/go-imap-otp/classifier"
	"github.com/CrawX/go-imap-otp/domain"
	"github.com/CrawX/go-imap-otp/imapconnection"
	"github.com/CrawX/go-imap-otp/log"
	"github.com/CrawX/go-imap-otp/matcher"
	"github.com/CrawX/go-imap-otp/transport"
	"github.com/CrawX/go-imap-otp/watcher"

	"github.com/sirupsen/logrus"
)

// Client owns one session to one mailbox. Its methods are safe for
// concurrent use but run one at a time.
type Client struct {
	mu sync.Mutex

	config  Config
	host    string
	dialer  *transport.Dialer
	watcher *watcher.Watcher
	closed  bool

	l *logrus.Logger
}

// Connect resolves the server, dials it (through the proxy if configured),
// logs in and selects the mailbox. No session is left open on failure.
// opts are applied after the poll settings taken from cfg.
func Connect(ctx context.Context, cfg Config, opts ...watcher.ConfigFunc) (*Client, error) {
	cfg = cfg.WithDefaults()
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	host, err := cfg.resolveHost()
	if err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		host:   host,
		dialer: &transport.Dialer{
			Proxy:     cfg.Proxy,
			Timeout:   cfg.ConnectTimeout,
			TLSConfig: cfg.TLSConfig,
		},
		l: log.Logger(log.LOG_CLIENT),
	}

	session, err := c.open(ctx)
	if err != nil {
		return nil, err
	}

	configs := append([]watcher.ConfigFunc{watcher.PollInterval(cfg.PollInterval), watcher.MaxWait(cfg.MaxWait)}, opts...)
	c.watcher, err = watcher.NewWatcher(session, c.open, configs...)
	if err != nil {
		session.Logout()
		return nil, err
	}

	return c, nil
}

// open runs dial, login and select. It is also the watcher's session factory.
func (c *Client) open(ctx context.Context) (domain.ImapSession, error) {
	l := c.l.WithFields(logrus.Fields{"email": c.config.Email, "host": c.host, "port": c.config.Port})
	if c.config.Proxy != nil {
		l = l.WithFields(logrus.Fields{"proxy": c.config.Proxy.String()})
	}

	start := time.Now()
	options := imapconnection.Options{CommandTimeout: c.config.CommandTimeout, Compress: c.config.Compress}
	conn, err := imapconnection.Dial(ctx, c.dialer, c.host, c.config.Port, options)
	if err != nil {
		l.WithFields(logrus.Fields{"error": err}).Warn("Could not connect")
		return nil, err
	}

	err = conn.Login(c.config.Email, c.config.Password)
	if err != nil {
		conn.Close()
		l.WithFields(logrus.Fields{"error": err}).Warn("Could not login")
		return nil, err
	}

	status, err := conn.Select(c.config.Mailbox)
	if err != nil {
		conn.Logout()
		l.WithFields(logrus.Fields{"error": err}).Warn("Could not select mailbox")
		return nil, err
	}

	l.WithFields(logrus.Fields{
		"mailbox":  status.Name,
		"messages": status.Messages,
		"duration": time.Since(start),
	}).Info("Session ready")
	return conn, nil
}

// WaitForMatch blocks until a message arriving after the call yields a value
// for m, MaxWait expires or ctx is done.
func (c *Client) WaitForMatch(ctx context.Context, m matcher.Matcher) (*domain.MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.usable(classifier.OpWait, m)
	if err != nil {
		return nil, err
	}
	return c.watcher.WaitForMatch(ctx, m)
}

// FindRecentMatch scans mail received within lookback, newest first.
func (c *Client) FindRecentMatch(ctx context.Context, m matcher.Matcher, lookback time.Duration) (*domain.MatchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.usable(classifier.OpFind, m)
	if err != nil {
		return nil, err
	}
	return c.watcher.FindRecentMatch(ctx, m, lookback)
}

func (c *Client) usable(op classifier.Op, m matcher.Matcher) error {
	if c.closed {
		return classifier.Invalid(op, "client for %s is logged out", c.config.Email)
	}
	if m == nil {
		return classifier.Invalid(op, "matcher must not be nil")
	}
	return nil
}

// Logout ends the session. Further calls are no-ops.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	session := c.watcher.Session()
	if session == nil {
		return nil
	}
	return session.Logout()
}

func (c *Client) Email() string {
	return c.config.Email
}

func (c *Client) Host() string {
	return c.host
}

// Guard returns a guard that logs c out on Release.
func (c *Client) Guard() *Guard {
	return &Guard{client: c}
}
