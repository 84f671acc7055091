// SPDX-License-Identifier: GPL-3.0-or-later
package client

import (
	"context"
	"sync"
	"time"

	"github.com/CrawX/go-imap-otp/domain"
	"github.com/CrawX/go-imap-otp/matcher"
	"github.com/CrawX/go-imap-otp/watcher"

	"github.com/sirupsen/logrus"
)

// Guard scopes a client. Release logs out exactly once and never fails.
type Guard struct {
	client *Client
	once   sync.Once
}

func (g *Guard) WaitForMatch(ctx context.Context, m matcher.Matcher) (*domain.MatchResult, error) {
	return g.client.WaitForMatch(ctx, m)
}

func (g *Guard) FindRecentMatch(ctx context.Context, m matcher.Matcher, lookback time.Duration) (*domain.MatchResult, error) {
	return g.client.FindRecentMatch(ctx, m, lookback)
}

func (g *Guard) Client() *Client {
	return g.client
}

func (g *Guard) Release() {
	g.once.Do(func() {
		err := g.client.Logout()
		if err != nil {
			g.client.l.WithFields(logrus.Fields{"email": g.client.Email(), "error": err}).Warn("Logout failed while releasing client")
		}
	})
}

// WithGuard connects with cfg, runs fn and releases the session afterwards,
// also when fn panics. fn's error is returned unchanged.
func WithGuard(ctx context.Context, cfg Config, fn func(g *Guard) error, opts ...watcher.ConfigFunc) error {
	c, err := Connect(ctx, cfg, opts...)
	if err != nil {
		return err
	}

	g := c.Guard()
	defer g.Release()

	return fn(g)
}
