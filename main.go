// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/CrawX/go-imap-otp/classifier"
	"github.com/CrawX/go-imap-otp/client"
	"github.com/CrawX/go-imap-otp/config"
	"github.com/CrawX/go-imap-otp/domain"
	"github.com/CrawX/go-imap-otp/log"
	"github.com/CrawX/go-imap-otp/matcher"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	configFile := pflag.StringP("config", "c", "config.toml", "config file, .toml or .yaml")
	digits := pflag.Int("digits", 6, "extract the first code of exactly this many digits")
	pattern := pflag.String("regex", "", "extract the first match of this pattern, or its first group")
	urlDomain := pflag.String("url-domain", "", "extract the first link to this domain or one of its subdomains")
	recent := pflag.Duration("recent", 0, "scan mail received within this duration instead of waiting for new mail")
	loglevel := pflag.String("loglevel", "", "overrides loglevel from the config file")
	pflag.Parse()

	log.InitLogging("info")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig(*configFile)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}
	if len(*loglevel) > 0 {
		log.SetLogLevel(*loglevel)
	}

	m, err := buildMatcher(*digits, *pattern, *urlDomain)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not build matcher")
	}

	cfg, err := conf.ClientConfig()
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *domain.MatchResult
	err = client.WithGuard(ctx, cfg, func(g *client.Guard) error {
		l := logger.WithFields(logrus.Fields{"email": g.Client().Email(), "host": g.Client().Host(), "matcher": m.Description()})
		if *recent > 0 {
			l.WithField("lookback", *recent).Info("Scanning recent mail")
			result, err = g.FindRecentMatch(ctx, m, *recent)
		} else {
			l.WithField("maxwait", cfg.WithDefaults().MaxWait).Info("Waiting for new mail")
			result, err = g.WaitForMatch(ctx, m)
		}
		return err
	}, conf.WatcherConfigs()...)
	if err != nil {
		category, _ := classifier.CategoryOf(err)
		logger.WithFields(logrus.Fields{"error": err, "category": category, "retryable": classifier.IsRetryable(err)}).Error("No value extracted")
		stop()
		os.Exit(exitCode(err))
	}

	logger.WithField("uid", result.Uid).Debug("Extracted value")
	fmt.Println(result.Value)
}

func buildMatcher(digits int, pattern string, urlDomain string) (matcher.Matcher, error) {
	switch {
	case len(pattern) > 0 && len(urlDomain) > 0:
		return nil, fmt.Errorf("--regex and --url-domain cannot be used at the same time")
	case len(pattern) > 0:
		return matcher.Regex(pattern)
	case len(urlDomain) > 0:
		return matcher.URL(urlDomain)
	}
	return matcher.Digits(digits)
}

// exitCode lets scripts tell a retryable miss from a broken setup.
func exitCode(err error) int {
	switch {
	case classifier.IsRetryable(err):
		return 2
	case classifier.Is(err, classifier.NotFound):
		return 3
	}
	return 1
}

