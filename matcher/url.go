// SPDX-License-Identifier: GPL-3.0-or-later
package matcher

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/CrawX/go-imap-otp/classifier"
)

var urlCandidate = regexp.MustCompile(`(?i)https?://[^\s"'<>\x60]+`)

const trailingPunctuation = ".,;:!?)]}*"

type urlMatcher struct {
	domain string
}

// URL matches the first http(s) link whose host is domain or one of its
// subdomains. HTML entities are decoded before matching.
func URL(domain string) (Matcher, error) {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if len(domain) == 0 {
		return nil, classifier.Invalid(classifier.OpMatch, "url domain must not be empty")
	}
	if strings.ContainsAny(domain, "/:@ ") {
		return nil, classifier.Invalid(classifier.OpMatch, "url domain %q must be a bare host name", domain)
	}
	return &urlMatcher{domain: domain}, nil
}

func (u *urlMatcher) Match(text string) (string, bool, error) {
	text = html.UnescapeString(text)

	for _, candidate := range urlCandidate.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, trailingPunctuation)

		parsed, err := url.Parse(candidate)
		if err != nil || len(parsed.Host) == 0 {
			continue
		}

		host := strings.ToLower(parsed.Hostname())
		if host == u.domain || strings.HasSuffix(host, "."+u.domain) {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

func (u *urlMatcher) Description() string {
	return "URL from " + u.domain
}
