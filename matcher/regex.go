// SPDX-License-Identifier: GPL-3.0-or-later
package matcher

import (
	"fmt"
	"regexp"

	"github.com/CrawX/go-imap-otp/classifier"
)

type regexMatcher struct {
	regex       *regexp.Regexp
	description string
}

// Regex compiles pattern. With at least one capture group the first group
// of the first match is returned, otherwise the whole match.
func Regex(pattern string) (Matcher, error) {
	return RegexWithDescription(pattern, fmt.Sprintf("regex %s", pattern))
}

func RegexWithDescription(pattern string, description string) (Matcher, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, classifier.Classify(classifier.OpPattern, fmt.Errorf("could not compile %q: %w", pattern, err))
	}
	return &regexMatcher{regex: regex, description: description}, nil
}

func (r *regexMatcher) Match(text string) (string, bool, error) {
	loc := r.regex.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", false, nil
	}

	if r.regex.NumSubexp() == 0 {
		return text[loc[0]:loc[1]], true, nil
	}

	// an optional group that did not take part in the match
	if loc[2] < 0 {
		return "", false, nil
	}
	return text[loc[2]:loc[3]], true, nil
}

func (r *regexMatcher) Description() string {
	return r.description
}
