// SPDX-License-Identifier: GPL-3.0-or-later

// Package matcher extracts a single value such as a one-time code or a
// verification link from decoded message text.
package matcher

import (
	"fmt"

	"github.com/CrawX/go-imap-otp/classifier"
)

// Matcher is stateless and safe for concurrent use. Match returns the first
// extracted value; ok is false when the text holds none.
type Matcher interface {
	Match(text string) (value string, ok bool, err error)
	Description() string
}

// Apply runs m on text. Errors and panics raised by m are returned as
// classified errors so a single message cannot break a polling loop.
func Apply(m Matcher, text string) (value string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, ok = "", false
			err = classifier.Classify(classifier.OpMatch, fmt.Errorf("matcher %q panicked: %v", m.Description(), r))
		}
	}()

	value, ok, err = m.Match(text)
	if err != nil {
		return "", false, classifier.Classify(classifier.OpMatch, fmt.Errorf("matcher %q failed: %w", m.Description(), err))
	}
	if !ok {
		return "", false, nil
	}
	return value, true, nil
}

// MatchFunc is the signature of caller supplied matching logic.
type MatchFunc func(text string) (string, bool, error)

type funcMatcher struct {
	description string
	fn          MatchFunc
}

// Func wraps fn as a Matcher. A panic inside fn is returned as an error.
func Func(description string, fn MatchFunc) Matcher {
	return &funcMatcher{description: description, fn: fn}
}

func (f *funcMatcher) Match(text string) (value string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, ok, err = "", false, fmt.Errorf("panic: %v", r)
		}
	}()
	return f.fn(text)
}

func (f *funcMatcher) Description() string {
	return f.description
}
