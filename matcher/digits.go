// SPDX-License-Identifier: GPL-3.0-or-later
package matcher

import (
	"fmt"

	"github.com/CrawX/go-imap-otp/classifier"
)

type digitsMatcher struct {
	n int
}

// Digits matches the first run of exactly n ASCII digits. Longer runs are
// skipped as a whole, so a 6 digit matcher never returns part of a phone
// number.
func Digits(n int) (Matcher, error) {
	if n <= 0 {
		return nil, classifier.Invalid(classifier.OpMatch, "digit count must be positive, got %d", n)
	}
	return &digitsMatcher{n: n}, nil
}

func SixDigit() Matcher {
	return &digitsMatcher{n: 6}
}

func (d *digitsMatcher) Match(text string) (string, bool, error) {
	start := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isDigit(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}

		if start >= 0 && i-start == d.n {
			return text[start:i], true, nil
		}
		start = -1
	}
	return "", false, nil
}

func (d *digitsMatcher) Description() string {
	return fmt.Sprintf("%d-digit OTP code", d.n)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
