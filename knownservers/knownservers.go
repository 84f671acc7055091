// SPDX-License-Identifier: GPL-3.0-or-later
package knownservers

import (
	"sort"
	"strings"

	"github.com/CrawX/go-imap-otp/classifier"
)

// Written once at package initialisation, read-only afterwards.
var knownServers = map[string]string{
	"gmail.com": "imap.gmail.com",

	"yahoo.com": "imap.mail.yahoo.com",

	"hotmail.com": "imap-mail.outlook.com",
	"outlook.com": "imap-mail.outlook.com",
	"live.com":    "imap-mail.outlook.com",

	"mail.ru":     "imap.mail.ru",
	"internet.ru": "imap.mail.ru",
	"bk.ru":       "imap.mail.ru",
	"inbox.ru":    "imap.mail.ru",
	"list.ru":     "imap.mail.ru",

	"aol.com": "imap.aol.com",

	"yandex.ru":  "imap.yandex.ru",
	"yandex.com": "imap.yandex.ru",

	"icloud.com": "imap.mail.me.com",
	"me.com":     "imap.mail.me.com",
	"mac.com":    "imap.mail.me.com",

	"web.de":      "imap.web.de",
	"gmx.de":      "imap.gmx.net",
	"gmx.at":      "imap.gmx.net",
	"gmx.ch":      "imap.gmx.net",
	"gmx.net":     "imap.gmx.net",
	"gmx.com":     "imap.gmx.net",
	"t-online.de": "secureimap.t-online.de",
	"firemail.de": "imap.firemail.de",

	"gazeta.pl": "imap.gazeta.pl",

	"rambler.ru": "imap.rambler.ru",

	"streetwormail.com": "imap.firstmail.ltd",
	"bonsoirmail.com":   "imap.firstmail.ltd",
	"aurevoirmail.com":  "imap.firstmail.ltd",
	"bonjourfmail.com":  "imap.firstmail.ltd",
	"bientotmail.com":   "imap.firstmail.ltd",
}

// Domain returns the lower-cased domain part of an email address.
func Domain(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "", classifier.Invalid(classifier.OpResolve, "email address %q contains no @", email)
	}

	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if len(domain) == 0 {
		return "", classifier.Invalid(classifier.OpResolve, "email address %q has an empty domain", email)
	}

	return domain, nil
}

// Discover returns the imap host for an email address using the built-in
// table, falling back to imap.<domain>.
func Discover(email string) (string, error) {
	domain, err := Domain(email)
	if err != nil {
		return "", err
	}

	if host, ok := knownServers[domain]; ok {
		return host, nil
	}
	return "imap." + domain, nil
}

func IsKnownDomain(domain string) bool {
	_, ok := knownServers[strings.ToLower(domain)]
	return ok
}

func KnownDomains() []string {
	domains := make([]string, 0, len(knownServers))
	for d := range knownServers {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
