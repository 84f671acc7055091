// SPDX-License-Identifier: GPL-3.0-or-later
package knownservers

import (
	"testing"

	"github.com/CrawX/go-imap-otp/classifier"
	"github.com/stretchr/testify/assert"
)

func TestDiscover(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"user@gmail.com", "imap.gmail.com"},
		{"user@outlook.com", "imap-mail.outlook.com"},
		{"user@hotmail.com", "imap-mail.outlook.com"},
		{"user@mail.ru", "imap.mail.ru"},
		{"user@bk.ru", "imap.mail.ru"},
		{"user@inbox.ru", "imap.mail.ru"},
		{"user@GMX.DE", "imap.gmx.net"},
		{"user@t-online.de", "secureimap.t-online.de"},
		{"user@example.com", "imap.example.com"},
		{"user@mycompany.org", "imap.mycompany.org"},
		{"weird\"@\"name@example.org", "imap.example.org"},
	}
	for _, tc := range tests {
		t.Run(tc.email, func(t *testing.T) {
			host, err := Discover(tc.email)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, host)
		})
	}
}

func TestDiscoverInvalid(t *testing.T) {
	for _, email := range []string{"", "no-at-sign", "user@", "user@   "} {
		t.Run(email, func(t *testing.T) {
			host, err := Discover(email)
			assert.Empty(t, host)
			assert.True(t, classifier.Is(err, classifier.Configuration))
			assert.False(t, classifier.IsRetryable(err))
		})
	}
}

func TestIsKnownDomain(t *testing.T) {
	assert.True(t, IsKnownDomain("gmail.com"))
	assert.True(t, IsKnownDomain("GMAIL.COM"))
	assert.False(t, IsKnownDomain("example.com"))
	assert.Contains(t, KnownDomains(), "icloud.com")
}

func TestRegistry(t *testing.T) {
	registry := NewRegistryWithDefaults()
	registry.Register("MyCompany.COM", "mail.mycompany.com")
	registry.Register("gmail.com", "imap.internal.example")

	host, err := registry.Discover("user@MYCOMPANY.COM")
	assert.NoError(t, err)
	assert.Equal(t, "mail.mycompany.com", host)

	host, err = registry.Discover("user@gmail.com")
	assert.NoError(t, err)
	assert.Equal(t, "imap.internal.example", host, "custom mappings override defaults")

	host, err = registry.Discover("user@yahoo.com")
	assert.NoError(t, err)
	assert.Equal(t, "imap.mail.yahoo.com", host)

	assert.True(t, registry.IsKnown("mycompany.com"))
	old, ok := registry.Unregister("mycompany.com")
	assert.True(t, ok)
	assert.Equal(t, "mail.mycompany.com", old)
	assert.False(t, registry.IsKnown("mycompany.com"))

	assert.Equal(t, len(KnownDomains()), len(registry.Domains()))
}

func TestRegistryWithoutDefaults(t *testing.T) {
	registry := NewRegistry()

	host, err := registry.Discover("user@gmail.com")
	assert.NoError(t, err)
	assert.Equal(t, "imap.gmail.com", host)

	host, err = registry.Discover("user@yahoo.com")
	assert.NoError(t, err)
	assert.Equal(t, "imap.yahoo.com", host)

	assert.False(t, registry.IsKnown("yahoo.com"))
	assert.Empty(t, registry.Domains())

	_, err = registry.Discover("broken")
	assert.True(t, classifier.Is(err, classifier.Configuration))
}
