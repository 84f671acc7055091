// SPDX-License-Identifier: GPL-3.0-or-later
package knownservers

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds custom domain to host mappings that take precedence over
// the built-in table.
type Registry struct {
	mu          sync.RWMutex
	custom      map[string]string
	useDefaults bool
}

// NewRegistry returns an empty registry that ignores the built-in table.
func NewRegistry() *Registry {
	return &Registry{custom: map[string]string{}}
}

func NewRegistryWithDefaults() *Registry {
	return &Registry{custom: map[string]string{}, useDefaults: true}
}

func (r *Registry) Register(domain, host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[strings.ToLower(domain)] = host
}

// Unregister removes a custom mapping and returns the host it pointed to.
func (r *Registry) Unregister(domain string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	domain = strings.ToLower(domain)
	host, ok := r.custom[domain]
	delete(r.custom, domain)
	return host, ok
}

func (r *Registry) IsKnown(domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domain = strings.ToLower(domain)
	if _, ok := r.custom[domain]; ok {
		return true
	}
	return r.useDefaults && IsKnownDomain(domain)
}

func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := []string{}
	for d := range r.custom {
		domains = append(domains, d)
	}
	if r.useDefaults {
		for d := range knownServers {
			if _, ok := r.custom[d]; !ok {
				domains = append(domains, d)
			}
		}
	}
	sort.Strings(domains)
	return domains
}

// Discover resolves custom mappings first, then the built-in table if
// enabled, then falls back to imap.<domain>.
func (r *Registry) Discover(email string) (string, error) {
	domain, err := Domain(email)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if host, ok := r.custom[domain]; ok {
		return host, nil
	}
	if r.useDefaults {
		if host, ok := knownServers[domain]; ok {
			return host, nil
		}
	}
	return "imap." + domain, nil
}
