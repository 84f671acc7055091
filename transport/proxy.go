// SPDX-License-Identifier: GPL-3.0-or-later
package transport

import (
	"fmt"
	"net"
	"strconv"

	"github.com/CrawX/go-imap-otp/classifier"
)

// Proxy describes a SOCKS5 proxy. Username and Password are optional but
// must be given together.
type Proxy struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

func (p *Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p *Proxy) RequiresAuth() bool {
	return p.Username != "" || p.Password != ""
}

// String never contains the password.
func (p *Proxy) String() string {
	if p.RequiresAuth() {
		return fmt.Sprintf("socks5://%s:***@%s", p.Username, p.Address())
	}
	return "socks5://" + p.Address()
}

func (p *Proxy) Validate() error {
	if p.Host == "" {
		return classifier.Invalid(classifier.OpConfig, "proxy host must not be empty")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return classifier.Invalid(classifier.OpConfig, "proxy port %d out of range", p.Port)
	}
	if p.Username == "" && p.Password != "" {
		return classifier.Invalid(classifier.OpConfig, "proxy password given without username")
	}
	return nil
}
