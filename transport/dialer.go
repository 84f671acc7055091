// SPDX-License-Identifier: GPL-3.0-or-later
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/CrawX/go-imap-otp/classifier"
	"github.com/CrawX/go-imap-otp/log"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

const DefaultTimeout = 30 * time.Second

// Dialer opens TLS connections to an imap server, optionally through a
// SOCKS5 proxy. The zero value dials directly with DefaultTimeout.
type Dialer struct {
	Proxy     *Proxy
	Timeout   time.Duration
	TLSConfig *tls.Config
}

// DialTLS returns an established TLS connection to host:port. The proxy hop,
// the TCP connect and the TLS handshake together are bounded by d.Timeout.
func (d *Dialer) DialTLS(ctx context.Context, host string, port int) (net.Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	l := log.Logger(log.LOG_TRANSPORT).WithFields(logrus.Fields{"event": "connect", "address": address})

	start := time.Now()
	conn, err := d.dial(ctx, address, l)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(conn, d.tlsConfig(host))
	err = tlsConn.HandshakeContext(ctx)
	if err != nil {
		conn.Close()
		return nil, classifier.Classify(classifier.OpTLS, fmt.Errorf("could not complete tls handshake with %s: %w", address, err))
	}

	l.WithFields(logrus.Fields{"duration": time.Since(start)}).Debug("Established tls connection")
	return tlsConn, nil
}

func (d *Dialer) dial(ctx context.Context, address string, l *logrus.Entry) (net.Conn, error) {
	direct := &net.Dialer{}
	if d.Proxy == nil {
		l.Debug("Dialing directly")
		conn, err := direct.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, classifier.Classify(classifier.OpDial, fmt.Errorf("could not dial %s: %w", address, err))
		}
		return conn, nil
	}

	l = l.WithFields(logrus.Fields{"proxy": d.Proxy.String()})
	l.Debug("Dialing via socks5 proxy")

	var auth *proxy.Auth
	if d.Proxy.RequiresAuth() {
		auth = &proxy.Auth{User: d.Proxy.Username, Password: d.Proxy.Password}
	}

	socks, err := proxy.SOCKS5("tcp", d.Proxy.Address(), auth, direct)
	if err != nil {
		return nil, classifier.Invalid(classifier.OpProxy, "could not create socks5 dialer: %v", err)
	}

	contextDialer, ok := socks.(proxy.ContextDialer)
	if !ok {
		return nil, classifier.Invalid(classifier.OpProxy, "socks5 dialer does not support contexts")
	}

	conn, err := contextDialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifier.Classify(classifier.OpProxy, fmt.Errorf("could not connect to %s via %s: %w", address, d.Proxy, err))
	}
	return conn, nil
}

func (d *Dialer) tlsConfig(host string) *tls.Config {
	var config *tls.Config
	if d.TLSConfig != nil {
		config = d.TLSConfig.Clone()
	} else {
		config = &tls.Config{}
	}

	if config.ServerName == "" {
		config.ServerName = host
	}
	if config.MinVersion == 0 {
		config.MinVersion = tls.VersionTLS12
	}
	return config
}
