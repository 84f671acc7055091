// SPDX-License-Identifier: GPL-3.0-or-later
package client

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	host  string
	port  int
	roots *x509.CertPool
}

// newTestServer starts an in-memory imap server behind TLS. The certificate
// is the httptest one, valid for 127.0.0.1.
func newTestServer(t *testing.T, seed func(user backend.User)) *testServer {
	hs := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(hs.Close)

	roots := x509.NewCertPool()
	roots.AddCert(hs.Certificate())

	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	require.NoError(t, err)
	if seed != nil {
		seed(user)
	}

	s := server.New(be)
	s.ErrorLog = nullLogger()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: hs.TLS.Certificates})
	require.NoError(t, err)
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	return &testServer{host: host, port: portNum, roots: roots}
}

func (ts *testServer) config() Config {
	return Config{
		Email:          "username",
		Password:       "password",
		Host:           ts.host,
		Port:           ts.port,
		ConnectTimeout: 5 * time.Second,
		CommandTimeout: 5 * time.Second,
		PollInterval:   20 * time.Millisecond,
		MaxWait:        5 * time.Second,
		TLSConfig:      &tls.Config{RootCAs: ts.roots},
	}
}

// deliver appends a message over a second connection, the way new mail
// shows up for a client that is already connected.
func (ts *testServer) deliver(t *testing.T, raw string) {
	c, err := imapclient.DialTLS(net.JoinHostPort(ts.host, strconv.Itoa(ts.port)), &tls.Config{RootCAs: ts.roots})
	require.NoError(t, err)
	defer c.Logout()

	require.NoError(t, c.Login("username", "password"))
	require.NoError(t, c.Append("INBOX", nil, time.Now(), bytes.NewBufferString(raw)))
}

func seedMessage(t *testing.T, date time.Time, raw string) func(user backend.User) {
	return func(user backend.User) {
		mbox, err := user.GetMailbox("INBOX")
		require.NoError(t, err)
		require.NoError(t, mbox.CreateMessage(nil, date, bytes.NewBufferString(raw)))
	}
}

func rawMessage(subject, body string) string {
	return "From: noreply@example.com\r\n" +
		"To: username@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Tue, 14 Mar 2023 10:14:58 +0000\r\n" +
		"Message-Id: <" + subject + "@example.com>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n"
}

// newRejectingProxy accepts SOCKS5 greetings and refuses every
// authentication method.
func newRejectingProxy(t *testing.T) (string, int) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				header := make([]byte, 2)
				if _, err := io.ReadFull(conn, header); err != nil {
					return
				}
				methods := make([]byte, header[1])
				if _, err := io.ReadFull(conn, methods); err != nil {
					return
				}
				conn.Write([]byte{0x05, 0xff})
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func nullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(ioutil.Discard)
	return logger
}
