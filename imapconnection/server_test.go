// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/require"
)

type seedFunc func(t *testing.T, user backend.User)

// newTestServer starts an in-memory imap server. Its INBOX holds uid 6 (seen)
// plus whatever seed adds. seed runs before the server accepts connections.
func newTestServer(t *testing.T, allowInsecureAuth bool, seed seedFunc) string {
	be := memory.New()
	user, err := be.Login(nil, "username", "password")
	require.NoError(t, err)
	if seed != nil {
		seed(t, user)
	}

	s := server.New(be)
	s.AllowInsecureAuth = allowInsecureAuth

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)
	t.Cleanup(func() { s.Close() })

	return ln.Addr().String()
}

func appendMessage(t *testing.T, user backend.User, mailbox string, date time.Time, flags []string, raw string) {
	mbox, err := user.GetMailbox(mailbox)
	require.NoError(t, err)
	require.NoError(t, mbox.CreateMessage(flags, date, bytes.NewBufferString(raw)))
}

func createMailbox(t *testing.T, user backend.User, name string) {
	require.NoError(t, user.CreateMailbox(name))
}

func dialTestServer(t *testing.T, addr string, options Options) *ImapConnection {
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	ic, err := New(conn, addr, options)
	require.NoError(t, err)
	t.Cleanup(func() { ic.Close() })
	return ic
}

func loggedIn(t *testing.T, addr string) *ImapConnection {
	ic := dialTestServer(t, addr, Options{CommandTimeout: 5 * time.Second})
	require.NoError(t, ic.Login("username", "password"))
	_, err := ic.Select("INBOX")
	require.NoError(t, err)
	return ic
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
