// SPDX-License-Identifier: GPL-3.0-or-later
package transport

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSocks is a minimal SOCKS5 server. Its behaviour during method
// negotiation is decided by a negotiator, CONNECT requests are relayed.
type fakeSocks struct {
	ln        net.Listener
	negotiate negotiator
	targets   chan string
}

type negotiator func(conn net.Conn) bool

func newFakeSocks(t *testing.T, negotiate negotiator) *fakeSocks {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := &fakeSocks{ln: ln, negotiate: negotiate, targets: make(chan string, 10)}
	go s.serve()
	return s
}

func (s *fakeSocks) proxy(user, password string) *Proxy {
	host, portString, _ := net.SplitHostPort(s.ln.Addr().String())
	port, _ := strconv.Atoi(portString)
	return &Proxy{Host: host, Port: port, Username: user, Password: password}
}

func (s *fakeSocks) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSocks) handle(conn net.Conn) {
	defer conn.Close()

	if !s.negotiate(conn) {
		return
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}

	var host string
	switch header[3] {
	case 1:
		ip := make([]byte, 4)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	case 3:
		length := make([]byte, 1)
		if _, err := io.ReadFull(conn, length); err != nil {
			return
		}
		name := make([]byte, length[0])
		if _, err := io.ReadFull(conn, name); err != nil {
			return
		}
		host = string(name)
	case 4:
		ip := make([]byte, 16)
		if _, err := io.ReadFull(conn, ip); err != nil {
			return
		}
		host = net.IP(ip).String()
	default:
		return
	}

	portBytes := make([]byte, 2)
	if _, err := io.ReadFull(conn, portBytes); err != nil {
		return
	}
	target := net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(portBytes))))
	s.targets <- target

	upstream, err := net.Dial("tcp", target)
	if err != nil {
		conn.Write([]byte{5, 5, 0, 1, 0, 0, 0, 0, 0, 0})
		return
	}
	defer upstream.Close()

	if _, err := conn.Write([]byte{5, 0, 0, 1, 0, 0, 0, 0, 0, 0}); err != nil {
		return
	}

	go io.Copy(upstream, conn)
	io.Copy(conn, upstream)
}

func readGreeting(conn net.Conn) ([]byte, bool) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil || header[0] != 5 {
		return nil, false
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return nil, false
	}
	return methods, true
}

func socksAcceptNoAuth(conn net.Conn) bool {
	if _, ok := readGreeting(conn); !ok {
		return false
	}
	_, err := conn.Write([]byte{5, 0})
	return err == nil
}

func socksRejectMethods(conn net.Conn) bool {
	if _, ok := readGreeting(conn); !ok {
		return false
	}
	conn.Write([]byte{5, 0xff})
	return false
}

func socksAcceptPassword(user, password string) negotiator {
	return func(conn net.Conn) bool {
		if _, ok := readGreeting(conn); !ok {
			return false
		}
		if _, err := conn.Write([]byte{5, 2}); err != nil {
			return false
		}

		header := make([]byte, 2)
		if _, err := io.ReadFull(conn, header); err != nil {
			return false
		}
		gotUser := make([]byte, header[1])
		if _, err := io.ReadFull(conn, gotUser); err != nil {
			return false
		}
		length := make([]byte, 1)
		if _, err := io.ReadFull(conn, length); err != nil {
			return false
		}
		gotPassword := make([]byte, length[0])
		if _, err := io.ReadFull(conn, gotPassword); err != nil {
			return false
		}

		if string(gotUser) != user || string(gotPassword) != password {
			conn.Write([]byte{1, 1})
			return false
		}
		_, err := conn.Write([]byte{1, 0})
		return err == nil
	}
}
