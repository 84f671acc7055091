// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

type rule struct {
	name      string
	matches   func(op Op, err error) bool
	category  Category
	retryable bool
}

// Evaluated in order, first match wins. A new failure path needs exactly one
// new entry here.
var rules = []rule{
	{"cancelled", isCancelled, Timeout, false},
	{"no new mail", sentinel(ErrNoNewMail), Timeout, true},
	{"unmatched", sentinel(ErrUnmatched), NotFound, false},
	{"no match", sentinel(ErrNoMatch), NotFound, false},
	{"message gone", sentinel(ErrMessageGone), NotFound, false},
	{"pending deletes", sentinel(ErrPendingDeletes), Protocol, false},
	{"invalid input", isInvalidInput, Configuration, false},
	{"proxy auth rejected", isProxyAuthRejected, Configuration, false},
	// decoding works on bytes already in memory, io errors there are content errors
	{"undecodable content", ops(OpParse, OpMatch), Parse, false},
	{"deadline", isDeadline, Timeout, true},
	{"tls verification", isTLSVerification, Network, false},
	{"tls handshake rejected", isHandshakeRejected, Network, false},
	{"status response", isStatusResponse, Protocol, false},
	{"malformed response", isMalformedResponse, Parse, false},
	{"connection lost", isConnectionLost, Network, true},
	{"transport", ops(OpDial, OpProxy, OpTLS, OpConnect), Network, true},
	{"protocol", func(Op, error) bool { return true }, Protocol, false},
}

// Classify wraps err into an *Error. Errors that are already classified are
// returned unchanged so a cause is classified once, at the deepest point.
func Classify(op Op, err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	for _, r := range rules {
		if r.matches(op, err) {
			return &Error{
				Op:        op,
				Category:  r.category,
				Retryable: r.retryable,
				Message:   "could not " + op.describe(),
				Cause:     err,
			}
		}
	}

	// unreachable, the last rule matches everything
	return &Error{Op: op, Category: Protocol, Message: "could not " + op.describe(), Cause: err}
}

func sentinel(target error) func(Op, error) bool {
	return func(_ Op, err error) bool {
		return errors.Is(err, target)
	}
}

func ops(candidates ...Op) func(Op, error) bool {
	return func(op Op, _ error) bool {
		for _, c := range candidates {
			if c == op {
				return true
			}
		}
		return false
	}
}

func isCancelled(_ Op, err error) bool {
	return errors.Is(err, context.Canceled)
}

func isInvalidInput(op Op, err error) bool {
	return errors.Is(err, ErrInvalid) || op == OpConfig || op == OpResolve || op == OpPattern
}

// x/net/proxy reports these as plain errors, the reason text is all there is.
var proxyAuthReasons = []string{
	"username/password authentication failed",
	"no acceptable authentication methods",
	"unsupported authentication method",
}

func isProxyAuthRejected(op Op, err error) bool {
	if op != OpProxy {
		return false
	}
	reason := err.Error()
	for _, r := range proxyAuthReasons {
		if strings.Contains(reason, r) {
			return true
		}
	}
	return false
}

func isDeadline(_ Op, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLSVerification(_ Op, err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
		recordHeader     tls.RecordHeaderError
		alert            tls.AlertError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid) ||
		errors.As(err, &verification) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &alert)
}

// isHandshakeRejected covers alerts and version or cipher mismatches. They
// repeat on every attempt, only a dropped connection is worth a retry.
func isHandshakeRejected(op Op, err error) bool {
	return op == OpTLS && !isTransientDrop(err)
}

func isTransientDrop(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

func isStatusResponse(_ Op, err error) bool {
	var status *imap.ErrStatusResp
	return errors.As(err, &status)
}

func isMalformedResponse(_ Op, err error) bool {
	return imap.IsParseError(err)
}

func isConnectionLost(_ Op, err error) bool {
	if isTransientDrop(err) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, client.ErrNotLoggedIn) ||
		errors.Is(err, client.ErrAlreadyLoggedOut) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// go-imap does not export its connection closed errors
	return strings.Contains(err.Error(), "connection closed")
}
