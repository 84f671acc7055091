// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"errors"
	"fmt"
)

type Category int

const (
	Network Category = iota
	Timeout
	Protocol
	Parse
	Configuration
	NotFound
)

func (c Category) String() string {
	switch c {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Protocol:
		return "protocol"
	case Parse:
		return "parse"
	case Configuration:
		return "configuration"
	case NotFound:
		return "not_found"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Op names the point of failure. Together with the cause it is the input of
// the classification rules.
type Op string

const (
	OpConfig   = Op("config")
	OpResolve  = Op("resolve")
	OpDial     = Op("dial")
	OpProxy    = Op("proxy")
	OpTLS      = Op("tls")
	OpConnect  = Op("connect")
	OpLogin    = Op("login")
	OpSelect   = Op("select")
	OpSearch   = Op("search")
	OpFetch    = Op("fetch")
	OpNoop     = Op("noop")
	OpParse    = Op("parse")
	OpMove     = Op("move")
	OpDelete   = Op("delete")
	OpLogout   = Op("logout")
	OpPattern  = Op("pattern")
	OpMatch    = Op("match")
	OpWait     = Op("wait")
	OpFind     = Op("find")
	OpCompress = Op("compress")
)

var opDescriptions = map[Op]string{
	OpConfig:   "validate configuration",
	OpResolve:  "resolve imap host",
	OpDial:     "dial server",
	OpProxy:    "connect via socks5 proxy",
	OpTLS:      "establish tls",
	OpConnect:  "connect",
	OpLogin:    "login",
	OpSelect:   "select mailbox",
	OpSearch:   "search mailbox",
	OpFetch:    "fetch message",
	OpNoop:     "refresh mailbox",
	OpParse:    "decode message",
	OpMove:     "move message",
	OpDelete:   "delete message",
	OpLogout:   "logout",
	OpPattern:  "compile pattern",
	OpMatch:    "apply matcher",
	OpWait:     "wait for match",
	OpFind:     "find recent match",
	OpCompress: "enable compression",
}

func (o Op) describe() string {
	if d, ok := opDescriptions[o]; ok {
		return d
	}
	return string(o)
}

// Error is the only error type returned across package boundaries. It is
// never mutated after Classify created it.
type Error struct {
	Op        Op
	Category  Category
	Retryable bool
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s (%s)", e.Message, e.Category)
	}
	return fmt.Sprintf("%s (%s): %v", e.Message, e.Category, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

var (
	ErrNoNewMail   = errors.New("no new mail arrived")
	ErrUnmatched   = errors.New("new mail arrived but none matched")
	ErrNoMatch     = errors.New("no matching message found")
	ErrMessageGone = errors.New("message no longer exists")
	ErrInvalid     = errors.New("invalid input")

	// ErrPendingDeletes refuses a plain EXPUNGE that would also remove
	// messages someone else flagged as deleted.
	ErrPendingDeletes = errors.New("mailbox has messages flagged as deleted that were not expunged")
)

// Invalid returns a configuration error for op without any I/O involved.
func Invalid(op Op, format string, args ...interface{}) error {
	return Classify(op, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
}

func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func CategoryOf(err error) (Category, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	return 0, false
}

func Is(err error, category Category) bool {
	c, ok := CategoryOf(err)
	return ok && c == category
}

// New builds a classified error without a cause. Network and Timeout errors
// are retryable, everything else is not.
func New(op Op, category Category, message string) error {
	return &Error{
		Op:        op,
		Category:  category,
		Retryable: category == Network || category == Timeout,
		Message:   message,
	}
}
