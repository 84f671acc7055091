// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"context"
	"strconv"
	"time"
)

//go:generate mockgen -destination=mocks/imap.go -package=mocks . ImapSession

// Envelope is a fetched message, read-only once returned.
type Envelope struct {
	Uid     uint32
	Date    time.Time
	Subject string
	Body    string
}

type MailboxStatus struct {
	Name        string
	Messages    uint32
	UidNext     uint32
	UidValidity uint32
}

type SearchKind int

const (
	SearchAll = SearchKind(iota)
	SearchUnseen
	SearchSince
	SearchUidAbove
)

// SearchCriteria selects messages in the current mailbox. Only one kind is
// applied per search.
type SearchCriteria struct {
	Kind  SearchKind
	Since time.Time
	Uid   uint32
}

func All() SearchCriteria {
	return SearchCriteria{Kind: SearchAll}
}

func Unseen() SearchCriteria {
	return SearchCriteria{Kind: SearchUnseen}
}

func Since(t time.Time) SearchCriteria {
	return SearchCriteria{Kind: SearchSince, Since: t}
}

// UidAbove matches messages with a uid strictly greater than uid.
func UidAbove(uid uint32) SearchCriteria {
	return SearchCriteria{Kind: SearchUidAbove, Uid: uid}
}

func (sc SearchCriteria) String() string {
	switch sc.Kind {
	case SearchAll:
		return "ALL"
	case SearchUnseen:
		return "UNSEEN"
	case SearchSince:
		return "SINCE " + sc.Since.Format("02-Jan-2006")
	case SearchUidAbove:
		return "UID above " + strconv.FormatUint(uint64(sc.Uid), 10)
	}
	return "UNKNOWN"
}

// MatchResult is the extracted value and the uid of the message it came from.
type MatchResult struct {
	Value string
	Uid   uint32
}

// ImapSession is one authenticated connection with a selected mailbox.
// Implementations are not safe for concurrent use.
type ImapSession interface {
	Login(user, password string) error
	Select(mailbox string) (*MailboxStatus, error)
	Search(criteria SearchCriteria) ([]uint32, error)
	Fetch(uid uint32) (*Envelope, error)
	Noop() error
	// Delete and Move take a matched message out of the selected mailbox.
	Delete(uid uint32) error
	Move(uid uint32, folder string) error
	Logout() error

	// Close tears down the transport without a LOGOUT exchange.
	Close() error
}

// SessionFactory opens, authenticates and selects a fresh session.
type SessionFactory func(ctx context.Context) (ImapSession, error)
