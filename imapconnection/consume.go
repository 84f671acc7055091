// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

//go:generate mockgen -destination=consume_mocks_test.go -package=imapconnection -source consume.go
import (
	"fmt"

	"github.com/CrawX/go-imap-otp/classifier"
)

// selectedMailbox holds the commands consuming a matched message is built
// from. Every command acts on the selected mailbox.
type selectedMailbox interface {
	flagDeleted(uid uint32) error
	deletedUids() ([]uint32, error)
	expunge() error
	uidExpunge(uid uint32) error
	uidCopy(uid uint32, folder string) error
	uidMove(uid uint32, folder string) error
}

// consumer takes a matched message out of the mailbox with the commands the
// server supports. Without UIDPLUS a plain EXPUNGE removes every flagged
// message, so it refuses to run while other messages carry the flag.
type consumer struct {
	mailbox    selectedMailbox
	hasUidPlus bool
	hasMove    bool
}

func (c *consumer) delete(uid uint32) error {
	err := c.checkExpungeSafe()
	if err != nil {
		return fmt.Errorf("mailbox is not ready for expunge: %w", err)
	}

	return c.remove(uid)
}

func (c *consumer) move(uid uint32, folder string) error {
	if c.hasMove {
		err := c.mailbox.uidMove(uid, folder)
		if err != nil {
			return fmt.Errorf("could not move uid %d: %w", uid, err)
		}
		return nil
	}

	// checked before copying, a refused expunge must not leave a duplicate
	err := c.checkExpungeSafe()
	if err != nil {
		return fmt.Errorf("cannot move uid %d with copy and delete: %w", uid, err)
	}

	err = c.mailbox.uidCopy(uid, folder)
	if err != nil {
		return fmt.Errorf("could not copy uid %d: %w", uid, err)
	}

	return c.remove(uid)
}

func (c *consumer) checkExpungeSafe() error {
	if c.hasUidPlus {
		return nil
	}

	pending, err := c.mailbox.deletedUids()
	if err != nil {
		return fmt.Errorf("could not search for deleted messages: %w", err)
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: uids %v", classifier.ErrPendingDeletes, pending)
	}
	return nil
}

func (c *consumer) remove(uid uint32) error {
	err := c.mailbox.flagDeleted(uid)
	if err != nil {
		return fmt.Errorf("could not flag uid %d as deleted: %w", uid, err)
	}

	if c.hasUidPlus {
		err = c.mailbox.uidExpunge(uid)
	} else {
		err = c.mailbox.expunge()
	}
	if err != nil {
		return fmt.Errorf("could not expunge uid %d: %w", uid, err)
	}
	return nil
}
