// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"time"

	"github.com/CrawX/go-imap-otp/classifier"
	"github.com/CrawX/go-imap-otp/domain"
	"github.com/CrawX/go-imap-otp/log"
	"github.com/CrawX/go-imap-otp/mail"
	"github.com/CrawX/go-imap-otp/transport"

	"github.com/emersion/go-imap"
	compress "github.com/emersion/go-imap-compress"
	move "github.com/emersion/go-imap-move"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"
)

const DefaultCommandTimeout = 30 * time.Second

type Options struct {
	// CommandTimeout bounds the greeting and every single command.
	CommandTimeout time.Duration
	// Compress enables COMPRESS=DEFLATE after login if the server offers it.
	Compress bool
}

// ImapConnection implements domain.ImapSession on a go-imap client.
type ImapConnection struct {
	connection *client.Client
	consumer   *consumer

	server   string
	compress bool

	selectedMailbox string

	l *logrus.Logger
}

// Dial opens a TLS connection through d and waits for the server greeting.
// The returned connection is not authenticated yet.
func Dial(ctx context.Context, d *transport.Dialer, host string, port int, options Options) (*ImapConnection, error) {
	conn, err := d.DialTLS(ctx, host, port)
	if err != nil {
		return nil, err
	}

	return New(conn, fmt.Sprintf("%s:%d", host, port), options)
}

// New starts an imap client on an established connection. conn is closed
// if the greeting does not arrive within the command timeout.
func New(conn net.Conn, server string, options Options) (*ImapConnection, error) {
	timeout := options.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	ic := &ImapConnection{
		server:   server,
		compress: options.Compress,
		l:        log.Logger(log.LOG_IMAP),
	}

	err := conn.SetDeadline(time.Now().Add(timeout))
	if err != nil {
		conn.Close()
		return nil, classifier.Classify(classifier.OpConnect, fmt.Errorf("could not set greeting deadline: %w", err))
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, classifier.Classify(classifier.OpConnect, fmt.Errorf("could not read greeting from %s: %w", server, err))
	}
	conn.SetDeadline(time.Time{})

	imapClient.Timeout = timeout
	imapClient.ErrorLog = ic.l.WithFields(logrus.Fields{"server": server})
	ic.connection = imapClient

	ic.l.WithFields(logrus.Fields{"event": "connect", "server": server}).Debug("Connected to server")
	return ic, nil
}

// Login authenticates with LOGIN, or with SASL PLAIN if the server disabled
// LOGIN. Server extensions are detected afterwards since servers may only
// announce them to authenticated clients.
func (ic *ImapConnection) Login(user string, password string) error {
	l := ic.l.WithFields(logrus.Fields{"event": "authenticate", "server": ic.server, "user": user})

	loginDisabled, err := ic.connection.Support("LOGINDISABLED")
	if err != nil {
		return classifier.Classify(classifier.OpLogin, fmt.Errorf("could not query capabilities: %w", err))
	}

	if loginDisabled {
		plainSupported, err := ic.connection.SupportAuth(sasl.Plain)
		if err != nil {
			return classifier.Classify(classifier.OpLogin, fmt.Errorf("could not query auth mechanisms: %w", err))
		}
		if !plainSupported {
			return classifier.Classify(classifier.OpLogin, errors.New("server disabled LOGIN and offers no AUTH=PLAIN"))
		}

		l.Debug("LOGIN disabled, authenticating with SASL PLAIN")
		err = ic.connection.Authenticate(sasl.NewPlainClient("", user, password))
	} else {
		err = ic.connection.Login(user, password)
	}
	if err != nil {
		return classifier.Classify(classifier.OpLogin, fmt.Errorf("could not login as %s: %w", user, err))
	}
	l.Debug("Logged in to server")

	if ic.compress {
		err = ic.enableCompression()
		if err != nil {
			return err
		}
	}

	return ic.detectExtensions(l)
}

func (ic *ImapConnection) enableCompression() error {
	compressClient := compress.NewClient(ic.connection)
	supported, err := compressClient.SupportCompress(compress.Deflate)
	if err != nil {
		return classifier.Classify(classifier.OpCompress, fmt.Errorf("could not check for COMPRESS support: %w", err))
	}

	if !supported {
		ic.l.WithFields(logrus.Fields{"server": ic.server}).Info("COMPRESS=DEFLATE not supported on server, continuing uncompressed")
		return nil
	}

	err = compressClient.Compress(compress.Deflate)
	if err != nil {
		return classifier.Classify(classifier.OpCompress, fmt.Errorf("could not enable compression: %w", err))
	}
	ic.l.WithFields(logrus.Fields{"server": ic.server}).Debug("Enabled COMPRESS=DEFLATE")
	return nil
}

func (ic *ImapConnection) detectExtensions(l *logrus.Entry) error {
	uidPlusClient := uidplus.NewClient(ic.connection)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		return classifier.Classify(classifier.OpLogin, fmt.Errorf("could not check for UIDPLUS support: %w", err))
	}

	moveClient := move.NewClient(ic.connection)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		return classifier.Classify(classifier.OpLogin, fmt.Errorf("could not check for MOVE support: %w", err))
	}

	if uidPlusSupported {
		l.Debug("UIDPLUS supported on server, using UID EXPUNGE")
	} else {
		l.Debug("UIDPLUS not supported on server, falling back to flag&expunge")
	}
	if moveSupported {
		l.Debug("MOVE supported on server")
	} else {
		l.Debug("MOVE not supported on server, falling back to copy&delete")
	}

	ic.consumer = &consumer{
		mailbox:    &mailboxCommands{connection: ic.connection, uidPlus: uidPlusClient, move: moveClient},
		hasUidPlus: uidPlusSupported,
		hasMove:    moveSupported,
	}
	return nil
}

func (ic *ImapConnection) Select(mailbox string) (*domain.MailboxStatus, error) {
	status, err := ic.connection.Select(mailbox, false)
	if err != nil {
		return nil, classifier.Classify(classifier.OpSelect, fmt.Errorf("could not select mailbox %s: %w", mailbox, err))
	}

	ic.selectedMailbox = mailbox
	ic.l.WithFields(logrus.Fields{
		"event":       "select",
		"mailbox":     mailbox,
		"messages":    status.Messages,
		"uidnext":     status.UidNext,
		"uidvalidity": status.UidValidity,
	}).Debug("Selected mailbox")

	return &domain.MailboxStatus{
		Name:        mailbox,
		Messages:    status.Messages,
		UidNext:     status.UidNext,
		UidValidity: status.UidValidity,
	}, nil
}

// Search returns matching uids in ascending order.
func (ic *ImapConnection) Search(criteria domain.SearchCriteria) ([]uint32, error) {
	imapCriteria := imap.NewSearchCriteria()
	switch criteria.Kind {
	case domain.SearchAll:
	case domain.SearchUnseen:
		imapCriteria.WithoutFlags = []string{imap.SeenFlag}
	case domain.SearchSince:
		imapCriteria.Since = criteria.Since
	case domain.SearchUidAbove:
		imapCriteria.Uid = &imap.SeqSet{}
		imapCriteria.Uid.AddRange(criteria.Uid+1, 0)
	default:
		return nil, classifier.Invalid(classifier.OpSearch, "unknown search kind %d", criteria.Kind)
	}

	uids, err := ic.connection.UidSearch(imapCriteria)
	if err != nil {
		return nil, classifier.Classify(classifier.OpSearch, fmt.Errorf("could not search mailbox %s for %s: %w", ic.selectedMailbox, criteria, err))
	}

	if criteria.Kind == domain.SearchUidAbove {
		// n:* always contains the highest uid, even when it is below n
		filtered := uids[:0]
		for _, uid := range uids {
			if uid > criteria.Uid {
				filtered = append(filtered, uid)
			}
		}
		uids = filtered
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	ic.l.WithFields(logrus.Fields{"event": "search", "criteria": criteria.String(), "results": len(uids)}).Trace("Searched mailbox")
	return uids, nil
}

// Fetch loads and decodes a single message without setting the seen flag.
func (ic *ImapConnection) Fetch(uid uint32) (*domain.Envelope, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}
	fetchItems := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchInternalDate,
		imap.FetchEnvelope,
		fullBodySection.FetchItem(),
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, messages)
	}()

	var (
		rawMail []byte
		msg     *imap.Message
		readErr error
	)
	for m := range messages {
		if m.Uid != uid {
			continue
		}
		msg = m

		r := m.GetBody(fullBodySection)
		if r == nil {
			readErr = errors.New("server returned no body")
			continue
		}
		rawMail, readErr = io.ReadAll(r)
	}

	err := <-done
	if err != nil {
		return nil, classifier.Classify(classifier.OpFetch, fmt.Errorf("could not fetch uid %d: %w", uid, err))
	}
	if msg == nil {
		return nil, classifier.Classify(classifier.OpFetch, fmt.Errorf("uid %d: %w", uid, classifier.ErrMessageGone))
	}
	if readErr != nil {
		return nil, classifier.Classify(classifier.OpParse, fmt.Errorf("could not read body of uid %d: %w", uid, readErr))
	}

	parsed, err := mail.Parse(rawMail)
	if err != nil {
		return nil, classifier.Classify(classifier.OpParse, fmt.Errorf("could not decode uid %d: %w", uid, err))
	}

	envelope := &domain.Envelope{
		Uid:     uid,
		Date:    msg.InternalDate,
		Subject: parsed.Subject,
		Body:    parsed.Body(),
	}
	if envelope.Date.IsZero() {
		envelope.Date = parsed.Date
	}
	if len(envelope.Subject) == 0 && msg.Envelope != nil {
		envelope.Subject = msg.Envelope.Subject
	}

	ic.l.WithFields(logrus.Fields{
		"event":   "fetch",
		"uid":     uid,
		"subject": mail.ShortSubject(envelope.Subject),
		"size":    len(rawMail),
	}).Debug("Fetched message")
	return envelope, nil
}

func (ic *ImapConnection) Noop() error {
	err := ic.connection.Noop()
	if err != nil {
		return classifier.Classify(classifier.OpNoop, fmt.Errorf("could not noop: %w", err))
	}
	return nil
}

// Delete removes a matched message. Without UIDPLUS it refuses while other
// messages are flagged as deleted.
func (ic *ImapConnection) Delete(uid uint32) error {
	if ic.consumer == nil {
		return classifier.Classify(classifier.OpDelete, client.ErrNotLoggedIn)
	}

	err := ic.consumer.delete(uid)
	if err != nil {
		return classifier.Classify(classifier.OpDelete, err)
	}
	ic.l.WithFields(logrus.Fields{"uid": uid, "mailbox": ic.selectedMailbox}).Debug("Deleted matched message")
	return nil
}

func (ic *ImapConnection) Move(uid uint32, folder string) error {
	if ic.consumer == nil {
		return classifier.Classify(classifier.OpMove, client.ErrNotLoggedIn)
	}

	err := ic.consumer.move(uid, folder)
	if err != nil {
		return classifier.Classify(classifier.OpMove, fmt.Errorf("could not move to %s: %w", folder, err))
	}
	ic.l.WithFields(logrus.Fields{"uid": uid, "mailbox": ic.selectedMailbox, "folder": folder}).Debug("Moved matched message")
	return nil
}

// Logout ends the session and closes the connection. Logging out twice is
// not an error.
func (ic *ImapConnection) Logout() error {
	err := ic.connection.Logout()
	if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		ic.connection.Terminate()
		return classifier.Classify(classifier.OpLogout, fmt.Errorf("could not logout: %w", err))
	}

	ic.l.WithFields(logrus.Fields{"event": "logout", "server": ic.server}).Debug("Logged out")
	return nil
}

func (ic *ImapConnection) Close() error {
	err := ic.connection.Terminate()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return classifier.Classify(classifier.OpLogout, fmt.Errorf("could not close connection: %w", err))
	}
	return nil
}

// mailboxCommands runs the consume commands through go-imap and its
// UIDPLUS and MOVE extensions.
type mailboxCommands struct {
	connection *client.Client
	uidPlus    *uidplus.Client
	move       *move.Client
}

func uidSet(uid uint32) *imap.SeqSet {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	return seqset
}

func (m *mailboxCommands) flagDeleted(uid uint32) error {
	return m.connection.UidStore(uidSet(uid), imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
}

func (m *mailboxCommands) deletedUids() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}
	return m.connection.UidSearch(criteria)
}

func (m *mailboxCommands) expunge() error {
	return m.connection.Expunge(nil)
}

func (m *mailboxCommands) uidExpunge(uid uint32) error {
	return m.uidPlus.UidExpunge(uidSet(uid), nil)
}

func (m *mailboxCommands) uidCopy(uid uint32, folder string) error {
	return m.connection.UidCopy(uidSet(uid), folder)
}

func (m *mailboxCommands) uidMove(uid uint32, folder string) error {
	return m.move.UidMove(uidSet(uid), folder)
}
