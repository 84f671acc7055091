// SPDX-License-Identifier: GPL-3.0-or-later
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/CrawX/go-imap-otp/classifier"
	"github.com/CrawX/go-imap-otp/domain"
	"github.com/CrawX/go-imap-otp/log"
	"github.com/CrawX/go-imap-otp/mail"
	"github.com/CrawX/go-imap-otp/matcher"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Watcher drives one session. It is not safe for concurrent use.
type Watcher struct {
	session domain.ImapSession
	factory domain.SessionFactory

	configuration *configuration

	l *logrus.Logger
}

// NewWatcher wraps an authenticated session with a selected mailbox. factory
// opens a replacement session after transport failures; session may be nil,
// the first operation then connects through factory.
func NewWatcher(session domain.ImapSession, factory domain.SessionFactory, configFunc ...ConfigFunc) (*Watcher, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, classifier.Classify(classifier.OpConfig, fmt.Errorf("error applying configuration: %w", err))
		}
	}

	if session == nil && factory == nil {
		return nil, classifier.Invalid(classifier.OpConfig, "watcher needs a session or a session factory")
	}

	return &Watcher{
		session:       session,
		factory:       factory,
		configuration: config,
		l:             log.Logger(log.LOG_WATCHER),
	}, nil
}

// Session returns the live session, nil after it was torn down.
func (w *Watcher) Session() domain.ImapSession {
	return w.session
}

// WaitForMatch waits for messages that arrive after the call and returns the
// first value m extracts from them, oldest message first. Transport failures
// reconnect within the same MaxWait budget.
func (w *Watcher) WaitForMatch(ctx context.Context, m matcher.Matcher) (*domain.MatchResult, error) {
	op := uuid.NewString()
	l := w.l.WithFields(logrus.Fields{"op": op, "matcher": m.Description()})
	deadline := time.Now().Add(w.configuration.MaxWait)
	deadlineCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	l.WithFields(logrus.Fields{"maxwait": w.configuration.MaxWait, "interval": w.configuration.PollInterval}).Debug("Waiting for new mail")

	state := &pollState{}
	for cycle := 1; ; cycle++ {
		result, err := w.pollCycle(deadlineCtx, l.WithFields(logrus.Fields{"cycle": cycle}), m, state, cycle == 1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, w.abort(l, op, ctx.Err())
			}
			if errors.Is(err, context.DeadlineExceeded) && time.Until(deadline) <= 0 {
				return nil, w.expired(l, op, state)
			}
			if !classifier.IsRetryable(err) {
				l.WithFields(logrus.Fields{"error": err}).Warn("Giving up waiting for mail")
				return nil, err
			}
			l.WithFields(logrus.Fields{"error": err}).Info("Poll cycle failed, reconnecting")
			w.teardown()
		}

		if result != nil {
			l.WithFields(logrus.Fields{"uid": result.Uid, "cycles": cycle}).Info("Found match")
			w.consume(l, result)
			return result, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, w.expired(l, op, state)
		}

		wait := w.configuration.PollInterval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, w.abort(l, op, ctx.Err())
		case <-timer.C:
		}
	}
}

type pollState struct {
	highWater      uint32
	highWaterKnown bool
	sawNewMail     bool
}

// pollCycle reconnects if needed, then matches every message above the
// high-water mark. The mark only advances past messages that were handled, a
// message interrupted by a transport failure is fetched again. A cycle stops
// between commands once ctx is done or its deadline has passed, except that
// the first cycle always polls once.
func (w *Watcher) pollCycle(ctx context.Context, l *logrus.Entry, m matcher.Matcher, state *pollState, first bool) (*domain.MatchResult, error) {
	err := w.ensureSession(ctx, l)
	if err != nil {
		return nil, err
	}

	if !state.highWaterKnown {
		if err := proceed(ctx, first); err != nil {
			return nil, err
		}
		state.highWater, err = w.highWater()
		if err != nil {
			return nil, err
		}
		state.highWaterKnown = true
		l.WithFields(logrus.Fields{"highwater": state.highWater}).Debug("Recorded high-water mark")
	}

	l.WithFields(logrus.Fields{"event": "poll_cycle", "highwater": state.highWater}).Debug("Polling mailbox")

	if err := proceed(ctx, first); err != nil {
		return nil, err
	}
	err = w.session.Noop()
	if err != nil {
		return nil, err
	}

	if err := proceed(ctx, first); err != nil {
		return nil, err
	}
	uids, err := w.session.Search(domain.UidAbove(state.highWater))
	if err != nil {
		return nil, err
	}

	for _, uid := range uids {
		if err := proceed(ctx, false); err != nil {
			l.WithFields(logrus.Fields{"uid": uid, "candidates": len(uids)}).Debug("Stopping poll cycle early")
			return nil, err
		}

		envelope, err := w.session.Fetch(uid)
		if err != nil {
			if skippable(err) {
				l.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("Skipping message")
				state.highWater = uid
				state.sawNewMail = true
				continue
			}
			return nil, err
		}

		state.highWater = uid
		state.sawNewMail = true

		result := w.match(l, m, envelope)
		if result != nil {
			return result, nil
		}
	}

	return nil, nil
}

// proceed returns the context error once ctx is done or its deadline passed.
// The deadline is checked directly since the context timer may fire late.
// ignoreDeadline still honors cancellation.
func proceed(ctx context.Context, ignoreDeadline bool) error {
	err := ctx.Err()
	if err == nil {
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
			err = context.DeadlineExceeded
		}
	}
	if ignoreDeadline && errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// FindRecentMatch scans messages that arrived within lookback, newest first,
// and returns the first value m extracts. It never waits for new mail. Uids
// grow with arrival, so the scan ends at the first message older than lookback.
func (w *Watcher) FindRecentMatch(ctx context.Context, m matcher.Matcher, lookback time.Duration) (*domain.MatchResult, error) {
	if lookback <= 0 {
		return nil, classifier.Invalid(classifier.OpFind, "lookback must be positive, got %s", lookback)
	}

	op := uuid.NewString()
	l := w.l.WithFields(logrus.Fields{"op": op, "matcher": m.Description(), "lookback": lookback})
	cutoff := time.Now().Add(-lookback)

	err := w.ensureSession(ctx, l)
	if err != nil {
		return nil, w.fail(ctx, l, op, err)
	}

	// SINCE has day granularity, the exact cutoff is applied per message.
	// The date is sent in UTC, a zone ahead of the server's would skip a day.
	uids, err := w.session.Search(domain.Since(cutoff.UTC()))
	if err != nil {
		return nil, w.fail(ctx, l, op, err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	l.WithFields(logrus.Fields{"candidates": len(uids)}).Debug("Scanning recent mail")

	for _, uid := range uids {
		if ctx.Err() != nil {
			return nil, w.abort(l, op, ctx.Err())
		}

		envelope, err := w.session.Fetch(uid)
		if err != nil {
			if skippable(err) {
				l.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("Skipping message")
				continue
			}
			return nil, w.fail(ctx, l, op, err)
		}

		if envelope.Date.Before(cutoff) {
			l.WithFields(logrus.Fields{"uid": uid, "date": envelope.Date}).Debug("Reached mail older than lookback")
			break
		}

		result := w.match(l, m, envelope)
		if result != nil {
			l.WithFields(logrus.Fields{"uid": result.Uid}).Info("Found match")
			w.consume(l, result)
			return result, nil
		}
	}

	return nil, classifier.Classify(classifier.OpFind, fmt.Errorf("%w within %s, op %s", classifier.ErrNoMatch, lookback, op))
}

func (w *Watcher) match(l *logrus.Entry, m matcher.Matcher, envelope *domain.Envelope) *domain.MatchResult {
	value, ok, err := matcher.Apply(m, envelope.Body)
	ml := l.WithFields(logrus.Fields{"uid": envelope.Uid, "subject": mail.ShortSubject(envelope.Subject)})
	if err != nil {
		ml.WithFields(logrus.Fields{"error": err}).Warn("Matcher failed, skipping message")
		return nil
	}
	if !ok {
		ml.Debug("Message did not match")
		return nil
	}
	return &domain.MatchResult{Value: value, Uid: envelope.Uid}
}

// highWater is the highest uid currently in the mailbox.
func (w *Watcher) highWater() (uint32, error) {
	err := w.session.Noop()
	if err != nil {
		return 0, err
	}

	uids, err := w.session.Search(domain.All())
	if err != nil {
		return 0, err
	}

	highest := uint32(0)
	for _, uid := range uids {
		if uid > highest {
			highest = uid
		}
	}
	return highest, nil
}

func (w *Watcher) ensureSession(ctx context.Context, l *logrus.Entry) error {
	if w.session != nil {
		return nil
	}
	if w.factory == nil {
		return classifier.Classify(classifier.OpConnect, errors.New("session is gone and no session factory is configured"))
	}

	start := time.Now()
	session, err := w.factory(ctx)
	if err != nil {
		return err
	}

	l.WithFields(logrus.Fields{"event": "reconnect", "duration": time.Since(start)}).Info("Opened new session")
	w.session = session
	return nil
}

func (w *Watcher) consume(l *logrus.Entry, result *domain.MatchResult) {
	var err error
	switch {
	case w.configuration.DeleteMatched:
		err = w.session.Delete(result.Uid)
	case w.configuration.MoveMatched:
		err = w.session.Move(result.Uid, w.configuration.MatchedFolder)
	default:
		return
	}

	if err != nil {
		l.WithFields(logrus.Fields{"uid": result.Uid, "error": err}).Warn("Could not consume matched message")
	}
}

// teardown closes the current session without LOGOUT, the next operation
// opens a fresh one through the factory.
func (w *Watcher) teardown() {
	if w.session == nil {
		return
	}

	err := w.session.Close()
	if err != nil {
		w.l.WithFields(logrus.Fields{"error": err}).Debug("Could not close broken session")
	}
	w.session = nil
}

// abort handles caller cancellation: the session is torn down and a
// non-retryable timeout returned.
func (w *Watcher) abort(l *logrus.Entry, op string, cause error) error {
	l.WithFields(logrus.Fields{"cause": cause}).Info("Aborted by caller")
	w.teardown()
	return classifier.Classify(classifier.OpWait, fmt.Errorf("aborted by caller (%v), op %s: %w", cause, op, context.Canceled))
}

func (w *Watcher) fail(ctx context.Context, l *logrus.Entry, op string, err error) error {
	if ctx.Err() != nil {
		return w.abort(l, op, ctx.Err())
	}
	if classifier.IsRetryable(err) {
		w.teardown()
	}
	return err
}

// expired reports the end of the wait budget. The op id ties the error to the
// log lines of the same wait.
func (w *Watcher) expired(l *logrus.Entry, op string, state *pollState) error {
	if state.sawNewMail {
		l.Info("New mail arrived but none matched")
		return classifier.Classify(classifier.OpWait, fmt.Errorf("%w within %s, op %s", classifier.ErrUnmatched, w.configuration.MaxWait, op))
	}

	l.Info("No new mail arrived")
	return classifier.Classify(classifier.OpWait, fmt.Errorf("%w within %s, op %s", classifier.ErrNoNewMail, w.configuration.MaxWait, op))
}

// skippable errors concern a single message, the session is still usable.
func skippable(err error) bool {
	return classifier.Is(err, classifier.Parse) || classifier.Is(err, classifier.NotFound)
}
