// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// Message is the decoded, text-only view of a mail.
type Message struct {
	Subject string
	Date    time.Time

	// Text and HTML hold all inline parts of that type, in message order.
	Text string
	HTML string
}

// Body is the text a matcher is applied to: plain parts first, html after.
func (m *Message) Body() string {
	switch {
	case len(m.Text) == 0:
		return m.HTML
	case len(m.HTML) == 0:
		return m.Text
	}
	return m.Text + "\n" + m.HTML
}

// Parse decodes transfer encodings and charsets of every inline text part.
// Attachments are skipped.
func Parse(rawMail []byte) (*Message, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(rawMail))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("could not parse mail: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	msg.Subject, err = mr.Header.Subject()
	if err != nil {
		// undecodable encoded-words, keep the raw header
		msg.Subject = mr.Header.Get("Subject")
	}
	msg.Date, _ = mr.Header.Date()

	text, html := []string{}, []string{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("could not read mail part: %w", err)
		}

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := h.ContentType()
		if err != nil || len(contentType) == 0 {
			contentType = "text/plain"
		}
		if !strings.HasPrefix(contentType, "text/") {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("could not decode %s part: %w", contentType, err)
		}

		if contentType == "text/html" {
			html = append(html, string(body))
		} else {
			text = append(text, string(body))
		}
	}

	msg.Text = strings.Join(text, "\n")
	msg.HTML = strings.Join(html, "\n")
	return msg, nil
}

func ShortSubject(subject string) string {
	if (len(subject)) > 30 {
		subject = subject[:30] + "..."
	}
	return subject
}
