// Package mail wraps the shared mailbox: IMAP polling of vendor replies
// and SMTP transmission of approved drafts, one credential pair for both.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"github.com/avion00/buy2rent-vendormail/internal/model"
)

// Client talks IMAP and SMTP to the shared issue mailbox.
type Client struct {
	cfg    model.MailConfig
	logger *slog.Logger
}

// NewClient creates a mail client from the mailbox configuration.
func NewClient(cfg model.MailConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// connect establishes an authenticated IMAP session. The caller is
// responsible for calling Logout on the returned client.
func (c *Client) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.cfg.IMAPHost + ":" + c.cfg.IMAPPort

	var client *imapclient.Client
	var err error

	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, &NetworkError{Op: "imap connect", Err: err}
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Op: "imap login",
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", c.cfg.Username, err,
			),
		}
	}

	return client, nil
}

// TestConnection verifies both halves of the transport: it authenticates
// over IMAP and selects the monitored folder, then opens and closes an
// authenticated SMTP session. Returns a human-readable status message.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating mailbox connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.folder(), nil).Wait(); err != nil {
		return "", &NetworkError{Op: "imap select " + c.folder(), Err: err}
	}

	if err := c.testSMTP(); err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"connected to %s as %s (folder %s), SMTP OK",
		c.cfg.IMAPHost, c.cfg.Username, c.folder(),
	), nil
}

// FetchUnread lists unseen messages in the monitored folder and decodes
// each into an InboundEmail. Fetching the body section without Peek lets
// the server flag messages \Seen; processed-state correlation is the
// conversation store's message-id dedupe, never mailbox flags alone, so
// refetching an already-seen message is a harmless no-op downstream.
// A message that fails to decode is logged and skipped; the rest of the
// batch still goes through.
func (c *Client) FetchUnread(ctx context.Context) ([]InboundEmail, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.folder(), nil).Wait(); err != nil {
		return nil, &NetworkError{Op: "imap select " + c.folder(), Err: err}
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &NetworkError{Op: "imap search unseen", Err: err}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)

	bodySection := &imap.FetchItemBodySection{}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)

	var emails []InboundEmail
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.logger.Warn("skipping undecodable message",
				"reason", err)
			continue
		}

		email := emailFromBuffer(buf)

		rawBody := buf.FindBodySection(bodySection)
		if rawBody != nil {
			email.BodyText = extractTextBody(rawBody)
		}

		emails = append(emails, email)
	}

	if err := fetchCmd.Close(); err != nil {
		return emails, &NetworkError{Op: "imap fetch", Err: err}
	}

	return emails, nil
}

func (c *Client) folder() string {
	if c.cfg.Folder == "" {
		return "INBOX"
	}
	return c.cfg.Folder
}

// emailFromBuffer extracts envelope fields from a fetched message buffer.
func emailFromBuffer(buf *imapclient.FetchMessageBuffer) InboundEmail {
	email := InboundEmail{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		email.MessageID = buf.Envelope.MessageID
		// The envelope carries the full In-Reply-To chain; the first
		// identifier is the message being answered.
		if len(buf.Envelope.InReplyTo) > 0 {
			email.InReplyTo = buf.Envelope.InReplyTo[0]
		}
		email.Subject = buf.Envelope.Subject
		email.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			email.From = from.Addr()
			email.FromName = from.Name
		}

		for _, to := range buf.Envelope.To {
			email.To = append(email.To, to.Addr())
		}
	}

	return email
}

// extractTextBody walks the MIME parts of a raw RFC 2822 message,
// preferring text/plain and falling back to stripped text/html.
// Attachments are skipped. A part that fails to read is skipped, and a
// message that fails to parse at all is treated as plain text.
func extractTextBody(raw []byte) string {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var textBody, htmlBody string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if textBody != "" {
		return textBody
	}
	return stripHTML(htmlBody)
}
