package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// dialTimeout bounds the SMTP connection attempt.
const dialTimeout = 30 * time.Second

// Send composes a single plain-text message and transmits it via SMTP,
// returning the generated Message-ID. Failures are typed: AuthError,
// NetworkError, or RejectedError — never a silent no-op.
func (c *Client) Send(
	_ context.Context, to, subject, body, inReplyTo string,
) (string, error) {
	from := c.cfg.Username
	messageID := newMessageID(from)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))
	if inReplyTo != "" {
		msg.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", inReplyTo))
		msg.WriteString(fmt.Sprintf("References: <%s>\r\n", inReplyTo))
	}
	msg.WriteString(fmt.Sprintf(
		"Date: %s\r\n", time.Now().Format(time.RFC1123Z),
	))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	client, err := c.dialSMTP()
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := c.sendViaSMTPClient(client, from, to, msg.String()); err != nil {
		return "", err
	}

	return messageID, nil
}

// testSMTP opens and closes an authenticated SMTP session without
// sending anything.
func (c *Client) testSMTP() error {
	client, err := c.dialSMTP()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

// dialSMTP connects and authenticates, over implicit TLS or STARTTLS
// depending on configuration.
func (c *Client) dialSMTP() (*smtp.Client, error) {
	addr := c.cfg.SMTPHost + ":" + c.cfg.SMTPPort
	tlsConfig := &tls.Config{ServerName: c.cfg.SMTPHost}

	var client *smtp.Client

	if c.cfg.TLS {
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return nil, &NetworkError{Op: "smtp dial " + addr, Err: err}
		}
		client, err = smtp.NewClient(conn, c.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, &NetworkError{Op: "smtp handshake", Err: err}
		}
	} else {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			return nil, &NetworkError{Op: "smtp dial " + addr, Err: err}
		}
		cl, err := smtp.NewClient(conn, c.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return nil, &NetworkError{Op: "smtp handshake", Err: err}
		}
		if err := cl.StartTLS(tlsConfig); err != nil {
			cl.Close()
			return nil, &NetworkError{Op: "smtp starttls", Err: err}
		}
		client = cl
	}

	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, &AuthError{
			Op:      "smtp auth",
			Message: fmt.Sprintf("authentication failed for %s: %v", c.cfg.Username, err),
		}
	}

	return client, nil
}

// sendViaSMTPClient runs the MAIL/RCPT/DATA exchange on an authenticated
// session.
func (c *Client) sendViaSMTPClient(client *smtp.Client, from, to, body string) error {
	if err := client.Mail(from); err != nil {
		return &RejectedError{Recipient: to, Err: fmt.Errorf("MAIL FROM: %w", err)}
	}

	if err := client.Rcpt(to); err != nil {
		return &RejectedError{Recipient: to, Err: fmt.Errorf("RCPT TO: %w", err)}
	}

	writer, err := client.Data()
	if err != nil {
		return &NetworkError{Op: "smtp data", Err: err}
	}

	if _, err := writer.Write([]byte(body)); err != nil {
		return &NetworkError{Op: "smtp write body", Err: err}
	}

	if err := writer.Close(); err != nil {
		return &NetworkError{Op: "smtp close body", Err: err}
	}

	return client.Quit()
}

// newMessageID builds a globally unique Message-ID scoped to the
// sending mailbox's domain.
func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("%s@%s", uuid.New().String(), domain)
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags and decodes common entities, giving a
// basic plain-text rendering for messages with no text/plain part.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
