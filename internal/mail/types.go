package mail

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// InboundEmail is one decoded message fetched from the monitored folder.
type InboundEmail struct {
	Subject   string
	From      string // address only
	FromName  string // display name when the envelope carries one
	To        []string
	BodyText  string
	MessageID string
	InReplyTo string
	Date      time.Time
	UID       uint32
}

// Transport is the mail surface the monitor and approval gateway depend
// on. The production implementation is Client; tests substitute fakes.
type Transport interface {
	// FetchUnread lists unseen messages in the monitored folder and
	// returns each as a decoded record. Messages that fail to decode are
	// skipped, not fatal to the batch.
	FetchUnread(ctx context.Context) ([]InboundEmail, error)

	// Send transmits a single message and returns its Message-ID.
	// inReplyTo, when non-empty, is threaded via In-Reply-To/References.
	Send(ctx context.Context, to, subject, body, inReplyTo string) (string, error)
}

// AuthError indicates the mail server rejected the credentials.
type AuthError struct {
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mail auth error (%s): %s", e.Op, e.Message)
}

// NetworkError indicates a connection or protocol-level failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("mail network error (%s): %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError indicates the server refused the message itself
// (bad recipient, policy rejection) rather than the connection.
type RejectedError struct {
	Recipient string
	Err       error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("mail rejected for %s: %v", e.Recipient, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
