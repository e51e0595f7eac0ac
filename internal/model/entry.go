package model

import "time"

// Sender identifies who authored a communication log entry.
type Sender string

const (
	SenderVendor Sender = "vendor"
	SenderAI     Sender = "ai"
	SenderHuman  Sender = "human"
)

// EntryStatus is the lifecycle state of a communication log entry.
type EntryStatus string

const (
	// StatusReceived marks an inbound vendor message. Terminal.
	StatusReceived EntryStatus = "received"

	// StatusPendingApproval marks an AI draft awaiting human action.
	StatusPendingApproval EntryStatus = "pending_approval"

	// StatusSent marks a transmitted message. Terminal.
	StatusSent EntryStatus = "sent"

	// StatusEditedSent marks a draft whose edited content was transmitted.
	// The draft body itself is preserved unchanged for audit. Terminal.
	StatusEditedSent EntryStatus = "edited_sent"

	// StatusFailed marks a draft whose transmission errored. An operator
	// may re-approve or edit it, so failed is not terminal.
	StatusFailed EntryStatus = "failed"

	// StatusDiscarded marks a draft a human rejected without sending.
	// Terminal.
	StatusDiscarded EntryStatus = "discarded"
)

// MessageTypeEmail is the only message type this core produces today.
const MessageTypeEmail = "email"

// CanTransition reports whether an entry may move from one status to
// another. Entries are immutable once created except for this status
// progression (plus the approval metadata written alongside it).
//
// The approval gateway claims a draft as sent/edited_sent before
// transmitting, so sent -> failed and edited_sent -> failed exist as the
// downgrade when the transmission then errors. received and discarded
// allow nothing.
func CanTransition(from, to EntryStatus) bool {
	switch from {
	case StatusPendingApproval:
		switch to {
		case StatusSent, StatusEditedSent, StatusFailed, StatusDiscarded:
			return true
		}
	case StatusFailed:
		switch to {
		case StatusSent, StatusEditedSent, StatusDiscarded:
			return true
		}
	case StatusSent, StatusEditedSent:
		return to == StatusFailed
	}
	return false
}

// CommunicationLogEntry is one message in an issue's conversation thread.
// Rows are append-only: only Status, ApprovedBy, and ApprovedAt change
// after insert, and only through the store's compare-and-set transition.
type CommunicationLogEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id" db:"id"`

	// IssueID links this entry to its external issue record.
	IssueID string `json:"issue_id" db:"issue_id"`

	// Sender identifies who authored the message.
	Sender Sender `json:"sender" db:"sender"`

	// MessageType is the communication channel (currently always "email").
	MessageType string `json:"message_type" db:"message_type"`

	Subject string `json:"subject" db:"subject"`
	Body    string `json:"body" db:"body"`

	// Status is the entry's lifecycle state (use Status* constants).
	Status EntryStatus `json:"status" db:"status"`

	EmailFrom string `json:"email_from" db:"email_from"`
	EmailTo   string `json:"email_to" db:"email_to"`

	// EmailMessageID is the transport-level Message-ID. Non-null values
	// are unique across the log; duplicate ingestion is a no-op.
	EmailMessageID *string `json:"email_message_id,omitempty" db:"email_message_id"`

	// EmailThreadID groups entries of one conversation ("issue-<issue_id>").
	EmailThreadID string `json:"email_thread_id" db:"email_thread_id"`

	// InReplyTo is the Message-ID this message replies to, if any.
	InReplyTo string `json:"in_reply_to" db:"in_reply_to"`

	// AIGenerated marks entries whose body was produced by the analyzer.
	AIGenerated bool `json:"ai_generated" db:"ai_generated"`

	// AIConfidence is the analyzer's 0..1 score for a generated draft.
	// Display hint only; it never gates sending.
	AIConfidence *float64 `json:"ai_confidence,omitempty" db:"ai_confidence"`

	// ApprovedBy and ApprovedAt record the human actor who moved a draft
	// out of pending_approval.
	ApprovedBy *string    `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" db:"approved_at"`

	// Timestamp orders the thread. Assigned at append time.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// ThreadID returns the derived conversation thread identifier for an issue.
func ThreadID(issueID string) string {
	return "issue-" + issueID
}
