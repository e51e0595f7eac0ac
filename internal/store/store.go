package store

import (
	"context"
	"errors"
	"time"

	"github.com/avion00/buy2rent-vendormail/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStatusConflict is returned by TransitionEntry when the entry exists
// but its status no longer matches any of the expected source states,
// meaning another caller already transitioned it.
var ErrStatusConflict = errors.New("entry status conflict")

// ConversationStore is the append-only communication log per issue.
// Entries are immutable once inserted except for the status transition
// and its approval metadata.
type ConversationStore interface {
	// AppendEntry inserts a new log entry. When the entry carries a
	// non-null EmailMessageID that is already present, the insert is a
	// no-op and the existing entry is returned with inserted=false.
	AppendEntry(ctx context.Context, entry model.CommunicationLogEntry) (model.CommunicationLogEntry, bool, error)

	// GetEntry retrieves a single entry by id.
	GetEntry(ctx context.Context, id string) (*model.CommunicationLogEntry, error)

	// Thread returns all entries for an issue, timestamp ascending.
	Thread(ctx context.Context, issueID string) ([]model.CommunicationLogEntry, error)

	// PendingApprovals lists AI drafts in pending_approval, oldest
	// first, optionally restricted to one issue (issueID == "" for all).
	PendingApprovals(ctx context.Context, issueID string) ([]model.CommunicationLogEntry, error)

	// TransitionEntry moves an entry from one of the expected source
	// states to the target state, writing approval metadata alongside.
	// The update is a compare-and-set: of two concurrent callers exactly
	// one succeeds and the other gets ErrStatusConflict.
	TransitionEntry(
		ctx context.Context,
		id string,
		from []model.EntryStatus,
		to model.EntryStatus,
		approvedBy *string,
		approvedAt *time.Time,
	) (*model.CommunicationLogEntry, error)
}

// IssueDirectory is the lookup/update contract against the external
// issue records. The wider backend owns the rows; this core reads them
// and writes the status and AI-activation flag back.
type IssueDirectory interface {
	GetIssue(ctx context.Context, id string) (*model.Issue, error)
	SetAIActivated(ctx context.Context, id string, activated bool) error
	SetIssueStatus(ctx context.Context, id string, status model.IssueStatus) error

	// UpsertIssue inserts or replaces an issue record. Used by the
	// surrounding CRUD layer and by tests to seed issues.
	UpsertIssue(ctx context.Context, issue model.Issue) error
}
