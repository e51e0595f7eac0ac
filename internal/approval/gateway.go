// Package approval is the human-in-the-loop queue: AI drafts wait in
// pending_approval until an operator approves, edits, or discards them.
// Every transition out of the queue goes through the store's
// compare-and-set, so a draft can be finalized at most once no matter
// how many operators race on it.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avion00/buy2rent-vendormail/internal/mail"
	"github.com/avion00/buy2rent-vendormail/internal/model"
	"github.com/avion00/buy2rent-vendormail/internal/store"
)

// ErrAlreadyProcessed is returned when an entry was already transitioned
// out of the approval queue by another caller. The API layer surfaces it
// as "already handled", never as a crash.
var ErrAlreadyProcessed = errors.New("draft already processed")

// approvableStates are the source states a send may claim: fresh drafts
// and drafts whose previous transmission failed (which stay
// re-approvable by design).
var approvableStates = []model.EntryStatus{
	model.StatusPendingApproval,
	model.StatusFailed,
}

// Gateway exposes the approval operations to the surrounding API layer.
type Gateway struct {
	store     store.ConversationStore
	transport mail.Transport
	logger    *slog.Logger
}

// New creates a Gateway.
func New(
	convStore store.ConversationStore,
	transport mail.Transport,
	logger *slog.Logger,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: convStore, transport: transport, logger: logger}
}

// ListPending returns AI drafts awaiting approval, oldest first,
// optionally restricted to one issue (issueID == "" for all).
func (g *Gateway) ListPending(
	ctx context.Context, issueID string,
) ([]model.CommunicationLogEntry, error) {
	return g.store.PendingApprovals(ctx, issueID)
}

// Thread returns the full conversation for an issue, oldest first.
func (g *Gateway) Thread(
	ctx context.Context, issueID string,
) ([]model.CommunicationLogEntry, error) {
	return g.store.Thread(ctx, issueID)
}

// Approve transmits a pending draft's stored subject and body unchanged.
// On success the entry becomes sent with the approver recorded; on
// transport failure it becomes failed and the error is returned. A
// second concurrent approver gets ErrAlreadyProcessed instead of a
// double send.
func (g *Gateway) Approve(
	ctx context.Context, entryID, actor string,
) (*model.CommunicationLogEntry, error) {
	return g.send(ctx, entryID, actor, "", "", model.StatusSent)
}

// EditAndSend transmits operator-edited content in place of the draft's.
// The draft entry keeps its original subject and body for audit and is
// marked edited_sent; the transmitted version is appended as a new
// terminal entry authored by the human.
func (g *Gateway) EditAndSend(
	ctx context.Context, entryID, actor, newSubject, newBody string,
) (*model.CommunicationLogEntry, error) {
	if newBody == "" {
		return nil, fmt.Errorf("edit and send: empty body")
	}
	return g.send(ctx, entryID, actor, newSubject, newBody, model.StatusEditedSent)
}

// Retry re-attempts transmission of a draft whose previous send failed.
// It is Approve under a name the operator tooling can surface next to
// failed entries.
func (g *Gateway) Retry(
	ctx context.Context, entryID, actor string,
) (*model.CommunicationLogEntry, error) {
	return g.Approve(ctx, entryID, actor)
}

// Discard rejects a draft without sending it. Terminal: a discarded
// draft can never be approved afterwards.
func (g *Gateway) Discard(
	ctx context.Context, entryID, actor string,
) (*model.CommunicationLogEntry, error) {
	now := time.Now().UTC()
	entry, err := g.store.TransitionEntry(
		ctx, entryID, approvableStates, model.StatusDiscarded, &actor, &now,
	)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("discarding %s: %w", entryID, ErrAlreadyProcessed)
		}
		return nil, err
	}

	g.logger.Info("draft discarded",
		"entry_id", entryID, "issue_id", entry.IssueID, "actor", actor)
	return entry, nil
}

// send claims the entry via compare-and-set, then transmits. Claiming
// first is what makes approval at-most-once: with no row locking in the
// store, send-then-mark would let two racing approvers both transmit.
// A transport failure downgrades the claimed entry to failed, which
// keeps it visible and re-approvable.
func (g *Gateway) send(
	ctx context.Context,
	entryID, actor, overrideSubject, overrideBody string,
	claimStatus model.EntryStatus,
) (*model.CommunicationLogEntry, error) {
	now := time.Now().UTC()

	entry, err := g.store.TransitionEntry(
		ctx, entryID, approvableStates, claimStatus, &actor, &now,
	)
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("approving %s: %w", entryID, ErrAlreadyProcessed)
		}
		return nil, err
	}

	subject, body := entry.Subject, entry.Body
	if overrideSubject != "" {
		subject = overrideSubject
	}
	if overrideBody != "" {
		body = overrideBody
	}

	messageID, sendErr := g.transport.Send(ctx, entry.EmailTo, subject, body, entry.InReplyTo)
	if sendErr != nil {
		// Claimed but not delivered: downgrade so an operator can retry.
		if _, dErr := g.store.TransitionEntry(
			ctx, entryID,
			[]model.EntryStatus{claimStatus},
			model.StatusFailed, nil, nil,
		); dErr != nil {
			g.logger.Error("marking failed send",
				"entry_id", entryID, "error", dErr)
		}
		g.logger.Error("draft transmission failed",
			"entry_id", entryID, "issue_id", entry.IssueID, "error", sendErr)
		return nil, fmt.Errorf("sending draft %s: %w", entryID, sendErr)
	}

	if claimStatus == model.StatusEditedSent {
		// Record what actually went out as its own audit entry.
		sentEntry := model.CommunicationLogEntry{
			IssueID:        entry.IssueID,
			Sender:         model.SenderHuman,
			MessageType:    model.MessageTypeEmail,
			Subject:        subject,
			Body:           body,
			Status:         model.StatusSent,
			EmailFrom:      entry.EmailFrom,
			EmailTo:        entry.EmailTo,
			EmailMessageID: &messageID,
			InReplyTo:      entry.InReplyTo,
			ApprovedBy:     &actor,
			ApprovedAt:     &now,
		}
		if _, _, err := g.store.AppendEntry(ctx, sentEntry); err != nil {
			return nil, fmt.Errorf("recording edited send: %w", err)
		}
	}

	g.logger.Info("draft sent",
		"entry_id", entryID,
		"issue_id", entry.IssueID,
		"actor", actor,
		"message_id", messageID)

	return entry, nil
}
