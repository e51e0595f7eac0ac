// Package monitor orchestrates the issue-resolution email workflow: it
// polls the shared mailbox, correlates vendor replies back to issues,
// records them, and queues AI-drafted responses for human approval.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avion00/buy2rent-vendormail/internal/ai"
	"github.com/avion00/buy2rent-vendormail/internal/correlate"
	"github.com/avion00/buy2rent-vendormail/internal/mail"
	"github.com/avion00/buy2rent-vendormail/internal/model"
	"github.com/avion00/buy2rent-vendormail/internal/store"
)

// fetchTimeout bounds the IMAP fetch of one poll cycle. Message
// processing after the fetch is not bounded by it: a batch of slow
// messages must not deadline-fail its tail, and each analyzer call
// carries its own request timeout while store writes are local.
const fetchTimeout = 30 * time.Second

// Outcome classifies what happened to one inbound message.
type Outcome string

const (
	// OutcomeDrafted: recorded and a reply draft queued for approval.
	OutcomeDrafted Outcome = "drafted"

	// OutcomeDuplicate: the message id was already recorded; nothing new.
	OutcomeDuplicate Outcome = "duplicate"

	// OutcomeSkipped: no issue correlation (or a stale one); not ours.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeRecordedOnly: the vendor message was durably recorded but
	// analysis or drafting failed; an operator can retry drafting later.
	OutcomeRecordedOnly Outcome = "recorded_only"

	// OutcomeFailed: the message could not be recorded at all.
	OutcomeFailed Outcome = "failed"
)

// MessageResult is the per-message result of a poll cycle. One message's
// failure never aborts the rest of the batch.
type MessageResult struct {
	MessageID string
	IssueID   string
	Outcome   Outcome
	Err       error
}

// Monitor drives the inbound half of the workflow and the initial
// outbound contact. It holds its collaborators explicitly; one Monitor
// is constructed per process and torn down with it.
type Monitor struct {
	store     store.ConversationStore
	issues    store.IssueDirectory
	transport mail.Transport
	analyzer  ai.Analyzer
	fromAddr  string
	logger    *slog.Logger
}

// New creates a Monitor. fromAddr is the shared mailbox address stamped
// on outbound entries.
func New(
	convStore store.ConversationStore,
	issues store.IssueDirectory,
	transport mail.Transport,
	analyzer ai.Analyzer,
	fromAddr string,
	logger *slog.Logger,
) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:     convStore,
		issues:    issues,
		transport: transport,
		analyzer:  analyzer,
		fromAddr:  fromAddr,
		logger:    logger,
	}
}

// ProcessInbox runs one poll cycle: fetch unread messages and process
// each independently, in mailbox order. The returned error is non-nil
// only for cycle-level failures (the fetch itself); per-message problems
// are reported in the results and logged, never propagated.
func (m *Monitor) ProcessInbox(ctx context.Context) ([]MessageResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	emails, err := m.transport.FetchUnread(fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("fetching unread mail: %w", err)
	}

	// Fetched messages are already flagged \Seen on the server, so the
	// whole batch runs on a context detached from cancellation. A
	// shutdown signal aborting between a message's record and draft
	// writes would strand it half-processed: the message-id dedupe stops
	// the next cycle from ever reaching the draft stage again.
	procCtx := context.WithoutCancel(ctx)

	results := make([]MessageResult, 0, len(emails))
	for _, email := range emails {
		results = append(results, m.processMessage(procCtx, email))
	}

	return results, nil
}

// processMessage walks one inbound message through
// correlate -> resolve -> record -> analyze -> draft, short-circuiting
// to a skip or failure outcome at any step without raising.
func (m *Monitor) processMessage(ctx context.Context, email mail.InboundEmail) MessageResult {
	result := MessageResult{MessageID: email.MessageID}

	issueID, ok := correlate.Extract(email.Subject, email.BodyText)
	if !ok {
		m.logger.Info("skipping uncorrelated message",
			"message_id", email.MessageID,
			"from", email.From)
		result.Outcome = OutcomeSkipped
		return result
	}
	result.IssueID = issueID

	issue, err := m.issues.GetIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("skipping message with stale issue reference",
				"message_id", email.MessageID,
				"issue_id", issueID)
			result.Outcome = OutcomeSkipped
			return result
		}
		result.Outcome = OutcomeFailed
		result.Err = fmt.Errorf("resolving issue %s: %w", issueID, err)
		m.logger.Error("issue lookup failed",
			"issue_id", issueID, "error", err)
		return result
	}

	from := email.From
	if email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", email.FromName, email.From)
	}

	vendorEntry := model.CommunicationLogEntry{
		IssueID:     issue.ID,
		Sender:      model.SenderVendor,
		MessageType: model.MessageTypeEmail,
		Subject:     email.Subject,
		Body:        email.BodyText,
		Status:      model.StatusReceived,
		EmailFrom:   from,
		EmailTo:     strings.Join(email.To, ", "),
		InReplyTo:   email.InReplyTo,
	}
	if email.MessageID != "" {
		vendorEntry.EmailMessageID = &email.MessageID
	}
	if !email.Date.IsZero() {
		// Thread order follows when the vendor sent it, not when the
		// poll happened to pick it up.
		vendorEntry.Timestamp = email.Date.UTC()
	}

	recorded, inserted, err := m.store.AppendEntry(ctx, vendorEntry)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = fmt.Errorf("recording vendor message: %w", err)
		m.logger.Error("recording vendor message failed",
			"issue_id", issue.ID, "message_id", email.MessageID, "error", err)
		return result
	}
	if !inserted {
		// Already processed in an earlier cycle; refetching seen mail is
		// expected, so stop here to avoid drafting a second reply.
		result.Outcome = OutcomeDuplicate
		return result
	}

	if _, err := m.draftReply(ctx, *issue, recorded); err != nil {
		// The vendor message is durably recorded; only the draft is
		// missing, and RedraftReply can finish the job later.
		result.Outcome = OutcomeRecordedOnly
		result.Err = err
		m.logger.Error("reply drafting failed",
			"issue_id", issue.ID, "message_id", email.MessageID, "error", err)
		return result
	}

	result.Outcome = OutcomeDrafted
	return result
}

// draftReply runs the analyzer over a recorded vendor message and queues
// the drafted response in pending_approval. Nothing is persisted when
// analysis or drafting fails.
func (m *Monitor) draftReply(
	ctx context.Context,
	issue model.Issue,
	vendorEntry model.CommunicationLogEntry,
) (model.CommunicationLogEntry, error) {
	analysis, err := m.analyzer.Analyze(ctx, issue, vendorEntry.Body)
	if err != nil {
		return model.CommunicationLogEntry{}, fmt.Errorf("analyzing vendor reply: %w", err)
	}

	draft, err := m.analyzer.DraftReply(ctx, issue, vendorEntry.Body, analysis)
	if err != nil {
		return model.CommunicationLogEntry{}, fmt.Errorf("drafting reply: %w", err)
	}

	subject, body := correlate.Embed(issue.ID, draft.Subject, draft.Body)
	confidence := draft.Confidence

	inReplyTo := ""
	if vendorEntry.EmailMessageID != nil {
		inReplyTo = *vendorEntry.EmailMessageID
	}

	draftEntry := model.CommunicationLogEntry{
		IssueID:      issue.ID,
		Sender:       model.SenderAI,
		MessageType:  model.MessageTypeEmail,
		Subject:      subject,
		Body:         body,
		Status:       model.StatusPendingApproval,
		EmailFrom:    m.fromAddr,
		EmailTo:      issue.VendorEmail,
		InReplyTo:    inReplyTo,
		AIGenerated:  true,
		AIConfidence: &confidence,
	}

	queued, _, err := m.store.AppendEntry(ctx, draftEntry)
	if err != nil {
		return model.CommunicationLogEntry{}, fmt.Errorf("queueing draft for approval: %w", err)
	}

	m.logger.Info("reply draft queued for approval",
		"issue_id", issue.ID,
		"sentiment", analysis.Sentiment,
		"confidence", confidence)

	return queued, nil
}

// RedraftReply runs analysis and drafting over an already-recorded
// vendor message. This is the recovery path for the recorded_only
// outcome: messages recorded while the analyzer was unavailable have no
// draft, and the message-id dedupe keeps poll cycles from drafting one.
// It refuses when the thread already contains a reply to the message.
func (m *Monitor) RedraftReply(
	ctx context.Context, entryID string,
) (*model.CommunicationLogEntry, error) {
	entry, err := m.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Sender != model.SenderVendor || entry.Status != model.StatusReceived {
		return nil, fmt.Errorf("entry %s is not a recorded vendor message", entryID)
	}

	issue, err := m.issues.GetIssue(ctx, entry.IssueID)
	if err != nil {
		return nil, fmt.Errorf("resolving issue %s: %w", entry.IssueID, err)
	}

	thread, err := m.store.Thread(ctx, entry.IssueID)
	if err != nil {
		return nil, fmt.Errorf("reading thread for issue %s: %w", entry.IssueID, err)
	}
	for _, e := range thread {
		if e.Sender == model.SenderVendor {
			continue
		}
		replied := entry.EmailMessageID != nil && e.InReplyTo == *entry.EmailMessageID
		if entry.EmailMessageID == nil {
			// No message id to thread on; any later outbound entry
			// counts as the reply.
			replied = e.Timestamp.After(entry.Timestamp)
		}
		if replied {
			return nil, fmt.Errorf(
				"vendor message %s already has a reply (%s, %s)",
				entryID, e.ID, e.Status,
			)
		}
	}

	queued, err := m.draftReply(ctx, *issue, *entry)
	if err != nil {
		return nil, err
	}
	return &queued, nil
}

// StartConversation opens the email thread for a freshly raised issue:
// it composes the initial contact from issue context alone, embeds the
// correlation identifier, sends it, records a sent entry, and writes the
// AI-activation flag and status back to the issue. This issue writeback
// is the only side effect this core has outside its own data.
func (m *Monitor) StartConversation(
	ctx context.Context, issueID string,
) (*model.CommunicationLogEntry, error) {
	issue, err := m.issues.GetIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("resolving issue %s: %w", issueID, err)
	}

	draft, err := m.analyzer.ComposeInitial(ctx, *issue)
	if err != nil {
		return nil, fmt.Errorf("composing initial contact: %w", err)
	}

	subject, body := correlate.Embed(issue.ID, draft.Subject, draft.Body)

	messageID, err := m.transport.Send(ctx, issue.VendorEmail, subject, body, "")
	if err != nil {
		return nil, fmt.Errorf("sending initial contact: %w", err)
	}

	confidence := draft.Confidence
	entry := model.CommunicationLogEntry{
		IssueID:        issue.ID,
		Sender:         model.SenderAI,
		MessageType:    model.MessageTypeEmail,
		Subject:        subject,
		Body:           body,
		Status:         model.StatusSent,
		EmailFrom:      m.fromAddr,
		EmailTo:        issue.VendorEmail,
		EmailMessageID: &messageID,
		AIGenerated:    true,
		AIConfidence:   &confidence,
	}

	recorded, _, err := m.store.AppendEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("recording initial contact: %w", err)
	}

	if err := m.issues.SetAIActivated(ctx, issue.ID, true); err != nil {
		return nil, fmt.Errorf("activating AI conversation: %w", err)
	}
	if err := m.issues.SetIssueStatus(ctx, issue.ID, model.IssuePendingVendor); err != nil {
		return nil, fmt.Errorf("updating issue status: %w", err)
	}

	m.logger.Info("initial contact sent",
		"issue_id", issue.ID,
		"to", issue.VendorEmail,
		"message_id", messageID)

	return &recorded, nil
}
