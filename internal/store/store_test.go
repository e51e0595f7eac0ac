package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avion00/buy2rent-vendormail/internal/model"
	"github.com/avion00/buy2rent-vendormail/internal/store"
	"github.com/avion00/buy2rent-vendormail/tests/testutil"
)

func seedIssue(t *testing.T, s *store.SQLiteStore, id string) model.Issue {
	t.Helper()
	issue := model.Issue{
		ID:          id,
		VendorName:  "Acme Supplies",
		VendorEmail: "support@acme.example",
		IssueType:   "damaged product",
		Description: "Two chairs arrived with broken legs.",
		Status:      model.IssueOpen,
	}
	require.NoError(t, s.UpsertIssue(context.Background(), issue))
	return issue
}

func vendorEntry(issueID, messageID string) model.CommunicationLogEntry {
	entry := model.CommunicationLogEntry{
		IssueID:   issueID,
		Sender:    model.SenderVendor,
		Subject:   "Re: [Issue #" + issueID + "] Damaged delivery",
		Body:      "We will send replacements.",
		Status:    model.StatusReceived,
		EmailFrom: "support@acme.example",
		EmailTo:   "procurement@buy2rent.example",
	}
	if messageID != "" {
		entry.EmailMessageID = &messageID
	}
	return entry
}

func TestAppendEntryAssignsDefaults(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-defaults")

	recorded, inserted, err := s.AppendEntry(ctx, vendorEntry(issue.ID, "<m1@acme>"))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, recorded.ID)
	assert.Equal(t, model.MessageTypeEmail, recorded.MessageType)
	assert.Equal(t, model.ThreadID(issue.ID), recorded.EmailThreadID)
	assert.False(t, recorded.Timestamp.IsZero())

	got, err := s.GetEntry(ctx, recorded.ID)
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, got.ID)
	assert.Equal(t, model.SenderVendor, got.Sender)
	assert.Equal(t, model.StatusReceived, got.Status)
	require.NotNil(t, got.EmailMessageID)
	assert.Equal(t, "<m1@acme>", *got.EmailMessageID)
}

func TestAppendEntryIdempotentByMessageID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-idempotent")

	first, inserted, err := s.AppendEntry(ctx, vendorEntry(issue.ID, "<dup@acme>"))
	require.NoError(t, err)
	require.True(t, inserted)

	// Refetching unseen mail hands the same message in again.
	second, inserted, err := s.AppendEntry(ctx, vendorEntry(issue.ID, "<dup@acme>"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)

	thread, err := s.Thread(ctx, issue.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 1)
}

func TestAppendEntryNilMessageIDsNeverCollide(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-nil-mid")

	for i := 0; i < 3; i++ {
		_, inserted, err := s.AppendEntry(ctx, vendorEntry(issue.ID, ""))
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	thread, err := s.Thread(ctx, issue.ID)
	require.NoError(t, err)
	assert.Len(t, thread, 3)
}

func TestThreadOrderedByTimestamp(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-ordering")

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	offsets := []time.Duration{2 * time.Hour, 0, time.Hour}
	for i, mid := range []string{"<t3@acme>", "<t1@acme>", "<t2@acme>"} {
		entry := vendorEntry(issue.ID, mid)
		// Insert out of order; the thread must come back sorted.
		entry.Timestamp = base.Add(offsets[i])
		_, _, err := s.AppendEntry(ctx, entry)
		require.NoError(t, err)
	}

	thread, err := s.Thread(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	for i := 1; i < len(thread); i++ {
		assert.False(t, thread[i].Timestamp.Before(thread[i-1].Timestamp))
	}
}

func TestPendingApprovalsFilter(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issueA := seedIssue(t, s, "issue-pending-a")
	issueB := seedIssue(t, s, "issue-pending-b")

	draft := func(issueID string) model.CommunicationLogEntry {
		return model.CommunicationLogEntry{
			IssueID:     issueID,
			Sender:      model.SenderAI,
			Subject:     "draft",
			Body:        "draft body",
			Status:      model.StatusPendingApproval,
			AIGenerated: true,
		}
	}

	_, _, err := s.AppendEntry(ctx, draft(issueA.ID))
	require.NoError(t, err)
	_, _, err = s.AppendEntry(ctx, draft(issueB.ID))
	require.NoError(t, err)
	// Vendor messages and sent drafts never show up in the queue.
	_, _, err = s.AppendEntry(ctx, vendorEntry(issueA.ID, "<v@acme>"))
	require.NoError(t, err)
	sentDraft := draft(issueA.ID)
	sentDraft.Status = model.StatusSent
	_, _, err = s.AppendEntry(ctx, sentDraft)
	require.NoError(t, err)

	all, err := s.PendingApprovals(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyA, err := s.PendingApprovals(ctx, issueA.ID)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, issueA.ID, onlyA[0].IssueID)
}

func TestTransitionEntryWritesApprovalMetadata(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-transition")

	draft, _, err := s.AppendEntry(ctx, model.CommunicationLogEntry{
		IssueID:     issue.ID,
		Sender:      model.SenderAI,
		Body:        "draft body",
		Status:      model.StatusPendingApproval,
		AIGenerated: true,
	})
	require.NoError(t, err)

	actor := "alice"
	at := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
	updated, err := s.TransitionEntry(
		ctx, draft.ID,
		[]model.EntryStatus{model.StatusPendingApproval, model.StatusFailed},
		model.StatusSent, &actor, &at,
	)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, updated.Status)
	require.NotNil(t, updated.ApprovedBy)
	assert.Equal(t, "alice", *updated.ApprovedBy)
	require.NotNil(t, updated.ApprovedAt)
	assert.True(t, updated.ApprovedAt.Equal(at))
}

func TestTransitionEntryNilMetadataPreservesExisting(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-downgrade")

	draft, _, err := s.AppendEntry(ctx, model.CommunicationLogEntry{
		IssueID: issue.ID,
		Sender:  model.SenderAI,
		Body:    "draft body",
		Status:  model.StatusPendingApproval,
	})
	require.NoError(t, err)

	actor := "bob"
	at := time.Now().UTC()
	_, err = s.TransitionEntry(ctx, draft.ID,
		[]model.EntryStatus{model.StatusPendingApproval},
		model.StatusSent, &actor, &at)
	require.NoError(t, err)

	// The failed-send downgrade passes nil metadata; the approver who
	// claimed the draft stays on record.
	downgraded, err := s.TransitionEntry(ctx, draft.ID,
		[]model.EntryStatus{model.StatusSent},
		model.StatusFailed, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, downgraded.Status)
	require.NotNil(t, downgraded.ApprovedBy)
	assert.Equal(t, "bob", *downgraded.ApprovedBy)
	require.NotNil(t, downgraded.ApprovedAt)
}

func TestTransitionEntryRejectsIllegalTransition(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-illegal")

	received, _, err := s.AppendEntry(ctx, vendorEntry(issue.ID, "<r@acme>"))
	require.NoError(t, err)

	_, err = s.TransitionEntry(ctx, received.ID,
		[]model.EntryStatus{model.StatusReceived},
		model.StatusSent, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a legal transition")
}

func TestTransitionEntryStatusConflict(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-conflict")

	draft, _, err := s.AppendEntry(ctx, model.CommunicationLogEntry{
		IssueID: issue.ID,
		Sender:  model.SenderAI,
		Body:    "draft body",
		Status:  model.StatusPendingApproval,
	})
	require.NoError(t, err)

	actor := "alice"
	at := time.Now().UTC()
	from := []model.EntryStatus{model.StatusPendingApproval, model.StatusFailed}

	_, err = s.TransitionEntry(ctx, draft.ID, from, model.StatusSent, &actor, &at)
	require.NoError(t, err)

	_, err = s.TransitionEntry(ctx, draft.ID, from, model.StatusSent, &actor, &at)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStatusConflict)
}

func TestTransitionEntryNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.TransitionEntry(context.Background(), "no-such-entry",
		[]model.EntryStatus{model.StatusPendingApproval},
		model.StatusSent, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitionEntryConcurrentClaims(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-race")

	draft, _, err := s.AppendEntry(ctx, model.CommunicationLogEntry{
		IssueID: issue.ID,
		Sender:  model.SenderAI,
		Body:    "draft body",
		Status:  model.StatusPendingApproval,
	})
	require.NoError(t, err)

	const claimers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	from := []model.EntryStatus{model.StatusPendingApproval, model.StatusFailed}

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := "approver"
			at := time.Now().UTC()
			_, err := s.TransitionEntry(ctx, draft.ID, from, model.StatusSent, &actor, &at)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, store.ErrStatusConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, claimers-1, conflicts)
}

func TestIssueDirectory(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	issue := seedIssue(t, s, "issue-directory")

	got, err := s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Supplies", got.VendorName)
	assert.Equal(t, model.IssueOpen, got.Status)
	assert.False(t, got.AIActivated)

	require.NoError(t, s.SetAIActivated(ctx, issue.ID, true))
	require.NoError(t, s.SetIssueStatus(ctx, issue.ID, model.IssuePendingVendor))

	got, err = s.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.True(t, got.AIActivated)
	assert.Equal(t, model.IssuePendingVendor, got.Status)

	_, err = s.GetIssue(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.SetAIActivated(ctx, "missing", true), store.ErrNotFound)
	assert.ErrorIs(t, s.SetIssueStatus(ctx, "missing", model.IssueResolved), store.ErrNotFound)
}
