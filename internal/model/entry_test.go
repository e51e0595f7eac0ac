package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to EntryStatus }{
		{StatusPendingApproval, StatusSent},
		{StatusPendingApproval, StatusEditedSent},
		{StatusPendingApproval, StatusFailed},
		{StatusPendingApproval, StatusDiscarded},
		{StatusFailed, StatusSent},
		{StatusFailed, StatusEditedSent},
		{StatusFailed, StatusDiscarded},
		{StatusSent, StatusFailed},
		{StatusEditedSent, StatusFailed},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to),
			"%s -> %s should be allowed", tr.from, tr.to)
	}

	denied := []struct{ from, to EntryStatus }{
		{StatusReceived, StatusSent},
		{StatusReceived, StatusPendingApproval},
		{StatusDiscarded, StatusSent},
		{StatusDiscarded, StatusPendingApproval},
		{StatusSent, StatusEditedSent},
		{StatusSent, StatusDiscarded},
		{StatusEditedSent, StatusSent},
		{StatusFailed, StatusPendingApproval},
		{StatusPendingApproval, StatusReceived},
		{StatusPendingApproval, StatusPendingApproval},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr.from, tr.to),
			"%s -> %s should be denied", tr.from, tr.to)
	}
}

func TestThreadID(t *testing.T) {
	assert.Equal(t, "issue-abc-123", ThreadID("abc-123"))
}
