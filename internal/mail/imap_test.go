package mail

import (
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
)

func TestEmailFromBuffer(t *testing.T) {
	date := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	buf := &imapclient.FetchMessageBuffer{
		UID: 42,
		Envelope: &imap.Envelope{
			Date:      date,
			Subject:   "Re: Damaged delivery",
			MessageID: "v1@acme.example",
			InReplyTo: []string{"out-1@buy2rent.example", "out-0@buy2rent.example"},
			From: []imap.Address{
				{Name: "Acme Support", Mailbox: "support", Host: "acme.example"},
			},
			To: []imap.Address{
				{Mailbox: "procurement", Host: "buy2rent.example"},
			},
		},
	}

	email := emailFromBuffer(buf)
	assert.Equal(t, uint32(42), email.UID)
	assert.Equal(t, "Re: Damaged delivery", email.Subject)
	assert.Equal(t, "v1@acme.example", email.MessageID)
	// The chain's first identifier is the message being answered.
	assert.Equal(t, "out-1@buy2rent.example", email.InReplyTo)
	assert.Equal(t, "support@acme.example", email.From)
	assert.Equal(t, "Acme Support", email.FromName)
	assert.Equal(t, []string{"procurement@buy2rent.example"}, email.To)
	assert.True(t, email.Date.Equal(date))
}

func TestEmailFromBufferSparseEnvelope(t *testing.T) {
	email := emailFromBuffer(&imapclient.FetchMessageBuffer{UID: 7})
	assert.Equal(t, uint32(7), email.UID)
	assert.Empty(t, email.MessageID)
	assert.Empty(t, email.InReplyTo)
	assert.Empty(t, email.From)

	email = emailFromBuffer(&imapclient.FetchMessageBuffer{
		UID:      8,
		Envelope: &imap.Envelope{Subject: "no references"},
	})
	assert.Equal(t, "no references", email.Subject)
	assert.Empty(t, email.InReplyTo)
}
