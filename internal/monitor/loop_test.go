package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avion00/buy2rent-vendormail/internal/mail"
)

func TestLoopStopsAfterConsecutiveErrors(t *testing.T) {
	transport := &fakeTransport{fetchErr: &mail.NetworkError{
		Op: "fetch", Err: errors.New("dns failure"),
	}}
	m, _ := newTestMonitor(t, transport, &fakeAnalyzer{})

	done := make(chan error, 1)
	go func() {
		done <- m.Loop(context.Background(), time.Millisecond, 3)
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3 consecutive failed poll cycles")
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop at the error threshold")
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	m, _ := newTestMonitor(t, &fakeTransport{}, &fakeAnalyzer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Loop(ctx, time.Minute, 5)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on cancellation")
	}
}
