package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_NilPublisherIsNoOp(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.Publish(ReadyEvent{JobKind: "voc", JobID: 1, Status: "DONE"})
	})
}

func TestPublisher_NilConnIsNoOp(t *testing.T) {
	p := NewPublisher(nil)
	assert.NotPanics(t, func() {
		p.Publish(ReadyEvent{JobKind: "ingest", JobID: 2, Status: "DONE"})
	})
}

func TestSubscribe_NilConnNeverFires(t *testing.T) {
	s, err := Subscribe(nil)
	require.NoError(t, err)

	select {
	case ev := <-s.Events():
		t.Fatalf("expected no event, got %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
	assert.NoError(t, s.Close())
}

func TestDial_EmptyURLReturnsNilConn(t *testing.T) {
	conn, err := Dial(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, conn)
}
