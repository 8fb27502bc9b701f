// Package notify is the optional NATS ready-notification fast path: when a
// VocJob reaches a terminal status, publish a tiny "ready"
// event so a poller watching for it can react without waiting for its next
// poll tick. It is never on the critical path — every write it reacts to
// has already been committed to JobStore, so a dropped or delayed NATS
// message only costs latency, never correctness. Grounded on
// internal/processor/audit.go's plain *nats.Conn pub/sub shape (no
// JetStream durability needed, core pub/sub suffices for a latency hint).
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"k8s.io/klog/v2"
)

// ReadyEvent announces that a job reached a terminal state.
type ReadyEvent struct {
	JobKind string `json:"job_kind"` // "ingest" | "voc"
	JobID   int64  `json:"job_id"`
	Status  string `json:"status"`
}

const subject = "kbcore.jobs.ready"

// Publisher emits ReadyEvent messages. A nil *Publisher is valid and
// Publish becomes a no-op, so callers can construct one unconditionally
// and only wire a real connection when config.NATSURL is set.
type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(conn *nats.Conn) *Publisher { return &Publisher{conn: conn} }

func (p *Publisher) Publish(ev ReadyEvent) {
	if p == nil || p.conn == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		klog.ErrorS(err, "notify: marshal ready event", "jobKind", ev.JobKind, "jobID", ev.JobID)
		return
	}
	if err := p.conn.Publish(subject, body); err != nil {
		klog.V(2).InfoS("notify: publish ready event failed, pollers fall back to their tick", "err", err)
	}
}

// Subscriber wakes a worker pool's poll loop early on a ReadyEvent. Callers
// select on Events() alongside their poll ticker; a closed or absent
// subscription just means the ticker drives everything, same as before
// this package existed.
type Subscriber struct {
	sub *nats.Subscription
	ch  chan ReadyEvent
}

// Subscribe starts listening for ready events. Passing a nil conn returns a
// Subscriber whose Events() channel never fires.
func Subscribe(conn *nats.Conn) (*Subscriber, error) {
	s := &Subscriber{ch: make(chan ReadyEvent, 64)}
	if conn == nil {
		return s, nil
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev ReadyEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			klog.V(3).InfoS("notify: dropping malformed ready event", "err", err)
			return
		}
		select {
		case s.ch <- ev:
		default:
			klog.V(4).Info("notify: ready event channel full, dropping")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("notify: subscribe: %w", err)
	}
	s.sub = sub
	return s, nil
}

func (s *Subscriber) Events() <-chan ReadyEvent { return s.ch }

func (s *Subscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

// Dial connects to NATS if url is non-empty, returning a nil *nats.Conn
// otherwise so callers can pass it straight into NewPublisher/Subscribe.
func Dial(ctx context.Context, url string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url, nats.Name("kbcore"))
	if err != nil {
		return nil, fmt.Errorf("notify: connect: %w", err)
	}
	return conn, nil
}
