package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/eliasfano-index/pkg/resilience"
)

type ingestEvent struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
}

func TestDecodeJSON(t *testing.T) {
	event, err := DecodeJSON[ingestEvent]([]byte(`{"document_id":"doc-1","title":"hello"}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if event.DocumentID != "doc-1" || event.Title != "hello" {
		t.Errorf("decoded %+v", event)
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	_, err := DecodeJSON[ingestEvent]([]byte(`{"document_id":`))
	if err == nil {
		t.Fatal("expected error for truncated payload")
	}
	if !strings.Contains(err.Error(), "decoding kafka message") {
		t.Errorf("error %q lacks context", err)
	}
}

// fakeReader serves queued fetch results, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	fetches   []fetchResult
	committed []int64
	closed    bool
	drained   chan struct{}
}

type fetchResult struct {
	msg kafka.Message
	err error
}

func newFakeReader(results ...fetchResult) *fakeReader {
	return &fakeReader{fetches: results, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetches) == 0 {
		r.mu.Unlock()
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	next := r.fetches[0]
	r.fetches = r.fetches[1:]
	r.mu.Unlock()
	return next.msg, next.err
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func runConsumer(t *testing.T, r *fakeReader, handler MessageHandler) {
	t.Helper()
	c := newConsumer(r, handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.retry = RetryPolicy{
		Handler: resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Fetch:   resilience.RetryConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	select {
	case <-r.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.closed {
		t.Error("reader not closed on shutdown")
	}
}

func TestConsumerRetriesAndCommits(t *testing.T) {
	attempts := map[string]int{}
	handler := func(_ context.Context, key, _ []byte) error {
		attempts[string(key)]++
		switch string(key) {
		case "flaky":
			if attempts["flaky"] < 2 {
				return errors.New("engine busy")
			}
		case "broken":
			return errors.New("always fails")
		case "unroutable":
			return resilience.Permanent(errors.New("unknown shard"))
		}
		return nil
	}
	r := newFakeReader(
		fetchResult{msg: kafka.Message{Key: []byte("ok"), Offset: 1}},
		fetchResult{err: errors.New("broker unavailable")},
		fetchResult{msg: kafka.Message{Key: []byte("flaky"), Offset: 2}},
		fetchResult{msg: kafka.Message{Key: []byte("broken"), Offset: 3}},
		fetchResult{msg: kafka.Message{Key: []byte("unroutable"), Offset: 4}},
	)
	runConsumer(t, r, handler)

	want := map[string]int{"ok": 1, "flaky": 2, "broken": 3, "unroutable": 1}
	for key, n := range want {
		if attempts[key] != n {
			t.Errorf("%s handled %d times, want %d", key, attempts[key], n)
		}
	}
	if got := r.committed; len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Errorf("committed offsets = %v, want [1 2 3 4]", got)
	}
}
