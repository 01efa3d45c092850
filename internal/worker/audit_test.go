package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/saas-gateway/internal/kafka"
	"github.com/jmehdipour/saas-gateway/internal/model"
)

type fakeSource struct {
	ch chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func newFakeSource(msgs ...kafka.Message) *fakeSource {
	s := &fakeSource{ch: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		s.ch <- m
	}
	return s
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-s.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *fakeSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *fakeSource) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type fakeSink struct {
	mu       sync.Mutex
	rows     []model.Message
	failures int
	calls    int
}

func (s *fakeSink) InsertBatch(_ context.Context, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("clickhouse unavailable")
	}
	s.rows = append(s.rows, msgs...)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func envelope(t *testing.T, offset int64, id string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(model.Envelope{
		Event:   model.EventMessageRecorded,
		Message: model.Message{ID: id, OrgID: "org-a", Status: model.StatusSent},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Offset: offset, Value: b}
}

func runFor(t *testing.T, w *AuditKafka, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for !until() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestAuditFlushesBySize(t *testing.T) {
	src := newFakeSource(envelope(t, 1, "a"), envelope(t, 2, "b"), envelope(t, 3, "c"))
	sink := &fakeSink{}

	w := NewAuditKafka(src, sink, nil)
	w.BatchSize = 3
	w.BatchWait = time.Hour

	runFor(t, w, func() bool { return len(src.offsets()) == 3 })

	if sink.count() != 3 {
		t.Fatalf("expected 3 rows, got %d", sink.count())
	}
	if got := src.offsets(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected committed offsets %v", got)
	}
}

func TestAuditFlushesByTime(t *testing.T) {
	src := newFakeSource(envelope(t, 7, "a"))
	sink := &fakeSink{}

	w := NewAuditKafka(src, sink, nil)
	w.BatchSize = 100
	w.BatchWait = 20 * time.Millisecond

	runFor(t, w, func() bool { return len(src.offsets()) == 1 })

	if sink.count() != 1 {
		t.Fatalf("expected 1 row, got %d", sink.count())
	}
}

func TestAuditDoesNotCommitBeforeInsert(t *testing.T) {
	src := newFakeSource(envelope(t, 1, "a"), envelope(t, 2, "b"))
	sink := &fakeSink{failures: 2}

	w := NewAuditKafka(src, sink, nil)
	w.BatchSize = 2
	w.BatchWait = time.Hour
	w.RetryDelay = 10 * time.Millisecond

	runFor(t, w, func() bool { return len(src.offsets()) == 2 })

	sink.mu.Lock()
	calls := sink.calls
	sink.mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 2 failed inserts and 1 success, got %d calls", calls)
	}
	if sink.count() != 2 || len(src.offsets()) != 2 {
		t.Fatalf("expected rows and offsets after retry, got %d/%v", sink.count(), src.offsets())
	}
}

func TestAuditSkipsPoisonMessages(t *testing.T) {
	quoted, _ := json.Marshal(string(envelope(t, 0, "q").Value))
	src := newFakeSource(
		kafka.Message{Offset: 1, Value: []byte("not json")},
		kafka.Message{Offset: 2, Value: quoted},
		envelope(t, 3, "c"),
	)
	sink := &fakeSink{}

	w := NewAuditKafka(src, sink, nil)
	w.BatchSize = 3
	w.BatchWait = time.Hour

	runFor(t, w, func() bool { return len(src.offsets()) == 3 })

	if sink.count() != 2 {
		t.Fatalf("expected 2 rows (string-encoded payload included), got %d", sink.count())
	}
	if len(src.offsets()) != 3 {
		t.Fatalf("poison message offset not committed: %v", src.offsets())
	}
}

func TestAuditRequiresDeps(t *testing.T) {
	if err := (&AuditKafka{}).Run(context.Background()); err == nil {
		t.Fatal("expected error without consumer and sink")
	}
}
