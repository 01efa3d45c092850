package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmehdipour/saas-gateway/internal/kafka"
	"github.com/jmehdipour/saas-gateway/internal/metrics"
	"github.com/jmehdipour/saas-gateway/internal/model"
	"go.uber.org/zap"
)

// Source yields outbox events and acknowledges them.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Sink stores audit rows.
type Sink interface {
	InsertBatch(ctx context.Context, msgs []model.Message) error
}

// AuditKafka:
// - fetches message envelopes published through the outbox,
// - batches them into the audit store (size/time based),
// - commits offsets only after the batch is stored (at-least-once).
type AuditKafka struct {
	Consumer Source
	Sink     Sink
	Log      *zap.Logger

	BatchSize  int
	BatchWait  time.Duration
	RetryDelay time.Duration
}

func NewAuditKafka(consumer Source, sink Sink, log *zap.Logger) *AuditKafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditKafka{
		Consumer:   consumer,
		Sink:       sink,
		Log:        log,
		BatchSize:  200,
		BatchWait:  500 * time.Millisecond,
		RetryDelay: time.Second,
	}
}

// Run blocks until ctx is cancelled; pending rows are flushed on the way out.
func (w *AuditKafka) Run(ctx context.Context) error {
	if w.Consumer == nil || w.Sink == nil {
		return errors.New("audit: consumer and sink are required")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 200
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 500 * time.Millisecond
	}
	if w.RetryDelay <= 0 {
		w.RetryDelay = time.Second
	}

	msgCh := make(chan kafka.Message, w.BatchSize*2)

	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("audit: kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	in := (<-chan kafka.Message)(msgCh)
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		rows    []model.Message
		pending []kafka.Message
	)

	flush := func(ctx context.Context) bool {
		if len(pending) == 0 {
			return true
		}
		if len(rows) > 0 {
			if err := w.Sink.InsertBatch(ctx, rows); err != nil {
				metrics.AuditRowsTotal.WithLabelValues("failed").Add(float64(len(rows)))
				w.Log.Error("audit: batch insert failed", zap.Int("rows", len(rows)), zap.Error(err))
				return false
			}
			metrics.AuditRowsTotal.WithLabelValues("inserted").Add(float64(len(rows)))
		}
		if err := w.Consumer.Commit(ctx, pending...); err != nil {
			// rows are stored; a redelivery is collapsed by the table engine
			w.Log.Warn("audit: commit failed", zap.Error(err))
		}
		w.Log.Debug("audit: flushed", zap.Int("rows", len(rows)), zap.Int("offsets", len(pending)))
		rows = rows[:0]
		pending = pending[:0]
		return true
	}

	// flushOrWait retries a failed flush so offsets never pass unstored rows.
	flushOrWait := func() {
		for !flush(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.RetryDelay):
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(fctx)
			cancel()
			return nil

		case m, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, m)
			if row, ok := w.decode(m); ok {
				rows = append(rows, row)
			}
			if len(pending) >= w.BatchSize {
				flushOrWait()
			}

		case <-tick.C:
			flushOrWait()
		}
	}
}

// decode reads an envelope from a Kafka value. Debezium may deliver the
// outbox payload either as raw JSON or as a JSON string holding it.
func (w *AuditKafka) decode(m kafka.Message) (model.Message, bool) {
	raw := bytes.TrimSpace(m.Value)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			raw = []byte(s)
		}
	}

	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Message.ID == "" {
		metrics.AuditRowsTotal.WithLabelValues("skipped").Inc()
		w.Log.Warn("audit: bad envelope, skipping",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return model.Message{}, false
	}
	if env.Event != "" && env.Event != model.EventMessageRecorded {
		metrics.AuditRowsTotal.WithLabelValues("skipped").Inc()
		return model.Message{}, false
	}
	return env.Message, true
}
