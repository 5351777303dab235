// Package queue implements the client-side Feature Accumulator of
// spec.md §4.A and its Background Worker of §4.C: a bounded, per-profile
// buffer that batches samples and flushes them through a transport without
// blocking the caller on I/O except at the documented ring-full boundary.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scouter-ml/scouter/internal/queue/familyqueue"
	"github.com/scouter-ml/scouter/internal/scoutererr"
	"github.com/scouter-ml/scouter/internal/transport"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// idleFlushAfter is the "time since last successful publish" threshold the
// background worker uses to decide whether to drain an idle, non-empty
// ring, per spec.md §4.C.
const idleFlushAfter = 30 * time.Second

// tickInterval is the background worker's wake cadence, per spec.md §4.C.
const tickInterval = 2 * time.Second

// Queue is a fixed-capacity, per-profile accumulator: spec.md sizes it at
// 2×sample_size of whichever item kind the profile expects; this
// implementation takes capacity directly so callers can follow that rule
// (or any other) explicitly.
type Queue struct {
	capacity  int
	kind      types.EntityKind
	converter familyqueue.Converter
	publisher transport.Publisher
	log       *zap.Logger

	mu    sync.Mutex
	items []types.Sample

	lastPublish atomic.Int64 // unix nanos
	closed      atomic.Bool

	cancel   chan struct{}
	bgDone   chan struct{}
	stopOnce sync.Once
}

// New constructs a Queue backed by converter (the family-specific batching
// rule) and publisher (the transport), then starts its background worker.
func New(capacity int, kind types.EntityKind, converter familyqueue.Converter, publisher transport.Publisher, log *zap.Logger) *Queue {
	q := &Queue{
		capacity:  capacity,
		kind:      kind,
		converter: converter,
		publisher: publisher,
		log:       log,
		cancel:    make(chan struct{}),
		bgDone:    make(chan struct{}),
	}
	q.lastPublish.Store(time.Now().UnixNano())
	go q.backgroundLoop()
	return q
}

// Insert pushes sample onto the ring. If the ring is already at capacity,
// Insert synchronously drains and publishes the existing batch before
// accepting the new sample — the one documented point where Insert may
// block on transport I/O, per spec.md §4.A/§5. An Insert of the wrong
// EntityKind for this queue's profile family fails with ErrWrongEntityKind
// without touching the ring.
func (q *Queue) Insert(sample types.Sample) error {
	if q.closed.Load() {
		return scoutererr.ErrQueueClosed
	}
	if sample.Kind != q.kind {
		return scoutererr.ErrWrongEntityKind
	}

	q.mu.Lock()
	full := len(q.items) >= q.capacity
	var toPublish []types.Sample
	if full {
		toPublish = q.items
		q.items = nil
	}
	q.mu.Unlock()

	if toPublish != nil {
		if err := q.publishBatch(context.Background(), toPublish); err != nil && q.log != nil {
			q.log.Error("ring-full publish failed", zap.Error(err))
		}
	}

	q.mu.Lock()
	q.items = append(q.items, sample)
	q.mu.Unlock()
	return nil
}

// Flush drains the ring, converts and publishes the batch, then stops the
// background worker after its final drain, per spec.md §4.A.
func (q *Queue) Flush() error {
	batch := q.drain()
	err := q.publishBatch(context.Background(), batch)
	q.stopBackground()
	return err
}

// Shutdown is the producer-facing cancellation point of spec.md §5: it
// marks the queue closed so subsequent Inserts fail fast, drains and
// publishes whatever is buffered, then sends the cancel signal and awaits
// the background worker's exit (and its own final drain).
func (q *Queue) Shutdown() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	batch := q.drain()
	err := q.publishBatch(context.Background(), batch)
	q.stopBackground()
	return err
}

func (q *Queue) drain() []types.Sample {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch
}

func (q *Queue) publishBatch(ctx context.Context, batch []types.Sample) error {
	if len(batch) == 0 {
		return nil
	}
	records, err := q.converter.Convert(batch)
	if err != nil {
		return fmt.Errorf("queue: converting batch: %w", err)
	}
	if records.Len() == 0 {
		return nil
	}
	if err := q.publisher.Publish(ctx, records); err != nil {
		return fmt.Errorf("queue: publishing batch: %w", err)
	}
	q.lastPublish.Store(time.Now().UnixNano())
	return nil
}

func (q *Queue) backgroundLoop() {
	defer close(q.bgDone)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.cancel:
			batch := q.drain()
			if err := q.publishBatch(context.Background(), batch); err != nil && q.log != nil {
				q.log.Error("final drain publish failed", zap.Error(err))
			}
			return
		case <-ticker.C:
			since := time.Since(time.Unix(0, q.lastPublish.Load()))
			if since < idleFlushAfter {
				continue
			}
			q.mu.Lock()
			empty := len(q.items) == 0
			q.mu.Unlock()
			if empty {
				continue
			}
			batch := q.drain()
			if err := q.publishBatch(context.Background(), batch); err != nil && q.log != nil {
				q.log.Error("idle-tick publish failed", zap.Error(err))
			}
		}
	}
}

func (q *Queue) stopBackground() {
	q.stopOnce.Do(func() {
		close(q.cancel)
	})
	<-q.bgDone
}
