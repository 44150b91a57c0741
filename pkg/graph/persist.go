package graph

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/graphloom/loom/internal/metrics"
	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
)

// SnapshotSink is the durable side of the persister. Implementations store
// the serialized graph under the given revision; writes for the same
// revision must be idempotent.
type SnapshotSink interface {
	Persist(ctx context.Context, revision uint64, data []byte) error
}

// Persister writes snapshots to a sink in the background so commits never
// wait on durability. Writers call Notify after a successful commit;
// consecutive notifications coalesce into one write of the latest snapshot.
//
// A Persister should be created using NewPersister.
type Persister struct {
	store       *Store
	sink        SnapshotSink
	maxTries    int
	backoff     time.Duration
	maxBackoff  time.Duration
	notify      chan struct{}
	lastDurable atomic.Uint64
}

// NewPersisterParams defines the configuration for creating a Persister.
// MaxTries bounds the retry attempts per snapshot write; zero falls back to
// 5. Backoff and MaxBackoff shape the retry delay and default to 500ms / 10s.
type NewPersisterParams struct {
	Store      *Store
	Sink       SnapshotSink
	MaxTries   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// NewPersister creates a Persister flushing the given store into the sink.
func NewPersister(params NewPersisterParams) *Persister {
	maxTries := params.MaxTries
	if maxTries <= 0 {
		maxTries = 5
	}
	backoff := params.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := params.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Second
	}
	return &Persister{
		store:      params.Store,
		sink:       params.Sink,
		maxTries:   maxTries,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		notify:     make(chan struct{}, 1),
	}
}

// Notify schedules a background flush. It never blocks; a flush that is
// already pending absorbs the notification.
func (p *Persister) Notify() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// LastDurable returns the highest revision known to have reached the sink.
// The in-memory revision may be ahead of it; readers keep seeing committed
// state either way.
func (p *Persister) LastDurable() uint64 {
	return p.lastDurable.Load()
}

// Run flushes snapshots until the context is canceled. A failed flush is
// logged and retried on the next notification; it never propagates back to
// the writer that triggered it. Run performs a final flush on shutdown when
// commits are still ahead of the sink.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if p.store.Revision() > p.lastDurable.Load() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				err := p.Flush(flushCtx)
				cancel()
				if err != nil {
					logger.Error("[Persister] Final flush failed", "error", err)
				}
			}
			return ctx.Err()
		case <-p.notify:
			if err := p.Flush(ctx); err != nil {
				logger.Error("[Persister] Flush failed", "error", err)
			}
		}
	}
}

// Flush synchronously writes the current snapshot to the sink, retrying with
// backoff. It returns once the write is durable or retries are exhausted.
func (p *Persister) Flush(ctx context.Context) error {
	data, revision, err := p.store.Save()
	if err != nil {
		return common.NewPersistenceError("failed to serialize snapshot", err)
	}
	if revision <= p.lastDurable.Load() {
		return nil
	}

	err = util.RetryBackoffWithContext(ctx, p.maxTries, p.backoff, p.maxBackoff,
		func(ctx context.Context) error {
			return p.sink.Persist(ctx, revision, data)
		})
	if err != nil {
		metrics.PersistTotal.WithLabelValues("error").Inc()
		return common.NewPersistenceError("failed to persist snapshot", err)
	}
	metrics.PersistTotal.WithLabelValues("ok").Inc()

	// Another flush may have won the race with a newer revision already.
	for {
		current := p.lastDurable.Load()
		if revision <= current || p.lastDurable.CompareAndSwap(current, revision) {
			break
		}
	}
	logger.Debug("[Persister] Snapshot persisted", "revision", revision, "bytes", len(data))
	return nil
}
