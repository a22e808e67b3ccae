package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mab0130/MGNBot/internal/logger"
	"github.com/mab0130/MGNBot/internal/mgn"
	"github.com/mab0130/MGNBot/internal/types"
)

// Default timing configuration for remote job tracking
const (
	// DefaultPollInterval is the spacing between remote job status polls
	DefaultPollInterval = 5 * time.Second
	// DefaultItemTimeout is how long a single item may wait for remote completion
	DefaultItemTimeout = 30 * time.Minute
)

// Options configures the orchestrator
type Options struct {
	// PollInterval is the spacing between remote job status polls
	PollInterval time.Duration
	// ItemTimeout bounds how long one item waits for remote completion
	ItemTimeout time.Duration
	// CallsPerSecond is the sustained outbound call rate across all batches
	CallsPerSecond float64
	// Burst is the rate limiter burst size
	Burst int
	// Retry is the per-call retry policy
	Retry RetryPolicy
}

// DefaultOptions returns the orchestrator defaults
func DefaultOptions() Options {
	return Options{
		PollInterval:   DefaultPollInterval,
		ItemTimeout:    DefaultItemTimeout,
		CallsPerSecond: DefaultCallsPerSecond,
		Burst:          DefaultBurst,
		Retry:          DefaultRetryPolicy(),
	}
}

// Orchestrator owns batch lifecycles: submission, cancellation, completion
// and the final per-item summary. A single process-wide rate limiter is
// shared by every batch it runs.
type Orchestrator struct {
	adapter mgn.Lifecycle
	limiter *RateLimiter
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	batches map[string]*BatchHandle
}

// New creates an orchestrator around the given lifecycle adapter
func New(adapter mgn.Lifecycle, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultItemTimeout
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.BaseDelay == 0 {
		opts.Retry = DefaultRetryPolicy()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		adapter: adapter,
		limiter: NewRateLimiter(opts.CallsPerSecond, opts.Burst),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		batches: make(map[string]*BatchHandle),
	}
}

// BatchHandle tracks one running or completed batch
type BatchHandle struct {
	// ID uniquely identifies the batch
	ID string
	// Request is the immutable request the batch was created from
	Request types.BatchRequest

	agg  *Aggregator
	pool *Pool
	done chan struct{}
}

// Submit validates the request and starts the batch. Validation failure
// rejects the whole submission before any item starts; after that, per-item
// failures are reported in the snapshot and never fail the batch.
func (o *Orchestrator) Submit(req types.BatchRequest) (*BatchHandle, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch request: %w", err)
	}

	handle := &BatchHandle{
		ID:      uuid.New().String(),
		Request: req,
		done:    make(chan struct{}),
	}
	handle.agg = NewAggregator(handle.ID, req.Operation, req.ServerIDs)
	handle.pool = newPool(o.adapter, o.limiter, o.opts.Retry, o.opts.PollInterval, o.opts.ItemTimeout, req, handle.agg.Record)

	o.mu.Lock()
	o.batches[handle.ID] = handle
	o.mu.Unlock()

	logger.InfoWithFields("Batch submitted", map[string]interface{}{
		"batch_id":    handle.ID,
		"operation":   req.Operation.String(),
		"servers":     len(req.ServerIDs),
		"concurrency": req.Concurrency(),
	})

	go o.run(handle)

	return handle, nil
}

// run executes the batch to completion
func (o *Orchestrator) run(h *BatchHandle) {
	if err := h.pool.Run(o.ctx); err != nil {
		logger.Errorf("Batch %s pool error: %v", h.ID, err)
	}
	h.agg.Close()
	close(h.done)

	snap := h.agg.Snapshot()
	logger.InfoWithFields("Batch complete", map[string]interface{}{
		"batch_id":  h.ID,
		"succeeded": snap.Succeeded(),
		"failed":    snap.Failed(),
		"cancelled": snap.Cancelled(),
	})
}

// Get returns the handle for a batch ID
func (o *Orchestrator) Get(id string) (*BatchHandle, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.batches[id]
	return h, ok
}

// List returns the handles of all known batches
func (o *Orchestrator) List() []*BatchHandle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	handles := make([]*BatchHandle, 0, len(o.batches))
	for _, h := range o.batches {
		handles = append(handles, h)
	}
	return handles
}

// Cancel cancels the batch with the given ID
func (o *Orchestrator) Cancel(id string) error {
	h, ok := o.Get(id)
	if !ok {
		return fmt.Errorf("unknown batch: %s", id)
	}
	h.Cancel()
	return nil
}

// Close stops the orchestrator. In-flight batches observe the context
// cancellation and wind down.
func (o *Orchestrator) Close() {
	o.cancel()
}

// Cancel stops the batch from starting new items. Items already in flight
// run to their normal terminal phase.
func (h *BatchHandle) Cancel() {
	h.pool.Cancel()
}

// Snapshot returns a point-in-time view of the batch
func (h *BatchHandle) Snapshot() BatchSnapshot {
	return h.agg.Snapshot()
}

// Subscribe registers a callback receiving a snapshot after every item
// transition, serialized and decoupled from the workers
func (h *BatchHandle) Subscribe(fn func(BatchSnapshot)) {
	h.agg.Subscribe(fn)
}

// Done returns a channel closed when the batch reaches completion
func (h *BatchHandle) Done() <-chan struct{} {
	return h.done
}

// Await blocks until the batch completes or the context is cancelled, and
// returns the final snapshot
func (h *BatchHandle) Await(ctx context.Context) (BatchSnapshot, error) {
	select {
	case <-ctx.Done():
		return BatchSnapshot{}, ctx.Err()
	case <-h.done:
		return h.agg.Snapshot(), nil
	}
}
