package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mab0130/MGNBot/internal/logger"
	"github.com/mab0130/MGNBot/internal/mgn"
	"github.com/mab0130/MGNBot/internal/types"
)

// TransitionFunc receives a copy of an item's state immediately after every
// phase transition, synchronously with the mutation
type TransitionFunc func(ItemState)

// Pool executes one batch: up to the configured number of workers pull
// pending items FIFO and drive each through the item state machine to a
// terminal phase. Items are independent; the only shared state is the
// pending queue and the process-wide rate limiter.
type Pool struct {
	adapter      mgn.Lifecycle
	limiter      *RateLimiter
	retry        RetryPolicy
	request      types.BatchRequest
	pollInterval time.Duration
	itemTimeout  time.Duration
	onTransition TransitionFunc

	items     []*item
	queue     chan *item
	cancelled atomic.Bool
}

// newPool creates a pool for a validated batch request
func newPool(adapter mgn.Lifecycle, limiter *RateLimiter, retry RetryPolicy, pollInterval, itemTimeout time.Duration, request types.BatchRequest, onTransition TransitionFunc) *Pool {
	items := make([]*item, 0, len(request.ServerIDs))
	for _, id := range request.ServerIDs {
		items = append(items, newItem(id))
	}

	return &Pool{
		adapter:      adapter,
		limiter:      limiter,
		retry:        retry,
		request:      request,
		pollInterval: pollInterval,
		itemTimeout:  itemTimeout,
		onTransition: onTransition,
		items:        items,
	}
}

// Cancel asks the pool to stop picking up new items. Items already past
// PhasePending run to a normal terminal phase; only not-yet-started items
// become PhaseCancelled.
func (p *Pool) Cancel() {
	p.cancelled.Store(true)
}

// Run drives every item to a terminal phase and returns when the batch is
// complete. Item start order is FIFO over the request's server list.
func (p *Pool) Run(ctx context.Context) error {
	p.queue = make(chan *item, len(p.items))
	for _, it := range p.items {
		p.queue <- it
	}
	close(p.queue)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.request.Concurrency(); i++ {
		g.Go(func() error {
			for it := range p.queue {
				if p.cancelled.Load() {
					p.transition(it, PhaseCancelled, nil)
					continue
				}
				p.processItem(gCtx, it)
			}
			return nil
		})
	}

	return g.Wait()
}

// transition moves an item to the next phase, applying any extra state
// mutation, and reports the new state. The worker holding the item is the
// only writer, so no lock guards the item itself.
func (p *Pool) transition(it *item, next Phase, mutate func(*ItemState)) {
	if !canTransition(it.state.Phase, next) {
		logger.Errorf("Illegal phase transition %s -> %s for server %s", it.state.Phase, next, it.state.ServerID)
		return
	}

	it.state.Phase = next
	if mutate != nil {
		mutate(&it.state)
	}
	if p.onTransition != nil {
		p.onTransition(it.state)
	}
}

// processItem drives a single item through submit, poll and retry until it
// reaches a terminal phase
func (p *Pool) processItem(ctx context.Context, it *item) {
	for {
		p.transition(it, PhaseSubmitting, func(st *ItemState) {
			st.Attempt++
			st.LastError = ""
			st.RemoteJobID = ""
		})

		err := p.attempt(ctx, it)
		if err == nil {
			p.transition(it, PhaseSucceeded, nil)
			return
		}

		if p.retry.Classify(err) == ClassTerminal {
			p.fail(it, err)
			return
		}

		if it.state.Attempt > p.retry.MaxRetries {
			p.fail(it, err)
			return
		}

		delay := p.retry.NextDelay(it.state.Attempt)
		p.transition(it, PhaseRetrying, func(st *ItemState) {
			st.LastError = err.Error()
		})
		logger.Debugf("Retrying server %s in %s after transient error: %v", it.state.ServerID, delay, err)

		select {
		case <-ctx.Done():
			p.fail(it, ctx.Err())
			return
		case <-time.After(delay):
		}
	}
}

// attempt performs one full submission: issue the start/terminate call, then
// poll the remote job until it completes or the per-item deadline elapses
func (p *Pool) attempt(ctx context.Context, it *item) error {
	if err := p.limiter.Acquire(ctx); err != nil {
		return err
	}

	var jobID string
	var err error
	switch p.request.Operation {
	case types.OperationLaunch:
		jobID, err = p.adapter.StartTest(ctx, it.state.ServerID, p.request.NetworkConfig, p.request.InstanceConfig)
	case types.OperationTerminate:
		jobID, err = p.adapter.StopTest(ctx, it.state.ServerID)
	}
	if err != nil {
		return err
	}

	p.transition(it, PhaseAwaitingCompletion, func(st *ItemState) {
		st.RemoteJobID = jobID
	})

	return p.awaitCompletion(ctx, it, jobID)
}

// awaitCompletion polls the remote job at the configured interval until it
// reports completion or the item deadline passes. Every poll goes through
// the rate limiter.
func (p *Pool) awaitCompletion(ctx context.Context, it *item, jobID string) error {
	deadline := time.Now().Add(p.itemTimeout)

	for {
		if !time.Now().Before(deadline) {
			return ErrNoCompletion
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}

		if err := p.limiter.Acquire(ctx); err != nil {
			return err
		}

		switch p.request.Operation {
		case types.OperationLaunch:
			status, err := p.adapter.GetLaunchStatus(ctx, jobID)
			if err != nil {
				return err
			}
			switch status.State {
			case mgn.JobSucceeded:
				it.state.ResultInstanceID = status.InstanceID
				return nil
			case mgn.JobFailed:
				return &jobFailedError{reason: status.FailureReason}
			}
		case types.OperationTerminate:
			status, err := p.adapter.GetTerminationStatus(ctx, jobID)
			if err != nil {
				return err
			}
			switch status.State {
			case mgn.JobSucceeded:
				return nil
			case mgn.JobFailed:
				return &jobFailedError{reason: status.FailureReason}
			}
		}
	}
}

func (p *Pool) fail(it *item, err error) {
	// Failure may strike while submitting or awaiting; Retrying also ends
	// here when attempts are exhausted.
	p.transition(it, PhaseFailed, func(st *ItemState) {
		st.LastError = err.Error()
	})
}
