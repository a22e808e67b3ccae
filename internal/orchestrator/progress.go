package orchestrator

import (
	"sync"

	"github.com/mab0130/MGNBot/internal/logger"
	"github.com/mab0130/MGNBot/internal/types"
)

// snapshotQueueSize bounds the buffer between transition producers and
// subscriber callbacks. On overflow the oldest snapshot is dropped so the
// pool never blocks on a slow subscriber; the latest snapshot always wins.
const snapshotQueueSize = 64

// BatchSnapshot is an immutable point-in-time view of a batch: per-phase
// counts, every item's state in submission order, and whether all items have
// reached a terminal phase. It is always recomputed from the item states and
// never a source of truth.
type BatchSnapshot struct {
	BatchID   string              `json:"batch_id"`
	Operation types.OperationKind `json:"operation"`
	Counts    map[Phase]int       `json:"counts"`
	Items     []ItemState         `json:"items"`
	Done      bool                `json:"done"`
}

// Succeeded returns the number of items that reached PhaseSucceeded
func (s BatchSnapshot) Succeeded() int {
	return s.Counts[PhaseSucceeded]
}

// Failed returns the number of items that reached PhaseFailed
func (s BatchSnapshot) Failed() int {
	return s.Counts[PhaseFailed]
}

// Cancelled returns the number of items that reached PhaseCancelled
func (s BatchSnapshot) Cancelled() int {
	return s.Counts[PhaseCancelled]
}

// Aggregator collects item transitions into consistent batch snapshots and
// fans them out to subscribers. Callback delivery is serialized and
// decoupled from the worker pool by a bounded queue.
type Aggregator struct {
	batchID   string
	operation types.OperationKind

	mu    sync.Mutex
	order []string
	items map[string]ItemState
	subs  []func(BatchSnapshot)

	queue  chan BatchSnapshot
	closed chan struct{}
	wg     sync.WaitGroup
}

// NewAggregator creates an aggregator seeded with every server in the batch
// at PhasePending
func NewAggregator(batchID string, operation types.OperationKind, serverIDs []string) *Aggregator {
	a := &Aggregator{
		batchID:   batchID,
		operation: operation,
		order:     append([]string(nil), serverIDs...),
		items:     make(map[string]ItemState, len(serverIDs)),
		queue:     make(chan BatchSnapshot, snapshotQueueSize),
		closed:    make(chan struct{}),
	}
	for _, id := range serverIDs {
		a.items[id] = ItemState{ServerID: id, Phase: PhasePending}
	}

	a.wg.Add(1)
	go a.dispatch()

	return a
}

// Record applies an item transition and enqueues a fresh snapshot for
// subscribers. It is called synchronously from the worker mutating the item,
// so a subscriber never observes a phase regression.
func (a *Aggregator) Record(state ItemState) {
	a.mu.Lock()
	current, ok := a.items[state.ServerID]
	if !ok {
		a.mu.Unlock()
		logger.Warnf("Ignoring transition for unknown server %s in batch %s", state.ServerID, a.batchID)
		return
	}
	if current.Phase.Terminal() {
		a.mu.Unlock()
		logger.Warnf("Ignoring transition past terminal phase for server %s in batch %s", state.ServerID, a.batchID)
		return
	}
	a.items[state.ServerID] = state
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.enqueue(snap)
}

// Snapshot returns the current batch snapshot
func (a *Aggregator) Snapshot() BatchSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Subscribe registers a callback that receives a snapshot after every
// transition. At most one callback invocation is in flight at a time;
// callbacks must not block for long or intermediate snapshots will be
// coalesced away.
func (a *Aggregator) Subscribe(fn func(BatchSnapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, fn)
}

// Close stops snapshot delivery once all pending snapshots have been
// dispatched. It must only be called after the last Record.
func (a *Aggregator) Close() {
	close(a.closed)
	a.wg.Wait()
}

func (a *Aggregator) snapshotLocked() BatchSnapshot {
	snap := BatchSnapshot{
		BatchID:   a.batchID,
		Operation: a.operation,
		Counts:    make(map[Phase]int, len(a.items)),
		Items:     make([]ItemState, 0, len(a.order)),
		Done:      true,
	}
	for _, id := range a.order {
		state := a.items[id]
		snap.Counts[state.Phase]++
		snap.Items = append(snap.Items, state)
		if !state.Phase.Terminal() {
			snap.Done = false
		}
	}
	return snap
}

// enqueue adds a snapshot to the delivery queue, dropping the oldest queued
// snapshot when the buffer is full
func (a *Aggregator) enqueue(snap BatchSnapshot) {
	for {
		select {
		case a.queue <- snap:
			return
		default:
		}
		select {
		case <-a.queue:
		default:
		}
	}
}

// dispatch delivers queued snapshots to subscribers, one at a time
func (a *Aggregator) dispatch() {
	defer a.wg.Done()
	for {
		select {
		case snap := <-a.queue:
			a.deliver(snap)
		case <-a.closed:
			// Drain whatever was queued before Close.
			for {
				select {
				case snap := <-a.queue:
					a.deliver(snap)
				default:
					return
				}
			}
		}
	}
}

func (a *Aggregator) deliver(snap BatchSnapshot) {
	a.mu.Lock()
	subs := make([]func(BatchSnapshot), len(a.subs))
	copy(subs, a.subs)
	a.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
