// Package orchestrator drives bulk lifecycle operations against many MGN
// source servers at once: a bounded worker pool fans a batch out over the
// lifecycle adapter, tracks each server through a multi-step remote job,
// retries transient failures and reports live progress.
package orchestrator

import (
	"encoding/json"
	"fmt"
)

// Phase represents the current state of a single server within a batch
type Phase string

// Item phase constants
const (
	// PhasePending indicates the item is queued and no worker has picked it up
	PhasePending Phase = "pending"
	// PhaseSubmitting indicates the start/terminate call is being issued
	PhaseSubmitting Phase = "submitting"
	// PhaseAwaitingCompletion indicates the remote job was accepted and is being polled
	PhaseAwaitingCompletion Phase = "awaiting_completion"
	// PhaseRetrying indicates a transient failure occurred and the item will be resubmitted
	PhaseRetrying Phase = "retrying"
	// PhaseSucceeded indicates the remote job completed successfully
	PhaseSucceeded Phase = "succeeded"
	// PhaseFailed indicates the item failed with a terminal error or exhausted its retries
	PhaseFailed Phase = "failed"
	// PhaseCancelled indicates the batch was cancelled before the item started
	PhaseCancelled Phase = "cancelled"
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// Terminal reports whether the phase is final. Terminal phases are immutable.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseSucceeded, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// ParsePhase converts a string to a Phase
func ParsePhase(str string) (Phase, error) {
	switch str {
	case string(PhasePending):
		return PhasePending, nil
	case string(PhaseSubmitting):
		return PhaseSubmitting, nil
	case string(PhaseAwaitingCompletion):
		return PhaseAwaitingCompletion, nil
	case string(PhaseRetrying):
		return PhaseRetrying, nil
	case string(PhaseSucceeded):
		return PhaseSucceeded, nil
	case string(PhaseFailed):
		return PhaseFailed, nil
	case string(PhaseCancelled):
		return PhaseCancelled, nil
	default:
		return "", fmt.Errorf("invalid phase: %s", str)
	}
}

// UnmarshalJSON implements json.Unmarshaler for Phase
func (p *Phase) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	phase, err := ParsePhase(str)
	if err != nil {
		return err
	}

	*p = phase
	return nil
}

// legalTransitions lists the allowed phase edges. Terminal phases have no
// outgoing edges.
var legalTransitions = map[Phase][]Phase{
	PhasePending:            {PhaseSubmitting, PhaseCancelled},
	PhaseSubmitting:         {PhaseAwaitingCompletion, PhaseRetrying, PhaseFailed},
	PhaseAwaitingCompletion: {PhaseSucceeded, PhaseFailed, PhaseRetrying},
	PhaseRetrying:           {PhaseSubmitting, PhaseFailed},
}

// canTransition reports whether the edge from one phase to another is legal
func canTransition(from, to Phase) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemState is the progress record for a single server within a batch. It
// is mutated only by the worker currently holding the item; everything the
// aggregator sees is a copy taken at transition time.
type ItemState struct {
	ServerID         string `json:"server_id"`
	Phase            Phase  `json:"phase"`
	Attempt          int    `json:"attempt"`
	LastError        string `json:"last_error,omitempty"`
	RemoteJobID      string `json:"remote_job_id,omitempty"`
	ResultInstanceID string `json:"result_instance_id,omitempty"`
}

// item is the pool-internal unit of work wrapping an ItemState
type item struct {
	state ItemState
}

func newItem(serverID string) *item {
	return &item{
		state: ItemState{
			ServerID: serverID,
			Phase:    PhasePending,
		},
	}
}
