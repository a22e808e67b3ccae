// Package mgn provides the client for the AWS Application Migration Service
// (MGN) API: the lifecycle operations driven by the bulk orchestrator and
// the source server inventory listing.
package mgn

import (
	"context"

	"github.com/mab0130/MGNBot/internal/types"
)

// JobState represents the coarse state of a remote MGN job
type JobState string

// Job state constants
const (
	// JobPending indicates the remote job has not finished yet
	JobPending JobState = "pending"
	// JobSucceeded indicates the remote job finished successfully
	JobSucceeded JobState = "succeeded"
	// JobFailed indicates the remote job finished with a failure
	JobFailed JobState = "failed"
)

// LaunchStatus is the polled state of a test instance launch job
type LaunchStatus struct {
	State JobState
	// InstanceID is the launched EC2 instance, populated once State is JobSucceeded
	InstanceID string
	// FailureReason describes the remote failure when State is JobFailed
	FailureReason string
}

// TerminationStatus is the polled state of a test instance termination job
type TerminationStatus struct {
	State         JobState
	FailureReason string
}

// Lifecycle is the adapter driving test instance lifecycle operations for a
// single source server. The orchestrator only talks to MGN through this
// interface; the real client and the test mock both implement it.
//
// Calls are assumed idempotent at the server identifier level: MGN rejects a
// StartTest for a server whose test is already in progress rather than
// launching a duplicate, so blind retry after a transient failure is safe.
type Lifecycle interface {
	// StartTest requests a test instance launch and returns the remote job ID
	StartTest(ctx context.Context, serverID string, network *types.NetworkConfig, instance *types.InstanceConfig) (string, error)

	// GetLaunchStatus polls a launch job
	GetLaunchStatus(ctx context.Context, jobID string) (LaunchStatus, error)

	// StopTest requests termination of a server's test instance and returns
	// the remote job ID
	StopTest(ctx context.Context, serverID string) (string, error)

	// GetTerminationStatus polls a termination job
	GetTerminationStatus(ctx context.Context, jobID string) (TerminationStatus, error)
}

// SourceServerInfo is the inventory view of an MGN source server
type SourceServerInfo struct {
	SourceServerID      string
	Hostname            string
	LifecycleState      string
	ReplicationState    string
	RecommendedInstance string
	TestInstanceID      string
	TestInstanceState   string
	IsArchived          bool
	Tags                map[string]string
}

// Inventory lists source servers registered with MGN
type Inventory interface {
	DescribeSourceServers(ctx context.Context) ([]SourceServerInfo, error)
}
