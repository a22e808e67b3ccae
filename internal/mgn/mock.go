package mgn

import (
	"context"
	"fmt"
	"sync"

	"github.com/mab0130/MGNBot/internal/types"
)

// MockLifecycle is a scripted Lifecycle implementation for tests. Behavior
// is overridden per method; unset methods succeed immediately. All calls are
// recorded and can be counted per server.
type MockLifecycle struct {
	mu    sync.Mutex
	calls map[string]int

	StartTestFunc            func(serverID string) (string, error)
	GetLaunchStatusFunc      func(jobID string) (LaunchStatus, error)
	StopTestFunc             func(serverID string) (string, error)
	GetTerminationStatusFunc func(jobID string) (TerminationStatus, error)
}

var _ Lifecycle = (*MockLifecycle)(nil)

// NewMockLifecycle creates a mock lifecycle adapter
func NewMockLifecycle() *MockLifecycle {
	return &MockLifecycle{
		calls: make(map[string]int),
	}
}

// StartTest implements Lifecycle
func (m *MockLifecycle) StartTest(_ context.Context, serverID string, _ *types.NetworkConfig, _ *types.InstanceConfig) (string, error) {
	m.record("StartTest", serverID)
	if m.StartTestFunc != nil {
		return m.StartTestFunc(serverID)
	}
	return "job-" + serverID, nil
}

// GetLaunchStatus implements Lifecycle
func (m *MockLifecycle) GetLaunchStatus(_ context.Context, jobID string) (LaunchStatus, error) {
	m.record("GetLaunchStatus", jobID)
	if m.GetLaunchStatusFunc != nil {
		return m.GetLaunchStatusFunc(jobID)
	}
	return LaunchStatus{State: JobSucceeded, InstanceID: "i-" + jobID}, nil
}

// StopTest implements Lifecycle
func (m *MockLifecycle) StopTest(_ context.Context, serverID string) (string, error) {
	m.record("StopTest", serverID)
	if m.StopTestFunc != nil {
		return m.StopTestFunc(serverID)
	}
	return "job-" + serverID, nil
}

// GetTerminationStatus implements Lifecycle
func (m *MockLifecycle) GetTerminationStatus(_ context.Context, jobID string) (TerminationStatus, error) {
	m.record("GetTerminationStatus", jobID)
	if m.GetTerminationStatusFunc != nil {
		return m.GetTerminationStatusFunc(jobID)
	}
	return TerminationStatus{State: JobSucceeded}, nil
}

// CallCount returns how many times the given method was invoked for the
// given server or job ID
func (m *MockLifecycle) CallCount(method, id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[callKey(method, id)]
}

func (m *MockLifecycle) record(method, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[callKey(method, id)]++
}

func callKey(method, id string) string {
	return fmt.Sprintf("%s:%s", method, id)
}
