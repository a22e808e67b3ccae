package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mab0130/MGNBot/internal/mgn"
	"github.com/mab0130/MGNBot/internal/types"
)

func testOptions() Options {
	return Options{
		PollInterval:   time.Millisecond,
		ItemTimeout:    time.Second,
		CallsPerSecond: 10000,
		Burst:          10000,
		Retry: RetryPolicy{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}
}

func launchRequest(serverIDs ...string) types.BatchRequest {
	return types.BatchRequest{
		Operation: types.OperationLaunch,
		ServerIDs: serverIDs,
		NetworkConfig: &types.NetworkConfig{
			VpcID:            "vpc-1234",
			SubnetID:         "subnet-1234",
			SecurityGroupIDs: []string{"sg-1234"},
		},
		InstanceConfig: &types.InstanceConfig{
			InstanceType: "t3.medium",
		},
	}
}

func awaitBatch(t *testing.T, h *BatchHandle) BatchSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := h.Await(ctx)
	require.NoError(t, err)
	return snap
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	o := New(mgn.NewMockLifecycle(), testOptions())
	defer o.Close()

	tests := []struct {
		name    string
		request types.BatchRequest
	}{
		{
			name:    "no servers",
			request: launchRequest(),
		},
		{
			name:    "duplicate server IDs",
			request: launchRequest("s-1", "s-2", "s-1"),
		},
		{
			name: "launch without network config",
			request: types.BatchRequest{
				Operation:      types.OperationLaunch,
				ServerIDs:      []string{"s-1"},
				InstanceConfig: &types.InstanceConfig{InstanceType: "t3.medium"},
			},
		},
		{
			name: "terminate with launch config",
			request: types.BatchRequest{
				Operation:     types.OperationTerminate,
				ServerIDs:     []string{"s-1"},
				NetworkConfig: &types.NetworkConfig{SubnetID: "subnet-1"},
			},
		},
		{
			name: "concurrency above ceiling",
			request: types.BatchRequest{
				Operation:      types.OperationTerminate,
				ServerIDs:      []string{"s-1"},
				MaxConcurrency: types.MaxConcurrencyCeiling + 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, err := o.Submit(tt.request)
			assert.Error(t, err)
			assert.Nil(t, handle)
		})
	}

	assert.Empty(t, o.List())
}

func TestLaunchBatchAllSucceed(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	o := New(adapter, testOptions())
	defer o.Close()

	handle, err := o.Submit(launchRequest("s-a", "s-b", "s-c"))
	require.NoError(t, err)

	snap := awaitBatch(t, handle)
	assert.True(t, snap.Done)
	assert.Equal(t, 3, snap.Succeeded())
	require.Len(t, snap.Items, 3)
	for _, item := range snap.Items {
		assert.Equal(t, PhaseSucceeded, item.Phase)
		assert.Equal(t, 1, item.Attempt)
		assert.Equal(t, "i-job-"+item.ServerID, item.ResultInstanceID)
		assert.Empty(t, item.LastError)
	}
}

func TestLaunchBatchTransientErrorIsRetried(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	var mu sync.Mutex
	throttled := false
	adapter.StartTestFunc = func(serverID string) (string, error) {
		if serverID != "s-c" {
			return "job-" + serverID, nil
		}
		mu.Lock()
		defer mu.Unlock()
		if !throttled {
			throttled = true
			return "", &mgn.APIError{Code: "ThrottlingException", Message: "Rate exceeded", Fault: smithy.FaultClient}
		}
		return "job-" + serverID, nil
	}

	o := New(adapter, testOptions())
	defer o.Close()

	handle, err := o.Submit(launchRequest("s-a", "s-b", "s-c"))
	require.NoError(t, err)

	snap := awaitBatch(t, handle)
	assert.Equal(t, 3, snap.Succeeded())

	byID := make(map[string]ItemState)
	for _, item := range snap.Items {
		byID[item.ServerID] = item
	}
	assert.Equal(t, 1, byID["s-a"].Attempt)
	assert.Equal(t, 1, byID["s-b"].Attempt)
	assert.Equal(t, 2, byID["s-c"].Attempt)
	assert.Equal(t, 2, adapter.CallCount("StartTest", "s-c"))
}

func TestAlwaysTransientExhaustsRetries(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	adapter.StartTestFunc = func(serverID string) (string, error) {
		return "", &mgn.APIError{Code: "ThrottlingException", Message: "Rate exceeded", Fault: smithy.FaultClient}
	}

	opts := testOptions()
	opts.Retry.MaxRetries = 2
	o := New(adapter, opts)
	defer o.Close()

	handle, err := o.Submit(launchRequest("s-a"))
	require.NoError(t, err)

	snap := awaitBatch(t, handle)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, PhaseFailed, snap.Items[0].Phase)
	assert.Equal(t, 3, snap.Items[0].Attempt)
	assert.Contains(t, snap.Items[0].LastError, "ThrottlingException")
	// One initial attempt plus MaxRetries retries, no more.
	assert.Equal(t, 3, adapter.CallCount("StartTest", "s-a"))
}

func TestTerminateBatchValidationFailureIsPerItem(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	adapter.StopTestFunc = func(serverID string) (string, error) {
		if serverID == "s-x" {
			return "", &mgn.APIError{Code: "ValidationException", Message: "no test instance", Fault: smithy.FaultClient}
		}
		return "job-" + serverID, nil
	}

	o := New(adapter, testOptions())
	defer o.Close()

	handle, err := o.Submit(types.BatchRequest{
		Operation: types.OperationTerminate,
		ServerIDs: []string{"s-x", "s-y"},
	})
	require.NoError(t, err, "a per-item failure must not fail submission")

	snap := awaitBatch(t, handle)
	assert.Equal(t, 1, snap.Succeeded())
	assert.Equal(t, 1, snap.Failed())

	byID := make(map[string]ItemState)
	for _, item := range snap.Items {
		byID[item.ServerID] = item
	}
	assert.Equal(t, PhaseFailed, byID["s-x"].Phase)
	assert.Equal(t, 1, byID["s-x"].Attempt, "terminal errors are not retried")
	assert.Contains(t, byID["s-x"].LastError, "ValidationException")
	assert.Equal(t, PhaseSucceeded, byID["s-y"].Phase)
	assert.Equal(t, 1, adapter.CallCount("StopTest", "s-x"))
}

func TestRemoteJobFailureIsTerminal(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	adapter.GetLaunchStatusFunc = func(jobID string) (mgn.LaunchStatus, error) {
		return mgn.LaunchStatus{State: mgn.JobFailed, FailureReason: "insufficient capacity"}, nil
	}

	o := New(adapter, testOptions())
	defer o.Close()

	handle, err := o.Submit(launchRequest("s-a"))
	require.NoError(t, err)

	snap := awaitBatch(t, handle)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, PhaseFailed, snap.Items[0].Phase)
	assert.Equal(t, 1, snap.Items[0].Attempt)
	assert.Contains(t, snap.Items[0].LastError, "insufficient capacity")
	assert.Equal(t, 1, adapter.CallCount("StartTest", "s-a"))
}

func TestItemTimeout(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	adapter.GetLaunchStatusFunc = func(jobID string) (mgn.LaunchStatus, error) {
		return mgn.LaunchStatus{State: mgn.JobPending}, nil
	}

	opts := testOptions()
	opts.ItemTimeout = 20 * time.Millisecond
	o := New(adapter, opts)
	defer o.Close()

	handle, err := o.Submit(launchRequest("s-a"))
	require.NoError(t, err)

	snap := awaitBatch(t, handle)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, PhaseFailed, snap.Items[0].Phase)
	assert.Contains(t, snap.Items[0].LastError, "no completion signal")
	// The deadline is terminal, never retried.
	assert.Equal(t, 1, adapter.CallCount("StartTest", "s-a"))
}

func TestCancelFinishesInFlightOnly(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	started := make(chan string, 1)
	release := make(chan struct{})
	adapter.StartTestFunc = func(serverID string) (string, error) {
		started <- serverID
		<-release
		return "job-" + serverID, nil
	}

	o := New(adapter, testOptions())
	defer o.Close()

	req := launchRequest("s-a", "s-b", "s-c")
	req.MaxConcurrency = 1
	handle, err := o.Submit(req)
	require.NoError(t, err)

	// Wait until the first item is in flight, then cancel and let it finish.
	first := <-started
	assert.Equal(t, "s-a", first, "items start in submission order")
	handle.Cancel()
	close(release)

	snap := awaitBatch(t, handle)
	assert.True(t, snap.Done)

	byID := make(map[string]ItemState)
	for _, item := range snap.Items {
		byID[item.ServerID] = item
	}
	assert.Equal(t, PhaseSucceeded, byID["s-a"].Phase, "in-flight items run to completion")
	assert.Equal(t, PhaseCancelled, byID["s-b"].Phase)
	assert.Equal(t, PhaseCancelled, byID["s-c"].Phase)
	assert.Zero(t, adapter.CallCount("StartTest", "s-b"))
	assert.Zero(t, adapter.CallCount("StartTest", "s-c"))
}

func TestConcurrencyBound(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	adapter.StartTestFunc = func(serverID string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return "job-" + serverID, nil
	}

	o := New(adapter, testOptions())
	defer o.Close()

	serverIDs := make([]string, 20)
	for i := range serverIDs {
		serverIDs[i] = "s-" + string(rune('a'+i))
	}
	req := launchRequest(serverIDs...)
	req.MaxConcurrency = 4
	handle, err := o.Submit(req)
	require.NoError(t, err)

	snap := awaitBatch(t, handle)
	assert.Equal(t, 20, snap.Succeeded())

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxInFlight, 4)
	assert.Greater(t, maxInFlight, 1)
}

func TestFinalSnapshotCoversEveryServer(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	adapter.StartTestFunc = func(serverID string) (string, error) {
		if serverID == "s-b" {
			return "", &mgn.APIError{Code: "UninitializedAccountException", Message: "not initialized", Fault: smithy.FaultClient}
		}
		return "job-" + serverID, nil
	}

	o := New(adapter, testOptions())
	defer o.Close()

	serverIDs := []string{"s-a", "s-b", "s-c", "s-d"}
	handle, err := o.Submit(launchRequest(serverIDs...))
	require.NoError(t, err)

	snap := awaitBatch(t, handle)
	require.Len(t, snap.Items, len(serverIDs))
	seen := make(map[string]bool, len(serverIDs))
	for _, item := range snap.Items {
		assert.True(t, item.Phase.Terminal())
		seen[item.ServerID] = true
	}
	for _, id := range serverIDs {
		assert.True(t, seen[id], "server %s missing from final snapshot", id)
	}
}

func TestOrchestratorRegistry(t *testing.T) {
	o := New(mgn.NewMockLifecycle(), testOptions())
	defer o.Close()

	handle, err := o.Submit(launchRequest("s-a"))
	require.NoError(t, err)
	require.NotEmpty(t, handle.ID)

	got, ok := o.Get(handle.ID)
	require.True(t, ok)
	assert.Equal(t, handle.ID, got.ID)

	_, ok = o.Get("nonexistent")
	assert.False(t, ok)
	assert.Error(t, o.Cancel("nonexistent"))

	assert.Len(t, o.List(), 1)
	require.NoError(t, o.Cancel(handle.ID))
	awaitBatch(t, handle)
}

func TestOrchestratorCloseCancelsRunningBatches(t *testing.T) {
	adapter := mgn.NewMockLifecycle()
	adapter.GetLaunchStatusFunc = func(jobID string) (mgn.LaunchStatus, error) {
		return mgn.LaunchStatus{State: mgn.JobPending}, nil
	}

	o := New(adapter, testOptions())

	handle, err := o.Submit(launchRequest("s-a"))
	require.NoError(t, err)

	// Give the item time to reach the polling loop, then shut down.
	time.Sleep(20 * time.Millisecond)
	o.Close()

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish after orchestrator shutdown")
	}

	snap := handle.Snapshot()
	assert.True(t, snap.Done)
	assert.Equal(t, PhaseFailed, snap.Items[0].Phase)
}
