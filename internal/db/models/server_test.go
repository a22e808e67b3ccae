package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleState(t *testing.T) {
	tests := []struct {
		name        string
		state       LifecycleState
		stringValue string
		jsonValue   string
	}{
		{
			name:        "Unknown state",
			state:       LifecycleStateUnknown,
			stringValue: "unknown",
			jsonValue:   `"unknown"`,
		},
		{
			name:        "Not ready state",
			state:       LifecycleStateNotReady,
			stringValue: "not_ready",
			jsonValue:   `"not_ready"`,
		},
		{
			name:        "Ready for test state",
			state:       LifecycleStateReadyForTest,
			stringValue: "ready_for_test",
			jsonValue:   `"ready_for_test"`,
		},
		{
			name:        "Test in progress state",
			state:       LifecycleStateTestInProgress,
			stringValue: "test_in_progress",
			jsonValue:   `"test_in_progress"`,
		},
		{
			name:        "Ready for cutover state",
			state:       LifecycleStateReadyForCutover,
			stringValue: "ready_for_cutover",
			jsonValue:   `"ready_for_cutover"`,
		},
		{
			name:        "Cutover in progress state",
			state:       LifecycleStateCutoverInProgress,
			stringValue: "cutover_in_progress",
			jsonValue:   `"cutover_in_progress"`,
		},
		{
			name:        "Cutover state",
			state:       LifecycleStateCutover,
			stringValue: "cutover",
			jsonValue:   `"cutover"`,
		},
		{
			name:        "Disconnected state",
			state:       LifecycleStateDisconnected,
			stringValue: "disconnected",
			jsonValue:   `"disconnected"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.stringValue, tt.state.String())

			parsed, err := ParseLifecycleState(tt.stringValue)
			require.NoError(t, err)
			assert.Equal(t, tt.state, parsed)

			data, err := json.Marshal(tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.jsonValue, string(data))

			var roundTrip LifecycleState
			require.NoError(t, json.Unmarshal(data, &roundTrip))
			assert.Equal(t, tt.state, roundTrip)
		})
	}
}

func TestParseLifecycleStateInvalid(t *testing.T) {
	_, err := ParseLifecycleState("READY_FOR_TEST")
	assert.Error(t, err)

	var state LifecycleState
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &state))
	assert.Error(t, json.Unmarshal([]byte(`3`), &state))
}

func TestLifecycleStateFromAPI(t *testing.T) {
	tests := []struct {
		apiState string
		expected LifecycleState
	}{
		{apiState: "NOT_READY", expected: LifecycleStateNotReady},
		{apiState: "READY_FOR_TEST", expected: LifecycleStateReadyForTest},
		{apiState: "TEST_IN_PROGRESS", expected: LifecycleStateTestInProgress},
		{apiState: "READY_FOR_CUTOVER", expected: LifecycleStateReadyForCutover},
		{apiState: "CUTTING_OVER", expected: LifecycleStateCutoverInProgress},
		{apiState: "CUTOVER", expected: LifecycleStateCutover},
		{apiState: "DISCONNECTED", expected: LifecycleStateDisconnected},
		{apiState: "", expected: LifecycleStateUnknown},
		{apiState: "SOME_NEW_STATE", expected: LifecycleStateUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, LifecycleStateFromAPI(tt.apiState), "api state %q", tt.apiState)
	}
}

func TestSourceServerHasTestInstance(t *testing.T) {
	server := SourceServer{SourceServerID: "s-1"}
	assert.False(t, server.HasTestInstance())

	server.TestInstanceID = "i-0abc"
	assert.True(t, server.HasTestInstance())
}
