// Package models defines the database models for the MGN source server inventory
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Column names used by repository queries
const (
	ServerSourceServerIDField = "source_server_id"
	ServerHostnameField       = "hostname"
	ServerLastSyncedAtField   = "last_synced_at"
)

// LifecycleState is the migration lifecycle position of a source server
type LifecycleState int

const (
	// we need unknown to be the first state to avoid conflicts with the default value
	LifecycleStateUnknown LifecycleState = iota
	LifecycleStateNotReady
	LifecycleStateReadyForTest
	LifecycleStateTestInProgress
	LifecycleStateReadyForCutover
	LifecycleStateCutoverInProgress
	LifecycleStateCutover
	LifecycleStateDisconnected
)

var lifecycleStateNames = []string{
	"unknown",
	"not_ready",
	"ready_for_test",
	"test_in_progress",
	"ready_for_cutover",
	"cutover_in_progress",
	"cutover",
	"disconnected",
}

func (s LifecycleState) String() string {
	if int(s) < 0 || int(s) >= len(lifecycleStateNames) {
		return lifecycleStateNames[LifecycleStateUnknown]
	}
	return lifecycleStateNames[s]
}

// ParseLifecycleState converts a string to a LifecycleState
func ParseLifecycleState(str string) (LifecycleState, error) {
	for i, state := range lifecycleStateNames {
		if state == str {
			return LifecycleState(i), nil
		}
	}

	return LifecycleStateUnknown, fmt.Errorf("invalid lifecycle state: %s", str)
}

// LifecycleStateFromAPI maps the raw MGN API lifecycle state to a
// LifecycleState. Unrecognized values map to unknown rather than erroring so
// a new API state never breaks an inventory sync.
func LifecycleStateFromAPI(apiState string) LifecycleState {
	switch apiState {
	case "NOT_READY":
		return LifecycleStateNotReady
	case "READY_FOR_TEST":
		return LifecycleStateReadyForTest
	case "TEST_IN_PROGRESS":
		return LifecycleStateTestInProgress
	case "READY_FOR_CUTOVER":
		return LifecycleStateReadyForCutover
	case "CUTTING_OVER", "CUTOVER_IN_PROGRESS":
		return LifecycleStateCutoverInProgress
	case "CUTOVER":
		return LifecycleStateCutover
	case "DISCONNECTED", "DISCOVERED":
		return LifecycleStateDisconnected
	default:
		return LifecycleStateUnknown
	}
}

// MarshalJSON implements json.Marshaler for LifecycleState
func (s LifecycleState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler for LifecycleState
func (s *LifecycleState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state, err := ParseLifecycleState(str)
	if err != nil {
		return err
	}

	*s = state
	return nil
}

// SourceServer is the locally cached inventory record for one MGN source
// server. The MGN API is the source of truth; rows are refreshed by the
// inventory sync and only ever read between syncs.
type SourceServer struct {
	gorm.Model
	SourceServerID      string            `json:"source_server_id" gorm:"not null;uniqueIndex"`
	Hostname            string            `json:"hostname" gorm:"index;varchar(255)"`
	LifecycleState      LifecycleState    `json:"lifecycle_state" gorm:"index"`
	ReplicationState    string            `json:"replication_state" gorm:"varchar(100)"`
	RecommendedInstance string            `json:"recommended_instance" gorm:"varchar(100)"`
	TestInstanceID      string            `json:"test_instance_id" gorm:"varchar(100)"`
	TestInstanceState   string            `json:"test_instance_state" gorm:"varchar(100)"`
	IsArchived          bool              `json:"is_archived" gorm:"index"`
	Tags                map[string]string `json:"tags" gorm:"serializer:json"`
	LastSyncedAt        time.Time         `json:"last_synced_at"`
}

// HasTestInstance reports whether a test instance is currently tracked for
// the server
func (s *SourceServer) HasTestInstance() bool {
	return s.TestInstanceID != ""
}

// ServerListOptions filters inventory listings
type ServerListOptions struct {
	// LifecycleState restricts the listing to one lifecycle state
	LifecycleState *LifecycleState
	// Search matches against hostname and source server ID, case-insensitive
	Search string
	// HasTestInstance restricts the listing to servers with or without a test instance
	HasTestInstance *bool
	// IncludeArchived includes archived servers, excluded by default
	IncludeArchived bool
	Limit           int
	Offset          int
}
