// Package types defines the shared request and data types for MGNBot
package types

import (
	"encoding/json"
	"fmt"
)

// Concurrency limits for bulk operations
const (
	// DefaultMaxConcurrency is the worker count used when a request does not set one
	DefaultMaxConcurrency = 50
	// MaxConcurrencyCeiling is the hard upper bound on workers per batch
	MaxConcurrencyCeiling = 50
)

// OperationKind identifies the bulk lifecycle operation to perform
type OperationKind string

// Operation kind constants
const (
	// OperationLaunch launches test instances for the selected source servers
	OperationLaunch OperationKind = "launch"
	// OperationTerminate terminates test instances for the selected source servers
	OperationTerminate OperationKind = "terminate"
)

// String returns the string representation of the operation kind
func (k OperationKind) String() string {
	return string(k)
}

// ParseOperationKind converts a string to an OperationKind
func ParseOperationKind(str string) (OperationKind, error) {
	switch str {
	case string(OperationLaunch):
		return OperationLaunch, nil
	case string(OperationTerminate):
		return OperationTerminate, nil
	default:
		return "", fmt.Errorf("invalid operation kind: %s", str)
	}
}

// UnmarshalJSON implements json.Unmarshaler for OperationKind
func (k *OperationKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	kind, err := ParseOperationKind(str)
	if err != nil {
		return err
	}

	*k = kind
	return nil
}

// NetworkConfig holds the network settings applied to every launched test instance
type NetworkConfig struct {
	VpcID            string   `json:"vpc_id"`
	SubnetID         string   `json:"subnet_id"`
	SecurityGroupIDs []string `json:"security_group_ids"`
	PublicIPOverride *bool    `json:"public_ip_override,omitempty"`
}

// Validate ensures the network configuration is complete
func (c *NetworkConfig) Validate() error {
	if c.VpcID == "" {
		return fmt.Errorf("vpc_id is required")
	}
	if c.SubnetID == "" {
		return fmt.Errorf("subnet_id is required")
	}
	if len(c.SecurityGroupIDs) == 0 {
		return fmt.Errorf("at least one security group is required")
	}
	return nil
}

// InstanceConfig holds the instance settings applied to every launched test instance
type InstanceConfig struct {
	InstanceType          string `json:"instance_type"`
	KeyPair               string `json:"key_pair,omitempty"`
	IAMProfile            string `json:"iam_profile,omitempty"`
	TerminationProtection bool   `json:"termination_protection"`
}

// Validate ensures the instance configuration is complete
func (c *InstanceConfig) Validate() error {
	if c.InstanceType == "" {
		return fmt.Errorf("instance_type is required")
	}
	return nil
}

// BatchRequest describes one operator-initiated bulk operation over a set of
// source servers sharing a single configuration. It is immutable once
// submitted; the orchestrator only ever reads it.
type BatchRequest struct {
	Operation      OperationKind   `json:"operation"`
	ServerIDs      []string        `json:"server_ids"`
	NetworkConfig  *NetworkConfig  `json:"network_config,omitempty"`
	InstanceConfig *InstanceConfig `json:"instance_config,omitempty"`
	MaxConcurrency int             `json:"max_concurrency,omitempty"`
}

// Validate ensures that the batch request is well formed: a non-empty,
// duplicate-free server set, configuration completeness for the chosen
// operation, and a concurrency within the system bound.
func (r *BatchRequest) Validate() error {
	if _, err := ParseOperationKind(string(r.Operation)); err != nil {
		return err
	}

	if len(r.ServerIDs) == 0 {
		return fmt.Errorf("server_ids cannot be empty")
	}
	seen := make(map[string]struct{}, len(r.ServerIDs))
	for _, id := range r.ServerIDs {
		if id == "" {
			return fmt.Errorf("server_ids cannot contain empty identifiers")
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("duplicate server id: %s", id)
		}
		seen[id] = struct{}{}
	}

	switch r.Operation {
	case OperationLaunch:
		if r.NetworkConfig == nil {
			return fmt.Errorf("network_config is required for launch operations")
		}
		if err := r.NetworkConfig.Validate(); err != nil {
			return fmt.Errorf("invalid network_config: %w", err)
		}
		if r.InstanceConfig == nil {
			return fmt.Errorf("instance_config is required for launch operations")
		}
		if err := r.InstanceConfig.Validate(); err != nil {
			return fmt.Errorf("invalid instance_config: %w", err)
		}
	case OperationTerminate:
		if r.NetworkConfig != nil {
			return fmt.Errorf("network_config is not valid for terminate operations")
		}
		if r.InstanceConfig != nil {
			return fmt.Errorf("instance_config is not valid for terminate operations")
		}
	}

	if r.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if r.MaxConcurrency > MaxConcurrencyCeiling {
		return fmt.Errorf("max_concurrency exceeds system bound of %d", MaxConcurrencyCeiling)
	}

	return nil
}

// Concurrency returns the effective worker count for the request, applying
// the default and the system ceiling.
func (r *BatchRequest) Concurrency() int {
	n := r.MaxConcurrency
	if n <= 0 {
		n = DefaultMaxConcurrency
	}
	if n > MaxConcurrencyCeiling {
		n = MaxConcurrencyCeiling
	}
	if n > len(r.ServerIDs) {
		n = len(r.ServerIDs)
	}
	return n
}
