// Package dispatch decodes environment tasks arriving over NATS and
// drives the orchestrator for them. One task is one orchestration pass
// over one environment.
package dispatch

import (
	"encoding/json"
	"strconv"
)

// TaskType represents the type of dispatch task
type TaskType string

const (
	TaskDeployEnvironment TaskType = "deploy-environment"
	TaskPauseEnvironment  TaskType = "pause-environment"
	TaskDeleteEnvironment TaskType = "delete-environment"
)

// FlexInt is a type that can unmarshal from both string and int
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler for FlexInt
func (fi *FlexInt) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*fi = FlexInt(i)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		*fi = FlexInt(0)
		return nil
	}

	i, err := strconv.Atoi(s)
	if err != nil {
		return err
	}

	*fi = FlexInt(i)
	return nil
}

// FlexString is a type that can unmarshal from both string and int/number
type FlexString string

// UnmarshalJSON implements json.Unmarshaler for FlexString
func (fs *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fs = FlexString(s)
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		*fs = FlexString(strconv.Itoa(i))
		return nil
	}

	// Large numeric IDs arrive as floats from some senders
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	*fs = FlexString(strconv.FormatFloat(f, 'f', 0, 64))
	return nil
}

// Task is one unit of work published by the control plane.
type Task struct {
	// Type selects the lifecycle action applied to the environment.
	Type TaskType `json:"type"`

	// ExecutionID identifies this orchestration pass.
	ExecutionID string `json:"executionId"`

	// EnvironmentID selects the environment within the definition.
	EnvironmentID string `json:"environmentId"`

	// Definition is the base64-encoded HCL environment definition.
	Definition string `json:"definition"`

	// DryRun computes terraform plans without applying them.
	DryRun bool `json:"dryRun,omitempty"`

	// RequestedBy is the platform user who triggered the task. Some
	// senders put numeric IDs here.
	RequestedBy FlexString `json:"requestedBy,omitempty"`

	// Attempt is the control plane's delivery attempt counter.
	Attempt FlexInt `json:"attempt,omitempty"`
}
