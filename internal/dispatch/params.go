package dispatch

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DecodeTask parses a task payload as published by the control plane.
func DecodeTask(data []byte) (Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return Task{}, fmt.Errorf("failed to parse task payload: %w", err)
	}
	if err := validateTask(task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// DefinitionBytes decodes the base64 HCL definition carried by the task.
func (t Task) DefinitionBytes() ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(t.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 definition: %w", err)
	}
	return decoded, nil
}

func validateTask(task Task) error {
	switch task.Type {
	case TaskDeployEnvironment, TaskPauseEnvironment, TaskDeleteEnvironment:
	case "":
		return fmt.Errorf("task type is required")
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}

	if task.ExecutionID == "" {
		return fmt.Errorf("executionId is required (environmentId=%s, type=%s)", task.EnvironmentID, task.Type)
	}
	if task.EnvironmentID == "" {
		return fmt.Errorf("environmentId is required (executionId=%s, type=%s)", task.ExecutionID, task.Type)
	}
	if task.Definition == "" {
		return fmt.Errorf("definition is required (executionId=%s, environmentId=%s)", task.ExecutionID, task.EnvironmentID)
	}
	return nil
}
