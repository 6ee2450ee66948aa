// Package engine defines the error model shared by every part of the
// deployment engine. Errors carry a cause (who must act), a scope (which
// subsystem or service instance produced them) and the execution id of the
// orchestration pass that raised them.
package engine

import (
	"errors"
	"fmt"
)

// Cause classifies an error by who needs to act on it.
type Cause string

const (
	// CauseInternal marks platform-side failures the user cannot fix
	// (process exec failure, missing Helm history, Terraform apply failure).
	CauseInternal Cause = "internal"

	// CauseUser marks failures with an actionable user-facing message
	// (e.g. "image failed to start - check your port configuration").
	CauseUser Cause = "user"
)

// ScopeKind identifies the subsystem a scope belongs to.
type ScopeKind string

const (
	ScopeKindEngine        ScopeKind = "engine"
	ScopeKindCloudProvider ScopeKind = "cloud-provider"
	ScopeKindKubernetes    ScopeKind = "kubernetes"
	ScopeKindEnvironment   ScopeKind = "environment"
	ScopeKindApplication   ScopeKind = "application"
	ScopeKindContainer     ScopeKind = "container"
	ScopeKindDatabase      ScopeKind = "database"
	ScopeKindRouter        ScopeKind = "router"
)

// Scope pinpoints the subsystem or service instance an error or progress
// notification is attributable to. Name is set only for service scopes.
type Scope struct {
	Kind ScopeKind
	Name string
}

// String renders the scope for log and event output.
func (s Scope) String() string {
	if s.Name == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s %q", s.Kind, s.Name)
}

// EngineScope is the scope for failures in the orchestrator itself.
func EngineScope() Scope { return Scope{Kind: ScopeKindEngine} }

// CloudProviderScope is the scope for managed-service backend failures.
func CloudProviderScope() Scope { return Scope{Kind: ScopeKindCloudProvider} }

// KubernetesScope is the scope for in-cluster operation failures.
func KubernetesScope() Scope { return Scope{Kind: ScopeKindKubernetes} }

// EnvironmentScope is the scope for environment-level failures.
func EnvironmentScope() Scope { return Scope{Kind: ScopeKindEnvironment} }

// ApplicationScope scopes an error to a named application service.
func ApplicationScope(name string) Scope {
	return Scope{Kind: ScopeKindApplication, Name: name}
}

// ContainerScope scopes an error to a named container service.
func ContainerScope(name string) Scope {
	return Scope{Kind: ScopeKindContainer, Name: name}
}

// DatabaseScope scopes an error to a named database service.
func DatabaseScope(name string) Scope {
	return Scope{Kind: ScopeKindDatabase, Name: name}
}

// RouterScope scopes an error to a named router service.
func RouterScope(name string) Scope {
	return Scope{Kind: ScopeKindRouter, Name: name}
}

// Error is the engine-wide error type. It is created at the point of failure
// and propagated upward without silent recovery; every Error is attributable
// to exactly one scope.
type Error struct {
	// Cause classifies the failure as platform-side or user-actionable.
	Cause Cause

	// Scope is the subsystem or service instance that produced the failure.
	Scope Scope

	// ExecutionID identifies the orchestration pass.
	ExecutionID string

	// Message is the human-readable description shown to the user.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Scope, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Scope, e.Message)
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the message a user should see. Internal errors get a
// generic platform-failure prefix so provider internals are not exposed as
// user mistakes.
func (e *Error) UserMessage() string {
	if e.Cause == CauseUser {
		return e.Message
	}
	return fmt.Sprintf("platform error while processing %s: %s", e.Scope, e.Message)
}

// NewInternal builds an internal-cause error for the given scope.
func NewInternal(scope Scope, executionID, message string, err error) *Error {
	return &Error{
		Cause:       CauseInternal,
		Scope:       scope,
		ExecutionID: executionID,
		Message:     message,
		Err:         err,
	}
}

// NewUser builds a user-cause error for the given scope.
func NewUser(scope Scope, executionID, message string, err error) *Error {
	return &Error{
		Cause:       CauseUser,
		Scope:       scope,
		ExecutionID: executionID,
		Message:     message,
		Err:         err,
	}
}

// AsError extracts an *Error from an error chain. The second return is false
// when the chain contains no engine error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUserCause reports whether the error chain carries a user-actionable
// engine error.
func IsUserCause(err error) bool {
	e, ok := AsError(err)
	return ok && e.Cause == CauseUser
}
