package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error with contextual
// information. This standardized error type provides consistent error
// handling across all control operations for cases where requested
// resources don't exist in the system.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "instance", "connector type").
	ResourceType string

	// ResourceName is the specific identifier of the resource.
	ResourceName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewInstanceNotFoundError creates an instance not found error.
func NewInstanceNotFoundError(instanceID string) *NotFoundError {
	return &NotFoundError{ResourceType: "instance", ResourceName: instanceID}
}

// InvalidTypeError indicates a reference to a connector type that is not
// present in the catalog.
type InvalidTypeError struct {
	TypeID string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("unknown connector type %s", e.TypeID)
}

// IsInvalidType checks if an error is an InvalidTypeError.
func IsInvalidType(err error) bool {
	var invalidTypeErr *InvalidTypeError
	return errors.As(err, &invalidTypeErr)
}

// NewInvalidTypeError creates an InvalidTypeError for the given type ID.
func NewInvalidTypeError(typeID string) *InvalidTypeError {
	return &InvalidTypeError{TypeID: typeID}
}

// InstanceLimitExceededError indicates that creating another instance of a
// connector type would exceed the limit the type declares.
type InstanceLimitExceededError struct {
	TypeID string
	Limit  int
}

func (e *InstanceLimitExceededError) Error() string {
	if e.Limit == 1 {
		return fmt.Sprintf("connector type %s does not support multiple instances", e.TypeID)
	}
	return fmt.Sprintf("connector type %s allows at most %d instances", e.TypeID, e.Limit)
}

// IsInstanceLimitExceeded checks if an error is an InstanceLimitExceededError.
func IsInstanceLimitExceeded(err error) bool {
	var limitErr *InstanceLimitExceededError
	return errors.As(err, &limitErr)
}

// NewInstanceLimitExceededError creates an InstanceLimitExceededError.
func NewInstanceLimitExceededError(typeID string, limit int) *InstanceLimitExceededError {
	return &InstanceLimitExceededError{TypeID: typeID, Limit: limit}
}

// SpawnFailedError indicates that launching the connector binary failed.
// The underlying OS error is recorded and wrapped.
type SpawnFailedError struct {
	InstanceID string
	Err        error
}

func (e *SpawnFailedError) Error() string {
	return fmt.Sprintf("failed to spawn process for instance %s: %v", e.InstanceID, e.Err)
}

func (e *SpawnFailedError) Unwrap() error {
	return e.Err
}

// IsSpawnFailed checks if an error is a SpawnFailedError.
func IsSpawnFailed(err error) bool {
	var spawnErr *SpawnFailedError
	return errors.As(err, &spawnErr)
}

// NewSpawnFailedError creates a SpawnFailedError wrapping the OS error.
func NewSpawnFailedError(instanceID string, err error) *SpawnFailedError {
	return &SpawnFailedError{InstanceID: instanceID, Err: err}
}

// StillRunningError indicates that a destructive operation was attempted on
// an instance whose process is still active, without the force flag.
type StillRunningError struct {
	InstanceID string
	State      ConnectorState
}

func (e *StillRunningError) Error() string {
	return fmt.Sprintf("instance %s is still %s; stop it first or use force", e.InstanceID, e.State)
}

// IsStillRunning checks if an error is a StillRunningError.
func IsStillRunning(err error) bool {
	var runningErr *StillRunningError
	return errors.As(err, &runningErr)
}

// NewStillRunningError creates a StillRunningError.
func NewStillRunningError(instanceID string, state ConnectorState) *StillRunningError {
	return &StillRunningError{InstanceID: instanceID, State: state}
}

// InvalidTransitionError indicates a lifecycle trigger that is not legal in
// the instance's current state. These are rejections: they produce no state
// change and no event.
type InvalidTransitionError struct {
	InstanceID string
	From       ConnectorState
	Trigger    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s instance %s in state %s", e.Trigger, e.InstanceID, e.From)
}

// IsInvalidTransition checks if an error is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var transitionErr *InvalidTransitionError
	return errors.As(err, &transitionErr)
}

// NewInvalidTransitionError creates an InvalidTransitionError.
func NewInvalidTransitionError(instanceID string, from ConnectorState, trigger string) *InvalidTransitionError {
	return &InvalidTransitionError{InstanceID: instanceID, From: from, Trigger: trigger}
}

// ConfigValidationError indicates a rejected instance configuration.
type ConfigValidationError struct {
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", e.Reason)
}

// IsConfigValidation checks if an error is a ConfigValidationError.
func IsConfigValidation(err error) bool {
	var validationErr *ConfigValidationError
	return errors.As(err, &validationErr)
}

// NewConfigValidationError creates a ConfigValidationError.
func NewConfigValidationError(format string, args ...interface{}) *ConfigValidationError {
	return &ConfigValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StoreUnavailableError indicates the instance store failed an operation.
// It is fatal to the specific operation; the caller decides whether to
// retry.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("instance store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsStoreUnavailable checks if an error is a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var storeErr *StoreUnavailableError
	return errors.As(err, &storeErr)
}

// NewStoreUnavailableError creates a StoreUnavailableError wrapping the
// underlying failure.
func NewStoreUnavailableError(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}
