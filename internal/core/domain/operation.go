package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationType identifies the kind of queued mutation.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	switch t {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// MaxRetries is the replay attempt ceiling. An operation that has failed
// this many times is excluded from automatic replay until an operator
// resets or discards it.
const MaxRetries = 3

// PendingOperation is a queued, not-yet-applied mutation made while the
// dashboard was offline. Operations replay against the remote API in
// timestamp order so dependent mutations (create then update on the same
// temp id) stay causally ordered.
type PendingOperation struct {
	// ID is assigned by the store on enqueue.
	ID int64 `json:"id"`

	Type       OperationType `json:"type"`
	Collection Collection    `json:"collection"`

	// EntityID is the target id, temporary or server-assigned.
	EntityID string `json:"entity_id"`

	// Payload carries the data needed to replay the mutation.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Timestamp orders replay and drives old-operation eviction.
	Timestamp time.Time `json:"timestamp"`

	// Retries counts failed replay attempts. It only ever increases on
	// failure; success removes the row entirely.
	Retries int `json:"retries"`

	// Error holds the last failure message.
	Error string `json:"error,omitempty"`
}

// NewPendingOperation builds an operation ready to enqueue. The store
// assigns ID and Timestamp on insert.
func NewPendingOperation(opType OperationType, collection Collection, entityID string, payload json.RawMessage) *PendingOperation {
	return &PendingOperation{
		Type:       opType,
		Collection: collection,
		EntityID:   entityID,
		Payload:    payload,
	}
}

// Validate checks the operation is well-formed before enqueueing.
func (o *PendingOperation) Validate() error {
	if !o.Type.Valid() {
		return fmt.Errorf("%w: operation type %q", ErrInvalidInput, o.Type)
	}
	if !o.Collection.Valid() {
		return fmt.Errorf("%w: collection %q", ErrInvalidInput, o.Collection)
	}
	if o.EntityID == "" {
		return fmt.Errorf("%w: missing entity id", ErrInvalidInput)
	}
	return nil
}

// Failed reports whether the operation exhausted its automatic retries.
func (o *PendingOperation) Failed() bool {
	return o.Retries >= MaxRetries
}

// CanAttempt reports whether automatic replay may still dispatch this
// operation.
func (o *PendingOperation) CanAttempt() bool {
	return !o.Failed()
}

// OperationPatch is a partial update applied to a stored operation.
// Nil fields are left untouched.
type OperationPatch struct {
	Retries *int
	Error   *string
}

// ResetPatch returns the patch an operator retry applies: retries back to
// zero, error cleared.
func ResetPatch() OperationPatch {
	zero := 0
	empty := ""
	return OperationPatch{Retries: &zero, Error: &empty}
}

// FailurePatch returns the patch recorded after a failed replay attempt.
func FailurePatch(retries int, message string) OperationPatch {
	return OperationPatch{Retries: &retries, Error: &message}
}
