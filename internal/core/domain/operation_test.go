package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOperationTypeValid(t *testing.T) {
	tests := []struct {
		opType OperationType
		want   bool
	}{
		{OperationCreate, true},
		{OperationUpdate, true},
		{OperationDelete, true},
		{OperationType("upsert"), false},
		{OperationType(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.opType), func(t *testing.T) {
			if got := tt.opType.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.opType, got, tt.want)
			}
		})
	}
}

func TestPendingOperationValidate(t *testing.T) {
	payload := json.RawMessage(`{"name":"ACME"}`)

	op := NewPendingOperation(OperationCreate, CollectionProviders, NewTempID(), payload)
	if err := op.Validate(); err != nil {
		t.Errorf("valid operation should pass validation: %v", err)
	}

	tests := []struct {
		name string
		op   *PendingOperation
	}{
		{"bad type", NewPendingOperation("merge", CollectionProviders, "p-1", payload)},
		{"bad collection", NewPendingOperation(OperationCreate, "invoices", "p-1", payload)},
		{"missing entity id", NewPendingOperation(OperationUpdate, CollectionClients, "", payload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestPendingOperationRetryCeiling(t *testing.T) {
	op := NewPendingOperation(OperationUpdate, CollectionClients, "client-1", nil)

	for retries := 0; retries < MaxRetries; retries++ {
		op.Retries = retries
		if op.Failed() {
			t.Errorf("retries=%d should not be failed", retries)
		}
		if !op.CanAttempt() {
			t.Errorf("retries=%d should still be attemptable", retries)
		}
	}

	op.Retries = MaxRetries
	if !op.Failed() {
		t.Error("retries at ceiling should be failed")
	}
	if op.CanAttempt() {
		t.Error("failed operation must be excluded from automatic replay")
	}
}

func TestResetPatch(t *testing.T) {
	patch := ResetPatch()
	if patch.Retries == nil || *patch.Retries != 0 {
		t.Error("reset patch should zero retries")
	}
	if patch.Error == nil || *patch.Error != "" {
		t.Error("reset patch should clear the error")
	}
}

func TestFailurePatch(t *testing.T) {
	patch := FailurePatch(2, "connection refused")
	if patch.Retries == nil || *patch.Retries != 2 {
		t.Error("failure patch should carry the new retry count")
	}
	if patch.Error == nil || *patch.Error != "connection refused" {
		t.Error("failure patch should carry the failure message")
	}
}
