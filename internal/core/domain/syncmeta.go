package domain

import "time"

// SyncStatus represents the current state of a sync stream.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
)

// OperationsSyncKey is the metadata key tracking pending-operation replay.
const OperationsSyncKey = "operations_sync"

// SyncMetadata tracks last-sync bookkeeping for one sync stream, keyed by
// stream name (e.g. "providers_preload", "operations_sync").
type SyncMetadata struct {
	Key      string     `json:"key"`
	LastSync *time.Time `json:"last_sync,omitempty"`
	Status   SyncStatus `json:"status"`
	Error    string     `json:"error,omitempty"`

	// UpdatedAt records the last status transition. A "syncing" row whose
	// UpdatedAt is older than the staleness window is treated as a crashed
	// run and rewritten to "error" at startup.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSyncMetadata returns an idle record for the given stream.
func NewSyncMetadata(key string) *SyncMetadata {
	return &SyncMetadata{
		Key:       key,
		Status:    SyncStatusIdle,
		UpdatedAt: time.Now(),
	}
}

// MarkSyncing records the start of a sync attempt.
func (m *SyncMetadata) MarkSyncing() {
	m.Status = SyncStatusSyncing
	m.Error = ""
	m.UpdatedAt = time.Now()
}

// MarkIdle records a successful sync, advancing LastSync.
func (m *SyncMetadata) MarkIdle() {
	now := time.Now()
	m.Status = SyncStatusIdle
	m.LastSync = &now
	m.Error = ""
	m.UpdatedAt = now
}

// MarkError records a failed sync. LastSync is left untouched so the prior
// successful sync stays visible as stale-but-valid.
func (m *SyncMetadata) MarkError(message string) {
	m.Status = SyncStatusError
	m.Error = message
	m.UpdatedAt = time.Now()
}

// StaleSyncing reports whether the record claims an in-flight sync older
// than the cutoff, which only happens when a process died mid-run.
func (m *SyncMetadata) StaleSyncing(cutoff time.Time) bool {
	return m.Status == SyncStatusSyncing && m.UpdatedAt.Before(cutoff)
}
