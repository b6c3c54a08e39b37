package domain

import "time"

// CacheStats is a point-in-time snapshot of cache contents, served to the
// diagnostics UI. Producing it must never fail; callers get a zeroed
// snapshot when the store is unreadable.
type CacheStats struct {
	// Collections maps collection name to cached row count.
	Collections map[Collection]int `json:"collections"`

	// LastSync maps collection name to its last successful preload time.
	LastSync map[Collection]*time.Time `json:"last_sync"`

	PendingOperations int `json:"pending_operations"`
	FailedOperations  int `json:"failed_operations"`

	// ApproxSizeKB estimates the serialized size of all cached rows.
	ApproxSizeKB float64 `json:"approx_size_kb"`
}

// EmptyCacheStats returns the zeroed snapshot used when stats collection
// fails partway.
func EmptyCacheStats() *CacheStats {
	stats := &CacheStats{
		Collections: make(map[Collection]int),
		LastSync:    make(map[Collection]*time.Time),
	}
	for _, c := range RegisteredCollections() {
		stats.Collections[c] = 0
		stats.LastSync[c] = nil
	}
	return stats
}

// HealthReport summarizes cache health for the diagnostics UI.
type HealthReport struct {
	Healthy bool     `json:"healthy"`
	Issues  []string `json:"issues"`
}

// SyncReport is the outcome of one pending-operation replay run.
type SyncReport struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// CleanupReport is the outcome of one old-data sweep.
type CleanupReport struct {
	TombstonesRemoved int `json:"tombstones_removed"`
	OperationsRemoved int `json:"operations_removed"`

	// FailedRetained counts aged operations kept because they are in the
	// failed state and need an explicit operator discard.
	FailedRetained int `json:"failed_retained"`
}
