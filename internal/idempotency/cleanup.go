// Package idempotency provides cleanup utilities for idempotency records.
package idempotency

import (
	"log/slog"
	"time"
)

// RunPeriodicCleanup removes expired in-memory idempotency records at the
// given interval. Redis-backed records expire on their own via key TTLs.
// This function blocks and should typically be run in a goroutine; it returns
// when stopChan is closed.
//
// Example usage:
//
//	stopChan := make(chan struct{})
//	go idempotency.RunPeriodicCleanup(store, time.Minute, stopChan)
//	// ... later when shutting down
//	close(stopChan)
func RunPeriodicCleanup(store *InMemoryStore, interval time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if deleted := store.DeleteExpired(); deleted > 0 {
				slog.Info("cleaned up expired idempotency records", "deleted", deleted)
			}
		case <-stopChan:
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
