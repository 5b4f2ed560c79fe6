package gesture

import (
	"sync"
	"time"
)

type pendingRecord struct {
	sentAt   time.Time
	deadline time.Time
}

type expiredFrame struct {
	frameID string
	age     time.Duration
}

// pendingTracker records dispatched frames until a matching result arrives or
// the timeout evicts them. Eviction only forgets; it never retries.
type pendingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	records map[string]pendingRecord
}

func newPendingTracker(timeout time.Duration) *pendingTracker {
	return &pendingTracker{
		timeout: timeout,
		records: make(map[string]pendingRecord),
	}
}

func (t *pendingTracker) Add(frameID string, sentAt time.Time) {
	t.mu.Lock()
	t.records[frameID] = pendingRecord{sentAt: sentAt, deadline: sentAt.Add(t.timeout)}
	t.mu.Unlock()
}

// Resolve removes the record for frameID and returns the round-trip latency.
// Results may arrive in any order relative to sends; the id is the only
// correlation.
func (t *pendingTracker) Resolve(frameID string, now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, ok := t.records[frameID]
	if !ok {
		return 0, false
	}
	delete(t.records, frameID)
	return now.Sub(record.sentAt), true
}

// Sweep evicts every record past its deadline and returns the evicted ids.
func (t *pendingTracker) Sweep(now time.Time) []expiredFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []expiredFrame
	for frameID, record := range t.records {
		if now.After(record.deadline) {
			expired = append(expired, expiredFrame{frameID: frameID, age: now.Sub(record.sentAt)})
			delete(t.records, frameID)
		}
	}
	return expired
}

func (t *pendingTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *pendingTracker) Clear() {
	t.mu.Lock()
	t.records = make(map[string]pendingRecord)
	t.mu.Unlock()
}
