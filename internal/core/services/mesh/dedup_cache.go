package mesh

import (
	"sync"

	"meshconsolidator/internal/core/domain/mesh"
)

// DedupCache is the process-wide mapping traceId -> ingestion-time-ms used
// to drop traces already seen by a previous request (spec §4.H). It is
// guarded by a single exclusive lock, held only for the duration of the
// filter-and-insert or evict critical section — never across I/O.
type DedupCache struct {
	mu       sync.RWMutex
	ingested map[string]int64
}

func NewDedupCache() *DedupCache {
	return &DedupCache{ingested: make(map[string]int64)}
}

// Filter keeps a span-group (the full span list for one trace) iff it is
// non-empty and its first span's trace-id has not already been ingested.
// On keep, it records (traceId, firstSpan.timestampµs/1000) as the
// ingestion time. groups is a batch of per-trace span lists.
func (c *DedupCache) Filter(groups [][]mesh.Span) (kept [][]mesh.Span, total, newCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total = len(groups)
	kept = make([][]mesh.Span, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		traceID := group[0].TraceID
		if _, seen := c.ingested[traceID]; seen {
			continue
		}
		c.ingested[traceID] = group[0].Timestamp / 1000
		kept = append(kept, group)
		newCount++
	}
	return kept, total, newCount
}

// Evict removes entries whose age exceeds timeoutMs, measured against
// nowMs.
func (c *DedupCache) Evict(timeoutMs, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for traceID, ingestedAt := range c.ingested {
		if nowMs-ingestedAt > timeoutMs {
			delete(c.ingested, traceID)
		}
	}
}

// Len reports the number of entries currently tracked. Intended for tests
// and metrics, not the pipeline's control flow.
func (c *DedupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ingested)
}
