package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meshconsolidator/internal/core/domain/mesh"
)

func TestDedupCache_FiltersRepeatTraceOnlyOnce(t *testing.T) {
	c := NewDedupCache()

	group := []mesh.Span{{TraceID: "t1", Timestamp: 1_000_000}}

	kept, total, newCount := c.Filter([][]mesh.Span{group})
	require.Equal(t, 1, total)
	require.Equal(t, 1, newCount)
	require.Len(t, kept, 1)

	kept, total, newCount = c.Filter([][]mesh.Span{group})
	require.Equal(t, 1, total)
	require.Equal(t, 0, newCount)
	require.Empty(t, kept)
}

func TestDedupCache_EvictRemovesEntriesOlderThanTimeout(t *testing.T) {
	c := NewDedupCache()

	old := []mesh.Span{{TraceID: "old", Timestamp: 0}}
	recent := []mesh.Span{{TraceID: "recent", Timestamp: 900_000}} // 900ms -> ingested at 900ms

	c.Filter([][]mesh.Span{old, recent})
	require.Equal(t, 2, c.Len())

	c.Evict(500, 1000) // now=1000ms, timeout=500ms: old(age 1000) evicted, recent(age 100) kept
	require.Equal(t, 1, c.Len())
}

func TestDedupCache_FilterSkipsEmptyGroups(t *testing.T) {
	c := NewDedupCache()

	kept, total, newCount := c.Filter([][]mesh.Span{{}})
	require.Equal(t, 1, total)
	require.Equal(t, 0, newCount)
	require.Empty(t, kept)
}
