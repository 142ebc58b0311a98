package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meshconsolidator/internal/core/domain/mesh"
)

func strp(s string) *string { return &s }

func TestLogCorrelator_PrimaryMatchesReqRes(t *testing.T) {
	c := NewLogCorrelator()

	req := mesh.LogRecord{RequestID: "r1", TraceID: "t1", SpanID: "span-a", ParentSpanID: "", Type: mesh.LogRecordRequest, Timestamp: 100}
	res := mesh.LogRecord{RequestID: "r1", TraceID: "t1", SpanID: "span-b", ParentSpanID: "span-a", Type: mesh.LogRecordResponse, Timestamp: 200}

	perPod := c.Correlate([]mesh.LogRecord{req, res})
	require.Len(t, perPod["r1"], 1)

	trace := perPod["r1"][0]
	require.False(t, trace.IsFallback)
	require.Equal(t, "span-b", trace.SpanID)
	require.Equal(t, "span-a", trace.ParentSpanID)
	require.NotNil(t, trace.Request)
	require.NotNil(t, trace.Response)
}

func TestLogCorrelator_FallbackUsedWhenSentinelPresent(t *testing.T) {
	c := NewLogCorrelator()

	records := []mesh.LogRecord{
		{RequestID: "r1", TraceID: "t1", SpanID: "NO_ID", Type: mesh.LogRecordRequest, Timestamp: 100},
		{RequestID: "r1", TraceID: "t1", SpanID: "NO_ID", Type: mesh.LogRecordResponse, Timestamp: 150},
	}

	perPod := c.Correlate(records)
	require.Len(t, perPod["r1"], 1)
	require.True(t, perPod["r1"][0].IsFallback)
}

func TestLogCorrelator_FallbackEmptyStackOnResponseIsIgnored(t *testing.T) {
	c := NewLogCorrelator()

	records := []mesh.LogRecord{
		{RequestID: "r1", TraceID: "t1", SpanID: "NO_ID", Type: mesh.LogRecordResponse, Timestamp: 100},
	}

	perPod := c.Correlate(records)
	require.Empty(t, perPod["r1"])
}

func TestLogCorrelator_CombineSortsByRequestTimestamp(t *testing.T) {
	c := NewLogCorrelator()

	early := mesh.StructuredLogTrace{
		TraceID:  "t1",
		SpanID:   "span-early",
		Request:  &mesh.LogRecord{SpanID: "span-early", Timestamp: 100},
		Response: &mesh.LogRecord{SpanID: "span-early-res"},
	}
	late := mesh.StructuredLogTrace{
		TraceID:  "t1",
		SpanID:   "span-late",
		Request:  &mesh.LogRecord{SpanID: "span-late", Timestamp: 200},
		Response: &mesh.LogRecord{SpanID: "span-late-res"},
	}

	podA := map[string][]mesh.StructuredLogTrace{"r1": {late}}
	podB := map[string][]mesh.StructuredLogTrace{"r1": {early}}

	requests := c.Combine([]map[string][]mesh.StructuredLogTrace{podA, podB})
	require.Len(t, requests, 1)
	require.Equal(t, "r1", requests[0].RequestID)
	require.Len(t, requests[0].Traces, 2)
	require.Equal(t, "span-early", requests[0].Traces[0].SpanID)
	require.Equal(t, "span-late", requests[0].Traces[1].SpanID)
}

func TestLogCorrelator_CombineFillsMissingParentIDFromSiblingTrace(t *testing.T) {
	c := NewLogCorrelator()

	// Same span-id seen twice across pods: one copy carries a known
	// parent-span-id, the other is missing it and should be patched.
	known := mesh.StructuredLogTrace{
		TraceID:      "t1",
		SpanID:       "span-x",
		ParentSpanID: "span-parent",
		Request:      &mesh.LogRecord{SpanID: "span-x", Timestamp: 100},
		Response:     &mesh.LogRecord{SpanID: "span-x-res"},
	}
	missing := mesh.StructuredLogTrace{
		TraceID:      "t1",
		SpanID:       "span-x",
		ParentSpanID: "",
		Request:      &mesh.LogRecord{SpanID: "span-x", Timestamp: 100},
		Response:     &mesh.LogRecord{SpanID: "span-x-res-2"},
	}

	podA := map[string][]mesh.StructuredLogTrace{"r1": {known}}
	podB := map[string][]mesh.StructuredLogTrace{"r1": {missing}}

	requests := c.Combine([]map[string][]mesh.StructuredLogTrace{podA, podB})
	require.Len(t, requests, 1)
	for _, trace := range requests[0].Traces {
		require.Equal(t, "span-parent", trace.ParentSpanID)
	}
}
