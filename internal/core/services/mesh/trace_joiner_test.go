package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meshconsolidator/internal/core/domain/mesh"
)

func TestTraceRealtimeJoiner_JoinsBySpanID(t *testing.T) {
	j := NewTraceRealtimeJoiner(discardLogger())

	body := `{"ok":true}`
	ct := "application/json"
	logs := BuildLogIndex([]mesh.StructuredRequest{
		{
			RequestID: "r1",
			Traces: []mesh.StructuredLogTrace{
				{
					TraceID:    "t1",
					SpanID:     "s1",
					Request:    &mesh.LogRecord{Body: &body, ContentType: &ct},
					Response:   &mesh.LogRecord{},
					IsFallback: false,
				},
			},
		},
	})

	span := mesh.Span{
		TraceID: "t1", SpanID: "s1", Kind: mesh.SpanKindServer,
		Timestamp: 1_672_725_818_005_000, Duration: 1500,
		Tags: mesh.SpanTags{
			HTTPMethod:             "GET",
			HTTPURL:                "http://svc/a",
			HTTPStatusCode:         "200",
			IstioCanonicalService:  "svc",
			IstioNamespace:         "ns",
			IstioCanonicalRevision: "v1",
		},
	}

	samples := j.Join([]mesh.Span{span}, logs, map[string]uint32{"svc\tns\tv1": 2})
	require.Len(t, samples, 1)

	s := samples[0]
	require.Equal(t, int64(1500), s.Latency)
	require.Equal(t, int64(1_672_725_818_005), s.Timestamp)
	require.NotNil(t, s.Replica)
	require.Equal(t, uint32(2), *s.Replica)
	require.NotNil(t, s.RequestBody)
	require.Equal(t, body, *s.RequestBody)
	require.NotNil(t, s.RequestContentType)
	require.Equal(t, ct, *s.RequestContentType)
}

func TestTraceRealtimeJoiner_FallbackRetriesWithParentID(t *testing.T) {
	j := NewTraceRealtimeJoiner(discardLogger())

	parentBody := "parent-body"
	logs := BuildLogIndex([]mesh.StructuredRequest{
		{
			RequestID: "r1",
			Traces: []mesh.StructuredLogTrace{
				{TraceID: "t1", SpanID: "parent-span", Request: &mesh.LogRecord{Body: &parentBody}, IsFallback: true},
			},
		},
	})

	parentID := "parent-span"
	span := mesh.Span{
		TraceID: "t1", SpanID: "child-span", ParentID: &parentID, Kind: mesh.SpanKindServer,
		Tags: mesh.SpanTags{HTTPMethod: "GET", HTTPURL: "http://svc/a"},
	}

	samples := j.Join([]mesh.Span{span}, logs, nil)
	require.Len(t, samples, 1)
	require.NotNil(t, samples[0].RequestBody)
	require.Equal(t, parentBody, *samples[0].RequestBody)
}

func TestTraceRealtimeJoiner_SkipsNonServerSpans(t *testing.T) {
	j := NewTraceRealtimeJoiner(discardLogger())

	span := mesh.Span{TraceID: "t1", SpanID: "s1", Kind: mesh.SpanKindClient}
	samples := j.Join([]mesh.Span{span}, BuildLogIndex(nil), nil)
	require.Empty(t, samples)
}
