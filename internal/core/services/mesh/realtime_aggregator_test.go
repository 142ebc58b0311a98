package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"meshconsolidator/internal/core/domain/mesh"
)

func TestRealtimeAggregator_LatencyStats(t *testing.T) {
	a := NewRealtimeAggregator(NewSchemaInferencer())

	samples := []mesh.RealtimeSample{
		{UniqueEndpointName: "ep", Status: "200", Service: mesh.Service{ServiceName: "svc", Namespace: "ns"}, Latency: 10, Timestamp: 1},
		{UniqueEndpointName: "ep", Status: "200", Service: mesh.Service{ServiceName: "svc", Namespace: "ns"}, Latency: 20, Timestamp: 2},
		{UniqueEndpointName: "ep", Status: "200", Service: mesh.Service{ServiceName: "svc", Namespace: "ns"}, Latency: 30, Timestamp: 3},
	}

	combined := a.Aggregate(samples)
	require.Len(t, combined, 1)

	row := combined[0]
	require.Equal(t, 3, row.Combined)
	require.Equal(t, int64(3), row.LatestTimestamp)
	require.InDelta(t, 20.0, row.Latency.Mean, 1e-9)
	require.InDelta(t, 1400.0, row.Latency.DivBase, 1e-9)

	wantCV := round14(math.Sqrt(1400.0/3-400.0) / 20.0)
	require.InDelta(t, wantCV, row.Latency.CV, 1e-9)
}

func TestRealtimeAggregator_GroupsByEndpointStatusAndContentTypes(t *testing.T) {
	a := NewRealtimeAggregator(NewSchemaInferencer())

	jsonCT := "application/json"
	samples := []mesh.RealtimeSample{
		{UniqueEndpointName: "ep", Status: "200", RequestContentType: &jsonCT, Latency: 5},
		{UniqueEndpointName: "ep", Status: "200", Latency: 7},
		{UniqueEndpointName: "ep", Status: "500", Latency: 9},
	}

	combined := a.Aggregate(samples)
	require.Len(t, combined, 3)
}

func TestRealtimeAggregator_CVZeroWhenNumeratorNonPositive(t *testing.T) {
	a := NewRealtimeAggregator(NewSchemaInferencer())

	samples := []mesh.RealtimeSample{
		{UniqueEndpointName: "ep", Status: "200", Latency: 42},
		{UniqueEndpointName: "ep", Status: "200", Latency: 42},
	}

	combined := a.Aggregate(samples)
	require.Len(t, combined, 1)
	require.Equal(t, 0.0, combined[0].Latency.CV)
}

func TestRealtimeAggregator_MergesBodiesIntoSchema(t *testing.T) {
	a := NewRealtimeAggregator(NewSchemaInferencer())

	bodyA := `{"a":1}`
	bodyB := `{"b":2}`
	samples := []mesh.RealtimeSample{
		{UniqueEndpointName: "ep", Status: "200", Latency: 1, RequestBody: &bodyA},
		{UniqueEndpointName: "ep", Status: "200", Latency: 2, RequestBody: &bodyB},
	}

	combined := a.Aggregate(samples)
	require.Len(t, combined, 1)
	require.NotNil(t, combined[0].RequestBody)
	require.NotNil(t, combined[0].RequestSchema)
	require.Contains(t, *combined[0].RequestSchema, "type Root")
}
