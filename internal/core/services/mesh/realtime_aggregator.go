package mesh

import (
	"math"

	"meshconsolidator/internal/core/domain/mesh"
)

// RealtimeAggregator groups RealtimeSamples into CombinedRealtimeData rows
// (spec §4.E), deriving latency statistics, averaged replica counts, and
// merged request/response schemas via the SchemaInferencer.
type RealtimeAggregator struct {
	schemas *SchemaInferencer
}

func NewRealtimeAggregator(schemas *SchemaInferencer) *RealtimeAggregator {
	return &RealtimeAggregator{schemas: schemas}
}

type aggregateKey struct {
	uniqueEndpointName  string
	status              string
	requestContentType  string
	responseContentType string
}

// Aggregate groups samples by (uniqueEndpointName, status,
// requestContentType, responseContentType) — missing content-types count
// as "" — and reduces each group to one CombinedRealtimeData row. Group
// emission order follows first-seen order of the key.
func (a *RealtimeAggregator) Aggregate(samples []mesh.RealtimeSample) []mesh.CombinedRealtimeData {
	groups := make(map[aggregateKey][]mesh.RealtimeSample)
	var order []aggregateKey
	for _, s := range samples {
		k := aggregateKey{
			uniqueEndpointName:  s.UniqueEndpointName,
			status:              s.Status,
			requestContentType:  derefOrEmpty(s.RequestContentType),
			responseContentType: derefOrEmpty(s.ResponseContentType),
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}

	result := make([]mesh.CombinedRealtimeData, 0, len(order))
	for _, k := range order {
		result = append(result, a.aggregateGroup(groups[k]))
	}
	return result
}

// aggregateGroup reduces one non-empty group of samples. The first sample
// in the group serves as the prototype for service/namespace/version/
// method/status/content-types.
func (a *RealtimeAggregator) aggregateGroup(group []mesh.RealtimeSample) mesh.CombinedRealtimeData {
	proto := group[0]
	n := float64(len(group))

	var totalLatency int64
	var sumSquares float64
	var latestTimestamp int64
	var replicaSum float64
	requestBodies := make([]string, 0, len(group))
	responseBodies := make([]string, 0, len(group))

	for _, s := range group {
		totalLatency += s.Latency
		sumSquares += float64(s.Latency) * float64(s.Latency)
		if s.Timestamp > latestTimestamp {
			latestTimestamp = s.Timestamp
		}
		if s.Replica != nil {
			replicaSum += float64(*s.Replica)
		}
		if s.RequestBody != nil {
			requestBodies = append(requestBodies, *s.RequestBody)
		}
		if s.ResponseBody != nil {
			responseBodies = append(responseBodies, *s.ResponseBody)
		}
	}

	mean := round14(float64(totalLatency) / n)
	divBase := round14(sumSquares)
	cvNum := math.Sqrt(divBase/n - mean*mean)

	var cv float64
	if !math.IsNaN(cvNum) && !math.IsInf(cvNum, 0) && cvNum > 0 {
		cv = round14(cvNum / mean)
	}

	requestJSON, requestSchema := a.schemas.Infer(requestBodies)
	responseJSON, responseSchema := a.schemas.Infer(responseBodies)

	data := mesh.CombinedRealtimeData{
		UniqueServiceName:  proto.UniqueServiceName,
		UniqueEndpointName: proto.UniqueEndpointName,
		LatestTimestamp:    latestTimestamp,
		Method:             proto.Method,
		Service:            proto.Service.ServiceName,
		Namespace:          proto.Service.Namespace,
		Version:            proto.Service.Version,
		Latency: mesh.CombinedLatency{
			Mean:    mean,
			DivBase: divBase,
			CV:      cv,
		},
		Combined:            len(group),
		Status:              proto.Status,
		AvgReplica:          replicaSum / n,
		RequestContentType:  proto.RequestContentType,
		ResponseContentType: proto.ResponseContentType,
	}

	if requestJSON != "" {
		data.RequestBody = &requestJSON
		data.RequestSchema = &requestSchema
	}
	if responseJSON != "" {
		data.ResponseBody = &responseJSON
		data.ResponseSchema = &responseSchema
	}

	return data
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// round14 rounds x to 14 fractional decimal digits, nudging by a small
// epsilon first to counter floating-point representation error near
// rounding boundaries.
func round14(x float64) float64 {
	const epsilon = 0x1p-52 // float64 machine epsilon
	return math.Round((x+epsilon)*1e14) / 1e14
}
