package mesh

import (
	"sort"

	"meshconsolidator/internal/core/domain/mesh"
)

// LogCorrelator combines per-pod batches of parsed LogRecords into
// per-request StructuredRequests (spec §4.C).
type LogCorrelator struct{}

func NewLogCorrelator() *LogCorrelator {
	return &LogCorrelator{}
}

type correlatorGroupKey struct {
	requestID string
	traceID   string
}

// Correlate matches Req/Res pairs within one pod's flat batch of
// LogRecords and returns the resulting traces grouped by request-id. It
// uses the primary span-parent matching algorithm unless the batch
// contains the sentinel span-id NO_ID anywhere, in which case the whole
// batch is processed with the stack-based fallback instead.
func (c *LogCorrelator) Correlate(records []mesh.LogRecord) map[string][]mesh.StructuredLogTrace {
	for _, r := range records {
		if r.SpanID == mesh.SentinelNoID {
			return c.correlateFallback(records)
		}
	}
	return c.correlatePrimary(records)
}

func (c *LogCorrelator) correlatePrimary(records []mesh.LogRecord) map[string][]mesh.StructuredLogTrace {
	groups := make(map[correlatorGroupKey]map[string]mesh.LogRecord)
	for _, r := range records {
		k := correlatorGroupKey{r.RequestID, r.TraceID}
		if groups[k] == nil {
			groups[k] = make(map[string]mesh.LogRecord)
		}
		groups[k][r.SpanID] = r
	}

	result := make(map[string][]mesh.StructuredLogTrace)
	for k, group := range groups {
		for _, rec := range group {
			if rec.Type != mesh.LogRecordResponse || rec.ParentSpanID == "" {
				continue
			}
			reqRec, ok := group[rec.ParentSpanID]
			if !ok || reqRec.Type != mesh.LogRecordRequest {
				continue
			}
			req, res := reqRec, rec
			result[k.requestID] = append(result[k.requestID], mesh.StructuredLogTrace{
				TraceID:      k.traceID,
				SpanID:       res.SpanID,
				ParentSpanID: res.ParentSpanID,
				Request:      &req,
				Response:     &res,
				IsFallback:   false,
			})
		}
	}
	return result
}

func (c *LogCorrelator) correlateFallback(records []mesh.LogRecord) map[string][]mesh.StructuredLogTrace {
	groups := make(map[correlatorGroupKey][]mesh.LogRecord)
	var order []correlatorGroupKey
	for _, r := range records {
		if r.RequestID == "" {
			continue
		}
		k := correlatorGroupKey{r.RequestID, r.TraceID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	result := make(map[string][]mesh.StructuredLogTrace)
	for _, k := range order {
		var stack []mesh.LogRecord
		for _, rec := range groups[k] {
			switch rec.Type {
			case mesh.LogRecordRequest:
				stack = append(stack, rec)
			case mesh.LogRecordResponse:
				if len(stack) == 0 {
					continue
				}
				req := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				res := rec
				result[k.requestID] = append(result[k.requestID], mesh.StructuredLogTrace{
					TraceID:      k.traceID,
					SpanID:       req.SpanID,
					ParentSpanID: req.ParentSpanID,
					Request:      &req,
					Response:     &res,
					IsFallback:   true,
				})
			}
		}
	}
	return result
}

type correlatorSpanKey struct {
	requestID string
	spanID    string
}

// Combine merges per-pod correlation results (as returned by Correlate)
// into StructuredRequests: traces sharing a request-id are concatenated
// across pods, each request's traces are sorted by request timestamp
// ascending, and any trace whose parent-span-id is known elsewhere in the
// same request (via another trace's own span-id) is patched to that
// value.
func (c *LogCorrelator) Combine(perPod []map[string][]mesh.StructuredLogTrace) []mesh.StructuredRequest {
	merged := make(map[string][]mesh.StructuredLogTrace)
	var order []string
	for _, pod := range perPod {
		for requestID, traces := range pod {
			if _, ok := merged[requestID]; !ok {
				order = append(order, requestID)
			}
			merged[requestID] = append(merged[requestID], traces...)
		}
	}

	parentBySpan := make(map[correlatorSpanKey]string)
	for requestID, traces := range merged {
		for _, t := range traces {
			if t.ParentSpanID != "" && t.ParentSpanID != mesh.SentinelNoID {
				parentBySpan[correlatorSpanKey{requestID, t.SpanID}] = t.ParentSpanID
			}
		}
	}

	requests := make([]mesh.StructuredRequest, 0, len(order))
	for _, requestID := range order {
		traces := merged[requestID]
		for i := range traces {
			if p, ok := parentBySpan[correlatorSpanKey{requestID, traces[i].SpanID}]; ok {
				traces[i].ParentSpanID = p
			}
		}
		sort.SliceStable(traces, func(i, j int) bool {
			return requestTimestamp(traces[i]) < requestTimestamp(traces[j])
		})
		requests = append(requests, mesh.StructuredRequest{
			RequestID: requestID,
			Traces:    traces,
		})
	}
	return requests
}

func requestTimestamp(t mesh.StructuredLogTrace) int64 {
	if t.Request != nil {
		return t.Request.Timestamp
	}
	return 0
}
