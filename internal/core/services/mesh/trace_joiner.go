package mesh

import (
	"github.com/sirupsen/logrus"

	"meshconsolidator/internal/core/domain/mesh"
	apperrors "meshconsolidator/internal/errors"
)

// LogIndex indexes correlated log traces by traceId -> spanId for fast
// lookup by the Trace->Realtime Joiner.
type LogIndex map[string]map[string]mesh.StructuredLogTrace

// BuildLogIndex indexes every StructuredLogTrace across all requests.
func BuildLogIndex(requests []mesh.StructuredRequest) LogIndex {
	idx := make(LogIndex)
	for _, req := range requests {
		for _, trace := range req.Traces {
			if idx[trace.TraceID] == nil {
				idx[trace.TraceID] = make(map[string]mesh.StructuredLogTrace)
			}
			idx[trace.TraceID][trace.SpanID] = trace
		}
	}
	return idx
}

// TraceRealtimeJoiner builds RealtimeSamples from SERVER spans, enriched
// with the correlated access-log record and a live replica count (spec
// §4.G).
type TraceRealtimeJoiner struct {
	logger *logrus.Logger
}

func NewTraceRealtimeJoiner(logger *logrus.Logger) *TraceRealtimeJoiner {
	return &TraceRealtimeJoiner{logger: logger}
}

// Join builds one RealtimeSample per SERVER span in spans. replicas is
// keyed by uniqueServiceName.
func (j *TraceRealtimeJoiner) Join(spans []mesh.Span, logs LogIndex, replicas map[string]uint32) []mesh.RealtimeSample {
	samples := make([]mesh.RealtimeSample, 0, len(spans))
	for _, s := range spans {
		if s.Kind != mesh.SpanKindServer {
			continue
		}

		version := s.Tags.IstioCanonicalRevision
		if version == "" {
			version = mesh.NoneVersion
		}
		service := mesh.Service{
			ServiceName: s.Tags.IstioCanonicalService,
			Namespace:   s.Tags.IstioNamespace,
			Version:     version,
		}

		method, ok := mesh.ParseHTTPMethod(s.Tags.HTTPMethod)
		if !ok {
			err := apperrors.NewParseEnumError("unrecognized HTTP method on span", s.Tags.HTTPMethod)
			j.logger.WithField("span_id", s.SpanID).WithError(err).Warn("defaulting to GET for unparseable method tag")
			method = mesh.MethodGet
		}

		sample := mesh.RealtimeSample{
			UniqueServiceName:  service.UniqueServiceName(),
			UniqueEndpointName: service.UniqueServiceName() + "\t" + string(method) + "\t" + s.Tags.HTTPURL,
			Timestamp:          s.Timestamp / 1000,
			Method:             method,
			Service:            service,
			Latency:            s.Duration,
			Status:             s.Tags.HTTPStatusCode,
		}

		if count, ok := replicas[sample.UniqueServiceName]; ok {
			c := count
			sample.Replica = &c
		}

		if trace, ok := j.lookupLog(logs, s); ok {
			if trace.Request != nil {
				sample.RequestBody = trace.Request.Body
				sample.RequestContentType = trace.Request.ContentType
			}
			if trace.Response != nil {
				sample.ResponseBody = trace.Response.Body
				sample.ResponseContentType = trace.Response.ContentType
			}
		}

		samples = append(samples, sample)
	}
	return samples
}

// lookupLog resolves the log trace correlated with span s: first by the
// span's own id; if that's missing, or the found trace is a fallback match
// and the span has a parent, retry with the parent's id.
func (j *TraceRealtimeJoiner) lookupLog(logs LogIndex, s mesh.Span) (mesh.StructuredLogTrace, bool) {
	byID, ok := logs[s.TraceID]
	if !ok {
		return mesh.StructuredLogTrace{}, false
	}

	trace, found := byID[s.SpanID]
	if (!found || trace.IsFallback) && s.ParentID != nil {
		if parentTrace, ok := byID[*s.ParentID]; ok {
			return parentTrace, true
		}
	}
	return trace, found
}
