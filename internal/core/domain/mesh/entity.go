// Package mesh holds the domain model for the service-mesh telemetry
// consolidator: distributed-tracing spans, sidecar access-log records, and
// the derived artifacts (combined realtime data, endpoint dependencies,
// endpoint data types) returned to the upstream analytics service.
package mesh

import (
	"strconv"
	"strings"
)

// Service identifies one deployable service revision in the mesh.
type Service struct {
	ServiceName string `json:"service"`
	Namespace   string `json:"namespace"`
	Version     string `json:"version"`
}

// NoneVersion is substituted whenever a version string is missing.
const NoneVersion = "NONE"

// UniqueServiceName is the tab-joined composite key used across the pipeline
// in place of structural identity: service \t namespace \t version.
func (s Service) UniqueServiceName() string {
	version := s.Version
	if version == "" {
		version = NoneVersion
	}
	return s.ServiceName + "\t" + s.Namespace + "\t" + version
}

// HTTPMethod enumerates the nine HTTP verbs the original mesh tracer
// recognizes on an endpoint.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodPatch   HTTPMethod = "PATCH"
	MethodDelete  HTTPMethod = "DELETE"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodConnect HTTPMethod = "CONNECT"
	MethodTrace   HTTPMethod = "TRACE"
)

// ParseHTTPMethod parses a case-insensitive method token, matching the
// tracer's own case-insensitive matching of access-log request lines.
func ParseHTTPMethod(raw string) (HTTPMethod, bool) {
	switch strings.ToUpper(raw) {
	case string(MethodGet):
		return MethodGet, true
	case string(MethodPost):
		return MethodPost, true
	case string(MethodPut):
		return MethodPut, true
	case string(MethodPatch):
		return MethodPatch, true
	case string(MethodDelete):
		return MethodDelete, true
	case string(MethodHead):
		return MethodHead, true
	case string(MethodOptions):
		return MethodOptions, true
	case string(MethodConnect):
		return MethodConnect, true
	case string(MethodTrace):
		return MethodTrace, true
	default:
		return "", false
	}
}

// SpanKind is the Zipkin v2 span kind. Only CLIENT and SERVER participate in
// dependency reconstruction; the rest pass through untouched.
type SpanKind string

const (
	SpanKindClient   SpanKind = "CLIENT"
	SpanKindServer   SpanKind = "SERVER"
	SpanKindProducer SpanKind = "PRODUCER"
	SpanKindConsumer SpanKind = "CONSUMER"
)

// EndpointInfo describes one HTTP endpoint exposed by a service.
type EndpointInfo struct {
	Service     Service    `json:"service"`
	URL         string     `json:"url"`
	Host        string     `json:"host"`
	Path        string     `json:"path"`
	Port        string     `json:"port"`
	Method      HTTPMethod `json:"method"`
	ClusterName string     `json:"clusterName"`
	Label       *string    `json:"label,omitempty"`
}

// DefaultPort is substituted whenever the exploded URL has no port segment.
const DefaultPort = "80"

// UniqueEndpointName is uniqueServiceName \t METHOD \t URL.
func (e EndpointInfo) UniqueEndpointName() string {
	return e.Service.UniqueServiceName() + "\t" + string(e.Method) + "\t" + e.URL
}

// SpanTags carries the subset of Zipkin binary annotations the pipeline
// reads off a span, using the exact serde-style key names the istio sidecar
// emits (guid:x-request-id, istio.canonical_service, ...).
type SpanTags struct {
	RequestID              string `json:"guid:x-request-id"`
	HTTPMethod             string `json:"http.method"`
	HTTPProtocol           string `json:"http.protocol"`
	HTTPStatusCode         string `json:"http.status_code"`
	HTTPURL                string `json:"http.url"`
	IstioCanonicalRevision string `json:"istio.canonical_revision"`
	IstioCanonicalService  string `json:"istio.canonical_service"`
	IstioMeshID            string `json:"istio.mesh_id"`
	IstioNamespace         string `json:"istio.namespace"`
	NodeID                 string `json:"node_id"`
	PeerAddress            string `json:"peer.address"`
	RequestSize            string `json:"request_size"`
	ResponseFlags          string `json:"response_flags"`
	ResponseSize           string `json:"response_size"`
	UpstreamCluster        string `json:"upstream_cluster"`
	UpstreamClusterName    string `json:"upstream_cluster.name"`
	UserAgent              string `json:"user_agent"`
}

// Span is one Zipkin v2 span as returned by the tracing-backend client.
type Span struct {
	TraceID   string   `json:"traceId"`
	SpanID    string   `json:"id"`
	ParentID  *string  `json:"parentId,omitempty"`
	Kind      SpanKind `json:"kind"`
	Name      string   `json:"name"`
	Timestamp int64    `json:"timestamp"` // microseconds since epoch
	Duration  int64    `json:"duration"`  // microseconds
	Tags      SpanTags `json:"tags"`
}

// LogRecordType distinguishes a parsed access-log line as the request or
// response half of an HTTP exchange.
type LogRecordType string

const (
	LogRecordRequest  LogRecordType = "Req"
	LogRecordResponse LogRecordType = "Res"
)

// LogRecord is one sidecar access-log line, parsed.
type LogRecord struct {
	Namespace     string
	PodName       string
	RequestID     string
	TraceID       string
	SpanID        string
	ParentSpanID  string
	Type          LogRecordType
	Timestamp     int64 // ms since epoch
	Body          *string
	ContentType   *string
	Status        *string
	Method        *string
	Path          *string
}

// SentinelNoID is the span-id value that, when observed anywhere in a batch,
// forces the Log Correlator into its stack-based fallback mode.
const SentinelNoID = "NO_ID"

// StructuredLogTrace is one matched Req/Res pair produced by the correlator.
type StructuredLogTrace struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Request      *LogRecord
	Response     *LogRecord
	IsFallback   bool
}

// StructuredRequest groups every StructuredLogTrace sharing a request-id,
// ordered by request timestamp ascending.
type StructuredRequest struct {
	RequestID string
	Traces    []StructuredLogTrace
}

// RealtimeSample is one per-request endpoint observation produced by the
// Trace->Realtime Joiner, ready for aggregation.
type RealtimeSample struct {
	UniqueServiceName   string
	UniqueEndpointName  string
	Timestamp           int64 // ms since epoch
	Method              HTTPMethod
	Service             Service
	Latency             int64 // microseconds
	Status              string
	RequestBody         *string
	RequestContentType  *string
	ResponseBody        *string
	ResponseContentType *string
	Replica             *uint32
}

// CombinedLatency holds the statistical summary of a group of latencies.
type CombinedLatency struct {
	Mean    float64 `json:"mean"`
	DivBase float64 `json:"divBase"`
	CV      float64 `json:"cv"`
}

// CombinedRealtimeData is one aggregated (endpoint, status, content-types)
// group emitted by the Realtime Aggregator.
type CombinedRealtimeData struct {
	UniqueServiceName   string          `json:"uniqueServiceName"`
	UniqueEndpointName  string          `json:"uniqueEndpointName"`
	LatestTimestamp     int64           `json:"latestTimestamp"`
	Method              HTTPMethod      `json:"method"`
	Service             string          `json:"service"`
	Namespace           string          `json:"namespace"`
	Version             string          `json:"version"`
	Latency             CombinedLatency `json:"latency"`
	Combined            int             `json:"combined"`
	Status              string          `json:"status"`
	RequestBody         *string         `json:"requestBody,omitempty"`
	RequestSchema       *string         `json:"requestSchema,omitempty"`
	RequestContentType  *string         `json:"requestContentType,omitempty"`
	ResponseBody        *string         `json:"responseBody,omitempty"`
	ResponseSchema      *string         `json:"responseSchema,omitempty"`
	ResponseContentType *string         `json:"responseContentType,omitempty"`
	AvgReplica          float64         `json:"avgReplica"`
}

// EndpointDependencyType distinguishes the direction of an edge: Client marks
// a "dependingBy" item, whose referenced endpoint is upstream and calls this
// one; Server marks a "dependingOn" item, whose referenced endpoint is
// downstream of this one.
type EndpointDependencyType string

const (
	EndpointDependencyClient EndpointDependencyType = "Client"
	EndpointDependencyServer EndpointDependencyType = "Server"
)

// EndpointDependencyItem is one edge in the dependency graph: a referenced
// endpoint, its distance (count of SERVER hops), and the edge's direction.
type EndpointDependencyItem struct {
	Endpoint EndpointInfo            `json:"endpoint"`
	Distance uint32                  `json:"distance"`
	Type     EndpointDependencyType  `json:"type"`
}

// DependencyItemKey is the uniqueness key within a dependingOn/dependingBy
// list: uniqueEndpointName \t distance.
func DependencyItemKey(item EndpointDependencyItem) string {
	return item.Endpoint.UniqueEndpointName() + "\t" + strconv.FormatUint(uint64(item.Distance), 10)
}

// EndpointDependency is one endpoint plus its upstream/downstream edges.
type EndpointDependency struct {
	ID          *string                  `json:"_id,omitempty"`
	Endpoint    EndpointInfo             `json:"endpoint"`
	DependingOn []EndpointDependencyItem `json:"dependingOn"`
	DependingBy []EndpointDependencyItem `json:"dependingBy"`
}

// ReplicaCount is the live pod count for one service, as reported by the
// orchestrator API client.
type ReplicaCount struct {
	UniqueServiceName string `json:"uniqueServiceName"`
	Service           string `json:"service"`
	Namespace         string `json:"namespace"`
	Version           string `json:"version"`
	Replicas          uint32 `json:"replicas"`
}

// EndpointDataSchema is one observed status/schema entry for an endpoint.
type EndpointDataSchema struct {
	Status              string  `json:"status"`
	Time                int64   `json:"time"` // seconds since epoch
	RequestBody         *string `json:"requestBody,omitempty"`
	RequestContentType  *string `json:"requestContentType,omitempty"`
	RequestSchema       *string `json:"requestSchema,omitempty"`
	ResponseBody        *string `json:"responseBody,omitempty"`
	ResponseContentType *string `json:"responseContentType,omitempty"`
	ResponseSchema      *string `json:"responseSchema,omitempty"`
}

// EndpointDataType is the structural schema history carried for one
// endpoint. The pipeline always emits exactly one schema entry per request
// (spec.md §4.I step 9); accumulation across requests is the upstream
// analytics service's job, matching the Non-goal "serving queries over
// history".
type EndpointDataType struct {
	UniqueServiceName  string               `json:"uniqueServiceName"`
	UniqueEndpointName string               `json:"uniqueEndpointName"`
	Service            string               `json:"service"`
	Namespace          string               `json:"namespace"`
	Version            string               `json:"version"`
	Method             HTTPMethod           `json:"method"`
	Schemas            []EndpointDataSchema `json:"schemas"`
}

// RequestPackage is the body of POST /.
type RequestPackage struct {
	UniqueID    string                `json:"uniqueId"`
	LookBack    uint64                `json:"lookBack"`
	Time        uint64                `json:"time"`
	ExistingDep []EndpointDependency  `json:"existingDep,omitempty"`
}

// ResponsePackage is the JSON body returned on a successful POST /.
type ResponsePackage struct {
	UniqueID     string                  `json:"uniqueId"`
	Combined     []CombinedRealtimeData  `json:"combined"`
	Dependencies []EndpointDependency    `json:"dependencies"`
	Datatype     []EndpointDataType      `json:"datatype"`
	Log          string                  `json:"log"`
}
