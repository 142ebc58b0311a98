package mesh

import (
	"strings"

	"github.com/sirupsen/logrus"

	"meshconsolidator/internal/core/domain/mesh"
	apperrors "meshconsolidator/internal/errors"
)

// DependencyReconstructor builds endpoint dependency graphs from flat span
// batches (spec §4.F): for every SERVER span it walks the parent chain,
// treating non-SERVER spans (CLIENT in particular) as transparent hops,
// until the next SERVER ancestor is reached.
type DependencyReconstructor struct {
	urlExploder *URLExploder
	logger      *logrus.Logger
}

func NewDependencyReconstructor(urlExploder *URLExploder, logger *logrus.Logger) *DependencyReconstructor {
	return &DependencyReconstructor{urlExploder: urlExploder, logger: logger}
}

// Reconstruct groups spans by trace and builds one EndpointDependency per
// SERVER span.
func (d *DependencyReconstructor) Reconstruct(spans []mesh.Span) []mesh.EndpointDependency {
	byTrace := make(map[string][]mesh.Span)
	var traceOrder []string
	for _, s := range spans {
		if _, ok := byTrace[s.TraceID]; !ok {
			traceOrder = append(traceOrder, s.TraceID)
		}
		byTrace[s.TraceID] = append(byTrace[s.TraceID], s)
	}

	var result []mesh.EndpointDependency
	for _, traceID := range traceOrder {
		result = append(result, d.reconstructTrace(byTrace[traceID])...)
	}
	return result
}

func (d *DependencyReconstructor) reconstructTrace(spans []mesh.Span) []mesh.EndpointDependency {
	byID := make(map[string]*mesh.Span, len(spans))
	for i := range spans {
		byID[spans[i].SpanID] = &spans[i]
	}

	upper := make(map[string]map[string]uint32) // SERVER span-id -> ancestor span-id -> distance
	lower := make(map[string]map[string]uint32) // SERVER span-id -> descendant span-id -> distance

	var serverIDs []string
	for i := range spans {
		s := &spans[i]
		if s.Kind != mesh.SpanKindServer {
			continue
		}
		serverIDs = append(serverIDs, s.SpanID)

		depth := uint32(1)
		current := s
		for current.ParentID != nil {
			parent, ok := byID[*current.ParentID]
			if !ok {
				break
			}
			if parent.Kind == mesh.SpanKindServer {
				if upper[s.SpanID] == nil {
					upper[s.SpanID] = make(map[string]uint32)
				}
				upper[s.SpanID][parent.SpanID] = depth
				if lower[parent.SpanID] == nil {
					lower[parent.SpanID] = make(map[string]uint32)
				}
				lower[parent.SpanID][s.SpanID] = depth
				depth++
			}
			current = parent
		}
	}

	result := make([]mesh.EndpointDependency, 0, len(serverIDs))
	for _, spanID := range serverIDs {
		s := byID[spanID]
		endpoint := d.endpointInfoFromSpan(s)

		dependingBy := make([]mesh.EndpointDependencyItem, 0, len(upper[spanID]))
		for ancestorID, distance := range upper[spanID] {
			dependingBy = append(dependingBy, mesh.EndpointDependencyItem{
				Endpoint: d.endpointInfoFromSpan(byID[ancestorID]),
				Distance: distance,
				Type:     mesh.EndpointDependencyClient,
			})
		}

		dependingOn := make([]mesh.EndpointDependencyItem, 0, len(lower[spanID]))
		for descendantID, distance := range lower[spanID] {
			dependingOn = append(dependingOn, mesh.EndpointDependencyItem{
				Endpoint: d.endpointInfoFromSpan(byID[descendantID]),
				Distance: distance,
				Type:     mesh.EndpointDependencyServer,
			})
		}

		result = append(result, mesh.EndpointDependency{
			Endpoint:    endpoint,
			DependingOn: dependingOn,
			DependingBy: dependingBy,
		})
	}
	return result
}

// endpointInfoFromSpan computes an EndpointInfo for the endpoint a span
// represents: host/path/port from its http.url tag, and service/namespace/
// cluster from exploding its name as a service DNS name — falling back to
// the span's istio tags when the name doesn't carry the expected
// "<svc>.<ns>.svc." shape.
func (d *DependencyReconstructor) endpointInfoFromSpan(s *mesh.Span) mesh.EndpointInfo {
	urlParts := d.urlExploder.Explode(s.Tags.HTTPURL, false)
	nameParts := d.urlExploder.Explode(s.Name, true)

	serviceName := nameParts.ServiceName
	namespace := nameParts.Namespace
	clusterName := nameParts.ClusterName
	if !strings.Contains(s.Name, ".svc.") {
		serviceName = s.Tags.IstioCanonicalService
		namespace = s.Tags.IstioNamespace
		clusterName = s.Tags.IstioMeshID
	}

	version := s.Tags.IstioCanonicalRevision
	if version == "" {
		version = mesh.NoneVersion
	}

	method, ok := mesh.ParseHTTPMethod(s.Tags.HTTPMethod)
	if !ok {
		err := apperrors.NewParseEnumError("unrecognized HTTP method on span", s.Tags.HTTPMethod)
		d.logger.WithField("span_id", s.SpanID).WithError(err).Warn("defaulting to GET for unparseable method tag")
		method = mesh.MethodGet
	}

	port := urlParts.Port
	if port == "" {
		port = mesh.DefaultPort
	}

	return mesh.EndpointInfo{
		Service: mesh.Service{
			ServiceName: serviceName,
			Namespace:   namespace,
			Version:     version,
		},
		URL:         s.Tags.HTTPURL,
		Host:        urlParts.Host,
		Path:        urlParts.Path,
		Port:        port,
		Method:      method,
		ClusterName: clusterName,
	}
}

// MergeDependencies combines two dependency lists for the same set of
// endpoints, matching by uniqueEndpointName. Within each endpoint's
// dependingOn/dependingBy, items are deduplicated by
// "uniqueEndpointName\tdistance" with first occurrence winning.
func MergeDependencies(a, b []mesh.EndpointDependency) []mesh.EndpointDependency {
	byEndpoint := make(map[string]*mesh.EndpointDependency)
	var order []string

	merge := func(deps []mesh.EndpointDependency) {
		for _, dep := range deps {
			key := dep.Endpoint.UniqueEndpointName()
			existing, ok := byEndpoint[key]
			if !ok {
				d := dep
				byEndpoint[key] = &d
				order = append(order, key)
				continue
			}
			existing.DependingOn = dedupItems(existing.DependingOn, dep.DependingOn)
			existing.DependingBy = dedupItems(existing.DependingBy, dep.DependingBy)
		}
	}

	merge(a)
	merge(b)

	result := make([]mesh.EndpointDependency, 0, len(order))
	for _, key := range order {
		result = append(result, *byEndpoint[key])
	}
	return result
}

func dedupItems(existing, incoming []mesh.EndpointDependencyItem) []mesh.EndpointDependencyItem {
	seen := make(map[string]bool, len(existing))
	result := make([]mesh.EndpointDependencyItem, 0, len(existing)+len(incoming))
	for _, item := range existing {
		key := mesh.DependencyItemKey(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}
	for _, item := range incoming {
		key := mesh.DependencyItemKey(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}
	return result
}
