package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meshconsolidator/internal/core/domain/mesh"
)

func idPtr(s string) *string { return &s }

func TestDependencyReconstructor_TransparentClientHop(t *testing.T) {
	d := NewDependencyReconstructor(NewURLExploder(), discardLogger())

	root := mesh.Span{
		TraceID: "t1", SpanID: "s1", Kind: mesh.SpanKindServer, Name: "svcA.ns.svc.cluster.local",
		Tags: mesh.SpanTags{HTTPURL: "http://svcA.ns.svc.cluster.local/a", HTTPMethod: "GET"},
	}
	client := mesh.Span{
		TraceID: "t1", SpanID: "c1", ParentID: idPtr("s1"), Kind: mesh.SpanKindClient, Name: "svcB.ns.svc.cluster.local",
		Tags: mesh.SpanTags{HTTPURL: "http://svcB.ns.svc.cluster.local/b", HTTPMethod: "GET"},
	}
	downstream := mesh.Span{
		TraceID: "t1", SpanID: "s2", ParentID: idPtr("c1"), Kind: mesh.SpanKindServer, Name: "svcB.ns.svc.cluster.local",
		Tags: mesh.SpanTags{HTTPURL: "http://svcB.ns.svc.cluster.local/b", HTTPMethod: "GET"},
	}

	deps := d.Reconstruct([]mesh.Span{root, client, downstream})
	require.Len(t, deps, 2)

	byURL := make(map[string]mesh.EndpointDependency)
	for _, dep := range deps {
		byURL[dep.Endpoint.URL] = dep
	}

	rootDep := byURL["http://svcA.ns.svc.cluster.local/a"]
	require.Len(t, rootDep.DependingOn, 1)
	require.Empty(t, rootDep.DependingBy)
	require.Equal(t, uint32(1), rootDep.DependingOn[0].Distance)
	require.Equal(t, mesh.EndpointDependencyServer, rootDep.DependingOn[0].Type)

	downstreamDep := byURL["http://svcB.ns.svc.cluster.local/b"]
	require.Len(t, downstreamDep.DependingBy, 1)
	require.Empty(t, downstreamDep.DependingOn)
	require.Equal(t, uint32(1), downstreamDep.DependingBy[0].Distance)
	require.Equal(t, mesh.EndpointDependencyClient, downstreamDep.DependingBy[0].Type)
}

func TestDependencyReconstructor_IstioTagFallbackWhenNameLacksSvc(t *testing.T) {
	d := NewDependencyReconstructor(NewURLExploder(), discardLogger())

	span := mesh.Span{
		TraceID: "t1", SpanID: "s1", Kind: mesh.SpanKindServer, Name: "opaque-span-name",
		Tags: mesh.SpanTags{
			HTTPURL:                "http://10.0.0.1/a",
			HTTPMethod:             "POST",
			IstioCanonicalService:  "svc-from-tag",
			IstioNamespace:         "ns-from-tag",
			IstioCanonicalRevision: "v2",
			IstioMeshID:            "mesh-from-tag",
		},
	}

	deps := d.Reconstruct([]mesh.Span{span})
	require.Len(t, deps, 1)
	require.Equal(t, "svc-from-tag", deps[0].Endpoint.Service.ServiceName)
	require.Equal(t, "ns-from-tag", deps[0].Endpoint.Service.Namespace)
	require.Equal(t, "v2", deps[0].Endpoint.Service.Version)
	require.Equal(t, "mesh-from-tag", deps[0].Endpoint.ClusterName)
}

func TestMergeDependencies_DedupsByEndpointAndDistance(t *testing.T) {
	ep := mesh.EndpointInfo{
		Service: mesh.Service{ServiceName: "svc", Namespace: "ns", Version: "NONE"},
		URL:     "http://svc/a",
		Method:  mesh.MethodGet,
	}
	item := mesh.EndpointDependencyItem{
		Endpoint: mesh.EndpointInfo{Service: mesh.Service{ServiceName: "other", Namespace: "ns", Version: "NONE"}, URL: "http://other/b", Method: mesh.MethodGet},
		Distance: 1,
		Type:     mesh.EndpointDependencyServer,
	}

	a := []mesh.EndpointDependency{{Endpoint: ep, DependingOn: []mesh.EndpointDependencyItem{item}}}
	b := []mesh.EndpointDependency{{Endpoint: ep, DependingOn: []mesh.EndpointDependencyItem{item}}}

	merged := MergeDependencies(a, b)
	require.Len(t, merged, 1)
	require.Len(t, merged[0].DependingOn, 1)
}
