package mesh

import "context"

// TracingSource fetches span batches from the tracing backend. It abstracts
// the transport so the pipeline orchestrator depends only on this
// interface, not on a concrete Zipkin client.
type TracingSource interface {
	FetchTraces(ctx context.Context, endTsMs, lookBackMs uint64) ([][]Span, error)
}

// OrchestratorSource reads cluster topology and sidecar logs. It abstracts
// the Kubernetes-style orchestrator API so the pipeline orchestrator never
// depends on a concrete client implementation.
type OrchestratorSource interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	ListPodNames(ctx context.Context, namespace string) ([]string, error)
	GetReplicas(ctx context.Context, namespace string) ([]ReplicaCount, error)
	FetchPodLog(ctx context.Context, namespace, pod string) ([]string, error)
}
