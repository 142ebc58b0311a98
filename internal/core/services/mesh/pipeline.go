package mesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"meshconsolidator/internal/core/domain/mesh"
)

// PipelineOrchestrator sequences the URL Exploder through Dedup Cache
// components for one request and assembles the response.
type PipelineOrchestrator struct {
	tracing      mesh.TracingSource
	orchestrator mesh.OrchestratorSource

	logParser     *LogLineParser
	correlator    *LogCorrelator
	joiner        *TraceRealtimeJoiner
	reconstructor *DependencyReconstructor
	aggregator    *RealtimeAggregator
	dedup         *DedupCache

	logger *logrus.Logger
}

// NewPipelineOrchestrator wires the pipeline from its components. The
// caller constructs and shares one DedupCache across every request, since
// it is the only state that outlives a single Process call.
func NewPipelineOrchestrator(
	tracing mesh.TracingSource,
	orchestrator mesh.OrchestratorSource,
	dedup *DedupCache,
	logger *logrus.Logger,
) *PipelineOrchestrator {
	urlExploder := NewURLExploder()
	schemas := NewSchemaInferencer()
	return &PipelineOrchestrator{
		tracing:       tracing,
		orchestrator:  orchestrator,
		logParser:     NewLogLineParser(),
		correlator:    NewLogCorrelator(),
		joiner:        NewTraceRealtimeJoiner(logger),
		reconstructor: NewDependencyReconstructor(urlExploder, logger),
		aggregator:    NewRealtimeAggregator(schemas),
		dedup:         dedup,
		logger:        logger,
	}
}

// Process runs one request through the full pipeline (spec.md §4.I) and
// returns the assembled ResponsePackage.
func (p *PipelineOrchestrator) Process(ctx context.Context, req mesh.RequestPackage) (*mesh.ResponsePackage, error) {
	traceGroups, err := p.tracing.FetchTraces(ctx, req.Time, req.LookBack)
	if err != nil {
		return nil, err
	}

	kept, total, newCount := p.dedup.Filter(traceGroups)
	p.logger.WithFields(logrus.Fields{
		"total": total,
		"new":   newCount,
	}).Info("fetched traces")

	var spans []mesh.Span
	for _, group := range kept {
		spans = append(spans, group...)
	}

	namespaces := distinctNamespaces(spans)

	replicas, structuredRequests, err := p.gatherTelemetry(ctx, namespaces)
	if err != nil {
		return nil, err
	}

	logIndex := BuildLogIndex(structuredRequests)
	samples := p.joiner.Join(spans, logIndex, replicas)

	dependencies := p.reconstructor.Reconstruct(spans)
	if len(req.ExistingDep) > 0 {
		dependencies = MergeDependencies(req.ExistingDep, dependencies)
	}

	combined := p.aggregator.Aggregate(samples)
	datatype := deriveEndpointDataType(combined)

	p.dedup.Evict(int64(req.LookBack), int64(req.Time))

	return &mesh.ResponsePackage{
		UniqueID:     req.UniqueID,
		Combined:     combined,
		Dependencies: dependencies,
		Datatype:     datatype,
		Log:          fmt.Sprintf("Got %d traces, %d new to process", total, newCount),
	}, nil
}

// gatherTelemetry fetches replica counts, pod names, and sidecar logs for
// every namespace concurrently, parses and correlates each pod's log lines,
// and returns the combined replica map and per-request structured traces.
// Only the Dedup Cache is shared mutable state across a request (spec.md
// §5); namespace fetches never touch it. The only lock taken here is mu,
// which guards this call's own replica map and per-pod result slice.
func (p *PipelineOrchestrator) gatherTelemetry(ctx context.Context, namespaces []string) (map[string]uint32, []mesh.StructuredRequest, error) {
	replicas := make(map[string]uint32)
	var perPod []map[string][]mesh.StructuredLogTrace

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)

	for _, ns := range namespaces {
		ns := ns
		g.Go(func() error {
			counts, err := p.orchestrator.GetReplicas(gCtx, ns)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, c := range counts {
				replicas[c.UniqueServiceName] = c.Replicas
			}
			mu.Unlock()

			pods, err := p.orchestrator.ListPodNames(gCtx, ns)
			if err != nil {
				return err
			}

			podGroup, podCtx := errgroup.WithContext(gCtx)
			for _, pod := range pods {
				pod := pod
				podGroup.Go(func() error {
					lines, err := p.orchestrator.FetchPodLog(podCtx, ns, pod)
					if err != nil {
						return err
					}

					records := make([]mesh.LogRecord, 0, len(lines))
					for _, line := range lines {
						record, err := p.logParser.Parse(line)
						if err != nil {
							p.logger.WithFields(logrus.Fields{
								"namespace": ns,
								"pod":       pod,
							}).WithError(err).Warn("skipping malformed access-log line")
							continue
						}
						records = append(records, *record)
					}

					correlated := p.correlator.Correlate(records)

					mu.Lock()
					perPod = append(perPod, correlated)
					mu.Unlock()
					return nil
				})
			}
			return podGroup.Wait()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return replicas, p.correlator.Combine(perPod), nil
}

// distinctNamespaces collects the set of non-empty istio namespace tags
// carried by spans, in first-seen order.
func distinctNamespaces(spans []mesh.Span) []string {
	seen := make(map[string]struct{})
	var namespaces []string
	for _, s := range spans {
		ns := s.Tags.IstioNamespace
		if ns == "" {
			continue
		}
		if _, ok := seen[ns]; ok {
			continue
		}
		seen[ns] = struct{}{}
		namespaces = append(namespaces, ns)
	}
	return namespaces
}

// deriveEndpointDataType projects each combined row into an EndpointDataType
// carrying exactly one schema entry (spec.md §4.I step 9).
func deriveEndpointDataType(combined []mesh.CombinedRealtimeData) []mesh.EndpointDataType {
	result := make([]mesh.EndpointDataType, 0, len(combined))
	for _, row := range combined {
		result = append(result, mesh.EndpointDataType{
			UniqueServiceName:  row.UniqueServiceName,
			UniqueEndpointName: row.UniqueEndpointName,
			Service:            row.Service,
			Namespace:          row.Namespace,
			Version:            row.Version,
			Method:             row.Method,
			Schemas: []mesh.EndpointDataSchema{
				{
					Status:              row.Status,
					Time:                row.LatestTimestamp / 1000,
					RequestBody:         row.RequestBody,
					RequestContentType:  row.RequestContentType,
					RequestSchema:       row.RequestSchema,
					ResponseBody:        row.ResponseBody,
					ResponseContentType: row.ResponseContentType,
					ResponseSchema:      row.ResponseSchema,
				},
			},
		})
	}
	return result
}
