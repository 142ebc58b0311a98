package orchestrator

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"meshconsolidator/internal/core/domain/mesh"
	apperrors "meshconsolidator/internal/errors"
)

const (
	serviceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"
	caCertFile        = serviceAccountDir + "/ca.crt"
	tokenFile         = serviceAccountDir + "/token"
)

// Config holds the client's construction parameters, derived from the
// environment (spec.md §6): IsInCluster switches on TLS + bearer-token
// auth read from the service-account directory.
type Config struct {
	BaseURL     string
	IsInCluster bool
	Timeout     time.Duration
}

// Client talks to the Kubernetes-style orchestrator API: namespaces, pods,
// services, and pod logs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New builds a Client. When cfg.IsInCluster is set, it reads the
// service-account CA certificate and bearer token and wires them into the
// transport and per-request Authorization header; otherwise it talks
// unauthenticated (e.g. through `kubectl proxy`).
func New(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	if !cfg.IsInCluster {
		return &Client{
			baseURL:    cfg.BaseURL,
			httpClient: &http.Client{Timeout: timeout},
		}, nil
	}

	caCert, err := os.ReadFile(caCertFile)
	if err != nil {
		return nil, apperrors.NewConfigError("orchestrator: cannot read service-account CA certificate", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, apperrors.NewConfigError("orchestrator: CA certificate is not valid PEM", nil)
	}

	token, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, apperrors.NewConfigError("orchestrator: cannot read service-account token", err)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   strings.TrimSpace(string(token)),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{RootCAs: pool},
			},
		},
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("orchestrator: failed to build request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("orchestrator: request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError("orchestrator: failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError(
			"orchestrator: unexpected status code",
			fmt.Errorf("path=%s status=%d body=%s", path, resp.StatusCode, string(body)),
		)
	}
	return body, nil
}

// ListNamespaces returns every namespace name in the cluster.
func (c *Client) ListNamespaces(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/v1/namespaces")
	if err != nil {
		return nil, err
	}

	var list namespaceListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, apperrors.NewDeserializeError("orchestrator: malformed namespace list", err)
	}

	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Metadata.Name)
	}
	return names, nil
}

// ListPodNames returns every pod name in namespace.
func (c *Client) ListPodNames(ctx context.Context, namespace string) ([]string, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v1/namespaces/%s/pods", namespace))
	if err != nil {
		return nil, err
	}

	var list podListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, apperrors.NewDeserializeError("orchestrator: malformed pod list", err)
	}

	names := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		names = append(names, item.Metadata.Name)
	}
	return names, nil
}

// GetReplicas derives per-service live pod counts for namespace by
// matching each service's label selector against the namespace's pods.
func (c *Client) GetReplicas(ctx context.Context, namespace string) ([]mesh.ReplicaCount, error) {
	svcBody, err := c.get(ctx, fmt.Sprintf("/api/v1/namespaces/%s/services", namespace))
	if err != nil {
		return nil, err
	}
	var services serviceListResponse
	if err := json.Unmarshal(svcBody, &services); err != nil {
		return nil, apperrors.NewDeserializeError("orchestrator: malformed service list", err)
	}

	podBody, err := c.get(ctx, fmt.Sprintf("/api/v1/namespaces/%s/pods", namespace))
	if err != nil {
		return nil, err
	}
	var pods struct {
		Items []struct {
			Metadata objectMeta `json:"metadata"`
		} `json:"items"`
	}
	if err := json.Unmarshal(podBody, &pods); err != nil {
		return nil, apperrors.NewDeserializeError("orchestrator: malformed pod list", err)
	}

	counts := make([]mesh.ReplicaCount, 0, len(services.Items))
	for _, svc := range services.Items {
		var replicas uint32
		version := ""
		for _, pod := range pods.Items {
			if labelsMatch(svc.Spec.Selector, pod.Metadata.Labels) {
				replicas++
				if v, ok := pod.Metadata.Labels["version"]; ok {
					version = v
				}
			}
		}
		if version == "" {
			version = mesh.NoneVersion
		}

		service := mesh.Service{ServiceName: svc.Metadata.Name, Namespace: namespace, Version: version}
		counts = append(counts, mesh.ReplicaCount{
			UniqueServiceName: service.UniqueServiceName(),
			Service:           svc.Metadata.Name,
			Namespace:         namespace,
			Version:           version,
			Replicas:          replicas,
		})
	}
	return counts, nil
}

func labelsMatch(selector, labels map[string]string) bool {
	if len(selector) == 0 {
		return false
	}
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// envoyLogPrefix matches the envoy-emitted wrapper around a Lua/Wasm
// script log line; it is stripped down to a single tab before the line
// reaches the Log Line Parser.
var envoyLogPrefix = regexp.MustCompile(`\twarning\tenvoy (lua|wasm)\t(script|wasm) log[^:]*: `)

// FetchPodLog retrieves the istio-proxy container log for pod in
// namespace, tail-limited to 10000 lines, and returns only the lines
// carrying the structured access-log markers with their envoy-emitted
// prefix stripped to a single leading tab.
func (c *Client) FetchPodLog(ctx context.Context, namespace, pod string) ([]string, error) {
	path := fmt.Sprintf("/api/v1/namespaces/%s/pods/%s/log?container=istio-proxy&tailLines=10000", namespace, pod)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var filtered []string
	for _, line := range strings.Split(string(body), "\n") {
		if line == "" {
			continue
		}
		if !strings.Contains(line, "script log: ") && !strings.Contains(line, "wasm log ") {
			continue
		}
		filtered = append(filtered, envoyLogPrefix.ReplaceAllString(line, "\t"))
	}
	return filtered, nil
}
