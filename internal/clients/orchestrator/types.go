package orchestrator

// namespaceListResponse is the subset of a Kubernetes NamespaceList the
// pipeline reads off GET /api/v1/namespaces.
type namespaceListResponse struct {
	Items []struct {
		Metadata objectMeta `json:"metadata"`
	} `json:"items"`
}

// podListResponse is the subset of a PodList read off
// GET /api/v1/namespaces/{ns}/pods.
type podListResponse struct {
	Items []struct {
		Metadata objectMeta `json:"metadata"`
	} `json:"items"`
}

// serviceListResponse is the subset of a ServiceList read off
// GET /api/v1/namespaces/{ns}/services, used for live replica counts by
// matching each service's selector against pod labels; the version comes
// from the matched pods' "version" label.
type serviceListResponse struct {
	Items []struct {
		Metadata objectMeta `json:"metadata"`
		Spec     struct {
			Selector map[string]string `json:"selector"`
		} `json:"spec"`
	} `json:"items"`
}

type objectMeta struct {
	Name              string            `json:"name"`
	GenerateName      string            `json:"generateName,omitempty"`
	Namespace         string            `json:"namespace,omitempty"`
	ResourceVersion   string            `json:"resourceVersion,omitempty"`
	CreationTimestamp string            `json:"creationTimestamp,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
	Annotations       map[string]string `json:"annotations,omitempty"`
}
