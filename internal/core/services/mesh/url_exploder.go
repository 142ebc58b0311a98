package mesh

import (
	"regexp"
	"strings"
)

var (
	isURLPattern      = regexp.MustCompile(`[a-z]+://.*`)
	urlMainPattern    = regexp.MustCompile(`://([^:/]*)([:0-9]*)(.*)`)
	urlServicePattern = regexp.MustCompile(`(.*).svc[.]*(.*)`)
)

// ExplodedURL is the result of splitting a URL or service-DNS name into its
// constituent parts.
type ExplodedURL struct {
	Host        string
	Port        string
	Path        string
	ServiceName string
	Namespace   string
	ClusterName string
	IsService   bool
}

// URLExploder splits a URL or service-DNS name (host/port/path, and when
// isService is set, service/namespace/cluster) using three regexes
// constructed once and shared across requests.
type URLExploder struct{}

// NewURLExploder constructs a URLExploder. The matchers it uses are package
// level and compiled once, so the returned value carries no state of its
// own; it exists so callers hold an exploder value rather than calling free
// functions.
func NewURLExploder() *URLExploder {
	return &URLExploder{}
}

// Explode splits url into host/port/path, and when isService is true,
// further splits the host against <svc>.<ns>.svc[.<cluster...>].
func (x *URLExploder) Explode(url string, isService bool) ExplodedURL {
	if !isURLPattern.MatchString(url) {
		url = "://" + url
	}

	var result ExplodedURL

	if m := urlMainPattern.FindStringSubmatch(url); m != nil {
		result.Host = m[1]
		result.Port = m[2]
		result.Path = m[3]
	}

	if !isService {
		return result
	}
	result.IsService = true

	m := urlServicePattern.FindStringSubmatch(result.Host)
	if m == nil {
		return result
	}

	serviceFullName := m[1]
	clusterName := m[2]

	divider := strings.LastIndexByte(serviceFullName, '.')
	serviceName := serviceFullName
	namespace := ""
	if divider >= 0 {
		serviceName = serviceFullName[:divider]
		namespace = serviceFullName[divider+1:]
	}

	result.ServiceName = serviceName
	result.Namespace = namespace
	result.ClusterName = clusterName
	return result
}
