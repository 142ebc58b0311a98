package zipkin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_FetchTraces_BuildsExpectedRequest(t *testing.T) {
	var gotPath, gotQuery, gotAccept string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[[{"traceId":"t1","id":"s1","name":"svc","kind":"SERVER","timestamp":1,"duration":1}]]`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	traces, err := c.FetchTraces(context.Background(), 2000, 1000)
	require.NoError(t, err)

	require.Equal(t, tracesPath, gotPath)
	require.Contains(t, gotQuery, "serviceName=istio-ingressgateway.istio-system")
	require.Contains(t, gotQuery, "endTs=2000")
	require.Contains(t, gotQuery, "lookback=1000")
	require.Contains(t, gotQuery, "limit=2500")
	require.Equal(t, "application/json", gotAccept)

	require.Len(t, traces, 1)
	require.Equal(t, "t1", traces[0][0].TraceID)
}

func TestClient_FetchTraces_DeserializeErrorOnMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	_, err := c.FetchTraces(context.Background(), 1, 1)
	require.Error(t, err)
}

func TestClient_FetchTraces_NetworkErrorOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	_, err := c.FetchTraces(context.Background(), 1, 1)
	require.Error(t, err)
}
