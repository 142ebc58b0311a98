package mesh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"meshconsolidator/internal/core/domain/mesh"
)

func TestLogLineParser_RequestLine(t *testing.T) {
	p := NewLogLineParser()

	line := "2023-01-03T06:03:38.005654Z\tpdas\tuser-service-abc123-def456\t" +
		"[Request 669084db-e52d-9825-8d03-aab35afa6f4a/dad62e0cb93a980cc6bba3d0762fefc8/d40b8bb597882141/c6bba3d0762fefc8] " +
		"[GET /internal/user/verify] [ContentType application/json]"

	rec, err := p.Parse(line)
	require.NoError(t, err)
	require.Equal(t, mesh.LogRecordRequest, rec.Type)
	require.Equal(t, int64(1672725818005), rec.Timestamp)
	require.Equal(t, "669084db-e52d-9825-8d03-aab35afa6f4a", rec.RequestID)
	require.Equal(t, "dad62e0cb93a980cc6bba3d0762fefc8", rec.TraceID)
	require.Equal(t, "d40b8bb597882141", rec.SpanID)
	require.Equal(t, "c6bba3d0762fefc8", rec.ParentSpanID)
	require.NotNil(t, rec.Method)
	require.Equal(t, "GET", *rec.Method)
	require.NotNil(t, rec.Path)
	require.Equal(t, "/internal/user/verify", *rec.Path)
	require.NotNil(t, rec.ContentType)
	require.Equal(t, "application/json", *rec.ContentType)
	require.Nil(t, rec.Body)
	require.Nil(t, rec.Status)
}

func TestLogLineParser_TooFewFields(t *testing.T) {
	p := NewLogLineParser()
	_, err := p.Parse("2023-01-03T06:03:38.005654Z\tpdas\tonly-three-fields")
	require.Error(t, err)
}

func TestLogLineParser_MissingMetadata(t *testing.T) {
	p := NewLogLineParser()
	_, err := p.Parse("2023-01-03T06:03:38.005654Z\tpdas\tuser-service\t[Status] 200")
	require.Error(t, err)
}
