package mesh

import (
	"regexp"
	"strings"
	"time"

	"meshconsolidator/internal/core/domain/mesh"
	apperrors "meshconsolidator/internal/errors"
)

var (
	metadataPattern    = regexp.MustCompile(`\[(Request|Response) ([[:alnum:]-_]+)/([[:alnum:]_]+)/([[:alnum:]_]+)/([[:alnum:]_]+)\]`)
	statusPattern      = regexp.MustCompile(`\[Status\] ([0-9]+)`)
	pathPattern        = regexp.MustCompile(`(GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS) ([^\]]+)`)
	contentTypePattern = regexp.MustCompile(`\[ContentType ([^\]]*)]`)
	bodyPattern        = regexp.MustCompile(`\[Body\] (.*)`)
)

// LogLineParser parses one sidecar access-log line into a LogRecord. Its
// regexes are compiled once at package init and shared across requests.
type LogLineParser struct{}

func NewLogLineParser() *LogLineParser {
	return &LogLineParser{}
}

// Parse splits line into its four tab fields and extracts the bracketed
// tokens from the body via five independent patterns. Returns a
// ParseLogError (never fails the whole request) when the line has fewer
// than four tab fields or the metadata token doesn't capture at least six
// groups.
func (p *LogLineParser) Parse(line string) (*mesh.LogRecord, error) {
	fields := strings.SplitN(line, "\t", 4)
	if len(fields) < 4 {
		return nil, apperrors.NewParseLogError("log line has fewer than 4 tab fields", line)
	}

	ts, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return nil, apperrors.NewParseLogError("log line timestamp is not RFC3339", err.Error())
	}

	namespace := fields[1]
	podName := fields[2]
	body := fields[3]

	meta := metadataPattern.FindStringSubmatch(body)
	if len(meta) < 6 {
		return nil, apperrors.NewParseLogError("log line metadata capture incomplete", body)
	}

	record := &mesh.LogRecord{
		Namespace:    namespace,
		PodName:      podName,
		RequestID:    meta[2],
		TraceID:      meta[3],
		SpanID:       meta[4],
		ParentSpanID: meta[5],
		Timestamp:    ts.UnixMilli(),
	}

	switch meta[1] {
	case "Request":
		record.Type = mesh.LogRecordRequest
	case "Response":
		record.Type = mesh.LogRecordResponse
	}

	if m := statusPattern.FindStringSubmatch(body); m != nil {
		status := m[1]
		record.Status = &status
	}

	if m := pathPattern.FindStringSubmatch(body); m != nil {
		method := m[1]
		path := m[2]
		record.Method = &method
		record.Path = &path
	}

	if m := contentTypePattern.FindStringSubmatch(body); m != nil {
		contentType := m[1]
		record.ContentType = &contentType
	}

	if m := bodyPattern.FindStringSubmatch(body); m != nil {
		payload := m[1]
		record.Body = &payload
	}

	return record, nil
}
