package mesh

import (
	"errors"
	"fmt"
)

// Sentinel errors for log-line and enum parsing failures. The pipeline
// components in internal/core/services/mesh do not return these: they report
// such failures as internal/errors.AppError values, and the transport layer
// does not inspect these sentinels.
var (
	ErrMalformedLogLine   = errors.New("malformed sidecar log line")
	ErrMalformedMetadata  = errors.New("log line metadata capture incomplete")
	ErrUnknownHTTPMethod  = errors.New("unrecognized HTTP method")
	ErrUnknownRecordType  = errors.New("unrecognized log record type")
	ErrUnknownDependency  = errors.New("unrecognized dependency type")
)

// NewMalformedLogLineError wraps ErrMalformedLogLine with the offending line
// for diagnostics.
func NewMalformedLogLineError(line string) error {
	return fmt.Errorf("%w: %q", ErrMalformedLogLine, line)
}

// IsParseLogError reports whether err wraps ErrMalformedLogLine or
// ErrMalformedMetadata. It returns false for the internal/errors.AppError
// values that LogLineParser.Parse returns.
func IsParseLogError(err error) bool {
	return errors.Is(err, ErrMalformedLogLine) || errors.Is(err, ErrMalformedMetadata)
}
