package models

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrTransport        = errors.New("data source unreachable")
	ErrFormat           = errors.New("malformed data source response")
	ErrAggregation      = errors.New("aggregation failed")
	ErrRender           = errors.New("render failed")
	ErrInvalidSelection = errors.New("invalid selection")
)

// ErrorKind names the failure class of a pipeline error for logging.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindTransport   ErrorKind = "transport"
	KindFormat      ErrorKind = "format"
	KindAggregation ErrorKind = "aggregation"
	KindRender      ErrorKind = "render"
	KindUnknown     ErrorKind = "unknown"
)

// Kind classifies err. Nil maps to KindNone.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrAggregation):
		return KindAggregation
	case errors.Is(err, ErrRender):
		return KindRender
	default:
		return KindUnknown
	}
}

// TransportError means the data source could not be reached or answered
// with a non-success status. Status is zero when no response arrived.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: GET %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("transport: GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// FormatError means the response body was not a JSON array of rows.
type FormatError struct {
	URL string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format: %s: %v", e.URL, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// AggregationError means a chart could not be computed from the dataset.
type AggregationError struct {
	Chart string
	Err   error
}

func (e *AggregationError) Error() string {
	if e.Chart == "" {
		return fmt.Sprintf("aggregation: %v", e.Err)
	}
	return fmt.Sprintf("aggregation: %s: %v", e.Chart, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

func (e *AggregationError) Is(target error) bool { return target == ErrAggregation }

// RenderError means a chart spec could not be turned into a figure.
type RenderError struct {
	Chart string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %s: %v", e.Chart, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool { return target == ErrRender }
