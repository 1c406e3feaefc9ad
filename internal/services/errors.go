package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorInternal     ErrorCode = "internal"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IncompleteResponseError reports item indices a response set left unanswered.
type IncompleteResponseError struct {
	InstrumentID string
	Missing      []int
}

func (e *IncompleteResponseError) Error() string {
	idx := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		idx = append(idx, strconv.Itoa(m))
	}
	return fmt.Sprintf("%s: missing responses for items [%s]", e.InstrumentID, strings.Join(idx, ","))
}

// InvalidResponseError reports a value outside the response scale or an
// index the instrument does not define.
type InvalidResponseError struct {
	InstrumentID string
	Item         int
	Value        int
	Reason       string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s: item %d value %d: %s", e.InstrumentID, e.Item, e.Value, e.Reason)
}

// ScoreOutOfRangeError means a score cannot have come from a valid response
// set. It indicates a scoring defect.
type ScoreOutOfRangeError struct {
	InstrumentID string
	Score        int
	Min, Max     int
}

func (e *ScoreOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: score %d outside [%d,%d]", e.InstrumentID, e.Score, e.Min, e.Max)
}

// SourceUnavailableError wraps a failed or timed out aggregation read.
type SourceUnavailableError struct {
	Source Source
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// AggregationDegradedWarning lists sources whose fallback produced part of a
// snapshot. It is returned next to the snapshot, not instead of it.
type AggregationDegradedWarning struct {
	Sources []Source
}

func (w *AggregationDegradedWarning) Error() string {
	names := make([]string, 0, len(w.Sources))
	for _, s := range w.Sources {
		names = append(names, string(s))
	}
	return "aggregation degraded: fallback used for " + strings.Join(names, ", ")
}

// Has reports whether the fallback for src fired.
func (w *AggregationDegradedWarning) Has(src Source) bool {
	if w == nil {
		return false
	}
	for _, s := range w.Sources {
		if s == src {
			return true
		}
	}
	return false
}
