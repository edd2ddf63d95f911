package errors

import (
	"fmt"
)

// SchemaError reports a malformed or unrecognized record in the
// unified dataset. It aborts the load and identifies the offending
// record for the operator.
type SchemaError struct {
	RecordID string
	Field    string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema error in record %s: field %q %s", e.RecordID, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema error in record %s: %s", e.RecordID, e.Reason)
}

// NewSchemaError creates a schema error for a record field.
func NewSchemaError(recordID, field, reason string) *SchemaError {
	return &SchemaError{RecordID: recordID, Field: field, Reason: reason}
}

// MergeConflictError reports two sources of equal confidence
// disagreeing beyond the configured tolerance for the same
// (indicator, period, dimension) cell.
type MergeConflictError struct {
	IndicatorCode string
	Year          int
	SourceA       string
	SourceB       string
	ValueA        float64
	ValueB        float64
	Tolerance     float64
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf(
		"merge conflict for %s in %d: %s=%.2f vs %s=%.2f exceeds tolerance %.2f",
		e.IndicatorCode, e.Year, e.SourceA, e.ValueA, e.SourceB, e.ValueB, e.Tolerance,
	)
}

// InsufficientDataError reports too few observations for a local
// impact or trend estimate. Callers handle it by falling back to
// borrowed evidence rather than aborting.
type InsufficientDataError struct {
	IndicatorCode string
	Need          int
	Have          int
	Window        string // "pre-event", "post-event", "trend"
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf(
		"insufficient %s data for %s: need %d observations, have %d",
		e.Window, e.IndicatorCode, e.Need, e.Have,
	)
}

// ForecastInputError reports a missing baseline series for a
// requested indicator or horizon.
type ForecastInputError struct {
	IndicatorCode string
	Reason        string
}

func (e *ForecastInputError) Error() string {
	return fmt.Sprintf("cannot forecast %s: %s", e.IndicatorCode, e.Reason)
}
