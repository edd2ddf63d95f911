package dataset

import (
	"time"

	"github.com/go-playground/validator/v10"

	apierrors "finclusion/internal/errors"
	"finclusion/pkg/contracts/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Required attribute sets per record type, expressed as validation
// structs so the rules read declaratively.
type observationRules struct {
	IndicatorCode string    `validate:"required"`
	Date          time.Time `validate:"required"`
	SourceName    string    `validate:"required"`
}

type eventRules struct {
	EventName string    `validate:"required"`
	EventDate time.Time `validate:"required"`
	Category  string    `validate:"required"`
}

type impactLinkRules struct {
	ParentID         string `validate:"required"`
	RelatedIndicator string `validate:"required"`
	LagMonths        int    `validate:"gte=0"`
}

type targetRules struct {
	IndicatorCode string    `validate:"required"`
	TargetDate    time.Time `validate:"required"`
	IssuingBody   string    `validate:"required"`
}

// ValidateRecord checks one record against its type's required
// attribute set. Returns a SchemaError naming the first bad field.
func ValidateRecord(rec domain.Record) error {
	var rules interface{}
	switch rec.Type {
	case domain.RecordTypeObservation:
		rules = observationRules{
			IndicatorCode: rec.IndicatorCode,
			Date:          rec.Date,
			SourceName:    rec.SourceName,
		}
	case domain.RecordTypeEvent:
		rules = eventRules{
			EventName: rec.EventName,
			EventDate: rec.EventDate,
			Category:  string(rec.Category),
		}
	case domain.RecordTypeImpactLink:
		rules = impactLinkRules{
			ParentID:         rec.ParentID,
			RelatedIndicator: rec.RelatedIndicator,
			LagMonths:        rec.LagMonths,
		}
	case domain.RecordTypeTarget:
		rules = targetRules{
			IndicatorCode: rec.IndicatorCode,
			TargetDate:    rec.TargetDate,
			IssuingBody:   rec.IssuingBody,
		}
	default:
		return apierrors.NewSchemaError(rec.ID, "record_type", "has unrecognized value "+string(rec.Type))
	}

	if err := validate.Struct(rules); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return apierrors.NewSchemaError(rec.ID, verrs[0].Field(), "is required for record type "+string(rec.Type))
		}
		return apierrors.NewSchemaError(rec.ID, "", err.Error())
	}

	return validateValueBounds(rec)
}

// validateValueBounds enforces the numeric invariants: percentage
// indicators in [0, 100], counts non-negative.
func validateValueBounds(rec domain.Record) error {
	if rec.Type != domain.RecordTypeObservation {
		return nil
	}
	if rec.Value < 0 {
		return apierrors.NewSchemaError(rec.ID, "value_numeric", "must be non-negative")
	}
	return nil
}

// ValidateDataset validates every record and the cross-record
// invariants: each impact link must reference an existing event and a
// known indicator, and percentage indicators must stay within [0, 100].
func ValidateDataset(ds domain.Dataset) error {
	events := make(map[string]struct{})
	for _, r := range ds.Records {
		if r.Type == domain.RecordTypeEvent {
			events[r.ID] = struct{}{}
		}
	}

	for _, r := range ds.Records {
		if err := ValidateRecord(r); err != nil {
			return err
		}

		switch r.Type {
		case domain.RecordTypeObservation:
			if ds.IndicatorUnit(r.IndicatorCode) == "percent" && r.Value > 100 {
				return apierrors.NewSchemaError(r.ID, "value_numeric", "exceeds 100 for a percentage indicator")
			}
		case domain.RecordTypeImpactLink:
			if _, ok := events[r.ParentID]; !ok {
				return apierrors.NewSchemaError(r.ID, "parent_id", "references unknown event "+r.ParentID)
			}
			if !ds.KnownIndicator(r.RelatedIndicator) {
				return apierrors.NewSchemaError(r.ID, "related_indicator", "references unknown indicator "+r.RelatedIndicator)
			}
		}
	}
	return nil
}
