package enrich

import (
	"context"
	"log/slog"
	"math"

	apierrors "finclusion/internal/errors"
	"finclusion/pkg/contracts/domain"
)

// mergeKey matches observations across sources.
type mergeKey struct {
	IndicatorCode string
	Year          int
	Dimension     domain.Dimension
}

func keyOf(r domain.Record) mergeKey {
	return mergeKey{
		IndicatorCode: r.IndicatorCode,
		Year:          r.Year(),
		Dimension:     r.Dimension().Normalize(),
	}
}

// MergeSupplementary merges observation records from an auxiliary
// source into the dataset, returning a new copy. Conflicts on the
// same (indicator, period, dimension) cell are resolved by
// confidence; equal confidence within tolerance falls to the
// deterministic tie-break, beyond tolerance the merge fails.
func (e *Enricher) MergeSupplementary(ctx context.Context, ds domain.Dataset, supplementary []domain.Record) (domain.Dataset, *AuditLog, error) {
	out := ds.Clone()
	audit := NewAuditLog()

	existing := make(map[mergeKey]int) // key -> index into out.Records
	for i, r := range out.Records {
		if r.Type == domain.RecordTypeObservation {
			existing[keyOf(r)] = i
		}
	}

	added, replaced, kept := 0, 0, 0
	for _, sup := range supplementary {
		if sup.Type != domain.RecordTypeObservation {
			// Non-observation supplementary records are appended as-is;
			// events and links have no merge identity beyond their ID.
			out.Records = append(out.Records, sup)
			audit.RecordAdded(sup, "supplementary non-observation record")
			continue
		}

		idx, ok := existing[keyOf(sup)]
		if !ok {
			out.Records = append(out.Records, sup)
			existing[keyOf(sup)] = len(out.Records) - 1
			audit.RecordAdded(sup, "supplementary observation for uncovered period")
			added++
			continue
		}

		cur := out.Records[idx]
		supWins, err := e.resolveConflict(cur, sup)
		if err != nil {
			return domain.Dataset{}, nil, err
		}

		if !supWins {
			kept++
			audit.RecordDiscarded(sup, cur, "existing record preferred")
			continue
		}

		// The supplementary record wins: the enriched copy carries it
		// in place of the original, whose provenance goes to the audit
		// trail.
		out.Records[idx] = sup
		replaced++
		audit.RecordDiscarded(cur, sup, "supplementary record preferred")
	}

	e.logger.InfoContext(ctx, "supplementary merge complete",
		slog.Int("added", added),
		slog.Int("replaced", replaced),
		slog.Int("kept", kept),
	)
	return out, audit, nil
}

// resolveConflict reports whether the supplementary record replaces
// the existing one for the same cell. Higher confidence wins outright.
// Equal confidence within tolerance tie-breaks on most recent
// collection date, then source name; beyond tolerance the disagreement
// is surfaced as an error.
func (e *Enricher) resolveConflict(cur, sup domain.Record) (supWins bool, err error) {
	switch {
	case sup.Confidence.Rank() > cur.Confidence.Rank():
		return true, nil
	case sup.Confidence.Rank() < cur.Confidence.Rank():
		return false, nil
	}

	diff := math.Abs(cur.Value - sup.Value)
	if diff > e.cfg.MergeTolerance {
		return false, &apierrors.MergeConflictError{
			IndicatorCode: cur.IndicatorCode,
			Year:          cur.Year(),
			SourceA:       cur.SourceName,
			SourceB:       sup.SourceName,
			ValueA:        cur.Value,
			ValueB:        sup.Value,
			Tolerance:     e.cfg.MergeTolerance,
		}
	}

	// Tie-break: most recent collection date wins.
	if sup.CollectionDate.After(cur.CollectionDate) {
		return true, nil
	}
	if cur.CollectionDate.After(sup.CollectionDate) {
		return false, nil
	}
	// Same collection date: source name ordering keeps the outcome
	// deterministic regardless of merge order.
	return sup.SourceName > cur.SourceName, nil
}
