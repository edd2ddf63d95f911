// Package impact estimates how dated events moved the indicators they
// are linked to. Each impact link yields a (magnitude, lag,
// confidence, provenance) cell of the event-indicator association
// matrix, derived from the indicator's observed trajectory around the
// event where the data allows and borrowed from comparable countries'
// evidence where it does not.
package impact

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"finclusion/internal/config"
	apierrors "finclusion/internal/errors"
	"finclusion/internal/stats"
	"finclusion/pkg/contracts/domain"
)

// Estimator computes the association matrix from an enriched dataset.
type Estimator struct {
	cfg    config.ModelConfig
	logger *slog.Logger
}

// NewEstimator creates an estimator with the model configuration.
func NewEstimator(cfg config.ModelConfig, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "impact.estimator")),
	}
}

// EstimateAll builds the full association matrix: one cell per impact
// link. Insufficient local data never fails the run; those cells carry
// borrowed evidence at reduced confidence.
func (e *Estimator) EstimateAll(ctx context.Context, ds domain.Dataset) (*Matrix, error) {
	matrix := NewMatrix()

	local, borrowed, stated := 0, 0, 0
	for _, link := range ds.ImpactLinks() {
		event, ok := ds.EventByID(link.EventID)
		if !ok {
			// Loader validation guarantees this; a miss here means the
			// dataset was assembled outside the loader.
			return nil, apierrors.NewSchemaError(link.ID, "parent_id", "references unknown event "+link.EventID)
		}

		series := ds.SeriesFor(domain.SeriesKey{IndicatorCode: link.IndicatorCode})
		est, err := e.estimate(series, event, link)
		if err != nil {
			return nil, err
		}

		switch est.Provenance {
		case domain.ProvenanceLocal:
			local++
		case domain.ProvenanceBorrowed:
			borrowed++
		default:
			stated++
		}
		matrix.Set(event, est)
	}

	e.logger.InfoContext(ctx, "impact estimation complete",
		slog.Int("links", len(ds.ImpactLinks())),
		slog.Int("local", local),
		slog.Int("borrowed", borrowed),
		slog.Int("stated", stated),
	)
	return matrix, nil
}

// estimate produces the cell for one link, choosing local evidence,
// then borrowed evidence, in that order.
func (e *Estimator) estimate(series domain.Series, event domain.Event, link domain.ImpactLink) (domain.ImpactEstimate, error) {
	est, err := e.estimateLocal(series, event, link)
	if err == nil {
		return est, nil
	}

	var insufficient *apierrors.InsufficientDataError
	if !errors.As(err, &insufficient) {
		return domain.ImpactEstimate{}, err
	}

	// Too little local data. A link collected with a stated magnitude
	// keeps it; only links without one borrow the cross-country prior.
	if link.Magnitude != 0 {
		e.logger.Debug("using stated magnitude",
			slog.String("event", event.ID),
			slog.String("indicator", link.IndicatorCode),
			slog.String("reason", insufficient.Error()),
		)
		return e.estimateStated(event, link), nil
	}

	e.logger.Debug("falling back to borrowed evidence",
		slog.String("event", event.ID),
		slog.String("indicator", link.IndicatorCode),
		slog.String("reason", insufficient.Error()),
	)
	return e.estimateBorrowed(event, link), nil
}

// estimateStated carries the collected link magnitude through as-is.
func (e *Estimator) estimateStated(event domain.Event, link domain.ImpactLink) domain.ImpactEstimate {
	return domain.ImpactEstimate{
		EventID:       event.ID,
		EventName:     event.Name,
		IndicatorCode: link.IndicatorCode,
		Magnitude:     link.SignedMagnitude(),
		LagMonths:     link.LagMonths,
		Confidence:    link.Confidence.Score(),
		Provenance:    domain.ProvenanceStated,
	}
}

// estimateLocal compares the indicator's post-event trajectory with a
// counterfactual extrapolated from the pre-event trend. The lag is
// the first post-event year whose deviation exceeds the noise
// tolerance; the magnitude is the mean deviation from that year on.
func (e *Estimator) estimateLocal(series domain.Series, event domain.Event, link domain.ImpactLink) (domain.ImpactEstimate, error) {
	eventYear := event.Date.Year()

	var preYears []int
	var preValues []float64
	var post []domain.SeriesPoint
	for _, p := range series.Points {
		if p.Year < eventYear {
			preYears = append(preYears, p.Year)
			preValues = append(preValues, p.Value)
		} else {
			post = append(post, p)
		}
	}

	if len(preYears) < e.cfg.MinPreObservations {
		return domain.ImpactEstimate{}, &apierrors.InsufficientDataError{
			IndicatorCode: link.IndicatorCode,
			Need:          e.cfg.MinPreObservations,
			Have:          len(preYears),
			Window:        "pre-event",
		}
	}
	if len(post) < e.cfg.MinPostObservations {
		return domain.ImpactEstimate{}, &apierrors.InsufficientDataError{
			IndicatorCode: link.IndicatorCode,
			Need:          e.cfg.MinPostObservations,
			Have:          len(post),
			Window:        "post-event",
		}
	}

	fit := stats.FitLinear(preYears, preValues)
	threshold := e.cfg.NoiseToleranceSigma * fit.ResidualStd
	if threshold == 0 {
		// A perfectly collinear pre-window has no residual noise; any
		// measurable deviation counts.
		threshold = 1e-9
	}

	onset := -1
	for i, p := range post {
		if math.Abs(p.Value-fit.Predict(p.Year)) > threshold {
			onset = i
			break
		}
	}

	if onset < 0 {
		// Trajectory never left the counterfactual band: the observed
		// data neither confirms nor sizes the effect, so the collected
		// estimate stands as stated.
		return e.estimateStated(event, link), nil
	}

	var deviations []float64
	for _, p := range post[onset:] {
		deviations = append(deviations, p.Value-fit.Predict(p.Year))
	}

	lagMonths := (post[onset].Year - eventYear) * 12
	return domain.ImpactEstimate{
		EventID:       event.ID,
		EventName:     event.Name,
		IndicatorCode: link.IndicatorCode,
		Magnitude:     stats.Mean(deviations),
		LagMonths:     lagMonths,
		Confidence:    link.Confidence.Score(),
		Provenance:    domain.ProvenanceLocal,
	}, nil
}
