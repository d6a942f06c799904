package reversal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"revdet/internal"
)

var _ CycleRunner = (*PipelineRunner)(nil)

// PipelineRunner - запуск циклов: чтение серий, признаки, вероятность.
// Ошибки цикла логируются и учитываются в метриках, процесс продолжает работу.
type PipelineRunner struct {
	pipeline *internal.Pipeline
	source   internal.RawSeriesSource
	metrics  *internal.Metrics
	logger   zerolog.Logger
}

// NewPipelineRunner - конструктор для PipelineRunner
func NewPipelineRunner(pipeline *internal.Pipeline, source internal.RawSeriesSource, metrics *internal.Metrics, logger zerolog.Logger) *PipelineRunner {
	return &PipelineRunner{
		pipeline: pipeline,
		source:   source,
		metrics:  metrics,
		logger:   logger,
	}
}

// RunCycle - один цикл обновления
func (r *PipelineRunner) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{
		ID:      uuid.NewString(),
		Target:  r.pipeline.Symbols()[0],
		Started: time.Now(),
	}
	logger := r.logger.With().Str("cycle", res.ID).Str("target", res.Target).Logger()

	prediction, err := r.predict(ctx)
	res.Duration = time.Since(res.Started)
	res.Prediction = prediction
	res.Err = err
	res.Outcome = internal.Outcome(err)
	res.ErrorKind = internal.ErrorKind(err)
	r.metrics.ObserveCycle(res.Outcome, prediction.Probability)

	switch res.Outcome {
	case internal.OutcomeOK:
		logger.Info().
			Float64("probability", prediction.Probability).
			Time("bar_time", prediction.Time).
			Int("rows", prediction.Features.JoinedRows).
			Dur("duration", res.Duration).
			Msg("цикл завершён")
	case internal.OutcomeSkipped:
		logger.Warn().Err(err).Str("kind", res.ErrorKind).Msg("цикл пропущен, повторим позже")
	default:
		logger.Error().Err(err).Str("kind", res.ErrorKind).Msg("цикл завершился ошибкой")
	}
	return res
}

func (r *PipelineRunner) predict(ctx context.Context) (internal.Prediction, error) {
	series, err := r.pipeline.Fetch(ctx, r.source)
	if err != nil {
		return internal.Prediction{}, err
	}
	return r.pipeline.Predict(series)
}

// CollectFeatures - признаки без обращения к модели (для выгрузки)
func (r *PipelineRunner) CollectFeatures(ctx context.Context) (internal.FeatureSet, error) {
	series, err := r.pipeline.Fetch(ctx, r.source)
	if err != nil {
		return internal.FeatureSet{}, err
	}
	return r.pipeline.Features(series)
}
