package internal

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, model ProbabilityModel, metrics *Metrics) *Pipeline {
	t.Helper()
	p, err := NewPipeline("SOLUSDT", DefaultFeatureConfig(), model, metrics, nopLogger())
	require.NoError(t, err)
	return p
}

// memorySource отдаёт заранее подготовленные серии.
type memorySource map[string]BarSeries

func (s memorySource) Bars(ctx context.Context, symbol string) (BarSeries, error) {
	series, ok := s[symbol]
	if !ok {
		return BarSeries{}, errors.Errorf("нет данных по %s", symbol)
	}
	return series, nil
}

func TestPipeline_EndToEnd(t *testing.T) {
	model := newStubModel()
	p := newTestPipeline(t, model, nil)

	pred, err := p.Predict(testTriple(100))
	require.NoError(t, err)

	assert.Equal(t, 0.73, pred.Probability)
	assert.Equal(t, contractFixture, pred.Features.Vector.Columns())
	// первая полная строка - бар 28 (diff_trend_adx), остаётся 72 строки
	assert.Equal(t, 72, pred.Features.Vector.Len())
	assert.Equal(t, 72, pred.Features.JoinedRows)
	assert.Equal(t, testStart.Add(99*time.Hour), pred.Time)

	require.Len(t, model.lastRow, len(contractFixture))
	for i, v := range model.lastRow {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "колонка %s", contractFixture[i])
	}
}

func TestPipeline_RowCountsNeverGrow(t *testing.T) {
	p := newTestPipeline(t, newStubModel(), nil)
	set, err := p.Features(testTriple(100))
	require.NoError(t, err)

	require.Len(t, set.Instruments, 3)
	assert.Equal(t, []string{"SOLUSDT", "BTCUSDT", "ETHUSDT"}, []string{
		set.Instruments[0].Symbol, set.Instruments[1].Symbol, set.Instruments[2].Symbol,
	})
	for _, inst := range set.Instruments {
		r := inst.Rows
		assert.Equal(t, 100, r.Bars)
		assert.LessOrEqual(t, r.Extracted, r.Bars)
		assert.LessOrEqual(t, r.Normalized, r.Extracted)
		assert.LessOrEqual(t, r.Differenced, r.Normalized)
		assert.LessOrEqual(t, r.Cleaned, r.Differenced)
		assert.Equal(t, 72, r.Cleaned)
	}
	assert.LessOrEqual(t, set.JoinedRows, set.Instruments[0].Rows.Cleaned)
}

func TestPipeline_Idempotent(t *testing.T) {
	p := newTestPipeline(t, newStubModel(), nil)
	series := testTriple(100)

	first, err := p.Features(series)
	require.NoError(t, err)
	second, err := p.Features(series)
	require.NoError(t, err)

	require.Equal(t, first.Vector.Len(), second.Vector.Len())
	for i := 0; i < first.Vector.Len(); i++ {
		assert.Equal(t, first.Vector.Row(i), second.Vector.Row(i))
	}
}

func TestPipeline_ShortHistory(t *testing.T) {
	p := newTestPipeline(t, newStubModel(), nil)
	assert.Equal(t, 29, p.RequiredHistory())

	// ровно минимальная история даёт одну строку
	pred, err := p.Predict(testTriple(29))
	require.NoError(t, err)
	assert.Equal(t, 1, pred.Features.Vector.Len())

	_, err = p.Predict(testTriple(28))
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, OutcomeSkipped, Outcome(err))
}

func TestPipeline_ConstantInputHasNoRows(t *testing.T) {
	series := testTriple(100)
	for i := range series[0].Bars {
		b := &series[0].Bars[i]
		b.Open, b.High, b.Low, b.Close = 50, 50, 50, 50
		b.Volume, b.QuoteVolume = 10, 500
	}

	_, err := newTestPipeline(t, newStubModel(), nil).Predict(series)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestPipeline_ReferenceWithoutQuoteVolume(t *testing.T) {
	series := testTriple(100)
	series[2].Fields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

	_, err := newTestPipeline(t, newStubModel(), nil).Predict(series)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
	assert.Equal(t, OutcomeFailed, Outcome(err))
	assert.Equal(t, "schema_mismatch", ErrorKind(err))
}

func TestPipeline_ModelUnavailable(t *testing.T) {
	p := newTestPipeline(t, nil, nil)

	// признаки считаются и без модели
	set, err := p.Features(testTriple(100))
	require.NoError(t, err)
	assert.Equal(t, 72, set.Vector.Len())

	_, err = p.Predict(testTriple(100))
	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.Equal(t, "model_unavailable", ErrorKind(err))
}

func TestPipeline_FetchAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := newTestPipeline(t, newStubModel(), metrics)

	triple := testTriple(100)
	source := memorySource{"SOLUSDT": triple[0], "BTCUSDT": triple[1], "ETHUSDT": triple[2]}

	series, err := p.Fetch(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, series, 3)

	_, err = p.Predict(series)
	require.NoError(t, err)

	assert.Equal(t, 72.0, testutil.ToFloat64(metrics.Rows.WithLabelValues(StageClean, "BTCUSDT")))
	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.Rows.WithLabelValues(StageExtract, "SOLUSDT")))
	assert.Equal(t, 7, testutil.CollectAndCount(metrics.StageDuration))

	delete(source, "ETHUSDT")
	_, err = p.Fetch(context.Background(), source)
	assert.Error(t, err)
}
