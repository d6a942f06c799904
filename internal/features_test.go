package internal

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T) *BaseFeatureExtractor {
	t.Helper()
	e, err := NewBaseFeatureExtractor(DefaultIndicatorWindows())
	require.NoError(t, err)
	return e
}

func TestBaseFeatureExtractor_Columns(t *testing.T) {
	frame, err := newTestExtractor(t).Transform(syntheticSeries("SOLUSDT", 100, 0))
	require.NoError(t, err)

	assert.Equal(t, 100, frame.Len())
	assert.Equal(t, []string{
		"open", "high", "low", "close", "volume", "quote_volume",
		"rtn_1", "OCHL_range", "trend_adx", "trend_cci", "macd", "momentum_rsi", "volume_obv", "volume_vwap",
	}, frame.Columns())
}

func TestBaseFeatureExtractor_Returns(t *testing.T) {
	frame, err := newTestExtractor(t).Transform(syntheticSeries("SOLUSDT", 100, 0))
	require.NoError(t, err)

	rtn, err := frame.Column(ColRtn1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rtn[0]))
	assert.InDelta(t, 0.01, rtn[1], 1e-12)
	assert.InDelta(t, (99.0-101.0)/101.0, rtn[2], 1e-12)
}

func TestCalculateOCHLRange(t *testing.T) {
	open := []float64{10, 10, 12, 5}
	high := []float64{12, 10, 13, 5}
	low := []float64{9, 10, 11, 5}
	close := []float64{11.5, 10, 11.5, 5}

	got := calculateOCHLRange(open, high, low, close)
	assert.Equal(t, (11.5-10.0)/(12.0-9.0), got[0])
	// бары нулевой ширины получают ровно 1e-4
	assert.Equal(t, 1e-4, got[1])
	assert.Equal(t, -0.25, got[2])
	assert.Equal(t, 1e-4, got[3])
}

func TestBaseFeatureExtractor_WarmupIsNaN(t *testing.T) {
	e := newTestExtractor(t)
	frame, err := e.Transform(syntheticSeries("SOLUSDT", 100, 0))
	require.NoError(t, err)

	cases := []struct {
		col      string
		lookback int
	}{
		{ColADX, 27},
		{ColCCI, 19},
		{ColMACD, 25},
		{ColRSI, 13},
		{ColVWAP, 13},
	}
	for _, c := range cases {
		values, err := frame.Column(c.col)
		require.NoError(t, err)
		for i := 0; i < c.lookback; i++ {
			assert.True(t, math.IsNaN(values[i]), "%s[%d] должен быть NaN", c.col, i)
		}
		for i := c.lookback; i < len(values); i++ {
			assert.False(t, math.IsNaN(values[i]), "%s[%d] должен быть определён", c.col, i)
		}
	}
	assert.Equal(t, 27, e.Warmup())
}

func TestBaseFeatureExtractor_ShortSeries(t *testing.T) {
	frame, err := newTestExtractor(t).Transform(syntheticSeries("SOLUSDT", 10, 0))
	require.NoError(t, err)

	macd, err := frame.Column(ColMACD)
	require.NoError(t, err)
	for _, v := range macd {
		assert.True(t, math.IsNaN(v))
	}
}

func TestBaseFeatureExtractor_MissingQuoteVolume(t *testing.T) {
	series := syntheticSeries("SOLUSDT", 100, 0)
	series.Fields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

	frame, err := newTestExtractor(t).Transform(series)
	assert.Nil(t, frame)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestBaseFeatureExtractor_UnorderedBars(t *testing.T) {
	series := syntheticSeries("SOLUSDT", 50, 0)
	series.Bars[10], series.Bars[11] = series.Bars[11], series.Bars[10]

	_, err := newTestExtractor(t).Transform(series)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestCalculateVWAP(t *testing.T) {
	high := []float64{3, 6, 9, 12}
	low := []float64{3, 6, 9, 12}
	close := []float64{3, 6, 9, 12}
	volume := []float64{1, 1, 2, 0}

	vwap := calculateVWAP(high, low, close, volume, 2)
	assert.True(t, math.IsNaN(vwap[0]))
	assert.InDelta(t, 4.5, vwap[1], 1e-12)
	assert.InDelta(t, (6.0+18.0)/3.0, vwap[2], 1e-12)
	assert.InDelta(t, 9.0, vwap[3], 1e-12)

	zero := calculateVWAP(high, low, close, []float64{0, 0, 0, 0}, 2)
	assert.True(t, math.IsNaN(zero[3]))
}

func TestCalculateOBV(t *testing.T) {
	obv := calculateOBV([]float64{10, 11, 10.5, 10.5, 12}, []float64{100, 50, 30, 70, 20})
	assert.Equal(t, []float64{100, 150, 120, 190, 210}, obv)

	// неизменная цена прибавляет объём
	flat := calculateOBV([]float64{10, 10, 10, 11}, []float64{5, 7, 9, 1})
	assert.Equal(t, []float64{5, 12, 21, 22}, flat)
}

func TestEWMMean(t *testing.T) {
	got := ewmMean([]float64{1, 2, 3}, 0.5, 2)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 1.5, got[1])
	assert.Equal(t, 2.25, got[2])

	constant := ewmMean([]float64{7, 7, 7, 7}, 0.3, 1)
	assert.Equal(t, []float64{7, 7, 7, 7}, constant)
}

func TestCalculateMACD(t *testing.T) {
	// fast span 2 (alpha 2/3): 1, 5/3, 23/9, 95/27; slow span 3 (alpha 1/2): 1, 1.5, 2.25, 3.125
	macd := calculateMACD([]float64{1, 2, 3, 4}, 2, 3)
	assert.True(t, math.IsNaN(macd[0]))
	assert.True(t, math.IsNaN(macd[1]))
	assert.InDelta(t, 11.0/36.0, macd[2], 1e-12)
	assert.InDelta(t, 85.0/216.0, macd[3], 1e-12)

	flat := calculateMACD([]float64{5, 5, 5, 5}, 2, 3)
	assert.Equal(t, 0.0, flat[3])
}

func TestCalculateRSI(t *testing.T) {
	// рост: 0 1 1 0 1, падение: 0 0 0 1 0, alpha = 1/2
	rsi := calculateRSI([]float64{1, 2, 3, 2, 3}, 2)
	assert.True(t, math.IsNaN(rsi[0]))
	assert.Equal(t, 100.0, rsi[1])
	assert.Equal(t, 100.0, rsi[2])
	assert.InDelta(t, 100-100/1.75, rsi[3], 1e-9)
	assert.InDelta(t, 100-100/3.75, rsi[4], 1e-9)
}

func TestIndicatorWindows_Validate(t *testing.T) {
	assert.NoError(t, DefaultIndicatorWindows().Validate())

	w := DefaultIndicatorWindows()
	w.MACDSlow = w.MACDFast
	assert.Error(t, w.Validate())

	w = DefaultIndicatorWindows()
	w.RSI = 0
	assert.Error(t, w.Validate())
}
