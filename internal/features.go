// features.go - базовые признаки из сырых баров
package internal

import (
	"math"

	"github.com/pkg/errors"
)

// Имена базовых признаков.
const (
	ColRtn1      = "rtn_1"
	ColOCHLRange = "OCHL_range"
	ColADX       = "trend_adx"
	ColCCI       = "trend_cci"
	ColMACD      = "macd"
	ColRSI       = "momentum_rsi"
	ColOBV       = "volume_obv"
	ColVWAP      = "volume_vwap"
)

// OCHLZeroRangeFallback подставляется в OCHL_range для бара с high == low.
const OCHLZeroRangeFallback = 1e-4

// BaseFeatureExtractor считает признаки первого порядка: доходность, OCHL_range
// и технические индикаторы. Сырые поля тоже попадают в таблицу, их дальше
// нормализует ThetaNormalizer.
type BaseFeatureExtractor struct {
	windows IndicatorWindows
}

func NewBaseFeatureExtractor(windows IndicatorWindows) (*BaseFeatureExtractor, error) {
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	return &BaseFeatureExtractor{windows: windows}, nil
}

// Warmup - число первых строк, где базовые индикаторы не определены.
func (e *BaseFeatureExtractor) Warmup() int {
	return e.windows.Warmup()
}

// Transform строит таблицу базовых признаков. Сначала проверяется схема:
// если какого-то сырого поля нет, ни один индикатор не считается.
func (e *BaseFeatureExtractor) Transform(series BarSeries) (*FeatureFrame, error) {
	for _, field := range RawFields {
		if !series.HasField(field) {
			return nil, schemaErrorf("%s: нет обязательного сырого поля %q", series.Symbol, field)
		}
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	raw := make(map[string][]float64, len(RawFields))
	frame := NewFeatureFrame(series.Times())
	for _, field := range RawFields {
		values, err := series.Field(field)
		if err != nil {
			return nil, err
		}
		raw[field] = values
		if err := frame.Set(field, values); err != nil {
			return nil, err
		}
	}

	open, high, low, close := raw[FieldOpen], raw[FieldHigh], raw[FieldLow], raw[FieldClose]
	volume := raw[FieldVolume]
	w := e.windows

	columns := []struct {
		name   string
		values []float64
	}{
		{ColRtn1, calculateReturns(close)},
		{ColOCHLRange, calculateOCHLRange(open, high, low, close)},
		{ColADX, calculateADX(high, low, close, w.ADX)},
		{ColCCI, calculateCCI(high, low, close, w.CCI)},
		{ColMACD, calculateMACD(close, w.MACDFast, w.MACDSlow)},
		{ColRSI, calculateRSI(close, w.RSI)},
		{ColOBV, calculateOBV(close, volume)},
		{ColVWAP, calculateVWAP(high, low, close, volume, w.VWAP)},
	}
	for _, c := range columns {
		if c.values == nil {
			c.values = []float64{}
		}
		if err := frame.Set(c.name, c.values); err != nil {
			return nil, errors.Wrapf(err, "%s", series.Symbol)
		}
	}
	return frame, nil
}

// calculateReturns - доходность за один бар, первая строка NaN
func calculateReturns(close []float64) []float64 {
	rtn := nanSeries(len(close))
	for i := 1; i < len(close); i++ {
		rtn[i] = (close[i] - close[i-1]) / close[i-1]
	}
	return rtn
}

// calculateOCHLRange - положение закрытия внутри диапазона бара.
// Для бара нулевой ширины деление не выполняется.
func calculateOCHLRange(open, high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		width := high[i] - low[i]
		if width == 0 || math.IsNaN(width) {
			out[i] = OCHLZeroRangeFallback
			continue
		}
		out[i] = (close[i] - open[i]) / width
	}
	return out
}
