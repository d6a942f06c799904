// indicators.go
// Технические индикаторы для экстрактора признаков. Все функции возвращают
// срез той же длины, что и вход; на прогреве значения равны NaN.

package internal

import (
	"math"

	talib "github.com/markcheno/go-talib"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// IndicatorWindows - периоды индикаторов.
type IndicatorWindows struct {
	ADX      int `yaml:"adx"`
	CCI      int `yaml:"cci"`
	MACDFast int `yaml:"macd_fast"`
	MACDSlow int `yaml:"macd_slow"`
	RSI      int `yaml:"rsi"`
	VWAP     int `yaml:"vwap"`
}

// DefaultIndicatorWindows - стандартные окна: ADX(14), CCI(20), MACD(12,26), RSI(14), VWAP(14)
func DefaultIndicatorWindows() IndicatorWindows {
	return IndicatorWindows{
		ADX:      14,
		CCI:      20,
		MACDFast: 12,
		MACDSlow: 26,
		RSI:      14,
		VWAP:     14,
	}
}

func (w IndicatorWindows) Validate() error {
	if w.ADX <= 1 || w.CCI <= 1 || w.RSI <= 1 || w.VWAP <= 0 {
		return errors.Errorf("периоды индикаторов должны быть положительными: %+v", w)
	}
	if w.MACDFast <= 1 || w.MACDSlow <= w.MACDFast {
		return errors.Errorf("неверные периоды MACD: fast=%d slow=%d", w.MACDFast, w.MACDSlow)
	}
	return nil
}

func (w IndicatorWindows) adxLookback() int  { return 2*w.ADX - 1 }
func (w IndicatorWindows) cciLookback() int  { return w.CCI - 1 }
func (w IndicatorWindows) macdLookback() int { return w.MACDSlow - 1 }
func (w IndicatorWindows) rsiLookback() int  { return w.RSI - 1 }
func (w IndicatorWindows) vwapLookback() int { return w.VWAP - 1 }

// Warmup - число первых баров, где хотя бы один базовый индикатор ещё не определён.
func (w IndicatorWindows) Warmup() int {
	return maxN(1, w.adxLookback(), w.cciLookback(), w.macdLookback(), w.rsiLookback(), w.vwapLookback())
}

// maxN - максимум из нескольких чисел
func maxN(vals ...int) int {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// nanSeries создаёт срез длины n, заполненный NaN.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// maskWarmup заменяет первые lookback значений на NaN.
// talib заполняет прогрев нулями, а ноль здесь выглядел бы как валидный сигнал.
func maskWarmup(series []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

// calculateADX - сила тренда
func calculateADX(high, low, close []float64, period int) []float64 {
	lookback := 2*period - 1
	if len(close) <= lookback {
		return nanSeries(len(close))
	}
	return maskWarmup(talib.Adx(high, low, close, period), lookback)
}

// calculateCCI - индекс товарного канала, константа 0.015
func calculateCCI(high, low, close []float64, period int) []float64 {
	lookback := period - 1
	if len(close) <= lookback {
		return nanSeries(len(close))
	}
	return maskWarmup(talib.Cci(high, low, close, period), lookback)
}

// ewmMean - EWM среднее без поправки: старт с первого значения,
// y_t = (1-a)*y_{t-1} + a*x_t. Первые minPeriods-1 значений равны NaN.
// В отличие от talib, первое значение не заменяется SMA.
func ewmMean(x []float64, alpha float64, minPeriods int) []float64 {
	out := nanSeries(len(x))
	if len(x) == 0 {
		return out
	}
	oldWt := 1.0 - alpha
	m := x[0]
	for i, cur := range x {
		if i > 0 && m != cur {
			m = (oldWt*m + alpha*cur) / (oldWt + alpha)
		}
		if i+1 >= minPeriods {
			out[i] = m
		}
	}
	return out
}

// calculateMACD - линия MACD: EWM(span=fast) - EWM(span=slow),
// определена с бара slow-1.
func calculateMACD(close []float64, fast, slow int) []float64 {
	emaFast := ewmMean(close, 2.0/(float64(fast)+1.0), fast)
	emaSlow := ewmMean(close, 2.0/(float64(slow)+1.0), slow)
	macd := make([]float64, len(close))
	floats.SubTo(macd, emaFast, emaSlow)
	return macd
}

// calculateRSI - индекс относительной силы: сглаживание Уайлдера (alpha = 1/period),
// ряды роста и падения стартуют с нуля. При нулевом среднем падении RSI = 100.
func calculateRSI(close []float64, period int) []float64 {
	n := len(close)
	up := make([]float64, n)
	down := make([]float64, n)
	for i := 1; i < n; i++ {
		switch d := close[i] - close[i-1]; {
		case d > 0:
			up[i] = d
		case d < 0:
			down[i] = -d
		}
	}

	alpha := 1.0 / float64(period)
	avgUp := ewmMean(up, alpha, period)
	avgDown := ewmMean(down, alpha, period)

	rsi := nanSeries(n)
	for i := range rsi {
		switch {
		case math.IsNaN(avgDown[i]):
		case avgDown[i] == 0:
			rsi[i] = 100
		default:
			rsi[i] = 100 - 100/(1+avgUp[i]/avgDown[i])
		}
	}
	return rsi
}

// calculateOBV - On-Balance Volume. Объём вычитается только при падении close,
// при неизменной цене прибавляется. Первое значение равно объёму первого бара.
func calculateOBV(close, volume []float64) []float64 {
	if len(close) == 0 {
		return nil
	}
	obv := make([]float64, len(close))
	obv[0] = volume[0]
	for i := 1; i < len(close); i++ {
		if close[i] < close[i-1] {
			obv[i] = obv[i-1] - volume[i]
		} else {
			obv[i] = obv[i-1] + volume[i]
		}
	}
	return obv
}

// calculateVWAP - скользящая VWAP по типичной цене (H+L+C)/3.
// Если суммарный объём окна нулевой, значение не определено.
func calculateVWAP(high, low, close, volume []float64, period int) []float64 {
	n := len(close)
	vwap := nanSeries(n)
	if n < period {
		return vwap
	}

	typical := make([]float64, n)
	for i := range typical {
		typical[i] = (high[i] + low[i] + close[i]) / 3.0
	}

	for i := period - 1; i < n; i++ {
		from := i - period + 1
		volSum := floats.Sum(volume[from : i+1])
		if volSum == 0 {
			continue
		}
		vwap[i] = floats.Dot(typical[from:i+1], volume[from:i+1]) / volSum
	}
	return vwap
}
