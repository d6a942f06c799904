package internal

import (
	"math"
	"time"

	"github.com/rs/zerolog"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// syntheticBars строит детерминированную серию: первые закрытия 100, 101, 99, 102,
// дальше синусоида с лёгким трендом. phase сдвигает форму после четвёртого бара.
func syntheticBars(n int, phase float64) []Bar {
	bars := make([]Bar, n)
	prevClose := 99.5
	for i := 0; i < n; i++ {
		var c float64
		switch i {
		case 0:
			c = 100
		case 1:
			c = 101
		case 2:
			c = 99
		case 3:
			c = 102
		default:
			c = 100 + 2*math.Sin(0.9*float64(i)+phase) + 0.05*float64(i)
		}
		o := prevClose
		vol := 1000 + 37*float64(i%11) + 5*float64(i) + 50*phase
		bars[i] = Bar{
			Time:        testStart.Add(time.Duration(i) * time.Hour),
			Open:        o,
			High:        math.Max(o, c) + 0.5 + 0.1*float64(i%3),
			Low:         math.Min(o, c) - 0.5,
			Close:       c,
			Volume:      vol,
			QuoteVolume: vol * c,
		}
		prevClose = c
	}
	return bars
}

func syntheticSeries(symbol string, n int, phase float64) BarSeries {
	return NewBarSeries(symbol, syntheticBars(n, phase))
}

// testTriple - целевой инструмент и два референса из DefaultFeatureConfig.
func testTriple(n int) []BarSeries {
	return []BarSeries{
		syntheticSeries("SOLUSDT", n, 0),
		syntheticSeries("BTCUSDT", n, 0.7),
		syntheticSeries("ETHUSDT", n, 1.9),
	}
}

// stubModel отдаёт фиксированные вероятности и запоминает последнюю строку.
type stubModel struct {
	probs   []float64
	err     error
	lastRow []float64
}

func (m *stubModel) PredictProba(row []float64) ([]float64, error) {
	m.lastRow = append([]float64(nil), row...)
	if m.err != nil {
		return nil, m.err
	}
	return m.probs, nil
}

func newStubModel() *stubModel {
	return &stubModel{probs: []float64{0.27, 0.73}}
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func frameOf(index []time.Time, cols map[string][]float64, order ...string) *FeatureFrame {
	f := NewFeatureFrame(index)
	for _, name := range order {
		if err := f.Set(name, cols[name]); err != nil {
			panic(err)
		}
	}
	return f
}

func hours(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = testStart.Add(time.Duration(i) * time.Hour)
	}
	return out
}
