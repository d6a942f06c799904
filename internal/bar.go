// bar.go
package internal

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Имена сырых полей бара.
const (
	FieldOpen        = "open"
	FieldHigh        = "high"
	FieldLow         = "low"
	FieldClose       = "close"
	FieldVolume      = "volume"
	FieldQuoteVolume = "quote_volume"
)

// RawFields - все сырые поля, которые требуются экстрактору.
var RawFields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldQuoteVolume}

type Price float64

// UnmarshalJSON принимает как обычное число, так и объект {"units": "", "nano": 0}.
// Преобразование в float64 происходит один раз на этапе загрузки.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var temp struct {
			Units string `json:"units"`
			Nano  int32  `json:"nano"`
		}
		if err := json.Unmarshal(data, &temp); err != nil {
			return err
		}
		units, err := strconv.ParseInt(temp.Units, 10, 64)
		if err != nil {
			return err
		}
		*p = Price(float64(units) + float64(temp.Nano)/1_000_000_000.0)
		return nil
	}

	v, err := parseNumber(data)
	if err != nil {
		return err
	}
	*p = Price(v)
	return nil
}

// parseNumber разбирает число, записанное как JSON-число или строка.
func parseNumber(data []byte) (float64, error) {
	s := strings.Trim(string(data), `"`)
	return strconv.ParseFloat(s, 64)
}

// Bar - один бар инструмента.
type Bar struct {
	Time        time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	QuoteVolume float64
}

// BarSeries - упорядоченная по времени последовательность баров одного инструмента.
// Fields перечисляет сырые поля, которые источник действительно заполнил.
type BarSeries struct {
	Symbol string
	Bars   []Bar
	Fields []string
}

// NewBarSeries создаёт серию со всеми сырыми полями.
func NewBarSeries(symbol string, bars []Bar) BarSeries {
	return BarSeries{
		Symbol: symbol,
		Bars:   bars,
		Fields: append([]string(nil), RawFields...),
	}
}

func (s BarSeries) Len() int {
	return len(s.Bars)
}

// HasField проверяет, передал ли источник указанное сырое поле.
func (s BarSeries) HasField(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Validate проверяет строгое возрастание и уникальность меток времени.
func (s BarSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Time.After(s.Bars[i-1].Time) {
			return schemaErrorf("%s: метки времени не возрастают строго на позиции %d (%s после %s)",
				s.Symbol, i, s.Bars[i].Time.Format(time.RFC3339), s.Bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Field возвращает значения сырого поля в виде среза.
func (s BarSeries) Field(name string) ([]float64, error) {
	if !s.HasField(name) {
		return nil, schemaErrorf("%s: нет сырого поля %q", s.Symbol, name)
	}
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		switch name {
		case FieldOpen:
			out[i] = b.Open
		case FieldHigh:
			out[i] = b.High
		case FieldLow:
			out[i] = b.Low
		case FieldClose:
			out[i] = b.Close
		case FieldVolume:
			out[i] = b.Volume
		case FieldQuoteVolume:
			out[i] = b.QuoteVolume
		default:
			return nil, schemaErrorf("%s: неизвестное сырое поле %q", s.Symbol, name)
		}
	}
	return out, nil
}

// Times возвращает метки времени баров.
func (s BarSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Time
	}
	return out
}

// jsonBar - формат бара в JSON-файлах. quote_volume необязателен.
type jsonBar struct {
	Time        string          `json:"time"`
	Open        Price           `json:"open"`
	High        Price           `json:"high"`
	Low         Price           `json:"low"`
	Close       Price           `json:"close"`
	Volume      json.RawMessage `json:"volume"`
	QuoteVolume json.RawMessage `json:"quote_volume,omitempty"`
}

// parseBarTime пробует RFC3339, RFC3339Nano, формат без зоны и unix-миллисекунды.
func parseBarTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, errors.Errorf("не удалось разобрать время %q", s)
}

// DecodeBarsJSON разбирает {"candles": [...]} в серию, сортирует по времени и
// проверяет её. quote_volume считается присутствующим, только если он есть у каждого бара.
func DecodeBarsJSON(symbol string, data []byte) (BarSeries, error) {
	var wrapper struct {
		Candles []jsonBar `json:"candles"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return BarSeries{}, errors.Wrapf(err, "%s: ошибка парсинга JSON", symbol)
	}

	bars := make([]Bar, 0, len(wrapper.Candles))
	hasQuote := len(wrapper.Candles) > 0
	for i, c := range wrapper.Candles {
		t, err := parseBarTime(c.Time)
		if err != nil {
			return BarSeries{}, errors.Wrapf(err, "%s: бар %d", symbol, i)
		}
		if len(c.Volume) == 0 {
			return BarSeries{}, schemaErrorf("%s: бар %d без volume", symbol, i)
		}
		vol, err := parseNumber(c.Volume)
		if err != nil {
			return BarSeries{}, errors.Wrapf(err, "%s: бар %d: volume", symbol, i)
		}
		quote := math.NaN()
		if len(c.QuoteVolume) == 0 || string(c.QuoteVolume) == "null" {
			hasQuote = false
		} else if quote, err = parseNumber(c.QuoteVolume); err != nil {
			return BarSeries{}, errors.Wrapf(err, "%s: бар %d: quote_volume", symbol, i)
		}
		bars = append(bars, Bar{
			Time:        t,
			Open:        float64(c.Open),
			High:        float64(c.High),
			Low:         float64(c.Low),
			Close:       float64(c.Close),
			Volume:      vol,
			QuoteVolume: quote,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	series := NewBarSeries(symbol, bars)
	if !hasQuote {
		series.Fields = []string{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}
	}
	if err := series.Validate(); err != nil {
		return BarSeries{}, err
	}
	return series, nil
}
