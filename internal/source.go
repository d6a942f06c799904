// source.go - источники сырых баров
package internal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

const (
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// RawSeriesSource отдаёт свежую серию баров по символу на каждый цикл.
type RawSeriesSource interface {
	Bars(ctx context.Context, symbol string) (BarSeries, error)
}

// FileSource читает по одному файлу на символ: <dir>/<SYMBOL>.json или .parquet.
type FileSource struct {
	dir    string
	format string
}

func NewFileSource(dir, format string) (*FileSource, error) {
	if format != FormatJSON && format != FormatParquet {
		return nil, errors.Errorf("неизвестный формат данных %q", format)
	}
	return &FileSource{dir: dir, format: format}, nil
}

// Path возвращает путь к файлу символа.
func (s *FileSource) Path(symbol string) string {
	return filepath.Join(s.dir, symbol+"."+s.format)
}

func (s *FileSource) Bars(ctx context.Context, symbol string) (BarSeries, error) {
	if err := ctx.Err(); err != nil {
		return BarSeries{}, err
	}
	path := s.Path(symbol)
	if s.format == FormatParquet {
		return ReadBarsParquet(symbol, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return BarSeries{}, errors.Wrapf(err, "%s: не удалось прочитать файл", symbol)
	}
	return DecodeBarsJSON(symbol, data)
}

// parquetBar - строка Parquet-файла с барами, время в unix-миллисекундах.
type parquetBar struct {
	Timestamp   int64    `parquet:"t"`
	Open        float64  `parquet:"o"`
	High        float64  `parquet:"h"`
	Low         float64  `parquet:"l"`
	Close       float64  `parquet:"c"`
	Volume      float64  `parquet:"v"`
	QuoteVolume *float64 `parquet:"qv,optional"`
}

// ReadBarsParquet читает серию из Parquet. quote_volume присутствует, только если он
// заполнен у каждой строки.
func ReadBarsParquet(symbol, path string) (BarSeries, error) {
	rows, err := parquet.ReadFile[parquetBar](path)
	if err != nil {
		return BarSeries{}, errors.Wrapf(err, "%s: чтение parquet", symbol)
	}

	bars := make([]Bar, len(rows))
	hasQuote := len(rows) > 0
	for i, r := range rows {
		bars[i] = Bar{
			Time:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
		if r.QuoteVolume == nil {
			hasQuote = false
		} else {
			bars[i].QuoteVolume = *r.QuoteVolume
		}
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

// WriteBarsParquet сохраняет серию в Parquet.
func WriteBarsParquet(path string, series BarSeries) error {
	hasQuote := series.HasField(FieldQuoteVolume)
	rows := make([]parquetBar, len(series.Bars))
	for i, b := range series.Bars {
		rows[i] = parquetBar{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
		if hasQuote {
			q := b.QuoteVolume
			rows[i].QuoteVolume = &q
		}
	}
	return parquet.WriteFile(path, rows)
}

// EncodeBarsJSON сериализует серию в формат {"candles": [...]}, который читает DecodeBarsJSON.
func EncodeBarsJSON(series BarSeries) ([]byte, error) {
	type outBar struct {
		Time        string   `json:"time"`
		Open        float64  `json:"open"`
		High        float64  `json:"high"`
		Low         float64  `json:"low"`
		Close       float64  `json:"close"`
		Volume      float64  `json:"volume"`
		QuoteVolume *float64 `json:"quote_volume,omitempty"`
	}
	hasQuote := series.HasField(FieldQuoteVolume)
	out := struct {
		Candles []outBar `json:"candles"`
	}{Candles: make([]outBar, len(series.Bars))}
	for i, b := range series.Bars {
		out.Candles[i] = outBar{
			Time:   b.Time.Format(time.RFC3339Nano),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
		if hasQuote {
			q := b.QuoteVolume
			out.Candles[i].QuoteVolume = &q
		}
	}
	return json.MarshalIndent(out, "", "  ")
}
