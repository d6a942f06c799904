package reversal

import (
	"encoding/json"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"revdet/internal"
)

var _ ResultSaver = (*FileSaver)(nil)

// FileSaver - сохранение вектора признаков в JSON или Parquet
type FileSaver struct {
	format string
}

// NewFileSaver - конструктор для FileSaver
func NewFileSaver(format string) (*FileSaver, error) {
	if format != internal.FormatJSON && format != internal.FormatParquet {
		return nil, errors.Errorf("неизвестный формат выгрузки %q", format)
	}
	return &FileSaver{format: format}, nil
}

// featureRecord - одна ячейка вектора в "длинном" формате Parquet
type featureRecord struct {
	Timestamp int64   `parquet:"t"`
	Column    string  `parquet:"column,dict"`
	Value     float64 `parquet:"value"`
}

// SaveFeatures - сохраняет вектор признаков в файл
func (s *FileSaver) SaveFeatures(set internal.FeatureSet, path string) error {
	if set.Vector == nil {
		return errors.New("нет вектора признаков для сохранения")
	}
	if s.format == internal.FormatParquet {
		return parquet.WriteFile(path, featureRecords(set.Vector))
	}

	data := struct {
		Columns     []string                      `json:"columns"`
		Rows        []FeatureRow                  `json:"rows"`
		Instruments map[string]internal.StageRows `json:"instruments"`
	}{
		Columns:     set.Vector.Columns(),
		Rows:        featureRows(set.Vector),
		Instruments: make(map[string]internal.StageRows, len(set.Instruments)),
	}
	for _, inst := range set.Instruments {
		data.Instruments[inst.Symbol] = inst.Rows
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "сериализация признаков")
	}
	return os.WriteFile(path, jsonData, 0644)
}

// featureRows - строки вектора в порядке индекса
func featureRows(frame *internal.FeatureFrame) []FeatureRow {
	index := frame.Index()
	rows := make([]FeatureRow, len(index))
	for i, t := range index {
		rows[i] = FeatureRow{Time: t.Format(time.RFC3339Nano), Values: frame.Row(i)}
	}
	return rows
}

// featureRecords - вектор в длинном формате: (время, колонка, значение)
func featureRecords(frame *internal.FeatureFrame) []featureRecord {
	index := frame.Index()
	columns := frame.Columns()
	out := make([]featureRecord, 0, len(index)*len(columns))
	for i, t := range index {
		row := frame.Row(i)
		for j, col := range columns {
			out = append(out, featureRecord{Timestamp: t.UnixMilli(), Column: col, Value: row[j]})
		}
	}
	return out
}
