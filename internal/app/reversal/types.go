package reversal

import (
	"context"
	"time"

	"revdet/internal"
)

// CycleResult - итог одного цикла обновления
type CycleResult struct {
	ID         string
	Target     string
	Started    time.Time
	Duration   time.Duration
	Outcome    string // ok | skipped | failed
	ErrorKind  string
	Err        error
	Prediction internal.Prediction
}

// FeatureRow - строка вектора признаков для сохранения в JSON
type FeatureRow struct {
	Time   string    `json:"time"`
	Values []float64 `json:"values"`
}

// CycleRunner - интерфейс для запуска циклов
type CycleRunner interface {
	RunCycle(ctx context.Context) CycleResult
}

// ResultSaver - интерфейс для сохранения вектора признаков
type ResultSaver interface {
	SaveFeatures(set internal.FeatureSet, path string) error
}

// ResultPrinter - интерфейс для вывода результатов
type ResultPrinter interface {
	PrintCycle(res CycleResult)
	PrintContract(columns []string)
}
