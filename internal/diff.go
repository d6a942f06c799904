// diff.go - первые разности признаков
package internal

import (
	"gonum.org/v1/gonum/floats"
)

// DiffColumn - имя колонки с первой разностью.
func DiffColumn(col string) string {
	return "diff_" + col
}

// diffSeries считает x_t - x_{t-1}; первая строка NaN и уходит при очистке.
func diffSeries(x []float64) []float64 {
	out := nanSeries(len(x))
	if len(x) < 2 {
		return out
	}
	floats.SubTo(out[1:], x[1:], x[:len(x)-1])
	return out
}

// DiffFeatureGenerator добавляет diff_<col> для перечисленных колонок.
type DiffFeatureGenerator struct {
	columns []string
}

func NewDiffFeatureGenerator(columns []string) *DiffFeatureGenerator {
	return &DiffFeatureGenerator{columns: append([]string(nil), columns...)}
}

func (d *DiffFeatureGenerator) Transform(frame *FeatureFrame) (*FeatureFrame, error) {
	out := frame.Clone()
	for _, col := range d.columns {
		values, err := out.Column(col)
		if err != nil {
			return nil, err
		}
		if err := out.Set(DiffColumn(col), diffSeries(values)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
