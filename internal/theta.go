// theta.go - нормализация theta = (x - EWM mean) / EWM std
package internal

import (
	"math"

	"github.com/pkg/errors"
)

// DefaultThetaWindow - span EWM по умолчанию.
const DefaultThetaWindow = 20

// ThetaGroup - группа колонок с общим окном. DropSource удаляет исходные
// колонки после расчёта theta (так поступаем с OBV и VWAP).
type ThetaGroup struct {
	Name       string   `yaml:"name"`
	Columns    []string `yaml:"columns"`
	Window     int      `yaml:"window"`
	DropSource bool     `yaml:"drop_source"`
}

func (g ThetaGroup) window() int {
	if g.Window <= 0 {
		return DefaultThetaWindow
	}
	return g.Window
}

// ThetaColumn - имя колонки theta для исходной колонки.
func ThetaColumn(col string) string {
	return "theta_" + col
}

// EWMStats - экспоненциально взвешенные среднее и стандартное отклонение
// с "неадаптивной" рекурсией: y_t = (1-a)*y_{t-1} + a*x_t, a = 2/(span+1).
// Дисперсия с поправкой на смещение по весам. Пропуски (NaN) в начале ряда
// откладывают старт; пропуски внутри ряда только ослабляют старые веса.
func EWMStats(x []float64, span int) (mean, std []float64) {
	n := len(x)
	mean = nanSeries(n)
	std = nanSeries(n)
	if n == 0 {
		return mean, std
	}

	alpha := 2.0 / (float64(span) + 1.0)
	oldWtFactor := 1.0 - alpha
	newWt := alpha

	m := x[0]
	nobs := 0
	if !math.IsNaN(m) {
		nobs = 1
		mean[0] = m
	}
	cov := 0.0
	sumWt, sumWt2, oldWt := 1.0, 1.0, 1.0

	for i := 1; i < n; i++ {
		cur := x[i]
		isObs := !math.IsNaN(cur)
		if isObs {
			nobs++
		}

		if !math.IsNaN(m) {
			sumWt *= oldWtFactor
			sumWt2 *= oldWtFactor * oldWtFactor
			oldWt *= oldWtFactor
			if isObs {
				oldMean := m
				// на константном ряду среднее остаётся точным
				if m != cur {
					m = (oldWt*oldMean + newWt*cur) / (oldWt + newWt)
				}
				cov = (oldWt*(cov+(oldMean-m)*(oldMean-m)) + newWt*(cur-m)*(cur-m)) / (oldWt + newWt)
				sumWt += newWt
				sumWt2 += newWt * newWt
				oldWt += newWt
				sumWt /= oldWt
				sumWt2 /= oldWt * oldWt
				oldWt = 1.0
			}
		} else if isObs {
			m = cur
		}

		if nobs == 0 {
			continue
		}
		mean[i] = m
		numerator := sumWt * sumWt
		denominator := numerator - sumWt2
		if denominator > 0 {
			variance := numerator / denominator * cov
			if variance < 0 {
				variance = 0
			}
			std[i] = math.Sqrt(variance)
		}
	}
	return mean, std
}

// Theta считает (x - mean) / std. Если std равно нулю или не определено,
// результат NaN: такая строка уйдёт при очистке.
func Theta(x []float64, span int) []float64 {
	mean, std := EWMStats(x, span)
	out := nanSeries(len(x))
	for i := range x {
		if std[i] == 0 || math.IsNaN(std[i]) {
			continue
		}
		out[i] = (x[i] - mean[i]) / std[i]
	}
	return out
}

// ThetaNormalizer добавляет theta_<col> для групп колонок в заданном порядке.
type ThetaNormalizer struct {
	groups []ThetaGroup
}

func NewThetaNormalizer(groups []ThetaGroup) *ThetaNormalizer {
	return &ThetaNormalizer{groups: groups}
}

func (t *ThetaNormalizer) Transform(frame *FeatureFrame) (*FeatureFrame, error) {
	out := frame.Clone()
	for _, g := range t.groups {
		for _, col := range g.Columns {
			values, err := out.Column(col)
			if err != nil {
				return nil, errors.Wrapf(err, "theta группа %q", g.Name)
			}
			if err := out.Set(ThetaColumn(col), Theta(values, g.window())); err != nil {
				return nil, err
			}
		}
		if g.DropSource {
			if err := out.Drop(g.Columns...); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
