// predictor.go - вероятность разворота по последней строке вектора
package internal

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// ReversalClass - индекс класса "разворот" в выходе классификатора.
const ReversalClass = 1

// ProbabilityModel - единственная возможность модели, которая нужна конвейеру:
// вероятности классов для одной строки фиксированной ширины.
type ProbabilityModel interface {
	PredictProba(row []float64) ([]float64, error)
}

// ReversalPredictor - тонкий адаптер над моделью. Модель загружается один раз
// при старте и только читается, поэтому блокировки не нужны.
type ReversalPredictor struct {
	model   ProbabilityModel
	columns []string
}

// NewReversalPredictor: model может быть nil, если загрузка не удалась;
// тогда каждый вызов Transform вернёт ErrModelUnavailable, а процесс продолжит работу.
func NewReversalPredictor(model ProbabilityModel, columns []string) *ReversalPredictor {
	return &ReversalPredictor{model: model, columns: append([]string(nil), columns...)}
}

// Transform берёт последнюю строку вектора и возвращает вероятность разворота.
func (p *ReversalPredictor) Transform(vector *FeatureFrame) (float64, error) {
	if p.model == nil {
		return 0, errors.Wrap(ErrModelUnavailable, "модель не загружена")
	}
	if vector == nil {
		return 0, schemaErrorf("predictor: пустой вектор")
	}
	if cols := vector.Columns(); !slices.Equal(cols, p.columns) {
		return 0, schemaErrorf("predictor: колонки вектора (%d) не совпадают с ожидаемыми моделью (%d)", len(cols), len(p.columns))
	}

	_, row, err := vector.LastRow()
	if err != nil {
		return 0, err
	}

	probs, err := p.model.PredictProba(row)
	if err != nil {
		return 0, errors.Wrapf(ErrModelUnavailable, "инференс: %v", err)
	}

	var prob float64
	switch {
	case len(probs) == 1:
		// бинарная логистическая модель отдаёт только вероятность положительного класса
		prob = probs[0]
	case len(probs) > ReversalClass:
		prob = probs[ReversalClass]
	default:
		return 0, errors.Wrap(ErrModelUnavailable, "модель не вернула вероятностей")
	}
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return 0, errors.Wrapf(ErrModelUnavailable, "вероятность вне [0,1]: %v", prob)
	}
	return prob, nil
}
