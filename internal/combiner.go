// combiner.go - сборка вектора модели из трёх инструментов
package internal

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// CombineInput - очищенные таблицы целевого и двух референсных инструментов.
// References идут в том же порядке, что и FeatureConfig.References.
type CombineInput struct {
	Target     *FeatureFrame
	References []*FeatureFrame
}

// CrossAssetCombiner выбирает экспортируемые колонки, добавляет суффиксы
// референсов, выравнивает по времени (inner join), считает co-diff и
// проецирует результат на контракт колонок модели.
type CrossAssetCombiner struct {
	cfg      FeatureConfig
	contract []string
	logger   zerolog.Logger
}

func NewCrossAssetCombiner(cfg FeatureConfig, logger zerolog.Logger) (*CrossAssetCombiner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CrossAssetCombiner{
		cfg:      cfg,
		contract: cfg.ContractColumns(),
		logger:   logger,
	}, nil
}

// Contract возвращает копию контракта колонок.
func (c *CrossAssetCombiner) Contract() []string {
	return append([]string(nil), c.contract...)
}

func (c *CrossAssetCombiner) Transform(in CombineInput) (*FeatureFrame, error) {
	if in.Target == nil || len(in.References) != len(c.cfg.References) {
		return nil, schemaErrorf("combiner: ожидалась целевая таблица и %d референса", len(c.cfg.References))
	}

	// 1-2. экспортируемые колонки и суффиксы референсов
	target, err := in.Target.Select(c.cfg.ExportColumns)
	if err != nil {
		return nil, errors.Wrap(err, "combiner: целевой инструмент")
	}
	frames := []*FeatureFrame{target}
	for i, ref := range in.References {
		if ref == nil {
			return nil, schemaErrorf("combiner: нет таблицы референса %s", c.cfg.References[i].Symbol)
		}
		selected, err := ref.Select(c.cfg.ExportColumns)
		if err != nil {
			return nil, errors.Wrapf(err, "combiner: референс %s", c.cfg.References[i].Symbol)
		}
		frames = append(frames, selected.WithSuffix(c.cfg.References[i].Suffix))
	}

	// 3. выравнивание по времени
	joined, err := InnerJoin(frames...)
	if err != nil {
		return nil, err
	}
	if joined.Len() == 0 {
		return nil, errors.Wrapf(ErrAlignmentFailure, "нет общих меток времени (target=%d, refs=%d/%d строк)",
			target.Len(), frames[1].Len(), frames[2].Len())
	}
	if longest := slices.Max([]int{frames[0].Len(), frames[1].Len(), frames[2].Len()}); joined.Len() < longest {
		c.logger.Warn().
			Int("target_rows", frames[0].Len()).
			Int("ref1_rows", frames[1].Len()).
			Int("ref2_rows", frames[2].Len()).
			Int("joined_rows", joined.Len()).
			Msg("выравнивание отбросило строки без общих меток времени")
	}

	// 4. co-diff: target - reference
	for _, ref := range c.cfg.References {
		for _, col := range c.cfg.CoDiffColumns {
			own, err := joined.Column(col)
			if err != nil {
				return nil, err
			}
			other, err := joined.Column(col + "_" + ref.Suffix)
			if err != nil {
				return nil, err
			}
			diff := make([]float64, joined.Len())
			floats.SubTo(diff, own, other)
			if err := joined.Set(CoDiffColumn(col, ref.Suffix), diff); err != nil {
				return nil, err
			}
		}
	}

	// 5. проекция на контракт
	out, err := joined.Select(c.contract)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(out.Columns(), c.contract) {
		return nil, schemaErrorf("combiner: порядок колонок не совпадает с контрактом")
	}

	out = out.DropIncomplete()
	if out.Len() == 0 {
		return nil, errors.Wrap(ErrInsufficientHistory, "combiner: после очистки не осталось строк")
	}
	return out, nil
}
