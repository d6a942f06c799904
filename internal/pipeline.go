// pipeline.go - связка стадий: инструмент -> признаки -> вектор -> вероятность
package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	lop "github.com/samber/lo/parallel"
)

// Stage - одна стадия конвейера с единственной операцией.
type Stage[In, Out any] interface {
	Transform(In) (Out, error)
}

// Имена стадий для логов и метрик.
const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageTheta   = "theta"
	StageDiff    = "diff"
	StageClean   = "clean"
	StageCombine = "combine"
	StagePredict = "predict"
)

// StageRows - число строк после каждой стадии одного инструмента.
// Значения не возрастают слева направо.
type StageRows struct {
	Bars        int `json:"bars"`
	Extracted   int `json:"extracted"`
	Normalized  int `json:"normalized"`
	Differenced int `json:"differenced"`
	Cleaned     int `json:"cleaned"`
}

// InstrumentChain - цепочка extract -> theta -> diff -> clean для одного инструмента.
type InstrumentChain struct {
	extract Stage[BarSeries, *FeatureFrame]
	theta   Stage[*FeatureFrame, *FeatureFrame]
	diff    Stage[*FeatureFrame, *FeatureFrame]
	clean   Stage[*FeatureFrame, *FeatureFrame]
	metrics *Metrics
}

// InstrumentFeatures - очищенная таблица инструмента и статистика строк.
type InstrumentFeatures struct {
	Symbol string
	Frame  *FeatureFrame
	Rows   StageRows
}

func (c *InstrumentChain) Run(series BarSeries) (InstrumentFeatures, error) {
	res := InstrumentFeatures{Symbol: series.Symbol}
	res.Rows.Bars = series.Len()

	start := time.Now()
	frame, err := c.extract.Transform(series)
	if err != nil {
		return res, errors.Wrapf(err, "%s: %s", series.Symbol, StageExtract)
	}
	c.metrics.ObserveStage(StageExtract, start)
	res.Rows.Extracted = frame.Len()

	start = time.Now()
	if frame, err = c.theta.Transform(frame); err != nil {
		return res, errors.Wrapf(err, "%s: %s", series.Symbol, StageTheta)
	}
	c.metrics.ObserveStage(StageTheta, start)
	res.Rows.Normalized = frame.Len()

	start = time.Now()
	if frame, err = c.diff.Transform(frame); err != nil {
		return res, errors.Wrapf(err, "%s: %s", series.Symbol, StageDiff)
	}
	c.metrics.ObserveStage(StageDiff, start)
	res.Rows.Differenced = frame.Len()

	start = time.Now()
	if frame, err = c.clean.Transform(frame); err != nil {
		return res, errors.Wrapf(err, "%s: %s", series.Symbol, StageClean)
	}
	c.metrics.ObserveStage(StageClean, start)
	res.Rows.Cleaned = frame.Len()

	res.Frame = frame
	return res, nil
}

// FeatureSet - результат всех стадий до модели.
type FeatureSet struct {
	Vector      *FeatureFrame
	Instruments []InstrumentFeatures
	JoinedRows  int
}

// Prediction - итог одного цикла.
type Prediction struct {
	Time        time.Time
	Probability float64
	Features    FeatureSet
}

// Pipeline связывает стадии для целевого инструмента и двух референсов.
// Собирается один раз; между циклами не хранит состояния.
type Pipeline struct {
	target     string
	cfg        FeatureConfig
	extractor  *BaseFeatureExtractor
	normalizer *ThetaNormalizer
	differ     *DiffFeatureGenerator
	combiner   *CrossAssetCombiner
	predictor  *ReversalPredictor
	metrics    *Metrics
	logger     zerolog.Logger
}

// NewPipeline проверяет конфигурацию и собирает стадии. model может быть nil:
// тогда признаки считаются, а Predict возвращает ErrModelUnavailable.
func NewPipeline(target string, cfg FeatureConfig, model ProbabilityModel, metrics *Metrics, logger zerolog.Logger) (*Pipeline, error) {
	if target == "" {
		return nil, errors.New("не задан целевой инструмент")
	}
	combiner, err := NewCrossAssetCombiner(cfg, logger)
	if err != nil {
		return nil, err
	}
	extractor, err := NewBaseFeatureExtractor(cfg.Indicators)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		target:     target,
		cfg:        cfg,
		extractor:  extractor,
		normalizer: NewThetaNormalizer(cfg.ThetaGroups),
		differ:     NewDiffFeatureGenerator(cfg.DiffColumns),
		combiner:   combiner,
		predictor:  NewReversalPredictor(model, combiner.Contract()),
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Symbols возвращает порядок инструментов: целевой, затем референсы.
func (p *Pipeline) Symbols() []string {
	out := []string{p.target}
	for _, ref := range p.cfg.References {
		out = append(out, ref.Symbol)
	}
	return out
}

// Contract - порядок колонок вектора модели.
func (p *Pipeline) Contract() []string {
	return p.combiner.Contract()
}

// RequiredHistory - минимальная длина серии для одной полной строки.
func (p *Pipeline) RequiredHistory() int {
	return p.cfg.RequiredHistory()
}

func (p *Pipeline) chain(symbol string) *InstrumentChain {
	return &InstrumentChain{
		extract: p.extractor,
		theta:   p.normalizer,
		diff:    p.differ,
		clean:   NewCleaner(symbol, p.cfg.RequiredHistory()),
		metrics: p.metrics,
	}
}

// Fetch запрашивает серии всех инструментов у источника. Ошибка источника
// прерывает цикл сразу, без повторов.
func (p *Pipeline) Fetch(ctx context.Context, source RawSeriesSource) ([]BarSeries, error) {
	start := time.Now()
	defer p.metrics.ObserveStage(StageFetch, start)

	symbols := p.Symbols()
	out := make([]BarSeries, len(symbols))
	for i, symbol := range symbols {
		series, err := source.Bars(ctx, symbol)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", symbol, StageFetch)
		}
		if series.Symbol == "" {
			series.Symbol = symbol
		}
		out[i] = series
	}
	return out, nil
}

// Features прогоняет серии (целевой, ref1, ref2) через цепочки параллельно
// и собирает вектор модели. Ошибка возвращается по первому инструменту в порядке Symbols.
func (p *Pipeline) Features(series []BarSeries) (FeatureSet, error) {
	if len(series) != len(p.cfg.References)+1 {
		return FeatureSet{}, schemaErrorf("ожидалось %d серий, получено %d", len(p.cfg.References)+1, len(series))
	}

	type chainResult struct {
		features InstrumentFeatures
		err      error
	}
	results := lop.Map(series, func(s BarSeries, _ int) chainResult {
		features, err := p.chain(s.Symbol).Run(s)
		return chainResult{features: features, err: err}
	})

	set := FeatureSet{Instruments: make([]InstrumentFeatures, len(results))}
	for i, r := range results {
		if r.err != nil {
			return FeatureSet{}, r.err
		}
		set.Instruments[i] = r.features
		p.metrics.ObserveRows(r.features.Symbol, r.features.Rows)
		p.logger.Debug().
			Str("symbol", r.features.Symbol).
			Int("bars", r.features.Rows.Bars).
			Int("cleaned", r.features.Rows.Cleaned).
			Msg("признаки инструмента готовы")
	}

	refs := make([]*FeatureFrame, 0, len(p.cfg.References))
	for _, inst := range set.Instruments[1:] {
		refs = append(refs, inst.Frame)
	}

	start := time.Now()
	vector, err := p.combiner.Transform(CombineInput{Target: set.Instruments[0].Frame, References: refs})
	if err != nil {
		return FeatureSet{}, err
	}
	p.metrics.ObserveStage(StageCombine, start)
	set.Vector = vector
	set.JoinedRows = vector.Len()
	return set, nil
}

// Predict считает признаки и вероятность разворота по последней строке вектора.
func (p *Pipeline) Predict(series []BarSeries) (Prediction, error) {
	set, err := p.Features(series)
	if err != nil {
		return Prediction{}, err
	}

	start := time.Now()
	prob, err := p.predictor.Transform(set.Vector)
	if err != nil {
		return Prediction{Features: set}, err
	}
	p.metrics.ObserveStage(StagePredict, start)

	ts, _, err := set.Vector.LastRow()
	if err != nil {
		return Prediction{Features: set}, err
	}
	return Prediction{Time: ts, Probability: prob, Features: set}, nil
}
