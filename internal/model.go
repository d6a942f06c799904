// model.go - загрузка XGBoost-модели и её манифеста
package internal

import (
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	xgb "github.com/Elvenson/xgboost-go"
	"github.com/Elvenson/xgboost-go/activation"
	"github.com/Elvenson/xgboost-go/inference"
	"github.com/Elvenson/xgboost-go/mat"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ModelManifest лежит рядом с артефактом модели и документирует порядок колонок.
//
//	format: xgboost-json
//	artifact: reversal_xgb.json
//	num_classes: 1
//	max_depth: 6
//	columns: [rtn_1, OCHL_range, ...]
type ModelManifest struct {
	Format     string   `yaml:"format"`
	Artifact   string   `yaml:"artifact"`
	FeatureMap string   `yaml:"feature_map"`
	NumClasses int      `yaml:"num_classes"`
	MaxDepth   int      `yaml:"max_depth"`
	Columns    []string `yaml:"columns"`
}

const manifestFormatXGBoostJSON = "xgboost-json"

// ReadModelManifest читает манифест; относительные пути считаются от каталога манифеста.
func ReadModelManifest(path string) (ModelManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelManifest{}, errors.Wrapf(ErrModelUnavailable, "манифест модели: %v", err)
	}
	var m ModelManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return ModelManifest{}, errors.Wrapf(ErrModelUnavailable, "манифест модели %s: %v", path, err)
	}
	if m.Format == "" {
		m.Format = manifestFormatXGBoostJSON
	}
	if m.NumClasses <= 0 {
		m.NumClasses = 1
	}
	dir := filepath.Dir(path)
	if m.Artifact != "" && !filepath.IsAbs(m.Artifact) {
		m.Artifact = filepath.Join(dir, m.Artifact)
	}
	if m.FeatureMap != "" && !filepath.IsAbs(m.FeatureMap) {
		m.FeatureMap = filepath.Join(dir, m.FeatureMap)
	}
	return m, nil
}

// CheckColumns сверяет задокументированный порядок колонок с контрактом конвейера.
func (m ModelManifest) CheckColumns(contract []string) error {
	if !slices.Equal(m.Columns, contract) {
		return schemaErrorf("модель ожидает %d колонок, конвейер выдаёт %d (или другой порядок)", len(m.Columns), len(contract))
	}
	return nil
}

// XGBoostModel - ансамбль деревьев, загруженный из JSON-дампа XGBoost.
type XGBoostModel struct {
	ensemble *inference.Ensemble
	width    int
	closed   atomic.Bool
}

// OpenXGBoostModel читает манифест, сверяет колонки с контрактом и загружает
// ансамбль. Вызывается один раз при старте процесса; Close - при остановке.
func OpenXGBoostModel(manifestPath string, contract []string) (*XGBoostModel, error) {
	manifest, err := ReadModelManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if err := manifest.CheckColumns(contract); err != nil {
		return nil, err
	}
	if manifest.Format != manifestFormatXGBoostJSON {
		return nil, errors.Wrapf(ErrModelUnavailable, "неподдерживаемый формат модели %q", manifest.Format)
	}
	if manifest.Artifact == "" {
		return nil, errors.Wrap(ErrModelUnavailable, "в манифесте не указан artifact")
	}
	if manifest.MaxDepth <= 0 {
		return nil, errors.Wrap(ErrModelUnavailable, "в манифесте не указан max_depth")
	}

	ensemble, err := xgb.LoadXGBoostFromJSON(manifest.Artifact, manifest.FeatureMap,
		manifest.NumClasses, manifest.MaxDepth, &activation.Logistic{})
	if err != nil {
		return nil, errors.Wrapf(ErrModelUnavailable, "загрузка %s: %v", manifest.Artifact, err)
	}
	return &XGBoostModel{ensemble: ensemble, width: len(contract)}, nil
}

// PredictProba возвращает вероятности классов для одной строки.
func (m *XGBoostModel) PredictProba(row []float64) ([]float64, error) {
	if m.closed.Load() {
		return nil, errors.Wrap(ErrModelUnavailable, "модель закрыта")
	}
	if len(row) != m.width {
		return nil, schemaErrorf("ширина строки %d, модель ждёт %d", len(row), m.width)
	}

	// ансамбль считает во float32
	vec := make(mat.SparseVector, len(row))
	for i, v := range row {
		vec[i] = float32(v)
	}
	res, err := m.ensemble.PredictProba(mat.SparseMatrix{Vectors: []mat.SparseVector{vec}})
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) == 0 || res.Vectors[0] == nil {
		return nil, errors.New("пустой ответ ансамбля")
	}
	probs := make([]float64, len(*res.Vectors[0]))
	for i, p := range *res.Vectors[0] {
		probs[i] = float64(p)
	}
	return probs, nil
}

// Close освобождает модель. Повторный вызов безопасен.
func (m *XGBoostModel) Close() error {
	m.closed.Store(true)
	return nil
}
