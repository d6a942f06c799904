// config.go - типизированная конфигурация признаков и приложения
package internal

import (
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Reference - референсный инструмент и суффикс его колонок.
type Reference struct {
	Symbol string `yaml:"symbol"`
	Suffix string `yaml:"suffix"`
}

// FeatureConfig перечисляет всё, от чего зависит форма вектора модели.
// Проверяется один раз в Validate, дальше считается константой.
type FeatureConfig struct {
	Indicators    IndicatorWindows `yaml:"indicators"`
	ThetaGroups   []ThetaGroup     `yaml:"theta_groups"`
	DiffColumns   []string         `yaml:"diff_columns"`
	ExportColumns []string         `yaml:"export_columns"`
	CoDiffColumns []string         `yaml:"co_diff_columns"`
	References    []Reference      `yaml:"references"`
}

// DefaultFeatureConfig - набор признаков, на котором обучена модель разворота.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		Indicators: DefaultIndicatorWindows(),
		ThetaGroups: []ThetaGroup{
			{Name: "raw", Columns: []string{FieldClose, FieldVolume, FieldQuoteVolume}, Window: DefaultThetaWindow},
			{Name: "derived", Columns: []string{ColRtn1, ColOCHLRange}, Window: DefaultThetaWindow},
			{Name: "volume_flow", Columns: []string{ColOBV, ColVWAP}, Window: DefaultThetaWindow, DropSource: true},
		},
		DiffColumns: []string{
			"theta_volume",
			"theta_volume_obv",
			ColRtn1,
			ColOCHLRange,
			"theta_close",
			ColADX,
			ColCCI,
			ColRSI,
			ColMACD,
		},
		ExportColumns: []string{
			"rtn_1", "OCHL_range", "trend_adx", "trend_cci", "macd", "momentum_rsi",
			"theta_close", "theta_volume", "theta_quote_volume", "theta_rtn_1",
			"theta_OCHL_range", "theta_volume_obv", "theta_volume_vwap",
			"diff_theta_volume", "diff_theta_volume_obv", "diff_rtn_1",
			"diff_OCHL_range", "diff_theta_close", "diff_trend_adx",
			"diff_trend_cci", "diff_momentum_rsi", "diff_macd",
		},
		CoDiffColumns: []string{"momentum_rsi", "theta_volume_obv", "macd", "trend_cci", "trend_adx"},
		References: []Reference{
			{Symbol: "BTCUSDT", Suffix: "btc"},
			{Symbol: "ETHUSDT", Suffix: "eth"},
		},
	}
}

// CoDiffColumn - имя кросс-разности колонки с референсом.
func CoDiffColumn(col, suffix string) string {
	return "co_diff_" + col + "_" + suffix
}

// ContractColumns - итоговый порядок колонок, который ждёт модель:
// target ++ ref1 ++ ref2 ++ co_diff(ref1) ++ co_diff(ref2).
func (c FeatureConfig) ContractColumns() []string {
	out := append([]string(nil), c.ExportColumns...)
	for _, ref := range c.References {
		out = append(out, lo.Map(c.ExportColumns, func(col string, _ int) string {
			return col + "_" + ref.Suffix
		})...)
	}
	for _, ref := range c.References {
		out = append(out, lo.Map(c.CoDiffColumns, func(col string, _ int) string {
			return CoDiffColumn(col, ref.Suffix)
		})...)
	}
	return out
}

// RequiredHistory - минимальное число баров, при котором после всех стадий
// остаётся хотя бы одна строка: прогрев индикаторов, ещё один бар на diff и сама строка.
func (c FeatureConfig) RequiredHistory() int {
	return c.Indicators.Warmup() + 2
}

// Validate прогоняет схему колонок через все стадии без данных.
func (c FeatureConfig) Validate() error {
	if err := c.Indicators.Validate(); err != nil {
		return err
	}

	available := lo.SliceToMap(append(append([]string(nil), RawFields...),
		ColRtn1, ColOCHLRange, ColADX, ColCCI, ColMACD, ColRSI, ColOBV, ColVWAP),
		func(s string) (string, bool) { return s, true })

	for _, g := range c.ThetaGroups {
		if len(g.Columns) == 0 {
			return errors.Errorf("theta группа %q пуста", g.Name)
		}
		if g.Window < 0 {
			return errors.Errorf("theta группа %q: отрицательное окно %d", g.Name, g.Window)
		}
		for _, col := range g.Columns {
			if !available[col] {
				return schemaErrorf("theta группа %q: колонка %q недоступна", g.Name, col)
			}
			if available[ThetaColumn(col)] {
				return schemaErrorf("theta группа %q: колонка %q уже нормализована", g.Name, col)
			}
			available[ThetaColumn(col)] = true
		}
		if g.DropSource {
			for _, col := range g.Columns {
				delete(available, col)
			}
		}
	}

	for _, col := range c.DiffColumns {
		if !available[col] {
			return schemaErrorf("diff: колонка %q недоступна", col)
		}
		if available[DiffColumn(col)] {
			return schemaErrorf("diff: колонка %q повторяется", col)
		}
		available[DiffColumn(col)] = true
	}

	if len(c.ExportColumns) == 0 {
		return errors.New("пустой список экспортируемых колонок")
	}
	if dup := lo.FindDuplicates(c.ExportColumns); len(dup) > 0 {
		return schemaErrorf("повторы в экспортируемых колонках: %v", dup)
	}
	for _, col := range c.ExportColumns {
		if !available[col] {
			return schemaErrorf("экспортируемая колонка %q не вычисляется", col)
		}
	}
	for _, col := range c.CoDiffColumns {
		if !lo.Contains(c.ExportColumns, col) {
			return schemaErrorf("co-diff колонка %q не входит в экспорт", col)
		}
	}
	if dup := lo.FindDuplicates(c.CoDiffColumns); len(dup) > 0 {
		return schemaErrorf("повторы в co-diff колонках: %v", dup)
	}

	if len(c.References) != 2 {
		return errors.Errorf("нужно ровно два референсных инструмента, задано %d", len(c.References))
	}
	for _, ref := range c.References {
		if ref.Symbol == "" || ref.Suffix == "" {
			return errors.Errorf("референс без символа или суффикса: %+v", ref)
		}
	}
	if c.References[0].Suffix == c.References[1].Suffix {
		return errors.Errorf("суффиксы референсов совпадают: %q", c.References[0].Suffix)
	}
	if dup := lo.FindDuplicates(c.ContractColumns()); len(dup) > 0 {
		return schemaErrorf("повторы в контракте колонок: %v", dup)
	}
	return nil
}

// AppConfig - конфигурация процесса.
type AppConfig struct {
	App      AppSection    `yaml:"app"`
	Data     DataConfig    `yaml:"data"`
	Model    ModelConfig   `yaml:"model"`
	Target   string        `yaml:"target"`
	Features FeatureConfig `yaml:"features"`
}

type AppSection struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DataConfig - каталог с файлами баров, по одному на символ.
type DataConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // json | parquet
}

type ModelConfig struct {
	Manifest string `yaml:"manifest"`
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		App:      AppSection{Name: "revdet", LogLevel: "info"},
		Data:     DataConfig{Dir: "data", Format: FormatJSON},
		Model:    ModelConfig{Manifest: "models/model.yaml"},
		Features: DefaultFeatureConfig(),
	}
}

// LoadConfig читает YAML поверх значений по умолчанию и проверяет результат.
func LoadConfig(path string) (*AppConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer file.Close()

	cfg := DefaultAppConfig()
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c AppConfig) Validate() error {
	if c.Target == "" {
		return errors.New("не задан целевой инструмент (target)")
	}
	for _, ref := range c.Features.References {
		if ref.Symbol == c.Target {
			return errors.Errorf("целевой инструмент %s совпадает с референсом", c.Target)
		}
	}
	if c.Data.Format != FormatJSON && c.Data.Format != FormatParquet {
		return errors.Errorf("неизвестный формат данных %q", c.Data.Format)
	}
	return c.Features.Validate()
}
