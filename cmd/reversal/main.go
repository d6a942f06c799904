// main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"revdet/internal"
	"revdet/internal/app/reversal"
)

var (
	configPath string
	outputPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "reversal",
	Short: "Вероятность разворота по признакам целевого и референсных инструментов",
	Long: `reversal считает признаки целевого инструмента и двух референсов (BTC, ETH),
собирает из них вектор фиксированного порядка и отдаёт вероятность разворота
от предобученной XGBoost-модели.`,
	SilenceUsage: true,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Один цикл предсказания",
	RunE:  runPredict,
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Посчитать вектор признаков и сохранить его в файл",
	RunE:  runFeatures,
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Показать порядок колонок, который ждёт модель",
	RunE:  runColumns,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Путь к YAML-конфигурации")

	featuresCmd.Flags().StringVar(&outputPath, "output", "features.json", "Файл для выгрузки признаков")
	featuresCmd.Flags().StringVar(&outputFmt, "format", internal.FormatJSON, "Формат выгрузки: json, parquet")

	rootCmd.AddCommand(predictCmd, featuresCmd, columnsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// app - всё, что живёт столько же, сколько процесс
type app struct {
	cfg     *internal.AppConfig
	logger  zerolog.Logger
	metrics *internal.Metrics
	runner  *reversal.PipelineRunner
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("ошибка при освобождении ресурса")
		}
	}
}

// newApp читает конфигурацию и собирает конвейер. withModel=false пропускает загрузку модели.
func newApp(withModel bool) (*app, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: internal.NewLogger(cfg.App.LogLevel)}

	registry := prometheus.NewRegistry()
	a.metrics = internal.NewMetrics(registry)
	if cfg.App.MetricsAddr != "" {
		srv := internal.Serve(cfg.App.MetricsAddr, registry)
		a.closers = append(a.closers, srv.Close)
		a.logger.Info().Str("addr", cfg.App.MetricsAddr).Msg("метрики доступны на /metrics")
	}

	// Модель загружается один раз. Если не вышло, процесс живёт дальше,
	// а каждый цикл завершается с model_unavailable.
	var model internal.ProbabilityModel
	if withModel {
		xgbModel, err := internal.OpenXGBoostModel(cfg.Model.Manifest, cfg.Features.ContractColumns())
		if err != nil {
			a.logger.Error().Err(err).Str("manifest", cfg.Model.Manifest).Msg("модель не загружена")
		} else {
			model = xgbModel
			a.closers = append(a.closers, xgbModel.Close)
		}
	}

	pipeline, err := internal.NewPipeline(cfg.Target, cfg.Features, model, a.metrics, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	source, err := internal.NewFileSource(cfg.Data.Dir, cfg.Data.Format)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = reversal.NewPipelineRunner(pipeline, source, a.metrics, a.logger)
	return a, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := a.runner.RunCycle(ctx)
	reversal.NewConsolePrinter().PrintCycle(res)
	if res.Outcome == internal.OutcomeFailed {
		return res.Err
	}
	return nil
}

func runFeatures(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	saver, err := reversal.NewFileSaver(outputFmt)
	if err != nil {
		return err
	}
	set, err := a.runner.CollectFeatures(cmd.Context())
	if err != nil {
		return err
	}
	if err := saver.SaveFeatures(set, outputPath); err != nil {
		return err
	}
	fmt.Printf("💾 Сохранено %d строк x %d колонок: %s\n", set.Vector.Len(), len(set.Vector.Columns()), outputPath)
	return nil
}

func runColumns(cmd *cobra.Command, args []string) error {
	features := internal.DefaultFeatureConfig()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		features = cfg.Features
	}
	if err := features.Validate(); err != nil {
		return err
	}
	reversal.NewConsolePrinter().PrintContract(features.ContractColumns())
	return nil
}
