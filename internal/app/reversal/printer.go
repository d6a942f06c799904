package reversal

import (
	"fmt"
	"strings"
	"time"

	"revdet/internal"
)

var _ ResultPrinter = (*ConsolePrinter)(nil)

// ConsolePrinter - реализация вывода результатов в консоль
type ConsolePrinter struct{}

// NewConsolePrinter - конструктор для ConsolePrinter
func NewConsolePrinter() *ConsolePrinter {
	return &ConsolePrinter{}
}

// PrintCycle - выводит итог цикла
func (p *ConsolePrinter) PrintCycle(res CycleResult) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("📊 ЦИКЛ %s (%s)\n", res.ID, res.Target)
	fmt.Println(strings.Repeat("=", 60))

	switch res.Outcome {
	case internal.OutcomeOK:
		fmt.Printf("✅ Вероятность разворота: %.4f\n", res.Prediction.Probability)
		fmt.Printf("🕒 Бар: %s\n", res.Prediction.Time.Format(time.RFC3339))
	case internal.OutcomeSkipped:
		fmt.Printf("⏭️  Пропущен (%s): %v\n", res.ErrorKind, res.Err)
	default:
		fmt.Printf("❌ Ошибка (%s): %v\n", res.ErrorKind, res.Err)
	}

	if inst := res.Prediction.Features.Instruments; len(inst) > 0 {
		fmt.Printf("%-12s %-8s %-10s\n", "Инструмент", "Бары", "Очищено")
		fmt.Println(strings.Repeat("-", 60))
		for _, i := range inst {
			fmt.Printf("%-12s %-8d %-10d\n", i.Symbol, i.Rows.Bars, i.Rows.Cleaned)
		}
		fmt.Printf("Строк после выравнивания: %d\n", res.Prediction.Features.JoinedRows)
	}
	fmt.Printf("⏱️  Время: %s\n", p.formatDuration(res.Duration))
}

// PrintContract - выводит порядок колонок вектора модели
func (p *ConsolePrinter) PrintContract(columns []string) {
	for i, col := range columns {
		fmt.Printf("%3d %s\n", i, col)
	}
}

// formatDuration - форматирует длительность в читаемый вид
func (p *ConsolePrinter) formatDuration(d time.Duration) string {
	if d > time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.0fms", float64(d.Nanoseconds())/1e6)
}
