// clean.go - финальная очистка таблицы
package internal

// Cleaner удаляет строки с NaN или Inf хотя бы в одной колонке.
// Если строк не осталось, истории недостаточно: цикл можно пропустить.
type Cleaner struct {
	symbol   string
	required int
}

// NewCleaner: required - сколько баров нужно для первой полной строки (для текста ошибки).
func NewCleaner(symbol string, required int) *Cleaner {
	return &Cleaner{symbol: symbol, required: required}
}

func (c *Cleaner) Transform(frame *FeatureFrame) (*FeatureFrame, error) {
	out := frame.DropIncomplete()
	if out.Len() == 0 {
		return nil, &InsufficientHistoryError{Symbol: c.symbol, Got: frame.Len(), Need: c.required}
	}
	return out, nil
}
