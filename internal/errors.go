// errors.go - виды ошибок конвейера признаков
package internal

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSchemaMismatch: нет обязательной колонки (сырой или производной)
	// либо порядок/число колонок не совпадает с контрактом модели.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInsufficientHistory: после очистки не осталось ни одной строки.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrAlignmentFailure: у трёх инструментов нет общих меток времени.
	ErrAlignmentFailure = errors.New("alignment failure")
	// ErrModelUnavailable: модель не загрузилась или не вернула оценку.
	ErrModelUnavailable = errors.New("model unavailable")
)

// InsufficientHistoryError - ошибка недостатка данных по конкретному инструменту
type InsufficientHistoryError struct {
	Symbol string
	Got    int
	Need   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s: недостаточно данных: получено %d баров, требуется минимум %d", e.Symbol, e.Got, e.Need)
}

// Is позволяет сравнивать с ErrInsufficientHistory через errors.Is.
func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}

// schemaErrorf оборачивает ErrSchemaMismatch с пояснением.
func schemaErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSchemaMismatch, format, args...)
}

// IsRetryable сообщает, можно ли просто пропустить цикл и повторить позже.
// Так ведут себя InsufficientHistory и AlignmentFailure: это ожидаемые
// состояния на прогреве, а не баги.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInsufficientHistory) || errors.Is(err, ErrAlignmentFailure)
}

// ErrorKind возвращает короткое имя вида ошибки для логов и метрик.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrAlignmentFailure):
		return "alignment_failure"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	default:
		return "internal"
	}
}

// Исходы цикла предсказания.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Outcome классифицирует результат цикла: повторяемые ошибки пропускают цикл,
// остальные считаются сбоем цикла (но не процесса).
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsRetryable(err):
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}
