// frame.go - колоночная таблица признаков с индексом по времени
package internal

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// FeatureFrame хранит именованные колонки float64 одинаковой длины и индекс
// меток времени. Колонки только добавляются; удаление возможно лишь явным Drop.
// Пропуски кодируются NaN.
type FeatureFrame struct {
	index   []time.Time
	columns []string
	values  map[string][]float64
}

func NewFeatureFrame(index []time.Time) *FeatureFrame {
	return &FeatureFrame{
		index:  append([]time.Time(nil), index...),
		values: make(map[string][]float64),
	}
}

func (f *FeatureFrame) Len() int {
	return len(f.index)
}

// Index возвращает копию индекса.
func (f *FeatureFrame) Index() []time.Time {
	return append([]time.Time(nil), f.index...)
}

// Columns возвращает копию списка колонок в порядке добавления.
func (f *FeatureFrame) Columns() []string {
	return append([]string(nil), f.columns...)
}

func (f *FeatureFrame) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Column возвращает значения колонки. Срез нельзя изменять.
func (f *FeatureFrame) Column(name string) ([]float64, error) {
	v, ok := f.values[name]
	if !ok {
		return nil, schemaErrorf("нет колонки %q", name)
	}
	return v, nil
}

// Set добавляет новую колонку. Повторное имя и неверная длина - ошибка схемы.
func (f *FeatureFrame) Set(name string, values []float64) error {
	if _, ok := f.values[name]; ok {
		return schemaErrorf("колонка %q уже существует", name)
	}
	if len(values) != len(f.index) {
		return schemaErrorf("колонка %q: длина %d, ожидалось %d", name, len(values), len(f.index))
	}
	f.columns = append(f.columns, name)
	f.values[name] = values
	return nil
}

// Drop удаляет колонки; отсутствующая колонка - ошибка схемы.
func (f *FeatureFrame) Drop(names ...string) error {
	for _, name := range names {
		if !f.Has(name) {
			return schemaErrorf("нельзя удалить отсутствующую колонку %q", name)
		}
	}
	drop := lo.SliceToMap(names, func(n string) (string, struct{}) { return n, struct{}{} })
	f.columns = lo.Reject(f.columns, func(c string, _ int) bool {
		_, ok := drop[c]
		return ok
	})
	for _, name := range names {
		delete(f.values, name)
	}
	return nil
}

// Clone возвращает новую таблицу с теми же данными. Срезы значений общие:
// их никто не изменяет после Set.
func (f *FeatureFrame) Clone() *FeatureFrame {
	out := &FeatureFrame{
		index:   f.index,
		columns: append([]string(nil), f.columns...),
		values:  make(map[string][]float64, len(f.values)),
	}
	for k, v := range f.values {
		out.values[k] = v
	}
	return out
}

// Select возвращает таблицу только с указанными колонками в заданном порядке.
func (f *FeatureFrame) Select(names []string) (*FeatureFrame, error) {
	out := &FeatureFrame{index: f.index, values: make(map[string][]float64, len(names))}
	for _, name := range names {
		v, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.Set(name, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WithSuffix переименовывает все колонки в name_suffix.
func (f *FeatureFrame) WithSuffix(suffix string) *FeatureFrame {
	out := &FeatureFrame{index: f.index, values: make(map[string][]float64, len(f.values))}
	for _, name := range f.columns {
		renamed := name + "_" + suffix
		out.columns = append(out.columns, renamed)
		out.values[renamed] = f.values[name]
	}
	return out
}

// Row возвращает значения строки i в порядке колонок.
func (f *FeatureFrame) Row(i int) []float64 {
	row := make([]float64, len(f.columns))
	for j, name := range f.columns {
		row[j] = f.values[name][i]
	}
	return row
}

// LastRow возвращает метку и значения последней строки.
func (f *FeatureFrame) LastRow() (time.Time, []float64, error) {
	if f.Len() == 0 {
		return time.Time{}, nil, errors.Wrap(ErrInsufficientHistory, "пустая таблица признаков")
	}
	last := f.Len() - 1
	return f.index[last], f.Row(last), nil
}

// takeRows строит таблицу из строк с указанными позициями.
func (f *FeatureFrame) takeRows(rows []int) *FeatureFrame {
	index := make([]time.Time, len(rows))
	for i, r := range rows {
		index[i] = f.index[r]
	}
	out := &FeatureFrame{
		index:   index,
		columns: append([]string(nil), f.columns...),
		values:  make(map[string][]float64, len(f.values)),
	}
	for _, name := range f.columns {
		src := f.values[name]
		dst := make([]float64, len(rows))
		for i, r := range rows {
			dst[i] = src[r]
		}
		out.values[name] = dst
	}
	return out
}

// DropIncomplete оставляет только строки, где все значения конечны (нет NaN и Inf).
func (f *FeatureFrame) DropIncomplete() *FeatureFrame {
	keep := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		complete := true
		for _, name := range f.columns {
			v := f.values[name][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return f.takeRows(keep)
}

// InnerJoin объединяет таблицы по меткам времени: остаются только метки,
// которые есть во всех таблицах. Колонки склеиваются в порядке аргументов.
func InnerJoin(frames ...*FeatureFrame) (*FeatureFrame, error) {
	if len(frames) == 0 {
		return nil, errors.New("inner join: нет таблиц")
	}

	positions := make([]map[int64]int, len(frames))
	for k, fr := range frames {
		positions[k] = make(map[int64]int, fr.Len())
		for i, t := range fr.index {
			positions[k][t.UnixNano()] = i
		}
	}

	// порядок строк берём из первой таблицы
	var index []time.Time
	rowsPerFrame := make([][]int, len(frames))
	for i, t := range frames[0].index {
		key := t.UnixNano()
		rows := make([]int, len(frames))
		rows[0] = i
		found := true
		for k := 1; k < len(frames); k++ {
			r, ok := positions[k][key]
			if !ok {
				found = false
				break
			}
			rows[k] = r
		}
		if !found {
			continue
		}
		index = append(index, t)
		for k := range frames {
			rowsPerFrame[k] = append(rowsPerFrame[k], rows[k])
		}
	}

	out := NewFeatureFrame(index)
	for k, fr := range frames {
		part := fr.takeRows(rowsPerFrame[k])
		for _, name := range part.columns {
			if err := out.Set(name, part.values[name]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
