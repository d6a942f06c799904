package internal

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffFeatureGenerator(t *testing.T) {
	nan := math.NaN()
	frame := frameOf(hours(4), map[string][]float64{
		"a": {1, 4, 2, 2},
		"b": {nan, 1, 3, 6},
	}, "a", "b")

	out, err := NewDiffFeatureGenerator([]string{"b", "a"}).Transform(frame)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "diff_b", "diff_a"}, out.Columns())

	da, _ := out.Column("diff_a")
	assert.True(t, math.IsNaN(da[0]))
	assert.Equal(t, []float64{3, -2, 0}, da[1:])

	db, _ := out.Column("diff_b")
	assert.True(t, math.IsNaN(db[0]))
	assert.True(t, math.IsNaN(db[1]))
	assert.Equal(t, []float64{2, 3}, db[2:])
}

func TestDiffFeatureGenerator_MissingColumn(t *testing.T) {
	frame := frameOf(hours(2), map[string][]float64{"a": {1, 2}}, "a")
	_, err := NewDiffFeatureGenerator([]string{"macd"}).Transform(frame)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestCleaner(t *testing.T) {
	nan := math.NaN()
	frame := frameOf(hours(3), map[string][]float64{
		"a": {nan, 1, 2},
		"b": {1, nan, 2},
	}, "a", "b")

	out, err := NewCleaner("SOLUSDT", 29).Transform(frame)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, []float64{2, 2}, out.Row(0))
}

func TestCleaner_NothingLeft(t *testing.T) {
	nan := math.NaN()
	frame := frameOf(hours(2), map[string][]float64{"a": {nan, nan}}, "a")

	_, err := NewCleaner("SOLUSDT", 29).Transform(frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
	assert.True(t, IsRetryable(err))

	var hist *InsufficientHistoryError
	require.True(t, errors.As(err, &hist))
	assert.Equal(t, 2, hist.Got)
	assert.Equal(t, 29, hist.Need)
}
