package internal

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, NewLogger("DEBUG").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger("invalid").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger("").GetLevel())
}

func TestNewLoggerTo_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn")
	logger.Info().Msg("скрыто")
	logger.Warn().Str("symbol", "SOLUSDT").Msg("видно")

	assert.NotContains(t, buf.String(), "скрыто")
	assert.Contains(t, buf.String(), `"symbol":"SOLUSDT"`)
}

func TestErrorKindAndOutcome(t *testing.T) {
	cases := []struct {
		err     error
		kind    string
		outcome string
	}{
		{nil, "ok", OutcomeOK},
		{schemaErrorf("x"), "schema_mismatch", OutcomeFailed},
		{&InsufficientHistoryError{Symbol: "SOLUSDT", Got: 3, Need: 29}, "insufficient_history", OutcomeSkipped},
		{ErrAlignmentFailure, "alignment_failure", OutcomeSkipped},
		{ErrModelUnavailable, "model_unavailable", OutcomeFailed},
		{assert.AnError, "internal", OutcomeFailed},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, ErrorKind(c.err))
		assert.Equal(t, c.outcome, Outcome(c.err))
	}
}
