package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/jd52dev/excursion/internal/logger"
	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCtx_AddsRequestID(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	logger.InitWithWriter(&buf)

	ctx := appCtx.WithRequestID(context.Background(), "req-42")
	logger.WithCtx(ctx).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "excursion-service", line["service"])
}

func TestInit_LevelFilter(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	logger.InitWithWriter(&buf)

	logger.WithCtx(context.Background()).Info().Msg("dropped")
	assert.Equal(t, 0, buf.Len())

	l := logger.Component("outbox")
	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), `"component":"outbox"`)
}
