package logger

import (
	"context"
	"io"
	"os"
	"time"

	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter configures the process logger from LOG_LEVEL and LOG_FORMAT.
func InitWithWriter(w io.Writer) {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = w
	if os.Getenv("LOG_FORMAT") != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("service", "excursion-service").
		Logger().
		Level(level)
	zlog.Logger = Logger
}

// WithCtx returns the process logger enriched with the request id, if any.
func WithCtx(ctx context.Context) *zerolog.Logger {
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		l := Logger.With().Str("request_id", rid).Logger()
		return &l
	}
	return &Logger
}

// Component returns a child logger tagged for a background worker.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
