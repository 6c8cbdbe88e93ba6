// Package logger builds the zerolog logger used across rasterman and carries
// per-run fields (request, operation, raster path) through the context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	// SampleN keeps one line in N. Zero logs everything.
	SampleN   int
	Mode      string
	Component string
}

type ctxKey string

const (
	ctxReqIDKey  ctxKey = "request_id"
	ctxOp        ctxKey = "op"
	ctxComponent ctxKey = "component"
	ctxPath      ctxKey = "path"
)

// contextFields is the order in which context values are written.
var contextFields = []ctxKey{ctxReqIDKey, ctxOp, ctxComponent, ctxPath}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return context.WithValue(ctx, ctxReqIDKey, reqID)
}

// WithOp tags log lines with the raster operation being run.
func WithOp(ctx context.Context, op string) context.Context {
	return withField(ctx, ctxOp, op)
}

// WithPath tags log lines with the raster currently being read or written.
func WithPath(ctx context.Context, path string) context.Context {
	return withField(ctx, ctxPath, path)
}

func WithComponent(ctx context.Context, component string) context.Context {
	return withField(ctx, ctxComponent, component)
}

func withField(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// parseLevel accepts zerolog level names and falls back to info.
func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func sampler(n int) zerolog.Sampler {
	if n <= 1 {
		return nil
	}
	if n > math.MaxUint32 {
		n = math.MaxUint32
	}
	return &zerolog.BasicSampler{N: uint32(n)}
}

func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	base := zerolog.New(out)
	if s := sampler(cfg.SampleN); s != nil {
		base = base.Sample(s)
	}

	zc := base.With().Timestamp()
	if cfg.Mode != "" {
		zc = zc.Str("mode", cfg.Mode)
	}
	if cfg.Component != "" {
		zc = zc.Str("component", cfg.Component)
	}
	return zc.Logger()
}

// FromContext returns a child of parent carrying the context fields. A nil
// parent logs nowhere.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	base := zerolog.Nop()
	if parent != nil {
		base = *parent
	}
	w := base.With()
	for _, k := range contextFields {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			w = w.Str(string(k), s)
		}
	}
	l := w.Logger()
	return &l
}
