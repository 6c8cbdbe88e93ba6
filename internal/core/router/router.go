package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/rasterman/internal/core/model"
	"github.com/mohammed-shakir/rasterman/internal/core/observability"
	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
	mylog "github.com/mohammed-shakir/rasterman/internal/logger"
)

// RasterService answers the read-only raster queries served over HTTP.
type RasterService interface {
	Properties(ctx context.Context, path string) (grid.Meta, error)
	IsConcurrent(ctx context.Context, a, b string) (bool, error)
	Value(ctx context.Context, path string, x, y float64) (float64, bool, error)
}

// HandleProperties serves GET /v1/properties?path=.
func HandleProperties(logger *slog.Logger, svc RasterService) http.HandlerFunc {
	return observe("/v1/properties", func(w http.ResponseWriter, r *http.Request) {
		path, err := requiredParam(r, "path")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		ctx := mylog.WithPath(r.Context(), path)
		m, err := svc.Properties(ctx, path)
		if err != nil {
			writeError(w, r.WithContext(ctx), logger, err)
			return
		}
		writeJSON(w, http.StatusOK, model.PropertiesOf(path, m))
	})
}

// HandleConcurrent serves GET /v1/concurrent?a=&b=.
func HandleConcurrent(logger *slog.Logger, svc RasterService) http.HandlerFunc {
	return observe("/v1/concurrent", func(w http.ResponseWriter, r *http.Request) {
		a, err := requiredParam(r, "a")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		b, err := requiredParam(r, "b")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		ok, err := svc.IsConcurrent(r.Context(), a, b)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, model.Concurrent{A: a, B: b, Concurrent: ok})
	})
}

// HandleValue serves GET /v1/value?path=&x=&y=.
func HandleValue(logger *slog.Logger, svc RasterService) http.HandlerFunc {
	return observe("/v1/value", func(w http.ResponseWriter, r *http.Request) {
		path, x, y, err := ParseValueRequest(r)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		ctx := mylog.WithPath(r.Context(), path)
		v, ok, err := svc.Value(ctx, path, x, y)
		if err != nil {
			writeError(w, r.WithContext(ctx), logger, err)
			return
		}
		out := model.Value{Path: path, X: x, Y: y}
		if ok {
			out.Value = &v
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func ParseValueRequest(r *http.Request) (path string, x, y float64, err error) {
	if path, err = requiredParam(r, "path"); err != nil {
		return "", 0, 0, err
	}
	if x, err = floatParam(r, "x"); err != nil {
		return "", 0, 0, err
	}
	if y, err = floatParam(r, "y"); err != nil {
		return "", 0, 0, err
	}
	return path, x, y, nil
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", errcode.New(errcode.MissingArgument, "missing required parameter: %s", name)
	}
	return v, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw, err := requiredParam(r, name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errcode.Wrap(errcode.MissingArgument, err, "invalid %s", name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errcode.New(errcode.MissingArgument, "invalid %s: %q is not a finite number", name, raw)
	}
	return f, nil
}

// statusFor maps result codes to HTTP statuses: caller mistakes are 400, a
// path outside the data root is 403, an unreadable raster is 404.
func statusFor(err error) int {
	if errors.Is(err, ErrOutsideRoot) {
		return http.StatusForbidden
	}
	switch errcode.CodeOf(err) {
	case errcode.MissingArgument, errcode.NoOperationSpecified:
		return http.StatusBadRequest
	case errcode.InputFileError, errcode.InputFileTransformError:
		return http.StatusNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("err", err.Error()),
	)
	body := model.ErrorOf(err)
	if status != http.StatusBadRequest {
		// backend errors can carry file contents and server paths
		body.Message = strings.ToLower(http.StatusText(status))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func observe(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
