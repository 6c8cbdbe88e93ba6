package raster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

// DefaultExtractNoData is written for points that fall on no-data cells.
const DefaultExtractNoData = "-9999"

type ExtractArgs struct {
	CSV    string
	Raster string
	Output string
	// XField and YField name the coordinate columns. Leave both empty for a
	// file whose first two columns are X and Y.
	XField string
	YField string
	NoData string
}

// ExtractPoints samples Raster at every point of CSV and writes X, Y and the
// cell value. Points outside the raster are skipped.
func (e *Engine) ExtractPoints(ctx context.Context, a ExtractArgs) error {
	return e.run(ctx, "extract", func(ctx context.Context, log *slog.Logger) error {
		named := a.XField != "" && a.YField != ""
		nodata := a.NoData
		if nodata == "" {
			nodata = DefaultExtractNoData
		}

		in, err := e.openInput(ctx, a.Raster)
		if err != nil {
			return err
		}
		defer in.close()
		cache, err := gridstore.NewRowCache(in.ds, e.cacheRows)
		if err != nil {
			return errcode.Wrap(errcode.OtherError, err, "row cache")
		}

		src, err := openCSV(a.CSV)
		if err != nil {
			return err
		}
		defer src.close()

		sink, err := createCSV(a.Output)
		if err != nil {
			return err
		}
		fail := func(err error) error {
			sink.abort()
			return err
		}

		if named {
			err = sink.line(a.XField, a.YField, "Value")
		} else {
			err = sink.line("X", "Y", "Value")
		}
		if err != nil {
			return fail(err)
		}

		m := in.meta
		prec := coordPrecision(m)
		xi, yi := 0, 1
		if named {
			xi, yi = -1, -1
		}
		var points, dropped int
		for first := true; ; first = false {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			rec, err := src.next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fail(err)
			}
			if first && isHeader(rec) {
				if named {
					xi, yi = fieldIndex(rec, a.XField), fieldIndex(rec, a.YField)
				}
				continue
			}
			if named && xi < 0 {
				return fail(errcode.New(errcode.MissingArgument, "X Field '%s' not found", a.XField))
			}
			if named && yi < 0 {
				return fail(errcode.New(errcode.MissingArgument, "Y Column '%s' not found", a.YField))
			}

			x, okx := numericCell(rec, xi)
			y, oky := numericCell(rec, yi)
			points++
			if !okx || !oky {
				dropped++
				continue
			}
			row, col, ok := m.Cell(x, y)
			if !ok {
				dropped++
				continue
			}
			v, err := cache.At(row, col)
			if err != nil {
				return fail(errcode.Wrap(errcode.InputFileError, err, "read %q", a.Raster))
			}
			val := nodata
			if !m.IsNoData(v) {
				val = strconv.FormatFloat(v, 'f', 10, 64)
			}
			if err := sink.line(
				strconv.FormatFloat(x, 'f', prec, 64),
				strconv.FormatFloat(y, 'f', prec, 64),
				val,
			); err != nil {
				return fail(err)
			}
		}
		log.InfoContext(ctx, "extracted points", "points", points, "skipped", dropped)
		return sink.close()
	})
}
