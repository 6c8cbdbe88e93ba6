package raster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// CSVArgs describes a point file to rasterize. The output grid comes from
// Template when set, otherwise from the explicit geometry fields.
type CSVArgs struct {
	CSV       string
	Output    string
	XField    string
	YField    string
	DataField string

	Template string

	Top       float64
	Left      float64
	Rows      int
	Cols      int
	CellWidth float64
	NoData    float64
	HasNoData bool
}

func (a CSVArgs) meta(ctx context.Context, e *Engine) (grid.Meta, error) {
	if a.Template != "" {
		return e.meta.Meta(ctx, a.Template)
	}
	// point files describe north-up grids with square cells
	ch := -a.CellWidth
	if err := grid.ValidateGeometry(a.Rows, a.Cols, ch, a.CellWidth); err != nil {
		return grid.Meta{}, err
	}
	nd := e.def.NoData
	if a.HasNoData {
		nd = a.NoData
	}
	return grid.NewMeta(grid.NewExtent(a.Top, a.Left, a.Rows, a.Cols, ch, a.CellWidth), grid.Info{
		NoData:   nd,
		DataType: grid.Float32,
		Driver:   e.def.Driver,
	}), nil
}

type cellValue struct {
	col int
	v   float64
}

// CSVToRaster burns the data field of every point into the cell holding
// its X and Y fields. Cells without a point are no-data; points outside the
// grid are ignored; a later point overwrites an earlier one in the same cell.
func (e *Engine) CSVToRaster(ctx context.Context, a CSVArgs) error {
	return e.run(ctx, "csv2raster", func(ctx context.Context, log *slog.Logger) error {
		if a.XField == "" || a.YField == "" || a.DataField == "" {
			return errcode.New(errcode.MissingArgument, "x, y and data fields are required")
		}
		if err := requireOutput(a.Output); err != nil {
			return err
		}
		m, err := a.meta(ctx, e)
		if err != nil {
			return err
		}

		src, err := openCSV(a.CSV)
		if err != nil {
			return err
		}
		defer src.close()

		header, err := src.next()
		if errors.Is(err, io.EOF) {
			return errcode.New(errcode.InputFileError, "csv %q is empty", a.CSV)
		}
		if err != nil {
			return err
		}
		xi, yi, zi := fieldIndex(header, a.XField), fieldIndex(header, a.YField), fieldIndex(header, a.DataField)
		switch {
		case xi < 0:
			return errcode.New(errcode.MissingArgument, "X Field '%s' not found", a.XField)
		case yi < 0:
			return errcode.New(errcode.MissingArgument, "Y Column '%s' not found", a.YField)
		case zi < 0:
			return errcode.New(errcode.MissingArgument, "Data Column '%s' not found", a.DataField)
		}

		byRow := map[int][]cellValue{}
		var points, dropped, bad int
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := src.next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			x, okx := numericCell(rec, xi)
			y, oky := numericCell(rec, yi)
			if !okx || !oky {
				bad++
				continue
			}
			v, ok := numericCell(rec, zi)
			if !ok {
				v = m.NoData
			}
			points++
			row, col, in := m.Cell(x, y)
			if !in {
				dropped++
				continue
			}
			byRow[row] = append(byRow[row], cellValue{col: col, v: v})
		}

		out, err := e.createOutput("csv2raster", a.Output, m)
		if err != nil {
			return err
		}
		buf := make([]float64, m.Cols)
		for r := 0; r < m.Rows; r++ {
			if err := ctx.Err(); err != nil {
				out.abort()
				return err
			}
			for c := range buf {
				buf[c] = m.NoData
			}
			for _, cv := range byRow[r] {
				buf[cv.col] = cv.v
			}
			if err := out.write(r, buf); err != nil {
				out.abort()
				return err
			}
		}
		log.InfoContext(ctx, "rasterized points",
			"points", points, "outside", dropped, "unparsable", bad)
		return out.finish()
	})
}

// RasterToCSV lists the centre and value of every cell holding data.
func (e *Engine) RasterToCSV(ctx context.Context, raster, output string) error {
	return e.run(ctx, "raster2csv", func(ctx context.Context, log *slog.Logger) error {
		in, err := e.openInput(ctx, raster)
		if err != nil {
			return err
		}
		defer in.close()

		sink, err := createCSV(output)
		if err != nil {
			return err
		}
		if err := sink.line("X", "Y", "Value"); err != nil {
			sink.abort()
			return err
		}

		m := in.meta
		prec := coordPrecision(m)
		for r := 0; r < m.Rows; r++ {
			if err := ctx.Err(); err != nil {
				sink.abort()
				return err
			}
			row, err := in.read(r)
			if err != nil {
				sink.abort()
				return err
			}
			for c, v := range row {
				if m.IsNoData(v) {
					continue
				}
				x, y := m.CellCentre(r, c)
				if err := sink.line(
					strconv.FormatFloat(x, 'f', prec, 64),
					strconv.FormatFloat(y, 'f', prec, 64),
					formatValue(v, m.DataType),
				); err != nil {
					sink.abort()
					return err
				}
			}
		}
		log.DebugContext(ctx, "exported cells", "cells", sink.n-1)
		return sink.close()
	})
}

// formatValue prints v with the shortest representation its type allows.
func formatValue(v float64, dt grid.DataType) string {
	switch {
	case dt.IsInteger():
		return strconv.FormatFloat(v, 'f', 0, 64)
	case dt == grid.Float32:
		return strconv.FormatFloat(v, 'f', -1, 32)
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}
