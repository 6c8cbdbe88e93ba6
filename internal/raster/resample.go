package raster

import (
	"context"
	"log/slog"
	"math"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

// ResampleArgs places Input on a new grid. With Rows and Cols both zero the
// new grid covers the input extent from the input origin; otherwise Top,
// Left, Rows and Cols are used as given. CellSize zero keeps the input cell
// size.
type ResampleArgs struct {
	Input    string
	Output   string
	CellSize float64
	Top      float64
	Left     float64
	Rows     int
	Cols     int
}

func (a ResampleArgs) extent(src grid.Meta) (grid.Extent, error) {
	cw, ch := src.CellWidth, src.CellHeight
	if a.CellSize != 0 {
		cw = math.Abs(a.CellSize)
		ch = math.Copysign(cw, src.CellHeight)
	}
	if a.Rows == 0 && a.Cols == 0 {
		rows := int(math.Ceil(float64(src.Rows) * math.Abs(src.CellHeight) / math.Abs(ch)))
		cols := int(math.Ceil(float64(src.Cols) * math.Abs(src.CellWidth) / math.Abs(cw)))
		if err := grid.ValidateGeometry(rows, cols, ch, cw); err != nil {
			return grid.Extent{}, err
		}
		return grid.NewExtent(src.Top, src.Left, rows, cols, ch, cw), nil
	}
	if err := grid.ValidateGeometry(a.Rows, a.Cols, ch, cw); err != nil {
		return grid.Extent{}, err
	}
	return grid.NewExtent(a.Top, a.Left, a.Rows, a.Cols, ch, cw), nil
}

// Copy writes Input onto a new grid taking the nearest input cell for each
// output cell. Output cells outside the input are no-data.
func (e *Engine) Copy(ctx context.Context, a ResampleArgs) error {
	return e.run(ctx, "copy", func(ctx context.Context, log *slog.Logger) error {
		return e.resample(ctx, log, "copy", a, sampleNearest)
	})
}

// BilinearResample is Copy with bilinear interpolation between the four
// nearest input cell centres. Where any of them is no-data the nearest cell
// is used instead.
func (e *Engine) BilinearResample(ctx context.Context, a ResampleArgs) error {
	return e.run(ctx, "resample", func(ctx context.Context, log *slog.Logger) error {
		return e.resample(ctx, log, "resample", a, sampleBilinear)
	})
}

type sampler func(rc *gridstore.RowCache, m grid.Meta, x, y float64) (float64, error)

func (e *Engine) resample(ctx context.Context, log *slog.Logger, op string, a ResampleArgs, sample sampler) error {
	if err := requireOutput(a.Output); err != nil {
		return err
	}
	in, err := e.openInput(ctx, a.Input)
	if err != nil {
		return err
	}
	defer in.close()
	src := in.meta

	ext, err := a.extent(src)
	if err != nil {
		return err
	}
	rc, err := gridstore.NewRowCache(in.ds, max(e.cacheRows, 4))
	if err != nil {
		return errcode.Wrap(errcode.OtherError, err, "row cache")
	}

	out, err := e.createOutput(op, a.Output, grid.NewMeta(ext, src.Info))
	if err != nil {
		return err
	}
	buf := make([]float64, ext.Cols)
	for r := 0; r < ext.Rows; r++ {
		if err := ctx.Err(); err != nil {
			out.abort()
			return err
		}
		for c := range buf {
			x, y := ext.CellCentre(r, c)
			v, err := sample(rc, src, x, y)
			if err != nil {
				out.abort()
				return errcode.Wrap(errcode.InputFileError, err, "read %q", a.Input)
			}
			buf[c] = v
		}
		if err := out.write(r, buf); err != nil {
			out.abort()
			return err
		}
	}
	log.DebugContext(ctx, "resampled", "from", src.Extent.String(), "to", ext.String())
	return out.finish()
}

func sampleNearest(rc *gridstore.RowCache, m grid.Meta, x, y float64) (float64, error) {
	row, col, ok := m.Cell(x, y)
	if !ok {
		return m.NoData, nil
	}
	return rc.At(row, col)
}

func sampleBilinear(rc *gridstore.RowCache, m grid.Meta, x, y float64) (float64, error) {
	if !m.Contains(x, y) {
		return m.NoData, nil
	}
	fc := (x-m.Left)/math.Abs(m.CellWidth) - 0.5
	fr := (m.Top-y)/math.Abs(m.CellHeight) - 0.5
	c0 := clamp(int(math.Floor(fc)), 0, m.Cols-1)
	r0 := clamp(int(math.Floor(fr)), 0, m.Rows-1)
	c1 := clamp(c0+1, 0, m.Cols-1)
	r1 := clamp(r0+1, 0, m.Rows-1)
	tx := math.Min(math.Max(fc-float64(c0), 0), 1)
	ty := math.Min(math.Max(fr-float64(r0), 0), 1)

	var q [4]float64
	for i, rc2 := range [4][2]int{{r0, c0}, {r0, c1}, {r1, c0}, {r1, c1}} {
		v, err := rc.At(rc2[0], rc2[1])
		if err != nil {
			return 0, err
		}
		if m.IsNoData(v) {
			return sampleNearest(rc, m, x, y)
		}
		q[i] = v
	}
	top := q[0]*(1-tx) + q[1]*tx
	bottom := q[2]*(1-tx) + q[3]*tx
	return top*(1-ty) + bottom*ty, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
