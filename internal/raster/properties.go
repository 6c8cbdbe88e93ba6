package raster

import (
	"context"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// Properties returns the metadata of path.
func (e *Engine) Properties(ctx context.Context, path string) (grid.Meta, error) {
	if path == "" {
		return grid.Meta{}, errcode.New(errcode.MissingArgument, "raster path is missing")
	}
	return e.meta.Meta(ctx, path)
}

// IsConcurrent reports whether a and b share a grid. err is set only when
// either raster cannot be read.
func (e *Engine) IsConcurrent(ctx context.Context, a, b string) (bool, error) {
	if err := requireInputs(a, b); err != nil {
		return false, err
	}
	ma, err := e.meta.Meta(ctx, a)
	if err != nil {
		return false, err
	}
	mb, err := e.meta.Meta(ctx, b)
	if err != nil {
		return false, err
	}
	return ma.IsConcurrent(mb), nil
}

// Value returns the cell of path under the point x,y. ok is false when the
// point is outside the raster or the cell is no-data.
func (e *Engine) Value(ctx context.Context, path string, x, y float64) (v float64, ok bool, err error) {
	in, err := e.openInput(ctx, path)
	if err != nil {
		return 0, false, err
	}
	defer in.close()

	row, col, inside := in.meta.Cell(x, y)
	if !inside {
		return 0, false, nil
	}
	buf, err := in.read(row)
	if err != nil {
		return 0, false, err
	}
	v = buf[col]
	if in.meta.IsNoData(v) {
		return v, false, nil
	}
	return v, true, nil
}
