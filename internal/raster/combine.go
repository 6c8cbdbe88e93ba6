package raster

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// cellFunc computes one output cell from the values of every input at that
// cell. valid[i] is false where input i is no-data. ok=false writes no-data;
// an error stops the run and discards the output.
type cellFunc func(vals []float64, valid []bool) (out float64, ok bool, err error)

// pure adapts a cell function that cannot fail.
func pure(f func(vals []float64, valid []bool) (float64, bool)) cellFunc {
	return func(vals []float64, valid []bool) (float64, bool, error) {
		v, ok := f(vals, valid)
		return v, ok, nil
	}
}

// combine evaluates fn over cell-for-cell aligned inputs and writes the
// result to output on the first input's grid.
func (e *Engine) combine(ctx context.Context, log *slog.Logger, op string, paths []string, output string, dt grid.DataType, fn cellFunc) error {
	if len(paths) == 0 {
		return errcode.New(errcode.MissingArgument, "no input rasters")
	}
	ins := make([]*input, 0, len(paths))
	defer func() { closeInputs(ins) }()
	for _, p := range paths {
		in, err := e.openInput(ctx, p)
		if err != nil {
			return err
		}
		ins = append(ins, in)
	}
	for _, in := range ins[1:] {
		if err := checkConcurrent(ins[0], in); err != nil {
			return err
		}
	}

	first := ins[0].meta
	m := e.outputMeta(first.Extent, first.Projection)
	m.DataType = dt
	out, err := e.createOutput(op, output, m)
	if err != nil {
		return err
	}

	vals := make([]float64, len(ins))
	valid := make([]bool, len(ins))
	rows := make([][]float64, len(ins))
	buf := make([]float64, m.Cols)
	for r := 0; r < m.Rows; r++ {
		if err := ctx.Err(); err != nil {
			out.abort()
			return err
		}
		for i, in := range ins {
			row, err := in.read(r)
			if err != nil {
				out.abort()
				return err
			}
			rows[i] = row
		}
		for c := 0; c < m.Cols; c++ {
			for i, in := range ins {
				vals[i] = rows[i][c]
				valid[i] = !in.meta.IsNoData(vals[i])
			}
			v, ok, err := fn(vals, valid)
			if err != nil {
				out.abort()
				return err
			}
			if !ok {
				v = m.NoData
			}
			buf[c] = v
		}
		if err := out.write(r, buf); err != nil {
			out.abort()
			return err
		}
	}
	log.DebugContext(ctx, "combined rasters", "inputs", len(ins), "rows", m.Rows, "cols", m.Cols)
	return out.finish()
}

func allValid(valid []bool) bool {
	for _, ok := range valid {
		if !ok {
			return false
		}
	}
	return true
}

func requireInputs(paths ...string) error {
	for i, p := range paths {
		if p == "" {
			return errcode.New(errcode.MissingArgument, "input raster %d is missing", i+1)
		}
	}
	return nil
}

func requireOutput(path string) error {
	if path == "" {
		return errcode.New(errcode.OutputFileMissing, "output raster path is missing")
	}
	return nil
}
