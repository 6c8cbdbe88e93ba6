package raster

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// Mosaic stitches inputs onto the union of their extents. Inputs must share
// a cell size. Where inputs overlap the earliest input with data wins.
func (e *Engine) Mosaic(ctx context.Context, inputs []string, output string) error {
	return e.run(ctx, "mosaic", func(ctx context.Context, log *slog.Logger) error {
		if len(inputs) == 0 {
			return errcode.New(errcode.MissingArgument, "mosaic needs at least one input raster")
		}
		if err := requireOutput(output); err != nil {
			return err
		}
		ins, ext, err := e.openUnion(ctx, inputs)
		defer closeInputs(ins)
		if err != nil {
			return err
		}

		m := e.outputMeta(ext, ins[0].meta.Projection)
		m.DataType = grid.Float32
		out, err := e.createOutput("mosaic", output, m)
		if err != nil {
			return err
		}
		if err := e.stitch(ctx, out, ins); err != nil {
			out.abort()
			return err
		}
		log.DebugContext(ctx, "mosaic extent", "inputs", len(ins), "extent", ext.String())
		return out.finish()
	})
}

// MakeConcurrent rewrites every input onto the union of all input extents so
// that the outputs are cell-for-cell aligned. outputs[i] receives inputs[i].
func (e *Engine) MakeConcurrent(ctx context.Context, inputs, outputs []string) error {
	return e.run(ctx, "make_concurrent", func(ctx context.Context, log *slog.Logger) error {
		if len(inputs) == 0 {
			return errcode.New(errcode.MissingArgument, "no input rasters")
		}
		if len(inputs) != len(outputs) {
			return errcode.New(errcode.MissingArgument,
				"%d inputs but %d outputs", len(inputs), len(outputs))
		}
		for _, o := range outputs {
			if err := requireOutput(o); err != nil {
				return err
			}
		}
		ins, ext, err := e.openUnion(ctx, inputs)
		defer closeInputs(ins)
		if err != nil {
			return err
		}

		for i, in := range ins {
			m := grid.NewMeta(ext, in.meta.Info)
			out, err := e.createOutput("make_concurrent", outputs[i], m)
			if err != nil {
				return err
			}
			if err := e.stitch(ctx, out, []*input{in}); err != nil {
				out.abort()
				return err
			}
			if err := out.finish(); err != nil {
				return err
			}
		}
		log.DebugContext(ctx, "made concurrent", "rasters", len(ins), "extent", ext.String())
		return nil
	})
}

// openUnion opens inputs and returns the union of their extents. The
// returned inputs must be closed even when err is set.
func (e *Engine) openUnion(ctx context.Context, paths []string) ([]*input, grid.Extent, error) {
	ins := make([]*input, 0, len(paths))
	var ext grid.Extent
	for i, p := range paths {
		in, err := e.openInput(ctx, p)
		if err != nil {
			return ins, grid.Extent{}, err
		}
		ins = append(ins, in)
		if i == 0 {
			ext = in.meta.Extent
			continue
		}
		if err := ext.Union(in.meta.Extent); err != nil {
			return ins, grid.Extent{}, errcode.Wrap(errcode.CodeOf(err), err, "raster %q", p)
		}
	}
	return ins, ext, nil
}

// stitch writes every row of out from ins placed by their translation
// offsets. A cell takes the value of the first input holding data there.
func (e *Engine) stitch(ctx context.Context, out *output, ins []*input) error {
	m := out.meta
	rowT := make([]int, len(ins))
	colT := make([]int, len(ins))
	for i, in := range ins {
		rowT[i] = m.RowTranslation(in.meta.Extent)
		colT[i] = m.ColTranslation(in.meta.Extent)
	}

	buf := make([]float64, m.Cols)
	filled := make([]bool, m.Cols)
	for r := 0; r < m.Rows; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for c := range buf {
			buf[c] = m.NoData
			filled[c] = false
		}
		for i, in := range ins {
			ir := r - rowT[i]
			if ir < 0 || ir >= in.meta.Rows {
				continue
			}
			row, err := in.read(ir)
			if err != nil {
				return err
			}
			for ic, v := range row {
				oc := ic + colT[i]
				if oc < 0 || oc >= m.Cols || filled[oc] || in.meta.IsNoData(v) {
					continue
				}
				buf[oc] = v
				filled[oc] = true
			}
		}
		if err := out.write(r, buf); err != nil {
			return err
		}
	}
	return nil
}
