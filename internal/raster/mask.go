package raster

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// Mask keeps the cells of input where mask has data and writes no-data
// elsewhere. The two rasters must be concurrent. Output is Float32 with the
// engine's no-data value.
func (e *Engine) Mask(ctx context.Context, input, mask, output string) error {
	return e.run(ctx, "mask", func(ctx context.Context, log *slog.Logger) error {
		if err := requireInputs(input, mask); err != nil {
			return err
		}
		if err := requireOutput(output); err != nil {
			return err
		}
		return e.combine(ctx, log, "mask", []string{input, mask}, output, grid.Float32,
			pure(func(vals []float64, valid []bool) (float64, bool) {
				return vals[0], allValid(valid)
			}))
	})
}
