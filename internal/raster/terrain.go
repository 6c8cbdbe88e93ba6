package raster

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

type SlopeUnit int

const (
	SlopeDegrees SlopeUnit = iota
	SlopePercent
)

func ParseSlopeUnit(s string) (SlopeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "deg", "degree", "degrees":
		return SlopeDegrees, nil
	case "pc", "per", "percent", "percentage":
		return SlopePercent, nil
	}
	return 0, errcode.New(errcode.MissingArgument, "unknown slope type %q (want degrees or percent)", s)
}

// Sun position used by Hillshade.
const (
	hillshadeAzimuth  = 315.0
	hillshadeAltitude = 45.0
)

// window is a 3x3 neighbourhood in row-major order; index 4 is the centre.
type window [9]float64

// gradient returns dz/dx and dz/dy by Horn's method. dz/dy grows southward.
func (w *window) gradient(cw, ch float64) (dx, dy float64) {
	dx = ((w[2] + 2*w[5] + w[8]) - (w[0] + 2*w[3] + w[6])) / (8 * cw)
	dy = ((w[6] + 2*w[7] + w[8]) - (w[0] + 2*w[1] + w[2])) / (8 * ch)
	return dx, dy
}

// Slope writes the steepest gradient of a DEM in degrees or percent.
// Border cells and cells next to no-data are no-data.
func (e *Engine) Slope(ctx context.Context, dem, output string, unit SlopeUnit) error {
	return e.run(ctx, "slope", func(ctx context.Context, log *slog.Logger) error {
		return e.focal(ctx, log, "slope", dem, output, grid.Float32, e.def.NoData,
			func(w *window, cw, ch float64) float64 {
				dx, dy := w.gradient(cw, ch)
				rise := math.Hypot(dx, dy)
				if unit == SlopePercent {
					return rise * 100
				}
				return math.Atan(rise) * 180 / math.Pi
			})
	})
}

// Hillshade writes the illumination of a DEM lit from the north-west at 45
// degrees as a Byte raster: 1 (dark) to 255 (lit), 0 is no-data.
func (e *Engine) Hillshade(ctx context.Context, dem, output string) error {
	zenith := (90 - hillshadeAltitude) * math.Pi / 180
	azimuth := math.Mod(360-hillshadeAzimuth+90, 360) * math.Pi / 180

	return e.run(ctx, "hillshade", func(ctx context.Context, log *slog.Logger) error {
		return e.focal(ctx, log, "hillshade", dem, output, grid.Byte, 0,
			func(w *window, cw, ch float64) float64 {
				dx, dy := w.gradient(cw, ch)
				slope := math.Atan(math.Hypot(dx, dy))
				var aspect float64
				switch {
				case dx != 0:
					aspect = math.Atan2(dy, -dx)
					if aspect < 0 {
						aspect += 2 * math.Pi
					}
				case dy > 0:
					aspect = math.Pi / 2
				case dy < 0:
					aspect = 2*math.Pi - math.Pi/2
				}
				shade := math.Cos(zenith)*math.Cos(slope) +
					math.Sin(zenith)*math.Sin(slope)*math.Cos(azimuth-aspect)
				if shade < 0 {
					shade = 0
				}
				return 1 + math.Round(254*shade)
			})
	})
}

// focal evaluates fn over the 3x3 neighbourhood of every interior cell.
func (e *Engine) focal(ctx context.Context, log *slog.Logger, op, path, output string,
	dt grid.DataType, nodata float64, fn func(w *window, cw, ch float64) float64) error {
	if err := requireOutput(output); err != nil {
		return err
	}
	in, err := e.openInput(ctx, path)
	if err != nil {
		return err
	}
	defer in.close()

	rows, err := gridstore.NewRowCache(in.ds, max(e.cacheRows, 3))
	if err != nil {
		return errcode.Wrap(errcode.OtherError, err, "row cache")
	}

	src := in.meta
	m := e.outputMeta(src.Extent, src.Projection)
	m.DataType, m.NoData = dt, nodata
	out, err := e.createOutput(op, output, m)
	if err != nil {
		return err
	}

	cw, ch := math.Abs(src.CellWidth), math.Abs(src.CellHeight)
	buf := make([]float64, m.Cols)
	var w window
	var win [3][]float64
	for r := 0; r < m.Rows; r++ {
		if err := ctx.Err(); err != nil {
			out.abort()
			return err
		}
		gridstore.FillRow(buf, nodata)
		if r > 0 && r < m.Rows-1 {
			for k := 0; k < 3; k++ {
				if win[k], err = rows.Row(r - 1 + k); err != nil {
					out.abort()
					return errcode.Wrap(errcode.InputFileError, err, "read %q", path)
				}
			}
		cells:
			for c := 1; c < m.Cols-1; c++ {
				for k := 0; k < 9; k++ {
					v := win[k/3][c-1+k%3]
					if src.IsNoData(v) {
						continue cells
					}
					w[k] = v
				}
				buf[c] = fn(&w, cw, ch)
			}
		}
		if err := out.write(r, buf); err != nil {
			out.abort()
			return err
		}
	}
	log.DebugContext(ctx, "focal pass done", "rows", m.Rows, "cols", m.Cols)
	return out.finish()
}
