package raster

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

type MathOp int

const (
	OpNone MathOp = iota
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpPower
	OpSqrt
	// OpThreshold keeps the first operand where its magnitude exceeds the
	// second (the propagated error threshold) and writes no-data elsewhere.
	OpThreshold
)

var mathOpNames = map[MathOp]string{
	OpAdd:       "add",
	OpSubtract:  "subtract",
	OpMultiply:  "multiply",
	OpDivide:    "divide",
	OpPower:     "power",
	OpSqrt:      "sqrt",
	OpThreshold: "threshold",
}

func (o MathOp) String() string {
	if s, ok := mathOpNames[o]; ok {
		return s
	}
	return "none"
}

func ParseMathOp(s string) (MathOp, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, name := range mathOpNames {
		if s == name {
			return op, nil
		}
	}
	switch s {
	case "sub", "minus":
		return OpSubtract, nil
	case "mul", "times":
		return OpMultiply, nil
	case "div":
		return OpDivide, nil
	case "pow":
		return OpPower, nil
	case "threshold-prop-error", "thresholdproperror":
		return OpThreshold, nil
	}
	return OpNone, errcode.New(errcode.NoOperationSpecified, "unknown math operation %q", s)
}

type MathArgs struct {
	Op      MathOp
	Raster1 string
	// Raster2 is the second operand; when empty Scalar is used instead.
	Raster2   string
	Scalar    float64
	HasScalar bool
	Output    string
}

// BasicMath applies Op to Raster1 and either Raster2 or Scalar. Output is
// Float32 on Raster1's grid. A no-data operand, division by zero, a negative
// exponent and a negative square root base give no-data.
func (e *Engine) BasicMath(ctx context.Context, a MathArgs) error {
	return e.run(ctx, "math_"+a.Op.String(), func(ctx context.Context, log *slog.Logger) error {
		if a.Op == OpNone {
			return errcode.New(errcode.NoOperationSpecified, "no math operation specified")
		}
		if err := requireOutput(a.Output); err != nil {
			return err
		}
		op := "math_" + a.Op.String()

		if a.Op == OpSqrt {
			return e.combine(ctx, log, op, []string{a.Raster1}, a.Output, grid.Float32,
				pure(func(v []float64, ok []bool) (float64, bool) {
					return scalarMath(OpSqrt, v[0], 0, ok[0])
				}))
		}
		if a.Raster2 != "" {
			return e.combine(ctx, log, op, []string{a.Raster1, a.Raster2}, a.Output, grid.Float32,
				pure(func(v []float64, ok []bool) (float64, bool) {
					if !ok[0] || !ok[1] {
						return 0, false
					}
					return applyMath(a.Op, v[0], v[1])
				}))
		}
		if !a.HasScalar {
			return errcode.New(errcode.MissingArgument, "%s needs a second raster or a numeric operand", a.Op)
		}
		return e.combine(ctx, log, op, []string{a.Raster1}, a.Output, grid.Float32,
			pure(func(v []float64, ok []bool) (float64, bool) {
				return scalarMath(a.Op, v[0], a.Scalar, ok[0])
			}))
	})
}

func scalarMath(op MathOp, v, s float64, valid bool) (float64, bool) {
	if !valid {
		return 0, false
	}
	return applyMath(op, v, s)
}

func applyMath(op MathOp, a, b float64) (float64, bool) {
	var r float64
	switch op {
	case OpAdd:
		r = a + b
	case OpSubtract:
		r = a - b
	case OpMultiply:
		r = a * b
	case OpDivide:
		if b == 0 {
			return 0, false
		}
		r = a / b
	case OpPower:
		if b < 0 {
			return 0, false
		}
		r = math.Pow(a, b)
	case OpSqrt:
		if a < 0 {
			return 0, false
		}
		r = math.Sqrt(a)
	case OpThreshold:
		if math.Abs(a) > b {
			return a, true
		}
		return 0, false
	default:
		return 0, false
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// RootSumSquares writes sqrt(a*a + b*b) for two concurrent rasters.
func (e *Engine) RootSumSquares(ctx context.Context, raster1, raster2, output string) error {
	return e.run(ctx, "rss", func(ctx context.Context, log *slog.Logger) error {
		if err := requireInputs(raster1, raster2); err != nil {
			return err
		}
		if err := requireOutput(output); err != nil {
			return err
		}
		return e.combine(ctx, log, "rss", []string{raster1, raster2}, output, grid.Float32,
			pure(func(v []float64, ok []bool) (float64, bool) {
				if !allValid(ok) {
					return 0, false
				}
				return math.Hypot(v[0], v[1]), true
			}))
	})
}
