package raster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	goeval "github.com/edisonguo/govaluate"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

var calcFunctions = map[string]goeval.ExpressionFunction{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"log":   unary(math.Log),
	"exp":   unary(math.Exp),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow takes 2 arguments, got %d", len(args))
		}
		a, aok := args[0].(float64)
		b, bok := args[1].(float64)
		if !aok || !bok {
			return nil, fmt.Errorf("pow: non-numeric argument")
		}
		return math.Pow(a, b), nil
	},
	"min": fold(math.Min),
	"max": fold(math.Max),
}

func unary(f func(float64) float64) goeval.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("non-numeric argument %v", args[0])
		}
		return f(v), nil
	}
}

func fold(f func(a, b float64) float64) goeval.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("expected at least 1 argument")
		}
		acc, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("non-numeric argument %v", args[0])
		}
		for _, a := range args[1:] {
			v, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("non-numeric argument %v", a)
			}
			acc = f(acc, v)
		}
		return acc, nil
	}
}

// Calc evaluates expr for every cell. inputs maps the variable names used in
// expr to concurrent rasters. A cell is no-data where any input is no-data or
// the expression has no finite numeric value; booleans become 1 and 0.
func (e *Engine) Calc(ctx context.Context, expr string, inputs map[string]string, output string) error {
	return e.run(ctx, "calc", func(ctx context.Context, log *slog.Logger) error {
		if expr == "" {
			return errcode.New(errcode.MissingArgument, "calc expression is empty")
		}
		if err := requireOutput(output); err != nil {
			return err
		}
		ev, err := goeval.NewEvaluableExpressionWithFunctions(expr, calcFunctions)
		if err != nil {
			return errcode.Wrap(errcode.MissingArgument, err, "parse expression %q", expr)
		}

		names := make([]string, 0, len(inputs))
		for _, tok := range ev.Tokens() {
			if tok.Kind != goeval.VARIABLE {
				continue
			}
			v, _ := tok.Value.(string)
			if _, ok := inputs[v]; !ok {
				return errcode.New(errcode.MissingArgument, "expression uses %q but no raster is bound to it", v)
			}
		}
		for n := range inputs {
			names = append(names, n)
		}
		sort.Strings(names)
		paths := make([]string, len(names))
		for i, n := range names {
			paths[i] = inputs[n]
		}

		params := make(map[string]interface{}, len(names))
		return e.combine(ctx, log, "calc", paths, output, grid.Float32,
			func(v []float64, ok []bool) (float64, bool, error) {
				if !allValid(ok) {
					return 0, false, nil
				}
				for i, n := range names {
					params[n] = v[i]
				}
				res, err := ev.Evaluate(params)
				if err != nil {
					return 0, false, errcode.Wrap(errcode.OtherError, err, "evaluate %q", expr)
				}
				out, good := calcResult(res)
				return out, good, nil
			})
	})
}

func calcResult(res interface{}) (float64, bool) {
	switch t := res.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
