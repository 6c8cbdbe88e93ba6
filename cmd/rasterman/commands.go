package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/rasterman/internal/core/health"
	"github.com/mohammed-shakir/rasterman/internal/core/model"
	"github.com/mohammed-shakir/rasterman/internal/core/observability"
	"github.com/mohammed-shakir/rasterman/internal/core/server"
	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/events"
	"github.com/mohammed-shakir/rasterman/internal/raster"
)

type command struct {
	help string
	args string
	run  func(ctx context.Context, a *app, fs *flag.FlagSet, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"properties":     {"print the grid properties of a raster as JSON", "-i raster", properties},
	"concurrent":     {"report whether two rasters share a grid", "-a raster -b raster", concurrent},
	"math":           {"cell-by-cell arithmetic on a raster and a raster or number", "-op add|subtract|multiply|divide|power|sqrt|threshold -r1 raster [-r2 raster | -n number] -o out", basicMath},
	"rss":            {"root sum of squares of two rasters", "-r1 raster -r2 raster -o out", rss},
	"calc":           {"evaluate an expression over named rasters", "-expr 'a*2+b' -r a=raster -r b=raster -o out", calc},
	"mosaic":         {"stitch rasters onto the union of their extents", "-o out raster...", mosaic},
	"csv2raster":     {"burn CSV points into a raster", "-csv file -x field -y field -field field -o out (-template raster | -top -left -rows -cols -cell)", csvToRaster},
	"raster2csv":     {"list the cells holding data as X,Y,Value", "-i raster -o file.csv", rasterToCSV},
	"extract":        {"sample a raster at CSV points", "-csv file -i raster -o file.csv [-x field -y field]", extract},
	"vector2raster":  {"burn a GeoJSON polygon field into a raster", "-vector file -field name -o out (-template raster | -cell size) [-layer name]", vectorToRaster},
	"hillshade":      {"shaded relief of a DEM", "-i dem -o out", hillshade},
	"slope":          {"slope of a DEM", "-i dem -o out [-unit degrees|percent]", slope},
	"copy":           {"copy a raster onto a new grid (nearest cell)", "-i raster -o out [-cell size] [-top -left -rows -cols]", resampleCmd(false)},
	"resample":       {"bilinear resample onto a new grid", "-i raster -o out [-cell size] [-top -left -rows -cols]", resampleCmd(true)},
	"makeconcurrent": {"rewrite rasters onto their common extent", "-i a,b,... -o a2,b2,...", makeConcurrent},
	"mask":           {"keep raster cells where the mask has data", "-i raster -mask raster -o out", mask},
	"serve":          {"serve raster queries over HTTP", "[-addr :8090]", serve},
}

// parse turns flag errors into MissingArgument so that they exit like any
// other bad invocation.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return err
		}
		return errcode.Wrap(errcode.MissingArgument, err, "%s", fs.Name())
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errcode.Wrap(errcode.OtherError, err, "write output")
	}
	return nil
}

// optFloat is a float flag that records whether it was given.
type optFloat struct {
	v   float64
	set bool
}

func (o *optFloat) String() string {
	if !o.set {
		return ""
	}
	return strconv.FormatFloat(o.v, 'g', -1, 64)
}

func (o *optFloat) Set(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	o.v, o.set = v, true
	return nil
}

// bindings collects repeated name=raster flags.
type bindings map[string]string

func (b bindings) String() string {
	parts := make([]string, 0, len(b))
	for k, v := range b {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (b bindings) Set(s string) error {
	name, path, ok := strings.Cut(s, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return fmt.Errorf("want name=raster, got %q", s)
	}
	b[name] = path
	return nil
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func properties(ctx context.Context, a *app, fs *flag.FlagSet, args []string, stdout io.Writer) error {
	in := fs.String("i", "", "input raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	m, err := a.engine.Properties(ctx, *in)
	if err != nil {
		return err
	}
	return printJSON(stdout, model.PropertiesOf(*in, m))
}

func concurrent(ctx context.Context, a *app, fs *flag.FlagSet, args []string, stdout io.Writer) error {
	r1 := fs.String("a", "", "first raster")
	r2 := fs.String("b", "", "second raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	ok, err := a.engine.IsConcurrent(ctx, *r1, *r2)
	if err != nil {
		return err
	}
	return printJSON(stdout, model.Concurrent{A: *r1, B: *r2, Concurrent: ok})
}

func basicMath(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	op := fs.String("op", "", "operation")
	r1 := fs.String("r1", "", "first raster")
	r2 := fs.String("r2", "", "second raster")
	var n optFloat
	fs.Var(&n, "n", "numeric second operand")
	out := fs.String("o", "", "output raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	mop, err := raster.ParseMathOp(*op)
	if err != nil {
		return err
	}
	return a.engine.BasicMath(ctx, raster.MathArgs{
		Op: mop, Raster1: *r1, Raster2: *r2, Scalar: n.v, HasScalar: n.set, Output: *out,
	})
}

func rss(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	r1 := fs.String("r1", "", "first raster")
	r2 := fs.String("r2", "", "second raster")
	out := fs.String("o", "", "output raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.RootSumSquares(ctx, *r1, *r2, *out)
}

func calc(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	expr := fs.String("expr", "", "expression")
	vars := bindings{}
	fs.Var(vars, "r", "name=raster binding (repeatable)")
	out := fs.String("o", "", "output raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.Calc(ctx, *expr, vars, *out)
}

func mosaic(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	out := fs.String("o", "", "output raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.Mosaic(ctx, fs.Args(), *out)
}

func csvToRaster(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	var c raster.CSVArgs
	var nodata optFloat
	fs.StringVar(&c.CSV, "csv", "", "input CSV")
	fs.StringVar(&c.Output, "o", "", "output raster")
	fs.StringVar(&c.XField, "x", "", "X field")
	fs.StringVar(&c.YField, "y", "", "Y field")
	fs.StringVar(&c.DataField, "field", "", "data field")
	fs.StringVar(&c.Template, "template", "", "raster supplying the output grid")
	fs.Float64Var(&c.Top, "top", 0, "top of the output grid")
	fs.Float64Var(&c.Left, "left", 0, "left of the output grid")
	fs.IntVar(&c.Rows, "rows", 0, "rows of the output grid")
	fs.IntVar(&c.Cols, "cols", 0, "columns of the output grid")
	fs.Float64Var(&c.CellWidth, "cell", 0, "cell size of the output grid")
	fs.Var(&nodata, "nodata", "no-data value of the output grid")
	if err := parse(fs, args); err != nil {
		return err
	}
	c.NoData, c.HasNoData = nodata.v, nodata.set
	return a.engine.CSVToRaster(ctx, c)
}

func rasterToCSV(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	in := fs.String("i", "", "input raster")
	out := fs.String("o", "", "output CSV")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.RasterToCSV(ctx, *in, *out)
}

func extract(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	var e raster.ExtractArgs
	fs.StringVar(&e.CSV, "csv", "", "input CSV of points")
	fs.StringVar(&e.Raster, "i", "", "raster to sample")
	fs.StringVar(&e.Output, "o", "", "output CSV")
	fs.StringVar(&e.XField, "x", "", "X field (with -y)")
	fs.StringVar(&e.YField, "y", "", "Y field (with -x)")
	fs.StringVar(&e.NoData, "nodata", raster.DefaultExtractNoData, "text written for no-data cells")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.ExtractPoints(ctx, e)
}

func vectorToRaster(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	var v raster.VectorArgs
	fs.StringVar(&v.Vector, "vector", "", "GeoJSON feature collection")
	fs.StringVar(&v.Layer, "layer", "", "layer name")
	fs.StringVar(&v.Field, "field", "", "field to burn")
	fs.StringVar(&v.Output, "o", "", "output raster")
	fs.StringVar(&v.Template, "template", "", "raster supplying the output grid")
	fs.Float64Var(&v.CellSize, "cell", 0, "cell size when no template is given")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.VectorToRaster(ctx, v)
}

func hillshade(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	in := fs.String("i", "", "DEM")
	out := fs.String("o", "", "output raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.Hillshade(ctx, *in, *out)
}

func slope(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	in := fs.String("i", "", "DEM")
	out := fs.String("o", "", "output raster")
	unit := fs.String("unit", "degrees", "degrees or percent")
	if err := parse(fs, args); err != nil {
		return err
	}
	u, err := raster.ParseSlopeUnit(*unit)
	if err != nil {
		return err
	}
	return a.engine.Slope(ctx, *in, *out, u)
}

func resampleCmd(bilinear bool) func(context.Context, *app, *flag.FlagSet, []string, io.Writer) error {
	return func(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
		var r raster.ResampleArgs
		fs.StringVar(&r.Input, "i", "", "input raster")
		fs.StringVar(&r.Output, "o", "", "output raster")
		fs.Float64Var(&r.CellSize, "cell", 0, "new cell size (default: keep)")
		fs.Float64Var(&r.Top, "top", 0, "top of the new grid")
		fs.Float64Var(&r.Left, "left", 0, "left of the new grid")
		fs.IntVar(&r.Rows, "rows", 0, "rows of the new grid (0 with -cols 0 covers the input)")
		fs.IntVar(&r.Cols, "cols", 0, "columns of the new grid")
		if err := parse(fs, args); err != nil {
			return err
		}
		if bilinear {
			return a.engine.BilinearResample(ctx, r)
		}
		return a.engine.Copy(ctx, r)
	}
}

func makeConcurrent(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	in := fs.String("i", "", "comma separated input rasters")
	out := fs.String("o", "", "comma separated output rasters")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.MakeConcurrent(ctx, splitList(*in), splitList(*out))
}

func mask(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	in := fs.String("i", "", "input raster")
	m := fs.String("mask", "", "mask raster")
	out := fs.String("o", "", "output raster")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.engine.Mask(ctx, *in, *m, *out)
}

func serve(ctx context.Context, a *app, fs *flag.FlagSet, args []string, _ io.Writer) error {
	addr := fs.String("addr", a.cfg.Addr, "listen address")
	if err := parse(fs, args); err != nil {
		return err
	}
	observability.SetMode("serve")
	cfg := a.cfg
	cfg.Addr = *addr

	ready := map[string]health.ReadinessReporter{}
	if cfg.Events.Enabled {
		c := events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Events.BrokerList(),
			Topic:   cfg.Events.Topic,
			GroupID: cfg.Events.GroupID,
		}, a.meta, a.log)
		if err := c.Start(ctx); err != nil {
			return errcode.Wrap(errcode.OtherError, err, "start metadata invalidation")
		}
		defer c.Stop()
		ready["events"] = c
	}

	a.log.Info("starting rasterman server", "addr", cfg.Addr, "version", Version,
		"redis", a.redis != nil, "events", cfg.Events.Enabled, "data_root", cfg.DataRoot)
	err := server.Run(ctx, cfg, server.Deps{
		Logger:      a.log,
		Service:     a.engine,
		Metrics:     a.metrics.Handler(),
		MetricsPath: a.metrics.Path(),
		Ready:       ready,
		DataRoot:    cfg.DataRoot,
	})
	if err != nil {
		return errcode.Wrap(errcode.OtherError, err, "http server")
	}
	a.log.Info("server stopped")
	return nil
}
