// Package raster implements the rasterman operations. Each operation reads
// its inputs and writes its outputs a row at a time through a grid store,
// using the grid package to size outputs and to map cells between grids.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/rasterman/internal/core/observability"
	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/events"
	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
	"github.com/mohammed-shakir/rasterman/internal/logger"
)

// MetaLoader returns raster metadata, possibly from a cache.
type MetaLoader interface {
	Meta(ctx context.Context, path string) (grid.Meta, error)
}

type Options struct {
	Logger       *slog.Logger
	Meta         MetaLoader
	Events       events.Publisher
	Defaults     grid.Defaults
	RowCacheSize int
}

type Engine struct {
	store     gridstore.Store
	meta      MetaLoader
	log       *slog.Logger
	pub       events.Publisher
	def       grid.Defaults
	cacheRows int
}

func New(store gridstore.Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Defaults == (grid.Defaults{}) {
		opts.Defaults = grid.StandardDefaults()
	}
	if opts.Events == nil {
		opts.Events = events.Nop()
	}
	e := &Engine{
		store:     store,
		meta:      opts.Meta,
		log:       opts.Logger,
		pub:       opts.Events,
		def:       opts.Defaults,
		cacheRows: opts.RowCacheSize,
	}
	if e.meta == nil {
		e.meta = directLoader{store: store, def: opts.Defaults}
	}
	return e
}

type directLoader struct {
	store gridstore.Store
	def   grid.Defaults
}

func (d directLoader) Meta(_ context.Context, path string) (grid.Meta, error) {
	return grid.ReadMetaWithDefaults(gridstore.Opener(d.store), path, d.def)
}

// run wraps one operation with its log line and metrics.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, log *slog.Logger) error) error {
	start := time.Now()
	ctx = logger.WithOp(ctx, op)
	log := e.log.With("op", op)

	err := fn(ctx, log)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = errcode.Wrap(errcode.OtherError, err, "%s interrupted", op)
	}

	code := errcode.CodeOf(err)
	observability.ObserveOp(op, code.Name(), time.Since(start).Seconds())
	if err != nil {
		log.ErrorContext(ctx, "operation failed", "code", code.Name(), "err", err)
		return err
	}
	log.InfoContext(ctx, "operation finished", "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// input is an open source raster with its metadata.
type input struct {
	meta grid.Meta
	ds   gridstore.Dataset
	buf  []float64
}

func (e *Engine) openInput(ctx context.Context, path string) (*input, error) {
	m, err := e.meta.Meta(ctx, path)
	if err != nil {
		return nil, err
	}
	ds, err := e.store.Open(path)
	if err != nil {
		if errcode.CodeOf(err) != errcode.OtherError {
			return nil, err
		}
		return nil, errcode.Wrap(errcode.InputFileError, err, "open %q", path)
	}
	return &input{meta: m, ds: ds, buf: make([]float64, m.Cols)}, nil
}

func (in *input) read(row int) ([]float64, error) {
	if err := in.ds.ReadRow(row, in.buf); err != nil {
		return nil, errcode.Wrap(errcode.InputFileError, err, "read row %d of %q", row, in.ds.Path())
	}
	return in.buf, nil
}

func (in *input) close() { _ = in.ds.Close() }

func closeInputs(ins []*input) {
	for _, in := range ins {
		if in != nil {
			in.close()
		}
	}
}

// output is a raster being written. finish must be called on success; abort
// on failure.
type output struct {
	e       *Engine
	op      string
	path    string
	meta    grid.Meta
	ds      gridstore.Dataset
	written int
}

func (e *Engine) createOutput(op, path string, m grid.Meta) (*output, error) {
	if path == "" {
		return nil, errcode.New(errcode.OutputFileMissing, "output path is empty")
	}
	ds, err := e.store.Create(path, m)
	if err != nil {
		if errcode.CodeOf(err) != errcode.OtherError {
			return nil, err
		}
		return nil, errcode.Wrap(errcode.OutputFileError, err, "create %q", path)
	}
	// the store may have adjusted the driver
	m.Driver = ds.Driver()
	return &output{e: e, op: op, path: path, meta: m, ds: ds}, nil
}

func (o *output) write(row int, buf []float64) error {
	if err := o.ds.WriteRow(row, buf); err != nil {
		return errcode.Wrap(errcode.OutputFileError, err, "write row %d of %q", row, o.path)
	}
	for _, v := range buf[:o.meta.Cols] {
		if !o.meta.IsNoData(v) {
			o.written++
		}
	}
	return nil
}

func (o *output) finish() error {
	if err := o.ds.Close(); err != nil {
		return errcode.Wrap(errcode.OutputFileError, err, "close %q", o.path)
	}
	observability.AddCellsWritten(o.op, o.written)
	o.e.pub.Publish(events.Written(o.path, o.op, o.meta))
	return nil
}

// abort closes o and deletes whatever the store already wrote, so a failed
// run leaves no output behind.
func (o *output) abort() {
	_ = o.ds.Close()
	rm, ok := o.e.store.(gridstore.Remover)
	if !ok {
		return
	}
	if err := rm.Remove(o.path); err != nil {
		o.e.log.Warn("remove partial output", "path", o.path, "err", err)
	}
}

// fillNoData writes no-data to every row of o.
func (o *output) fillNoData(ctx context.Context) error {
	buf := make([]float64, o.meta.Cols)
	gridstore.FillRow(buf, o.meta.NoData)
	for r := 0; r < o.meta.Rows; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.ds.WriteRow(r, buf); err != nil {
			return errcode.Wrap(errcode.OutputFileError, err, "initialise row %d of %q", r, o.path)
		}
	}
	return nil
}

// outputMeta is the metadata of a new raster shaped like ext using the
// engine's defaults.
func (e *Engine) outputMeta(ext grid.Extent, projection string) grid.Meta {
	return grid.NewMeta(ext, grid.Info{
		NoData:     e.def.NoData,
		DataType:   e.def.DataType,
		Driver:     e.def.Driver,
		Projection: projection,
	})
}

func checkConcurrent(a, b *input) error {
	if err := a.meta.CheckConcurrent(b.meta); err != nil {
		return fmt.Errorf("%q and %q are not concurrent: %w", a.ds.Path(), b.ds.Path(), err)
	}
	return nil
}
