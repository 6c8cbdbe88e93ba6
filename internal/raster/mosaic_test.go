package raster

import (
	"context"
	"testing"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

func TestMosaic_UnionAndFirstWriterWins(t *testing.T) {
	f := newFixture(t)
	f.put(t, "west.mem", grid.NewExtent(2, 0, 2, 2, -1, 1), 1, 1, 1, nd)
	f.put(t, "east.mem", grid.NewExtent(3, 1, 2, 2, -1, 1), 2, 2, 2, 2)

	if err := f.e.Mosaic(context.Background(), []string{"west.mem", "east.mem"}, "m.mem"); err != nil {
		t.Fatalf("Mosaic: %v", err)
	}
	got, m := f.cells(t, "m.mem")
	if m.Extent != grid.NewExtent(3, 0, 3, 3, -1, 1) {
		t.Fatalf("extent=%v", m.Extent)
	}
	wantCells(t, got, []float64{
		outND, 2, 2,
		1, 1, 2,
		1, outND, outND,
	})
}

func TestMosaic_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put(t, "a.mem", grid.NewExtent(2, 0, 2, 2, -1, 1), 1, 1, 1, 1)
	f.put(t, "coarse.mem", grid.NewExtent(2, 0, 1, 1, -2, 2), 1)

	if err := f.e.Mosaic(ctx, nil, "m.mem"); errcode.CodeOf(err) != errcode.MissingArgument {
		t.Fatalf("no inputs err=%v", err)
	}
	if err := f.e.Mosaic(ctx, []string{"a.mem", "coarse.mem"}, "m.mem"); errcode.CodeOf(err) != errcode.CellSizeError {
		t.Fatalf("mixed resolution err=%v", err)
	}
	if err := f.e.Mosaic(ctx, []string{"a.mem", "gone.mem"}, "m.mem"); errcode.CodeOf(err) != errcode.InputFileError {
		t.Fatalf("missing input err=%v", err)
	}
}

func TestMakeConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put(t, "west.mem", grid.NewExtent(2, 0, 2, 2, -1, 1), 1, 1, 1, nd)
	f.put(t, "east.mem", grid.NewExtent(3, 1, 2, 2, -1, 1), 2, 2, 2, 2)

	if err := f.e.MakeConcurrent(ctx, []string{"west.mem", "east.mem"}, []string{"w2.mem", "e2.mem"}); err != nil {
		t.Fatalf("MakeConcurrent: %v", err)
	}
	w, wm := f.cells(t, "w2.mem")
	e, em := f.cells(t, "e2.mem")
	if !wm.IsConcurrent(em) {
		t.Fatalf("outputs not concurrent: %v vs %v", wm.Extent, em.Extent)
	}
	if wm.NoData != nd {
		t.Fatalf("output should keep the input no-data, got %v", wm.NoData)
	}
	wantCells(t, w, []float64{nd, nd, nd, 1, 1, nd, 1, nd, nd})
	wantCells(t, e, []float64{nd, 2, 2, nd, 2, 2, nd, nd, nd})

	ok, err := f.e.IsConcurrent(ctx, "w2.mem", "e2.mem")
	if err != nil || !ok {
		t.Fatalf("IsConcurrent=%v,%v", ok, err)
	}

	err = f.e.MakeConcurrent(ctx, []string{"west.mem", "east.mem"}, []string{"only.mem"})
	if errcode.CodeOf(err) != errcode.MissingArgument {
		t.Fatalf("count mismatch err=%v", err)
	}
}
