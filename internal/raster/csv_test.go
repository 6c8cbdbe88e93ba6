package raster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func TestCSVToRaster_AndBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	in := writeFile(t, dir, "points.csv", `"x", "y", "z"
0.5,2.5,7
NaN,NaN,5
Inf,2.5,5
0.5,-Inf,5
2.5,0.5,1
2.9,0.1,9
10,10,4
oops,1,1
1.5,1.5,n/a
`)

	err := f.e.CSVToRaster(ctx, CSVArgs{
		CSV: in, Output: "pts.mem", XField: "x", YField: "y", DataField: "z",
		Top: 3, Left: 0, Rows: 3, Cols: 3, CellWidth: 1, NoData: -1, HasNoData: true,
	})
	if err != nil {
		t.Fatalf("CSVToRaster: %v", err)
	}
	got, m := f.cells(t, "pts.mem")
	// the second point in the bottom-right cell overwrites the first
	wantCells(t, got, []float64{7, -1, -1, -1, -1, -1, -1, -1, 9})
	if m.DataType != grid.Float32 || m.NoData != -1 {
		t.Fatalf("meta=%v", m)
	}

	out := filepath.Join(dir, "cells.csv")
	if err := f.e.RasterToCSV(ctx, "pts.mem", out); err != nil {
		t.Fatalf("RasterToCSV: %v", err)
	}
	lines := readLines(t, out)
	want := []string{"X,Y,Value", "0.5,2.5,7", "2.5,0.5,9"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("csv=%q want %q", lines, want)
	}
}

func TestCSVToRaster_TemplateGrid(t *testing.T) {
	f := newFixture(t)
	f.put(t, "tpl.mem", ext3x3(3, 0), make([]float64, 9)...)
	in := writeFile(t, t.TempDir(), "p.csv", "lon,lat,v\n1.5,1.5,42\n")

	err := f.e.CSVToRaster(context.Background(), CSVArgs{
		CSV: in, Output: "t.mem", XField: "lon", YField: "lat", DataField: "v", Template: "tpl.mem",
	})
	if err != nil {
		t.Fatalf("CSVToRaster: %v", err)
	}
	got, m := f.cells(t, "t.mem")
	if m.Extent != ext3x3(3, 0) || got[4] != 42 || got[0] != nd {
		t.Fatalf("meta=%v cells=%v", m, got)
	}
}

func TestCSVToRaster_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	in := writeFile(t, dir, "p.csv", "x,y,z\n")
	empty := writeFile(t, dir, "empty.csv", "")
	base := CSVArgs{CSV: in, Output: "o.mem", XField: "x", YField: "y", DataField: "z",
		Top: 3, Rows: 3, Cols: 3, CellWidth: 1}

	cases := []struct {
		name string
		mod  func(a *CSVArgs)
		want errcode.Code
	}{
		{"bad x field", func(a *CSVArgs) { a.XField = "east" }, errcode.MissingArgument},
		{"bad data field", func(a *CSVArgs) { a.DataField = "val" }, errcode.MissingArgument},
		{"no fields", func(a *CSVArgs) { a.YField = "" }, errcode.MissingArgument},
		{"empty file", func(a *CSVArgs) { a.CSV = empty }, errcode.InputFileError},
		{"missing file", func(a *CSVArgs) { a.CSV = filepath.Join(dir, "gone.csv") }, errcode.InputFileError},
		{"zero rows", func(a *CSVArgs) { a.Rows = 0 }, errcode.RowsError},
		{"zero cell", func(a *CSVArgs) { a.CellWidth = 0 }, errcode.CellSizeError},
		{"no output", func(a *CSVArgs) { a.Output = "" }, errcode.OutputFileMissing},
	}
	for _, tc := range cases {
		a := base
		tc.mod(&a)
		if err := f.e.CSVToRaster(ctx, a); errcode.CodeOf(err) != tc.want {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.want)
		}
	}
	if err := f.e.CSVToRaster(ctx, base); err != nil {
		t.Fatalf("header-only csv: %v", err)
	}
	got, _ := f.cells(t, "o.mem")
	for i, v := range got {
		if v != outND {
			t.Fatalf("cell %d=%v want no-data", i, v)
		}
	}
}

func TestExtractPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	f.put(t, "a.mem", ext3x3(3, 0), 1, 2, 3, 4, nd, 6, 7, 8, 9)

	in := writeFile(t, dir, "pts.csv", "X,Y\n0.5,2.5\n2.2,0.9\n1.5,1.5\n9,9\nx,y\n")
	out := filepath.Join(dir, "out.csv")
	if err := f.e.ExtractPoints(ctx, ExtractArgs{CSV: in, Raster: "a.mem", Output: out}); err != nil {
		t.Fatalf("ExtractPoints: %v", err)
	}
	want := []string{
		"X,Y,Value",
		"0.5,2.5,1.0000000000",
		"2.2,0.9,9.0000000000",
		"1.5,1.5,-9999",
	}
	if got := readLines(t, out); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("csv=%q want %q", got, want)
	}
}

func TestExtractPoints_NamedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	f.put(t, "a.mem", ext3x3(3, 0), 1, 2, 3, 4, nd, 6, 7, 8, 9)

	in := writeFile(t, dir, "pts.csv", "id,lat,lon\n1,2.5,1.5\n")
	out := filepath.Join(dir, "out.csv")
	err := f.e.ExtractPoints(ctx, ExtractArgs{CSV: in, Raster: "a.mem", Output: out, XField: "lon", YField: "lat", NoData: "NA"})
	if err != nil {
		t.Fatalf("ExtractPoints: %v", err)
	}
	want := []string{"lon,lat,Value", "1.5,2.5,2.0000000000"}
	if got := readLines(t, out); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("csv=%q want %q", got, want)
	}

	err = f.e.ExtractPoints(ctx, ExtractArgs{CSV: in, Raster: "a.mem", Output: out, XField: "east", YField: "lat"})
	if errcode.CodeOf(err) != errcode.MissingArgument {
		t.Fatalf("err=%v want MissingArgument", err)
	}
}
