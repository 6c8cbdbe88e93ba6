// Package asciigrid reads and writes ESRI ASCII grids (.asc), with the
// projection kept in a .prj sidecar.
package asciigrid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

type Store struct{}

func New() *Store { return &Store{} }

type header struct {
	ncols, nrows   int
	xll, yll       float64
	centred        bool
	dx, dy         float64
	nodata         float64
	hasNoData      bool
	floatingValues bool
}

func (s *Store) Open(path string) (gridstore.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	h, cells, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("asciigrid %q: %w", path, err)
	}
	return &dataset{
		path:  path,
		meta:  h.meta(readProjection(path)),
		hasND: h.hasNoData,
		cells: cells,
	}, nil
}

func (s *Store) Create(path string, meta grid.Meta) (gridstore.Dataset, error) {
	if meta.Rows <= 0 || meta.Cols <= 0 {
		return nil, fmt.Errorf("asciigrid: invalid size %dx%d", meta.Rows, meta.Cols)
	}
	// fail early on an unwritable location rather than at Close
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &dataset{
		path:     path,
		meta:     meta,
		hasND:    true,
		cells:    make([]float64, meta.Rows*meta.Cols),
		writable: true,
	}, nil
}

func (h header) meta(projection string) grid.Meta {
	left, bottom := h.xll, h.yll
	if h.centred {
		left -= h.dx / 2
		bottom -= h.dy / 2
	}
	top := bottom + float64(h.nrows)*h.dy
	dt := grid.Int32
	if h.floatingValues {
		dt = grid.Float32
	}
	nd := grid.DefaultNoData
	if h.hasNoData {
		nd = h.nodata
	}
	return grid.NewMeta(
		grid.NewExtent(top, left, h.nrows, h.ncols, -h.dy, h.dx),
		grid.Info{NoData: nd, DataType: dt, Driver: gridstore.AAIGrid, Projection: projection},
	)
}

// decode parses an ASCII grid. Cells are returned row-major, north row first.
func decode(r io.Reader) (header, []float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	var (
		h          header
		cellsize   float64
		first      string
		haveX      bool
		haveY      bool
		readHeader = true
	)
	for readHeader && sc.Scan() {
		key := strings.ToLower(sc.Text())
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter",
			"cellsize", "dx", "dy", "nodata_value":
		default:
			first = sc.Text()
			readHeader = false
			continue
		}
		if !sc.Scan() {
			return h, nil, fmt.Errorf("header %s has no value", key)
		}
		raw := sc.Text()
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return h, nil, fmt.Errorf("header %s: %w", key, err)
		}
		switch key {
		case "ncols":
			h.ncols = int(v)
		case "nrows":
			h.nrows = int(v)
		case "xllcorner":
			h.xll, haveX = v, true
		case "yllcorner":
			h.yll, haveY = v, true
		case "xllcenter":
			h.xll, haveX, h.centred = v, true, true
		case "yllcenter":
			h.yll, haveY, h.centred = v, true, true
		case "cellsize":
			cellsize = v
		case "dx":
			h.dx = v
		case "dy":
			h.dy = v
		case "nodata_value":
			h.nodata, h.hasNoData = v, true
			h.floatingValues = h.floatingValues || isFloatToken(raw)
		}
	}
	if err := sc.Err(); err != nil {
		return h, nil, err
	}

	if h.dx == 0 {
		h.dx = cellsize
	}
	if h.dy == 0 {
		h.dy = cellsize
	}
	switch {
	case h.ncols <= 0 || h.nrows <= 0:
		return h, nil, fmt.Errorf("invalid size %dx%d", h.nrows, h.ncols)
	case !haveX || !haveY:
		return h, nil, errors.New("missing lower-left coordinate")
	case h.dx <= 0 || h.dy <= 0:
		return h, nil, errors.New("missing or invalid cell size")
	}

	n := h.nrows * h.ncols
	cells := make([]float64, 0, n)
	add := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("cell %d: %w", len(cells), err)
		}
		if isFloatToken(tok) {
			h.floatingValues = true
		}
		cells = append(cells, v)
		return nil
	}
	if first != "" {
		if err := add(first); err != nil {
			return h, nil, err
		}
	}
	for len(cells) < n && sc.Scan() {
		if err := add(sc.Text()); err != nil {
			return h, nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return h, nil, err
	}
	if len(cells) != n {
		return h, nil, fmt.Errorf("expected %d cells, found %d", n, len(cells))
	}
	return h, cells, nil
}

// encode writes meta and row-major cells as an ASCII grid.
func encode(w io.Writer, meta grid.Meta, cells []float64) error {
	bw := bufio.NewWriter(w)
	dx, dy := math.Abs(meta.CellWidth), math.Abs(meta.CellHeight)

	fmt.Fprintf(bw, "ncols        %d\n", meta.Cols)
	fmt.Fprintf(bw, "nrows        %d\n", meta.Rows)
	fmt.Fprintf(bw, "xllcorner    %s\n", fmtFloat(meta.Left, grid.Float64))
	fmt.Fprintf(bw, "yllcorner    %s\n", fmtFloat(meta.Bottom(), grid.Float64))
	if dx == dy {
		fmt.Fprintf(bw, "cellsize     %s\n", fmtFloat(dx, grid.Float64))
	} else {
		fmt.Fprintf(bw, "dx           %s\n", fmtFloat(dx, grid.Float64))
		fmt.Fprintf(bw, "dy           %s\n", fmtFloat(dy, grid.Float64))
	}
	fmt.Fprintf(bw, "NODATA_value %s\n", fmtFloat(meta.NoData, meta.DataType))

	for r := 0; r < meta.Rows; r++ {
		row := cells[r*meta.Cols : (r+1)*meta.Cols]
		for c, v := range row {
			if c > 0 {
				_ = bw.WriteByte(' ')
			}
			_, _ = bw.WriteString(fmtFloat(v, meta.DataType))
		}
		_ = bw.WriteByte('\n')
	}
	return bw.Flush()
}

func fmtFloat(v float64, dt grid.DataType) string {
	switch {
	case dt.IsInteger():
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	case dt == grid.Float32:
		return pointed(strconv.FormatFloat(v, 'g', -1, 32))
	default:
		return pointed(strconv.FormatFloat(v, 'g', -1, 64))
	}
}

// pointed keeps whole floating values recognisable as floating on re-read.
func pointed(s string) string {
	if strings.ContainsAny(s, ".eEIN") {
		return s
	}
	return s + ".0"
}

func isFloatToken(s string) bool {
	return strings.ContainsAny(s, ".eE")
}

// Remove deletes the grid and its projection sidecar.
func (s *Store) Remove(path string) error {
	for _, p := range []string{path, prjPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("asciigrid: remove %q: %w", p, err)
		}
	}
	return nil
}

func prjPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
}

func readProjection(path string) string {
	b, err := os.ReadFile(prjPath(path))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

type dataset struct {
	path     string
	meta     grid.Meta
	hasND    bool
	cells    []float64
	writable bool
	closed   bool
}

func (d *dataset) Path() string { return d.path }

func (d *dataset) GeoTransform() ([6]float64, error) { return d.meta.GeoTransform(), nil }

func (d *dataset) Size() (int, int) { return d.meta.Rows, d.meta.Cols }

func (d *dataset) NoData() (float64, bool) { return d.meta.NoData, d.hasND }

func (d *dataset) DataType() grid.DataType { return d.meta.DataType }

func (d *dataset) Driver() string { return gridstore.AAIGrid }

func (d *dataset) Projection() string { return d.meta.Projection }

func (d *dataset) ReadRow(row int, buf []float64) error {
	if err := d.check(row, buf); err != nil {
		return err
	}
	copy(buf[:d.meta.Cols], d.cells[row*d.meta.Cols:])
	return nil
}

func (d *dataset) WriteRow(row int, buf []float64) error {
	if !d.writable {
		return fmt.Errorf("asciigrid: %q is open read-only", d.path)
	}
	if err := d.check(row, buf); err != nil {
		return err
	}
	dst := d.cells[row*d.meta.Cols : (row+1)*d.meta.Cols]
	for i := range dst {
		dst[i] = d.meta.DataType.Clamp(buf[i])
	}
	return nil
}

func (d *dataset) check(row int, buf []float64) error {
	if d.closed {
		return fmt.Errorf("asciigrid: %q is closed", d.path)
	}
	if row < 0 || row >= d.meta.Rows {
		return fmt.Errorf("asciigrid: row %d out of range [0,%d)", row, d.meta.Rows)
	}
	if len(buf) < d.meta.Cols {
		return fmt.Errorf("asciigrid: buffer of %d for %d columns", len(buf), d.meta.Cols)
	}
	return nil
}

// Close flushes a created grid to disk.
func (d *dataset) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if !d.writable {
		return nil
	}
	f, err := os.Create(d.path)
	if err != nil {
		return err
	}
	if err := encode(f, d.meta, d.cells); err != nil {
		_ = f.Close()
		return fmt.Errorf("asciigrid: write %q: %w", d.path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if d.meta.Projection != "" {
		if err := os.WriteFile(prjPath(d.path), []byte(d.meta.Projection+"\n"), 0o644); err != nil {
			return fmt.Errorf("asciigrid: write projection: %w", err)
		}
	}
	return nil
}
