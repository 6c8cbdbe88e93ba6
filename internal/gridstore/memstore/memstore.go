// Package memstore is an in-process grid store. Rasters live in a map keyed
// by path for the life of the Store; handles opened on the same path share
// cells.
package memstore

import (
	"fmt"
	"sync"

	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

type raster struct {
	mu      sync.RWMutex
	meta    grid.Meta
	cells   []float64
	version int64
}

type Store struct {
	mu    sync.RWMutex
	files map[string]*raster
	// Driver is reported by opened datasets; defaults to MEM.
	Driver string
}

func New() *Store {
	return &Store{files: map[string]*raster{}, Driver: gridstore.MEM}
}

func (s *Store) Open(path string) (gridstore.Dataset, error) {
	s.mu.RLock()
	r, ok := s.files[path]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memstore: %q does not exist", path)
	}
	return &dataset{path: path, r: r, driver: s.Driver}, nil
}

func (s *Store) Create(path string, meta grid.Meta) (gridstore.Dataset, error) {
	if meta.Rows <= 0 || meta.Cols <= 0 {
		return nil, fmt.Errorf("memstore: invalid size %dx%d", meta.Rows, meta.Cols)
	}
	r := &raster{meta: meta, cells: make([]float64, meta.Rows*meta.Cols)}

	s.mu.Lock()
	if old, ok := s.files[path]; ok {
		r.version = old.version + 1
	}
	s.files[path] = r
	s.mu.Unlock()

	return &dataset{path: path, r: r, driver: s.Driver}, nil
}

// Put stores a raster built from meta and row-major cells. It is a fixture
// helper; cells is copied.
func (s *Store) Put(path string, meta grid.Meta, cells []float64) error {
	if len(cells) != meta.Rows*meta.Cols {
		return fmt.Errorf("memstore: %d cells for a %dx%d raster", len(cells), meta.Rows, meta.Cols)
	}
	ds, err := s.Create(path, meta)
	if err != nil {
		return err
	}
	d := ds.(*dataset)
	for i, v := range cells {
		d.r.cells[i] = meta.DataType.Clamp(v)
	}
	return nil
}

// Cells returns a copy of the stored cells at path.
func (s *Store) Cells(path string) ([]float64, grid.Meta, bool) {
	s.mu.RLock()
	r, ok := s.files[path]
	s.mu.RUnlock()
	if !ok {
		return nil, grid.Meta{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]float64(nil), r.cells...), r.meta, true
}

func (s *Store) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *Store) Stat(path string) (gridstore.Stamp, error) {
	s.mu.RLock()
	r, ok := s.files[path]
	s.mu.RUnlock()
	if !ok {
		return gridstore.Stamp{}, fmt.Errorf("memstore: %q does not exist", path)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return gridstore.Stamp{Size: int64(len(r.cells) * 8), ModTime: r.version}, nil
}

type dataset struct {
	path   string
	r      *raster
	driver string
	closed bool
}

func (d *dataset) Path() string { return d.path }

func (d *dataset) GeoTransform() ([6]float64, error) {
	return d.r.meta.GeoTransform(), nil
}

func (d *dataset) Size() (int, int) { return d.r.meta.Rows, d.r.meta.Cols }

func (d *dataset) NoData() (float64, bool) { return d.r.meta.NoData, true }

func (d *dataset) DataType() grid.DataType { return d.r.meta.DataType }

func (d *dataset) Driver() string { return d.driver }

func (d *dataset) Projection() string { return d.r.meta.Projection }

func (d *dataset) ReadRow(row int, buf []float64) error {
	if err := d.check(row, buf); err != nil {
		return err
	}
	cols := d.r.meta.Cols
	d.r.mu.RLock()
	copy(buf[:cols], d.r.cells[row*cols:(row+1)*cols])
	d.r.mu.RUnlock()
	return nil
}

func (d *dataset) WriteRow(row int, buf []float64) error {
	if err := d.check(row, buf); err != nil {
		return err
	}
	cols := d.r.meta.Cols
	dt := d.r.meta.DataType
	d.r.mu.Lock()
	dst := d.r.cells[row*cols : (row+1)*cols]
	for i := range dst {
		dst[i] = dt.Clamp(buf[i])
	}
	d.r.version++
	d.r.mu.Unlock()
	return nil
}

func (d *dataset) check(row int, buf []float64) error {
	if d.closed {
		return fmt.Errorf("memstore: %q is closed", d.path)
	}
	if row < 0 || row >= d.r.meta.Rows {
		return fmt.Errorf("memstore: row %d out of range [0,%d)", row, d.r.meta.Rows)
	}
	if len(buf) < d.r.meta.Cols {
		return fmt.Errorf("memstore: buffer of %d for %d columns", len(buf), d.r.meta.Cols)
	}
	return nil
}

func (d *dataset) Close() error {
	d.closed = true
	return nil
}
