// Package gridstore is the raster file layer: open and create single-band
// grids and move them a row at a time. Backends register with a Registry
// under a driver name and are selected by file extension.
package gridstore

import (
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// Dataset is an open single-band raster.
type Dataset interface {
	grid.Source
	Path() string
	// ReadRow fills buf (len >= cols) with row values as float64.
	ReadRow(row int, buf []float64) error
	// WriteRow stores buf[:cols] at row, converting to the dataset type.
	WriteRow(row int, buf []float64) error
}

type Store interface {
	Open(path string) (Dataset, error)
	// Create makes a new raster at path shaped and typed by meta, replacing
	// any existing one.
	Create(path string, meta grid.Meta) (Dataset, error)
}

// Stamp identifies a version of a stored raster.
type Stamp struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mtime"`
}

// Stater is implemented by stores whose rasters do not live on the local
// filesystem.
type Stater interface {
	Stat(path string) (Stamp, error)
}

// Remover is implemented by stores that keep more than the raster file
// itself, or none at all.
type Remover interface {
	Remove(path string) error
}

// FillRow sets every element of buf to v.
func FillRow(buf []float64, v float64) {
	for i := range buf {
		buf[i] = v
	}
}
