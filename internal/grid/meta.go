package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
)

// DefaultNoData is substituted when a source raster declares no no-data value.
// It is the lowest finite float32.
const DefaultNoData = -math.MaxFloat32

// DefaultDriver is the format used for templates that name none.
const DefaultDriver = "GTiff"

// Defaults carries the values substituted when a source or template leaves a
// field unset.
type Defaults struct {
	NoData   float64
	Driver   string
	DataType DataType
}

func StandardDefaults() Defaults {
	return Defaults{NoData: DefaultNoData, Driver: DefaultDriver, DataType: Float32}
}

// Info is the grid-store metadata carried next to an Extent.
type Info struct {
	NoData     float64  `json:"nodata"`
	DataType   DataType `json:"data_type"`
	Driver     string   `json:"driver"`
	Projection string   `json:"projection,omitempty"`
}

// Meta is a raster's geometry plus the metadata needed to create or
// interpret its file. It is a plain value: assignment copies it.
type Meta struct {
	Extent
	Info
}

func NewMeta(ext Extent, info Info) Meta {
	return Meta{Extent: ext, Info: info}
}

// Clone returns an independent copy of m.
func (m Meta) Clone() Meta {
	return m
}

// IsOrthogonal reports whether m is stored in the canonical positive
// orientation with its origin on a whole multiple of the cell size.
func (m Meta) IsOrthogonal() bool {
	return m.CellWidth > 0 && m.CellHeight > 0 &&
		math.Remainder(m.Left, m.CellWidth) == 0 &&
		math.Remainder(m.Top, m.CellHeight) == 0
}

// IsConcurrent reports whether m and other are cell-for-cell aligned: same
// origin and same row and column counts.
func (m Meta) IsConcurrent(other Meta) bool {
	return m.Top == other.Top &&
		m.Left == other.Left &&
		m.Rows == other.Rows &&
		m.Cols == other.Cols
}

// CheckConcurrent is IsConcurrent with the failing dimension named.
func (m Meta) CheckConcurrent(other Meta) error {
	switch {
	case m.Cols != other.Cols:
		return errcode.New(errcode.ColsError, "column count differs: %d vs %d", m.Cols, other.Cols)
	case m.Rows != other.Rows:
		return errcode.New(errcode.RowsError, "row count differs: %d vs %d", m.Rows, other.Rows)
	case m.Left != other.Left:
		return errcode.New(errcode.LeftError, "left differs: %v vs %v", m.Left, other.Left)
	case m.Top != other.Top:
		return errcode.New(errcode.TopError, "top differs: %v vs %v", m.Top, other.Top)
	}
	return nil
}

// IsNoData reports whether v is m's no-data sentinel. NaN sentinels match NaN.
func (m Meta) IsNoData(v float64) bool {
	if math.IsNaN(m.NoData) {
		return math.IsNaN(v)
	}
	return v == m.NoData || float32(v) == float32(m.NoData) && m.DataType == Float32
}

// Precision is the number of decimal places needed to print a coordinate at
// m's horizontal resolution.
func (m Meta) Precision() int {
	s := strconv.FormatFloat(math.Abs(m.CellWidth), 'f', -1, 64)
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	if p := len(s) - i - 1; p < 10 {
		return p
	}
	return 10
}

func (m Meta) String() string {
	return fmt.Sprintf("%s nodata=%v type=%s driver=%s", m.Extent, m.NoData, m.DataType, m.Driver)
}
