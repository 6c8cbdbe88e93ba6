// Package grid models raster geometry: the spatial footprint of a grid, the
// metadata needed to create or interpret one, and the arithmetic relating two
// grids (union, translation, concurrency) and world coordinates to cells.
//
// Nothing in this package performs I/O except ReadExtent and ReadMeta, which go
// through the Opener contract.
package grid

import (
	"fmt"
	"math"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
)

// Extent is the axis aligned footprint of a grid. Top and Left locate the
// outer corner of the upper-left cell. CellHeight is negative for north-up
// grids so that row indices grow southward.
type Extent struct {
	Top        float64 `json:"top"`
	Left       float64 `json:"left"`
	CellHeight float64 `json:"cell_height"`
	CellWidth  float64 `json:"cell_width"`
	Rows       int     `json:"rows"`
	Cols       int     `json:"cols"`
}

// relative tolerance used when a span is divided into whole cells
const spanEps = 1e-9

// NewExtent stores its arguments verbatim. A zero cell size is a programming
// error; callers handling user input should run ValidateGeometry first.
func NewExtent(top, left float64, rows, cols int, cellHeight, cellWidth float64) Extent {
	if cellHeight == 0 || cellWidth == 0 {
		panic(fmt.Sprintf("grid: zero cell size (height=%v width=%v)", cellHeight, cellWidth))
	}
	return Extent{
		Top:        top,
		Left:       left,
		CellHeight: cellHeight,
		CellWidth:  cellWidth,
		Rows:       rows,
		Cols:       cols,
	}
}

// ValidateGeometry checks user supplied geometry before it reaches NewExtent.
func ValidateGeometry(rows, cols int, cellHeight, cellWidth float64) error {
	if cellWidth == 0 || math.IsNaN(cellWidth) || math.IsInf(cellWidth, 0) {
		return errcode.New(errcode.CellSizeError, "invalid cell width %v", cellWidth)
	}
	if cellHeight == 0 || math.IsNaN(cellHeight) || math.IsInf(cellHeight, 0) {
		return errcode.New(errcode.CellSizeError, "invalid cell height %v", cellHeight)
	}
	if rows <= 0 {
		return errcode.New(errcode.RowsError, "rows must be positive, got %d", rows)
	}
	if cols <= 0 {
		return errcode.New(errcode.ColsError, "cols must be positive, got %d", cols)
	}
	return nil
}

func (e Extent) Right() float64 {
	return e.Left + float64(e.Cols)*math.Abs(e.CellWidth)
}

func (e Extent) Bottom() float64 {
	return e.Top - float64(e.Rows)*math.Abs(e.CellHeight)
}

// Union grows e to the smallest extent, at e's cell size, covering both e and
// other. Extents with a different cell size or orientation are rejected and e
// is left untouched.
func (e *Extent) Union(other Extent) error {
	if err := e.checkResolution(other); err != nil {
		return err
	}

	top := math.Max(e.Top, other.Top)
	left := math.Min(e.Left, other.Left)
	bottom := math.Min(e.Bottom(), other.Bottom())
	right := math.Max(e.Right(), other.Right())

	e.Top = top
	e.Left = left
	e.Rows = spanCells(top-bottom, math.Abs(e.CellHeight))
	e.Cols = spanCells(right-left, math.Abs(e.CellWidth))
	return nil
}

// RowTranslation is the row of e at which row 0 of other lands.
func (e Extent) RowTranslation(other Extent) int {
	return int(math.Round((e.Top - other.Top) / math.Abs(e.CellHeight)))
}

// ColTranslation is the column of e at which column 0 of other lands.
func (e Extent) ColTranslation(other Extent) int {
	return int(math.Round((other.Left - e.Left) / math.Abs(e.CellWidth)))
}

func (e Extent) checkResolution(other Extent) error {
	if !sameSize(e.CellWidth, other.CellWidth) || !sameSize(e.CellHeight, other.CellHeight) {
		return errcode.New(errcode.CellSizeError,
			"cell size mismatch: %vx%v vs %vx%v",
			e.CellWidth, e.CellHeight, other.CellWidth, other.CellHeight)
	}
	return nil
}

// Contains reports whether (x, y) lies in [Left, Right) x [Bottom, Top).
func (e Extent) Contains(x, y float64) bool {
	return x >= e.Left && x < e.Right() && y >= e.Bottom() && y < e.Top
}

// ColIndex is the unbounded column owning world coordinate x.
func (e Extent) ColIndex(x float64) int {
	return int(math.Floor((x - e.Left) / e.CellWidth))
}

// RowIndex is the unbounded row owning world coordinate y.
func (e Extent) RowIndex(y float64) int {
	return int(math.Floor((e.Top - y) / math.Abs(e.CellHeight)))
}

// Cell maps a world coordinate to its cell. ok is false when the cell falls
// outside the grid or a coordinate is not finite; callers drop such
// coordinates. row and col are -1 when ok is false.
func (e Extent) Cell(x, y float64) (row, col int, ok bool) {
	if e.Contains(x, y) {
		// rounding right at the far edges must not push an in-extent point out
		return clampIndex(e.RowIndex(y), e.Rows), clampIndex(e.ColIndex(x), e.Cols), true
	}
	// range check before converting: NaN and huge values have no defined
	// int conversion
	fr := math.Floor((e.Top - y) / math.Abs(e.CellHeight))
	fc := math.Floor((x - e.Left) / e.CellWidth)
	if !(fr >= 0 && fr < float64(e.Rows) && fc >= 0 && fc < float64(e.Cols)) {
		return -1, -1, false
	}
	return int(fr), int(fc), true
}

// CellCentre returns the world coordinate of the centre of (row, col).
func (e Extent) CellCentre(row, col int) (x, y float64) {
	x = e.Left + (float64(col)+0.5)*math.Abs(e.CellWidth)
	y = e.Top - (float64(row)+0.5)*math.Abs(e.CellHeight)
	return x, y
}

// GeoTransform returns the GDAL affine coefficients of a north-up grid.
func (e Extent) GeoTransform() [6]float64 {
	return [6]float64{e.Left, e.CellWidth, 0, e.Top, 0, e.CellHeight}
}

// ExtentFromGeoTransform builds an extent from GDAL affine coefficients and
// a raster size. Rotated transforms are rejected.
func ExtentFromGeoTransform(gt [6]float64, rows, cols int) (Extent, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return Extent{}, errcode.New(errcode.InputFileTransformError,
			"rotated geotransform not supported (%v, %v)", gt[2], gt[4])
	}
	if gt[1] == 0 || gt[5] == 0 {
		return Extent{}, errcode.New(errcode.InputFileTransformError,
			"geotransform has a zero cell size (%v, %v)", gt[1], gt[5])
	}
	return NewExtent(gt[3], gt[0], rows, cols, gt[5], gt[1]), nil
}

func (e Extent) Equal(o Extent) bool {
	return e == o
}

func (e Extent) String() string {
	return fmt.Sprintf("top=%v left=%v rows=%d cols=%d cell=%vx%v",
		e.Top, e.Left, e.Rows, e.Cols, e.CellWidth, e.CellHeight)
}

func spanCells(span, size float64) int {
	n := span / size
	r := math.Round(n)
	if math.Abs(n-r) <= spanEps*math.Max(1, math.Abs(r)) {
		return int(r)
	}
	return int(math.Ceil(n))
}

func sameSize(a, b float64) bool {
	if (a < 0) != (b < 0) {
		return false
	}
	return math.Abs(a-b) <= spanEps*math.Max(math.Abs(a), math.Abs(b))
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
