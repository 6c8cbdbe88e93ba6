// Package model defines the JSON bodies served by the HTTP API.
package model

import (
	"math"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

type BBox struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

type Properties struct {
	Path       string   `json:"path"`
	Rows       int      `json:"rows"`
	Cols       int      `json:"cols"`
	CellWidth  float64  `json:"cell_width"`
	CellHeight float64  `json:"cell_height"`
	BBox       BBox     `json:"bbox"`
	NoData     *float64 `json:"nodata"`
	DataType   string   `json:"data_type"`
	Driver     string   `json:"driver"`
	Projection string   `json:"projection,omitempty"`
	Orthogonal bool     `json:"orthogonal"`
}

// PropertiesOf describes m. A NaN no-data value is reported as null.
func PropertiesOf(path string, m grid.Meta) Properties {
	p := Properties{
		Path:       path,
		Rows:       m.Rows,
		Cols:       m.Cols,
		CellWidth:  m.CellWidth,
		CellHeight: m.CellHeight,
		BBox:       BBox{Left: m.Left, Bottom: m.Bottom(), Right: m.Right(), Top: m.Top},
		DataType:   m.DataType.String(),
		Driver:     m.Driver,
		Projection: m.Projection,
		Orthogonal: m.IsOrthogonal(),
	}
	if !math.IsNaN(m.NoData) {
		nd := m.NoData
		p.NoData = &nd
	}
	return p
}

type Concurrent struct {
	A          string `json:"a"`
	B          string `json:"b"`
	Concurrent bool   `json:"concurrent"`
}

// Value is a point sample. Value is null when the point is outside the
// raster or on a no-data cell.
type Value struct {
	Path  string   `json:"path"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Value *float64 `json:"value"`
}

type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	ExitCode int    `json:"exit_code"`
}

func ErrorOf(err error) Error {
	c := errcode.CodeOf(err)
	return Error{Code: c.Name(), Message: err.Error(), ExitCode: c.ExitCode()}
}
