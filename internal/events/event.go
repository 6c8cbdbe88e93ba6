// Package events carries "raster written" notifications over Kafka so that
// long running processes can drop cached metadata for rewritten files.
package events

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammed-shakir/rasterman/internal/grid"
)

const (
	Version   = 1
	OpWritten = "written"
)

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Path    string    `json:"path"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
	Rows    int       `json:"rows"`
	Cols    int       `json:"cols"`
	BBox    *BBox     `json:"bbox,omitempty"`
}

// BBox is the footprint of the written raster in its own coordinates.
type BBox struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// Written describes a raster that op has just finished writing to path.
func Written(path, op string, m grid.Meta) Event {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Event{
		Version: Version,
		Op:      OpWritten,
		Path:    path,
		TS:      time.Now().UTC(),
		Source:  op,
		Rows:    m.Rows,
		Cols:    m.Cols,
		BBox:    &BBox{Left: m.Left, Bottom: m.Bottom(), Right: m.Right(), Top: m.Top},
	}
}

func (e Event) Validate() error {
	if e.Version != Version {
		return fmt.Errorf("version must be %d", Version)
	}
	if e.Op != OpWritten {
		return fmt.Errorf("op must be %s", OpWritten)
	}
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if e.Rows <= 0 || e.Cols <= 0 {
		return fmt.Errorf("rows and cols must be positive")
	}
	if bb := e.BBox; bb != nil && !(bb.Right > bb.Left && bb.Top > bb.Bottom) {
		return fmt.Errorf("bbox must satisfy right>left and top>bottom")
	}
	return nil
}
