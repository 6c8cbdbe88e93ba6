package gridstore

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RowCache keeps recently read rows of a dataset for readers that jump
// around, such as point lookups and resampling.
type RowCache struct {
	mu   sync.Mutex
	ds   Dataset
	cols int
	rows int
	lru  *lru.Cache[int, []float64]
}

func NewRowCache(ds Dataset, size int) (*RowCache, error) {
	if size <= 0 {
		size = 64
	}
	c, err := lru.New[int, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("row cache: %w", err)
	}
	rows, cols := ds.Size()
	return &RowCache{ds: ds, rows: rows, cols: cols, lru: c}, nil
}

// Row returns row r. The slice is shared; callers must not modify it.
func (c *RowCache) Row(r int) ([]float64, error) {
	if r < 0 || r >= c.rows {
		return nil, fmt.Errorf("row %d out of range [0,%d)", r, c.rows)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if row, ok := c.lru.Get(r); ok {
		return row, nil
	}
	row := make([]float64, c.cols)
	if err := c.ds.ReadRow(r, row); err != nil {
		return nil, err
	}
	c.lru.Add(r, row)
	return row, nil
}

func (c *RowCache) At(r, col int) (float64, error) {
	if col < 0 || col >= c.cols {
		return 0, fmt.Errorf("column %d out of range [0,%d)", col, c.cols)
	}
	row, err := c.Row(r)
	if err != nil {
		return 0, err
	}
	return row[col], nil
}

func (c *RowCache) Dataset() Dataset { return c.ds }
