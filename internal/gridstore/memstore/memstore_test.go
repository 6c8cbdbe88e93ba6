package memstore

import (
	"testing"

	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

func meta(dt grid.DataType) grid.Meta {
	return grid.NewMeta(grid.NewExtent(10, 0, 2, 3, -1, 1), grid.Info{NoData: -9999, DataType: dt, Driver: "MEM"})
}

func TestCreateWriteReadRow(t *testing.T) {
	s := New()
	ds, err := s.Create("a.mem", meta(grid.Int16))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ds.WriteRow(1, []float64{1.4, 2.6, 40000}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	_ = ds.Close()

	rd, err := s.Open("a.mem")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = rd.Close() }()

	buf := make([]float64, 3)
	if err := rd.ReadRow(1, buf); err != nil {
		t.Fatalf("ReadRow: %v", err)
	}
	if buf[0] != 1 || buf[1] != 3 || buf[2] != 32767 {
		t.Fatalf("row=%v want clamped [1 3 32767]", buf)
	}
	if nd, ok := rd.NoData(); !ok || nd != -9999 {
		t.Fatalf("NoData=%v,%v", nd, ok)
	}
}

func TestReadMetaThroughStore(t *testing.T) {
	s := New()
	if err := s.Put("b.mem", meta(grid.Float32), make([]float64, 6)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	m, err := grid.ReadMeta(gridstore.Opener(s), "b.mem")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if m.Extent != meta(grid.Float32).Extent || m.Driver != "MEM" || m.NoData != -9999 {
		t.Fatalf("ReadMeta=%v", m)
	}
}

func TestStatChangesOnWrite(t *testing.T) {
	s := New()
	if err := s.Put("c.mem", meta(grid.Float32), make([]float64, 6)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	before, err := s.Stat("c.mem")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	ds, _ := s.Open("c.mem")
	_ = ds.WriteRow(0, []float64{1, 2, 3})
	after, _ := s.Stat("c.mem")
	if before == after {
		t.Fatalf("stamp unchanged after write: %v", after)
	}

	if err := s.Remove("c.mem"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Stat("c.mem"); err == nil {
		t.Fatalf("expected error after Remove")
	}
}

func TestRowBoundsAndClosed(t *testing.T) {
	s := New()
	ds, _ := s.Create("d.mem", meta(grid.Float32))
	if err := ds.ReadRow(2, make([]float64, 3)); err == nil {
		t.Fatalf("expected out of range error")
	}
	if err := ds.ReadRow(0, make([]float64, 2)); err == nil {
		t.Fatalf("expected short buffer error")
	}
	_ = ds.Close()
	if err := ds.WriteRow(0, make([]float64, 3)); err == nil {
		t.Fatalf("expected closed error")
	}
	if _, err := s.Open("missing.mem"); err == nil {
		t.Fatalf("expected open error")
	}
}
