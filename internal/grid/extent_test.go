package grid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
)

func TestCell_InsideExtentAlwaysMapsInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		cw := 0.1 + rng.Float64()*10
		ch := 0.1 + rng.Float64()*10
		e := NewExtent(rng.Float64()*1e5-5e4, rng.Float64()*1e5-5e4, 1+rng.Intn(50), 1+rng.Intn(50), ch, cw)

		for j := 0; j < 50; j++ {
			x := e.Left + rng.Float64()*(e.Right()-e.Left)
			y := e.Bottom() + rng.Float64()*(e.Top-e.Bottom())
			if !e.Contains(x, y) {
				continue
			}
			row, col, ok := e.Cell(x, y)
			if !ok || row < 0 || row >= e.Rows || col < 0 || col >= e.Cols {
				t.Fatalf("extent %v: (%v,%v) -> row=%d col=%d ok=%v", e, x, y, row, col, ok)
			}
		}

		// the inclusive edges
		if _, _, ok := e.Cell(e.Left, e.Bottom()); !ok {
			t.Fatalf("extent %v: bottom-left corner must be in bounds", e)
		}
		if _, _, ok := e.Cell(math.Nextafter(e.Right(), e.Left), e.Top-ch/2); !ok {
			t.Fatalf("extent %v: just inside the right edge must be in bounds", e)
		}
	}
}

func TestCell_OutsideIsDropped(t *testing.T) {
	e := NewExtent(100, 0, 10, 10, -1, 1)
	cases := [][2]float64{{-0.5, 95}, {10, 95}, {5, 100.5}, {5, 89.9}, {50, 50}}
	for _, c := range cases {
		if _, _, ok := e.Cell(c[0], c[1]); ok {
			t.Fatalf("(%v,%v) should be outside %v", c[0], c[1], e)
		}
	}
}

func TestCell_NonFiniteIsDropped(t *testing.T) {
	e := NewExtent(100, 0, 10, 10, -1, 1)
	nan, inf := math.NaN(), math.Inf(1)
	cases := [][2]float64{
		{nan, 95}, {5, nan}, {nan, nan},
		{inf, 95}, {-inf, 95}, {5, inf}, {5, -inf},
		{1e300, 95}, {5, -1e300},
	}
	for _, c := range cases {
		row, col, ok := e.Cell(c[0], c[1])
		if ok || row != -1 || col != -1 {
			t.Fatalf("Cell(%v,%v)=(%d,%d,%v) want dropped", c[0], c[1], row, col, ok)
		}
	}
}

func TestCell_NorthUpScenario(t *testing.T) {
	e := NewExtent(0, 0, 5, 5, -2, 2)
	row, col, ok := e.Cell(4, -4)
	if !ok || row != 2 || col != 2 {
		t.Fatalf("Cell(4,-4)=(%d,%d,%v) want (2,2,true)", row, col, ok)
	}
	if e.ColIndex(0) != 0 || e.RowIndex(0) != 0 {
		t.Fatalf("origin should be cell (0,0)")
	}
	if e.RowIndex(-1.999) != 0 || e.RowIndex(-2) != 1 {
		t.Fatalf("row boundary: %d %d", e.RowIndex(-1.999), e.RowIndex(-2))
	}
}

func TestTranslation_Scenario(t *testing.T) {
	a := NewExtent(100, 0, 10, 10, -1, 1)
	b := NewExtent(105, 5, 10, 10, -1, 1)

	if got := a.RowTranslation(b); got != -5 {
		t.Fatalf("RowTranslation=%d want -5", got)
	}
	if got := a.ColTranslation(b); got != 5 {
		t.Fatalf("ColTranslation=%d want 5", got)
	}
}

func TestTranslation_AfterUnionIsNonNegative(t *testing.T) {
	a := NewExtent(100, 0, 10, 10, -1, 1)
	b := NewExtent(105, 5, 10, 10, -1, 1)
	u := a
	if err := u.Union(b); err != nil {
		t.Fatalf("Union: %v", err)
	}
	for _, src := range []Extent{a, b} {
		ri, ci := u.RowTranslation(src), u.ColTranslation(src)
		if ri < 0 || ci < 0 || ri+src.Rows > u.Rows || ci+src.Cols > u.Cols {
			t.Fatalf("source %v does not fit union %v at (%d,%d)", src, u, ri, ci)
		}
	}
}

func TestUnion_CoversBothAndIsSymmetric(t *testing.T) {
	a := NewExtent(100, 0, 10, 10, -1, 1)
	b := NewExtent(105, 5, 10, 10, -1, 1)

	ab := a
	if err := ab.Union(b); err != nil {
		t.Fatalf("Union: %v", err)
	}
	ba := b
	if err := ba.Union(a); err != nil {
		t.Fatalf("Union: %v", err)
	}

	if ab != ba {
		t.Fatalf("union not symmetric: %v vs %v", ab, ba)
	}
	if ab.Top != 105 || ab.Left != 0 || ab.Rows != 15 || ab.Cols != 15 {
		t.Fatalf("unexpected union %v", ab)
	}
	for _, e := range []Extent{a, b} {
		if ab.Top < e.Top || ab.Left > e.Left || ab.Bottom() > e.Bottom() || ab.Right() < e.Right() {
			t.Fatalf("union %v does not cover %v", ab, e)
		}
	}
}

func TestUnion_PartialCellRoundsUp(t *testing.T) {
	a := NewExtent(10, 0, 10, 10, -1, 1)
	b := NewExtent(10.5, 0.5, 10, 10, -1, 1)
	if err := a.Union(b); err != nil {
		t.Fatalf("Union: %v", err)
	}
	if a.Rows != 11 || a.Cols != 11 {
		t.Fatalf("rows=%d cols=%d want 11x11", a.Rows, a.Cols)
	}
	if a.Bottom() > b.Bottom() || a.Right() < b.Right() {
		t.Fatalf("union %v does not cover %v", a, b)
	}
}

func TestUnion_FloatingNoiseDoesNotAddCells(t *testing.T) {
	a := NewExtent(1.0, 0, 10, 10, -0.1, 0.1)
	b := NewExtent(1.0, 1.0, 10, 10, -0.1, 0.1)
	if err := a.Union(b); err != nil {
		t.Fatalf("Union: %v", err)
	}
	if a.Cols != 20 || a.Rows != 10 {
		t.Fatalf("rows=%d cols=%d want 10x20", a.Rows, a.Cols)
	}
}

func TestUnion_RejectsMixedResolution(t *testing.T) {
	a := NewExtent(100, 0, 10, 10, -1, 1)
	before := a
	err := a.Union(NewExtent(100, 0, 5, 5, -2, 2))
	if errcode.CodeOf(err) != errcode.CellSizeError {
		t.Fatalf("err=%v want CellSizeError", err)
	}
	if a != before {
		t.Fatalf("rejected union mutated the extent")
	}

	err = a.Union(NewExtent(100, 0, 10, 10, 1, 1))
	if errcode.CodeOf(err) != errcode.CellSizeError {
		t.Fatalf("orientation mismatch: err=%v want CellSizeError", err)
	}
}

func TestDerivedEdges_UseMagnitudes(t *testing.T) {
	e := NewExtent(50, -20, 4, 8, -2.5, 0.5)
	if e.Right() != -16 {
		t.Fatalf("Right=%v", e.Right())
	}
	if e.Bottom() != 40 {
		t.Fatalf("Bottom=%v", e.Bottom())
	}
	x, y := e.CellCentre(0, 0)
	if x != -19.75 || y != 48.75 {
		t.Fatalf("CellCentre=(%v,%v)", x, y)
	}
}

func TestNewExtent_ZeroCellSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on zero cell size")
		}
	}()
	_ = NewExtent(0, 0, 1, 1, 0, 1)
}

func TestValidateGeometry(t *testing.T) {
	cases := []struct {
		rows, cols int
		ch, cw     float64
		want       errcode.Code
	}{
		{10, 10, -1, 1, errcode.ProcessOK},
		{10, 10, -1, 0, errcode.CellSizeError},
		{10, 10, math.NaN(), 1, errcode.CellSizeError},
		{0, 10, -1, 1, errcode.RowsError},
		{10, -1, -1, 1, errcode.ColsError},
	}
	for _, c := range cases {
		if got := errcode.CodeOf(ValidateGeometry(c.rows, c.cols, c.ch, c.cw)); got != c.want {
			t.Fatalf("ValidateGeometry(%d,%d,%v,%v)=%v want %v", c.rows, c.cols, c.ch, c.cw, got, c.want)
		}
	}
}

func TestGeoTransform_RoundTrip(t *testing.T) {
	e := NewExtent(100, 20, 3, 4, -0.5, 0.5)
	back, err := ExtentFromGeoTransform(e.GeoTransform(), e.Rows, e.Cols)
	if err != nil {
		t.Fatalf("ExtentFromGeoTransform: %v", err)
	}
	if back != e {
		t.Fatalf("round trip %v != %v", back, e)
	}

	_, err = ExtentFromGeoTransform([6]float64{0, 1, 0.1, 0, 0, -1}, 1, 1)
	if errcode.CodeOf(err) != errcode.InputFileTransformError {
		t.Fatalf("rotated transform: err=%v", err)
	}
}
