package grid

import (
	"math"
	"testing"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
)

func testMeta(top, left float64, rows, cols int, ch, cw, nd float64) Meta {
	return NewMeta(NewExtent(top, left, rows, cols, ch, cw), Info{NoData: nd, DataType: Float32, Driver: DefaultDriver})
}

func TestMeta_ExposesGeometry(t *testing.T) {
	m := testMeta(0, 0, 5, 5, -2, 2, -9999)
	if m.Cols != 5 || m.Rows != 5 || m.CellWidth != 2 || m.NoData != -9999 {
		t.Fatalf("unexpected meta %v", m)
	}
	row, col, ok := m.Cell(4, -4)
	if !ok || row != 2 || col != 2 {
		t.Fatalf("Cell(4,-4)=(%d,%d,%v)", row, col, ok)
	}
}

func TestMeta_CloneIsIndependent(t *testing.T) {
	m := testMeta(10, 0, 2, 2, -1, 1, 0)
	c := m.Clone()
	c.Rows = 99
	c.NoData = 5
	if m.Rows != 2 || m.NoData != 0 {
		t.Fatalf("clone aliased original: %v", m)
	}
}

func TestIsConcurrent_ReflexiveAndSymmetric(t *testing.T) {
	a := testMeta(100, 0, 10, 10, -1, 1, -9999)
	b := testMeta(100, 0, 10, 10, -1, 1, 0)
	c := testMeta(100, 1, 10, 10, -1, 1, -9999)

	if !a.IsConcurrent(a) {
		t.Fatalf("not reflexive")
	}
	if a.IsConcurrent(b) != b.IsConcurrent(a) || !a.IsConcurrent(b) {
		t.Fatalf("no-data must not affect concurrency")
	}
	if a.IsConcurrent(c) || c.IsConcurrent(a) {
		t.Fatalf("shifted grids reported concurrent")
	}
}

func TestCheckConcurrent_NamesDimension(t *testing.T) {
	base := testMeta(100, 0, 10, 10, -1, 1, 0)
	cases := []struct {
		other Meta
		want  errcode.Code
	}{
		{base, errcode.ProcessOK},
		{testMeta(100, 0, 10, 11, -1, 1, 0), errcode.ColsError},
		{testMeta(100, 0, 9, 10, -1, 1, 0), errcode.RowsError},
		{testMeta(100, 2, 10, 10, -1, 1, 0), errcode.LeftError},
		{testMeta(99, 0, 10, 10, -1, 1, 0), errcode.TopError},
	}
	for _, c := range cases {
		if got := errcode.CodeOf(base.CheckConcurrent(c.other)); got != c.want {
			t.Fatalf("CheckConcurrent(%v)=%v want %v", c.other, got, c.want)
		}
	}
}

func TestIsOrthogonal(t *testing.T) {
	cases := []struct {
		m    Meta
		want bool
	}{
		{testMeta(10, 4, 5, 5, 2, 2, 0), true},
		{testMeta(10, 3, 5, 5, 2, 2, 0), false},
		{testMeta(10, 4, 5, 5, -2, 2, 0), false},
		{testMeta(10, 4, 5, 5, 2, -2, 0), false},
		{testMeta(0, 0, 5, 5, 0.5, 0.25, 0), true},
	}
	for _, c := range cases {
		if got := c.m.IsOrthogonal(); got != c.want {
			t.Fatalf("IsOrthogonal(%v)=%v want %v", c.m, got, c.want)
		}
	}
}

func TestIsNoData(t *testing.T) {
	m := testMeta(0, 0, 1, 1, -1, 1, DefaultNoData)
	if !m.IsNoData(DefaultNoData) || !m.IsNoData(float64(float32(DefaultNoData))) {
		t.Fatalf("default no-data not recognised")
	}
	if m.IsNoData(0) {
		t.Fatalf("0 is not no-data")
	}

	m.NoData = math.NaN()
	if !m.IsNoData(math.NaN()) || m.IsNoData(1) {
		t.Fatalf("NaN sentinel handling")
	}
}

func TestPrecision(t *testing.T) {
	cases := map[float64]int{1: 0, 30: 0, 0.25: 2, -0.5: 1, 0.000277777777777778: 10}
	for cw, want := range cases {
		m := testMeta(0, 0, 1, 1, -1, cw, 0)
		if got := m.Precision(); got != want {
			t.Fatalf("Precision(cw=%v)=%d want %d", cw, got, want)
		}
	}
}

func TestDataType_ParseAndClamp(t *testing.T) {
	dt, err := ParseDataType(" float32 ")
	if err != nil || dt != Float32 {
		t.Fatalf("ParseDataType=%v,%v", dt, err)
	}
	if _, err := ParseDataType("Complex64"); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if Byte.Clamp(300) != 255 || Byte.Clamp(-3) != 0 || Int16.Clamp(2.6) != 3 {
		t.Fatalf("integer clamping")
	}
	if Float64.Clamp(0.1) != 0.1 || Float32.Clamp(0.1) != float64(float32(0.1)) {
		t.Fatalf("float narrowing")
	}
	if !Int32.IsInteger() || Float32.IsInteger() {
		t.Fatalf("IsInteger")
	}
}
