package grid

import (
	"errors"
	"testing"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
)

type fakeSource struct {
	gt     [6]float64
	gtErr  error
	rows   int
	cols   int
	nd     float64
	hasND  bool
	dt     DataType
	drv    string
	proj   string
	closed *int
}

func (f *fakeSource) GeoTransform() ([6]float64, error) { return f.gt, f.gtErr }
func (f *fakeSource) Size() (int, int)                  { return f.rows, f.cols }
func (f *fakeSource) NoData() (float64, bool)           { return f.nd, f.hasND }
func (f *fakeSource) DataType() DataType                { return f.dt }
func (f *fakeSource) Driver() string                    { return f.drv }
func (f *fakeSource) Projection() string                { return f.proj }
func (f *fakeSource) Close() error {
	*f.closed++
	return nil
}

type fakeOpener struct {
	src *fakeSource
	err error
}

func (o fakeOpener) OpenSource(string) (Source, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

func TestReadMeta_FromSource(t *testing.T) {
	closed := 0
	src := &fakeSource{
		gt: [6]float64{0, 2, 0, 0, 0, -2}, rows: 5, cols: 5,
		nd: -9999, hasND: true, dt: Int16, drv: "HFA", proj: "EPSG:3577", closed: &closed,
	}
	m, err := ReadMeta(fakeOpener{src: src}, "a.img")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if closed != 1 {
		t.Fatalf("handle closed %d times", closed)
	}
	want := NewMeta(NewExtent(0, 0, 5, 5, -2, 2), Info{NoData: -9999, DataType: Int16, Driver: "HFA", Projection: "EPSG:3577"})
	if m != want {
		t.Fatalf("got %v want %v", m, want)
	}
}

func TestReadMeta_MissingNoDataUsesDefault(t *testing.T) {
	closed := 0
	src := &fakeSource{gt: [6]float64{0, 1, 0, 10, 0, -1}, rows: 10, cols: 10, closed: &closed}
	m, err := ReadMeta(fakeOpener{src: src}, "a.tif")
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if m.NoData != DefaultNoData || m.DataType != Float32 || m.Driver != DefaultDriver {
		t.Fatalf("defaults not applied: %v", m)
	}
}

func TestReadExtent_OpenFailure(t *testing.T) {
	_, err := ReadExtent(fakeOpener{err: errors.New("no such file")}, "missing.tif")
	if errcode.CodeOf(err) != errcode.InputFileError {
		t.Fatalf("err=%v want InputFileError", err)
	}
	_, err = ReadExtent(fakeOpener{}, "")
	if errcode.CodeOf(err) != errcode.InputFileError {
		t.Fatalf("empty path: err=%v", err)
	}
}

func TestReadMeta_TransformFailuresCloseHandle(t *testing.T) {
	cases := map[string]*fakeSource{
		"error":   {gtErr: errors.New("no transform"), rows: 1, cols: 1},
		"rotated": {gt: [6]float64{0, 1, 0.5, 0, 0, -1}, rows: 1, cols: 1},
		"zero":    {gt: [6]float64{0, 0, 0, 0, 0, -1}, rows: 1, cols: 1},
	}
	for name, src := range cases {
		closed := 0
		src.closed = &closed
		_, err := ReadMeta(fakeOpener{src: src}, name+".tif")
		if errcode.CodeOf(err) != errcode.InputFileTransformError {
			t.Fatalf("%s: err=%v want InputFileTransformError", name, err)
		}
		if closed != 1 {
			t.Fatalf("%s: handle closed %d times", name, closed)
		}
	}
}
