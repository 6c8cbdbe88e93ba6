//go:build gdal

// Package gdalstore is the GDAL backed grid store. It needs cgo and a GDAL
// installation, so it is only built with the gdal tag.
package gdalstore

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

var registerOnce sync.Once

// Store opens and creates rasters with one GDAL driver.
type Store struct {
	driver string
}

func New(driver string) *Store {
	registerOnce.Do(godal.RegisterAll)
	return &Store{driver: driver}
}

// Register binds the GDAL formats this build knows about into r.
func Register(r *gridstore.Registry) {
	for _, d := range []string{gridstore.GTiff, gridstore.HFA} {
		r.Register(d, New(d))
	}
}

func (s *Store) Open(path string) (gridstore.Dataset, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, err
	}
	return wrap(path, s.driver, ds)
}

func (s *Store) Create(path string, meta grid.Meta) (gridstore.Dataset, error) {
	dt, err := toGDAL(meta.DataType)
	if err != nil {
		return nil, err
	}
	var opts []godal.DatasetCreateOption
	if s.driver == gridstore.GTiff {
		predictor := "PREDICTOR=2"
		if !meta.DataType.IsInteger() {
			predictor = "PREDICTOR=3"
		}
		opts = append(opts, godal.CreationOption("COMPRESS=LZW", predictor))
	}

	ds, err := godal.Create(godal.DriverName(s.driver), path, 1, dt, meta.Cols, meta.Rows, opts...)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (gridstore.Dataset, error) {
		_ = ds.Close()
		return nil, err
	}
	if err := ds.SetGeoTransform(meta.GeoTransform()); err != nil {
		return fail(fmt.Errorf("set geotransform: %w", err))
	}
	if meta.Projection != "" {
		if err := ds.SetProjection(meta.Projection); err != nil {
			return fail(fmt.Errorf("set projection: %w", err))
		}
	}
	if err := ds.Bands()[0].SetNoData(meta.NoData); err != nil {
		return fail(fmt.Errorf("set nodata: %w", err))
	}
	return wrap(path, s.driver, ds)
}

type dataset struct {
	path   string
	driver string
	ds     *godal.Dataset
	band   godal.Band
	rows   int
	cols   int
}

func wrap(path, driver string, ds *godal.Dataset) (gridstore.Dataset, error) {
	bands := ds.Bands()
	if len(bands) == 0 {
		_ = ds.Close()
		return nil, fmt.Errorf("%q has no raster bands", path)
	}
	st := ds.Structure()
	return &dataset{
		path:   path,
		driver: driver,
		ds:     ds,
		band:   bands[0],
		rows:   st.SizeY,
		cols:   st.SizeX,
	}, nil
}

func (d *dataset) Path() string { return d.path }

func (d *dataset) GeoTransform() ([6]float64, error) { return d.ds.GeoTransform() }

func (d *dataset) Size() (int, int) { return d.rows, d.cols }

func (d *dataset) NoData() (float64, bool) { return d.band.NoData() }

func (d *dataset) DataType() grid.DataType { return fromGDAL(d.band.Structure().DataType) }

func (d *dataset) Driver() string { return d.driver }

func (d *dataset) Projection() string { return d.ds.Projection() }

// GDAL converts between the band type and the float64 buffer.
func (d *dataset) ReadRow(row int, buf []float64) error {
	if len(buf) < d.cols {
		return fmt.Errorf("buffer of %d for %d columns", len(buf), d.cols)
	}
	if err := d.band.Read(0, row, buf[:d.cols], d.cols, 1); err != nil {
		return fmt.Errorf("read row %d of %q: %w", row, d.path, err)
	}
	return nil
}

func (d *dataset) WriteRow(row int, buf []float64) error {
	if len(buf) < d.cols {
		return fmt.Errorf("buffer of %d for %d columns", len(buf), d.cols)
	}
	if err := d.band.Write(0, row, buf[:d.cols], d.cols, 1); err != nil {
		return fmt.Errorf("write row %d of %q: %w", row, d.path, err)
	}
	return nil
}

func (d *dataset) Close() error { return d.ds.Close() }

func toGDAL(dt grid.DataType) (godal.DataType, error) {
	switch dt {
	case grid.Byte:
		return godal.Byte, nil
	case grid.UInt16:
		return godal.UInt16, nil
	case grid.Int16:
		return godal.Int16, nil
	case grid.UInt32:
		return godal.UInt32, nil
	case grid.Int32:
		return godal.Int32, nil
	case grid.Float32:
		return godal.Float32, nil
	case grid.Float64:
		return godal.Float64, nil
	}
	return godal.Unknown, fmt.Errorf("unsupported data type %s", dt)
}

func fromGDAL(dt godal.DataType) grid.DataType {
	switch dt {
	case godal.Byte:
		return grid.Byte
	case godal.UInt16:
		return grid.UInt16
	case godal.Int16:
		return grid.Int16
	case godal.UInt32:
		return grid.UInt32
	case godal.Int32:
		return grid.Int32
	case godal.Float32:
		return grid.Float32
	case godal.Float64:
		return grid.Float64
	}
	return grid.Unknown
}
