package grid

import (
	"github.com/mohammed-shakir/rasterman/internal/errcode"
)

// Source is the read side of an open grid-store handle, as much of it as is
// needed to describe a raster.
type Source interface {
	GeoTransform() ([6]float64, error)
	Size() (rows, cols int)
	NoData() (value float64, ok bool)
	DataType() DataType
	Driver() string
	Projection() string
	Close() error
}

type Opener interface {
	OpenSource(path string) (Source, error)
}

// ReadExtent reads the footprint of the raster at path. The handle is closed
// before returning.
func ReadExtent(o Opener, path string) (Extent, error) {
	src, err := open(o, path)
	if err != nil {
		return Extent{}, err
	}
	defer func() { _ = src.Close() }()
	return extentOf(src, path)
}

// ReadMeta reads the footprint and metadata of the raster at path using the
// standard defaults.
func ReadMeta(o Opener, path string) (Meta, error) {
	return ReadMetaWithDefaults(o, path, StandardDefaults())
}

// ReadMetaWithDefaults is ReadMeta with explicit defaults. A source without a
// no-data value gets def.NoData; that is not an error.
func ReadMetaWithDefaults(o Opener, path string, def Defaults) (Meta, error) {
	src, err := open(o, path)
	if err != nil {
		return Meta{}, err
	}
	defer func() { _ = src.Close() }()

	ext, err := extentOf(src, path)
	if err != nil {
		return Meta{}, err
	}

	nd, ok := src.NoData()
	if !ok {
		nd = def.NoData
	}
	dt := src.DataType()
	if dt == Unknown {
		dt = def.DataType
	}
	drv := src.Driver()
	if drv == "" {
		drv = def.Driver
	}
	return NewMeta(ext, Info{
		NoData:     nd,
		DataType:   dt,
		Driver:     drv,
		Projection: src.Projection(),
	}), nil
}

func open(o Opener, path string) (Source, error) {
	if path == "" {
		return nil, errcode.New(errcode.InputFileError, "raster path is empty")
	}
	src, err := o.OpenSource(path)
	if err != nil {
		if errcode.CodeOf(err) == errcode.InputFileError {
			return nil, err
		}
		return nil, errcode.Wrap(errcode.InputFileError, err, "open raster %q", path)
	}
	return src, nil
}

func extentOf(src Source, path string) (Extent, error) {
	gt, err := src.GeoTransform()
	if err != nil {
		return Extent{}, errcode.Wrap(errcode.InputFileTransformError, err, "read geotransform of %q", path)
	}
	rows, cols := src.Size()
	ext, err := ExtentFromGeoTransform(gt, rows, cols)
	if err != nil {
		return Extent{}, errcode.Wrap(errcode.InputFileTransformError, err, "raster %q", path)
	}
	return ext, nil
}
