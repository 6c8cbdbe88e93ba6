//go:build gdal

package main

import (
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
	"github.com/mohammed-shakir/rasterman/internal/gridstore/gdalstore"
)

func registerGDAL(r *gridstore.Registry) {
	gdalstore.Register(r)
}

func driverExtensions() []string {
	return []string{".tif/.tiff (GTiff)", ".img (HFA)", ".asc (AAIGrid)"}
}
