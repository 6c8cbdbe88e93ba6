//go:build !gdal

package main

import "github.com/mohammed-shakir/rasterman/internal/gridstore"

// GeoTIFF and Erdas Imagine need the gdal build tag.
func registerGDAL(*gridstore.Registry) {}

func driverExtensions() []string {
	return []string{".asc (AAIGrid)"}
}
