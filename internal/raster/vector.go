package raster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

type VectorArgs struct {
	Vector string
	Output string
	// Layer must match the collection's "name" member or the file's base
	// name. Empty accepts any.
	Layer string
	Field string
	// Template supplies the output grid. Without it the grid covers the
	// polygons' envelope at CellSize.
	Template string
	CellSize float64
}

type fieldKind int

const (
	fieldInteger fieldKind = iota + 1
	fieldReal
	fieldString
)

type polygonFeature struct {
	index int
	geom  orb.Geometry
	bound orb.Bound
	value float64
}

func (p *polygonFeature) Bounds() rtreego.Rect {
	w := math.Max(p.bound.Max[0]-p.bound.Min[0], 1e-12)
	h := math.Max(p.bound.Max[1]-p.bound.Min[1], 1e-12)
	rect, _ := rtreego.NewRect(rtreego.Point{p.bound.Min[0], p.bound.Min[1]}, []float64{w, h})
	return rect
}

func (p *polygonFeature) contains(pt orb.Point) bool {
	switch g := p.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	}
	return false
}

// VectorToRaster burns the Field of GeoJSON polygons into a raster. Each
// cell takes the value of the first polygon containing its centre. Numeric
// fields are written as-is (Int32 when every value is whole, Float64
// otherwise); string fields are written as the feature index with a legend
// CSV next to the output.
func (e *Engine) VectorToRaster(ctx context.Context, a VectorArgs) error {
	return e.run(ctx, "vector2raster", func(ctx context.Context, log *slog.Logger) error {
		if a.Field == "" {
			return errcode.New(errcode.MissingArgument, "field name is required")
		}
		if err := requireOutput(a.Output); err != nil {
			return err
		}
		fc, err := readLayer(a.Vector, a.Layer)
		if err != nil {
			return err
		}
		feats, kind, err := polygonFeatures(fc, a.Field)
		if err != nil {
			return err
		}

		m, err := e.vectorMeta(ctx, a, feats)
		if err != nil {
			return err
		}
		switch kind {
		case fieldReal:
			m.DataType = grid.Float64
		default:
			m.DataType = grid.Int32
			m.NoData = grid.Int32.Clamp(m.NoData)
		}

		if kind == fieldString {
			if err := writeLegend(a.Output, a.Field, fc); err != nil {
				return err
			}
		}

		tree := rtreego.NewTree(2, 25, 50)
		for _, f := range feats {
			tree.Insert(f)
		}

		out, err := e.createOutput("vector2raster", a.Output, m)
		if err != nil {
			return err
		}
		buf := make([]float64, m.Cols)
		var hits []*polygonFeature
		for r := 0; r < m.Rows; r++ {
			if err := ctx.Err(); err != nil {
				out.abort()
				return err
			}
			for c := 0; c < m.Cols; c++ {
				x, y := m.CellCentre(r, c)
				pt := orb.Point{x, y}
				buf[c] = m.NoData

				hits = hits[:0]
				for _, s := range tree.SearchIntersect(rtreego.Point{x, y}.ToRect(1e-12)) {
					if f := s.(*polygonFeature); f.contains(pt) {
						hits = append(hits, f)
					}
				}
				if len(hits) == 0 {
					continue
				}
				sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })
				buf[c] = hits[0].value
			}
			if err := out.write(r, buf); err != nil {
				out.abort()
				return err
			}
		}
		log.InfoContext(ctx, "rasterized polygons", "features", len(feats), "type", m.DataType.String())
		return out.finish()
	})
}

func readLayer(path, layer string) (*geojson.FeatureCollection, error) {
	if path == "" {
		return nil, errcode.New(errcode.InputFileError, "vector path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.InputFileError, err, "read %q", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, errcode.Wrap(errcode.InputFileError, err, "parse %q", path)
	}
	if layer == "" {
		return fc, nil
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name, _ := fc.ExtraMembers["name"].(string)
	if layer != base && layer != name {
		return nil, errcode.New(errcode.VectorLayerNotFound, "layer %q not found in %q", layer, path)
	}
	return fc, nil
}

// polygonFeatures collects the polygonal features of fc with their burn
// values and classifies field.
func polygonFeatures(fc *geojson.FeatureCollection, field string) ([]*polygonFeature, fieldKind, error) {
	var (
		out   []*polygonFeature
		kind  fieldKind
		whole = true
	)
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		raw, ok := f.Properties[field]
		if !ok {
			return nil, 0, errcode.New(errcode.VectorFieldNotValid, "feature %d has no field %q", i, field)
		}
		pf := &polygonFeature{index: i, geom: f.Geometry, bound: f.Geometry.Bound()}
		switch v := raw.(type) {
		case string:
			if kind != 0 && kind != fieldString {
				return nil, 0, errcode.New(errcode.VectorFieldNotValid, "field %q mixes text and numbers", field)
			}
			kind = fieldString
			pf.value = float64(i)
		case float64:
			if kind == fieldString {
				return nil, 0, errcode.New(errcode.VectorFieldNotValid, "field %q mixes text and numbers", field)
			}
			kind = fieldReal
			pf.value = v
			if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
				whole = false
			}
		default:
			return nil, 0, errcode.New(errcode.VectorFieldNotValid,
				"field %q has unsupported type %T", field, raw)
		}
		out = append(out, pf)
	}
	if len(out) == 0 {
		return nil, 0, errcode.New(errcode.VectorLayerNotFound, "layer has no polygon features")
	}
	if kind == fieldReal && whole {
		kind = fieldInteger
	}
	return out, kind, nil
}

func (e *Engine) vectorMeta(ctx context.Context, a VectorArgs, feats []*polygonFeature) (grid.Meta, error) {
	if a.Template != "" {
		return e.meta.Meta(ctx, a.Template)
	}
	cw := math.Abs(a.CellSize)
	if cw == 0 || math.IsNaN(cw) || math.IsInf(cw, 0) {
		return grid.Meta{}, errcode.New(errcode.CellSizeError, "cell size must be positive, got %v", a.CellSize)
	}
	env := feats[0].bound
	for _, f := range feats[1:] {
		env = env.Union(f.bound)
	}
	rows := int(math.Ceil((env.Max[1] - env.Min[1]) / cw))
	cols := int(math.Ceil((env.Max[0] - env.Min[0]) / cw))
	if err := grid.ValidateGeometry(rows, cols, -cw, cw); err != nil {
		return grid.Meta{}, err
	}
	return e.outputMeta(grid.NewExtent(env.Max[1], env.Min[0], rows, cols, -cw, cw), ""), nil
}

// writeLegend writes "<output dir>/<output base>.csv" mapping feature index
// to the text value of field.
func writeLegend(output, field string, fc *geojson.FeatureCollection) error {
	base := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	sink, err := createCSV(filepath.Join(filepath.Dir(output), base+".csv"))
	if err != nil {
		return err
	}
	if err := sink.line(quote("index"), " "+quote(field)); err != nil {
		sink.abort()
		return err
	}
	for i, f := range fc.Features {
		s, ok := f.Properties[field].(string)
		if !ok {
			continue
		}
		if err := sink.line(fmt.Sprint(i), " "+quote(s)); err != nil {
			sink.abort()
			return err
		}
	}
	return sink.close()
}
