package router

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// ErrOutsideRoot marks a requested path that resolves outside the data root.
var ErrOutsideRoot = errors.New("path outside data root")

type confined struct {
	svc  RasterService
	root string
}

// Confine restricts svc to rasters under root. Relative paths are resolved
// against root; absolute ones must already lie beneath it. An empty root
// returns svc unchanged.
func Confine(svc RasterService, root string) RasterService {
	if strings.TrimSpace(root) == "" {
		return svc
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &confined{svc: svc, root: abs}
}

func (c *confined) resolve(path string) (string, error) {
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(c.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errcode.Wrap(errcode.MissingArgument, ErrOutsideRoot, "path %q", path)
	}
	return p, nil
}

func (c *confined) Properties(ctx context.Context, path string) (grid.Meta, error) {
	p, err := c.resolve(path)
	if err != nil {
		return grid.Meta{}, err
	}
	return c.svc.Properties(ctx, p)
}

func (c *confined) IsConcurrent(ctx context.Context, a, b string) (bool, error) {
	pa, err := c.resolve(a)
	if err != nil {
		return false, err
	}
	pb, err := c.resolve(b)
	if err != nil {
		return false, err
	}
	return c.svc.IsConcurrent(ctx, pa, pb)
}

func (c *confined) Value(ctx context.Context, path string, x, y float64) (float64, bool, error) {
	p, err := c.resolve(path)
	if err != nil {
		return 0, false, err
	}
	return c.svc.Value(ctx, p, x, y)
}
