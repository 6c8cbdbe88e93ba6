package gridstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
)

// Driver names.
const (
	GTiff   = "GTiff"
	HFA     = "HFA"
	AAIGrid = "AAIGrid"
	MEM     = "MEM"
)

var defaultExtensions = map[string]string{
	".tif":  GTiff,
	".tiff": GTiff,
	".img":  HFA,
	".asc":  AAIGrid,
	".mem":  MEM,
}

// Registry routes paths to stores by extension. The zero value is not
// usable; call NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	exts   map[string]string
	stores map[string]Store
}

func NewRegistry() *Registry {
	exts := make(map[string]string, len(defaultExtensions))
	for k, v := range defaultExtensions {
		exts[k] = v
	}
	return &Registry{exts: exts, stores: map[string]Store{}}
}

// Register binds driver to s, replacing any previous binding.
func (r *Registry) Register(driver string, s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[driver] = s
}

// MapExtension routes ext (with leading dot) to driver.
func (r *Registry) MapExtension(ext, driver string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exts[strings.ToLower(ext)] = driver
}

func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.stores))
	for d := range r.stores {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// DriverFor returns the driver name for path's extension.
func (r *Registry) DriverFor(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", errcode.New(errcode.OutputFileExtError, "%q has no file extension", path)
	}
	r.mu.RLock()
	drv, ok := r.exts[ext]
	r.mu.RUnlock()
	if !ok {
		return "", errcode.New(errcode.OutputFileExtError, "unsupported file extension %q", ext)
	}
	return drv, nil
}

func (r *Registry) storeFor(path string) (Store, string, error) {
	drv, err := r.DriverFor(path)
	if err != nil {
		return nil, "", err
	}
	r.mu.RLock()
	s, ok := r.stores[drv]
	r.mu.RUnlock()
	if !ok {
		return nil, drv, errcode.New(errcode.OutputUnhandledDriver, "driver %s is not available in this build", drv)
	}
	return s, drv, nil
}

func (r *Registry) Open(path string) (Dataset, error) {
	s, _, err := r.storeFor(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.InputFileError, err, "open %q", path)
	}
	ds, err := s.Open(path)
	if err != nil {
		if errcode.CodeOf(err) != errcode.OtherError {
			return nil, err
		}
		return nil, errcode.Wrap(errcode.InputFileError, err, "open %q", path)
	}
	return ds, nil
}

// Create makes a raster at path. The driver is taken from the extension and
// overrides meta.Driver.
func (r *Registry) Create(path string, meta grid.Meta) (Dataset, error) {
	if path == "" {
		return nil, errcode.New(errcode.OutputFileMissing, "output path is empty")
	}
	s, drv, err := r.storeFor(path)
	if err != nil {
		return nil, err
	}
	if err := grid.ValidateGeometry(meta.Rows, meta.Cols, meta.CellHeight, meta.CellWidth); err != nil {
		return nil, err
	}
	meta.Driver = drv
	ds, err := s.Create(path, meta)
	if err != nil {
		if errcode.CodeOf(err) != errcode.OtherError {
			return nil, err
		}
		return nil, errcode.Wrap(errcode.OutputFileError, err, "create %q", path)
	}
	return ds, nil
}

// Remove deletes the raster at path. Stores without their own Remove have
// their rasters deleted from the filesystem; a missing file is not an error.
func (r *Registry) Remove(path string) error {
	s, _, err := r.storeFor(path)
	if err != nil {
		return err
	}
	if rm, ok := s.(Remover); ok {
		return rm.Remove(path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}

// OpenSource lets the registry serve as a grid.Opener.
func (r *Registry) OpenSource(path string) (grid.Source, error) {
	return r.Open(path)
}

// Stat returns the version stamp of path, asking the owning store first and
// falling back to the filesystem.
func (r *Registry) Stat(path string) (Stamp, error) {
	if s, _, err := r.storeFor(path); err == nil {
		if st, ok := s.(Stater); ok {
			return st.Stat(path)
		}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return Stamp{}, fmt.Errorf("stat %q: %w", path, err)
	}
	return Stamp{Size: fi.Size(), ModTime: fi.ModTime().UnixNano()}, nil
}

// Opener adapts any Store to grid.Opener.
func Opener(s Store) grid.Opener {
	return storeOpener{s}
}

type storeOpener struct{ s Store }

func (o storeOpener) OpenSource(path string) (grid.Source, error) {
	return o.s.Open(path)
}
