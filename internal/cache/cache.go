// Package cache keeps raster metadata close to the operations that need it.
// Lookups go through an in-process LRU, then an optional shared Redis tier,
// and finally the grid store. Every entry carries the size and modification
// stamp of the file it describes; a stamp mismatch is a miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/rasterman/internal/cache/keys"
	"github.com/mohammed-shakir/rasterman/internal/core/observability"
	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
)

// Remote is the shared tier. *redisstore.Client satisfies it.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Source opens and stamps rasters. *gridstore.Registry satisfies it.
type Source interface {
	grid.Opener
	Stat(path string) (gridstore.Stamp, error)
}

type entry struct {
	Meta  grid.Meta       `json:"meta"`
	Stamp gridstore.Stamp `json:"stamp"`
}

type Options struct {
	Size      int
	Remote    Remote
	TTL       time.Duration
	OpTimeout time.Duration
	Defaults  grid.Defaults
	Logger    *slog.Logger
}

type MetaCache struct {
	src       Source
	l1        *lru.Cache[string, entry]
	remote    Remote
	ttl       time.Duration
	opTimeout time.Duration
	def       grid.Defaults
	log       *slog.Logger
}

func New(src Source, opts Options) (*MetaCache, error) {
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	if opts.Defaults == (grid.Defaults{}) {
		opts.Defaults = grid.StandardDefaults()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	l1, err := lru.New[string, entry](opts.Size)
	if err != nil {
		return nil, fmt.Errorf("metacache: %w", err)
	}
	return &MetaCache{
		src:       src,
		l1:        l1,
		remote:    opts.Remote,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
		def:       opts.Defaults,
		log:       opts.Logger,
	}, nil
}

// Meta returns the metadata of the raster at path, reading the file only
// when neither tier holds an entry with the current stamp.
func (c *MetaCache) Meta(ctx context.Context, path string) (grid.Meta, error) {
	stamp, err := c.src.Stat(path)
	if err != nil {
		// unstat-able paths get the grid store's own error
		return grid.ReadMetaWithDefaults(c.src, path, c.def)
	}
	key := keys.Meta(path)

	if e, ok := c.l1.Get(key); ok {
		if e.Stamp == stamp {
			observability.IncMetaCache("l1", "hit")
			return e.Meta, nil
		}
		observability.IncMetaCache("l1", "stale")
		c.l1.Remove(key)
	} else {
		observability.IncMetaCache("l1", "miss")
	}

	if e, ok := c.getRemote(ctx, key); ok {
		if e.Stamp == stamp {
			observability.IncMetaCache("l2", "hit")
			c.l1.Add(key, e)
			return e.Meta, nil
		}
		observability.IncMetaCache("l2", "stale")
	}

	m, err := grid.ReadMetaWithDefaults(c.src, path, c.def)
	if err != nil {
		return grid.Meta{}, err
	}
	e := entry{Meta: m, Stamp: stamp}
	c.l1.Add(key, e)
	c.setRemote(ctx, key, e)
	return m, nil
}

// Invalidate drops path from both tiers.
func (c *MetaCache) Invalidate(ctx context.Context, path string) error {
	key := keys.Meta(path)
	c.l1.Remove(key)
	if c.remote == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.remote.Del(ctx, key); err != nil {
		return fmt.Errorf("metacache invalidate %q: %w", path, err)
	}
	return nil
}

func (c *MetaCache) Len() int { return c.l1.Len() }

func (c *MetaCache) getRemote(ctx context.Context, key string) (entry, bool) {
	if c.remote == nil {
		return entry{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	b, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		observability.IncMetaCache("l2", "error")
		c.log.Warn("metacache remote get failed", "key", key, "err", err)
		return entry{}, false
	}
	if !ok {
		observability.IncMetaCache("l2", "miss")
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		observability.IncMetaCache("l2", "error")
		c.log.Warn("metacache remote entry corrupt", "key", key, "err", err)
		return entry{}, false
	}
	return e, true
}

func (c *MetaCache) setRemote(ctx context.Context, key string, e entry) {
	if c.remote == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		// NaN no-data values have no JSON form; such rasters stay local
		c.log.Debug("metacache entry not shareable", "key", key, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.remote.Set(ctx, key, b, c.ttl); err != nil {
		observability.IncMetaCache("l2", "error")
		c.log.Warn("metacache remote set failed", "key", key, "err", err)
	}
}
