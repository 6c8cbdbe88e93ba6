package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/rasterman/internal/cache/keys"
	"github.com/mohammed-shakir/rasterman/internal/cache/redisstore"
	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
	"github.com/mohammed-shakir/rasterman/internal/gridstore/memstore"
)

type countingSource struct {
	*gridstore.Registry
	opens int
}

func (c *countingSource) OpenSource(path string) (grid.Source, error) {
	c.opens++
	return c.Registry.OpenSource(path)
}

func fixture(t *testing.T) (*countingSource, *memstore.Store) {
	t.Helper()
	r := gridstore.NewRegistry()
	mem := memstore.New()
	r.Register(gridstore.MEM, mem)
	m := grid.NewMeta(grid.NewExtent(10, 0, 2, 2, -1, 1), grid.Info{NoData: -1, DataType: grid.Float32})
	if err := mem.Put("a.mem", m, make([]float64, 4)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return &countingSource{Registry: r}, mem
}

func newRedis(t *testing.T) (*redisstore.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestMeta_L1HitAvoidsReopen(t *testing.T) {
	src, _ := fixture(t)
	c, err := New(src, Options{Size: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m, err := c.Meta(ctx, "a.mem")
		if err != nil {
			t.Fatalf("Meta: %v", err)
		}
		if m.Rows != 2 || m.NoData != -1 {
			t.Fatalf("meta=%v", m)
		}
	}
	if src.opens != 1 {
		t.Fatalf("opens=%d want 1", src.opens)
	}
}

func TestMeta_RewriteIsStale(t *testing.T) {
	src, mem := fixture(t)
	c, _ := New(src, Options{})
	ctx := context.Background()
	if _, err := c.Meta(ctx, "a.mem"); err != nil {
		t.Fatalf("Meta: %v", err)
	}

	bigger := grid.NewMeta(grid.NewExtent(10, 0, 3, 3, -1, 1), grid.Info{NoData: -2, DataType: grid.Float32})
	if err := mem.Put("a.mem", bigger, make([]float64, 9)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	m, err := c.Meta(ctx, "a.mem")
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if m.Rows != 3 || m.NoData != -2 || src.opens != 2 {
		t.Fatalf("meta=%v opens=%d", m, src.opens)
	}
}

func TestMeta_SharedThroughRedis(t *testing.T) {
	rc, mr := newRedis(t)
	src, _ := fixture(t)
	ctx := context.Background()

	first, _ := New(src, Options{Remote: rc, TTL: time.Minute})
	if _, err := first.Meta(ctx, "a.mem"); err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if !mr.Exists(keys.Meta("a.mem")) {
		t.Fatalf("entry not written to redis")
	}

	second, _ := New(src, Options{Remote: rc})
	m, err := second.Meta(ctx, "a.mem")
	if err != nil || m.Cols != 2 {
		t.Fatalf("Meta=%v,%v", m, err)
	}
	if src.opens != 1 {
		t.Fatalf("second cache reopened the raster: opens=%d", src.opens)
	}

	if err := second.Invalidate(ctx, "a.mem"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mr.Exists(keys.Meta("a.mem")) || second.Len() != 0 {
		t.Fatalf("entry survived Invalidate")
	}
}

func TestMeta_RedisDownDegrades(t *testing.T) {
	rc, mr := newRedis(t)
	src, _ := fixture(t)
	c, _ := New(src, Options{Remote: rc, OpTimeout: 50 * time.Millisecond})
	mr.Close()

	m, err := c.Meta(context.Background(), "a.mem")
	if err != nil || m.Rows != 2 {
		t.Fatalf("Meta=%v,%v", m, err)
	}
	if err := c.Invalidate(context.Background(), "a.mem"); err == nil {
		t.Fatalf("expected invalidate error with redis down")
	}
	if c.Len() != 0 {
		t.Fatalf("local entry must be dropped even when redis fails")
	}
}

func TestMeta_CorruptRemoteEntryIgnored(t *testing.T) {
	rc, mr := newRedis(t)
	src, _ := fixture(t)
	if err := mr.Set(keys.Meta("a.mem"), "{not json"); err != nil {
		t.Fatal(err)
	}
	c, _ := New(src, Options{Remote: rc})
	if _, err := c.Meta(context.Background(), "a.mem"); err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if src.opens != 1 {
		t.Fatalf("opens=%d", src.opens)
	}
}

func TestMeta_MissingRaster(t *testing.T) {
	src, _ := fixture(t)
	c, _ := New(src, Options{})
	_, err := c.Meta(context.Background(), "nope.mem")
	if errcode.CodeOf(err) != errcode.InputFileError {
		t.Fatalf("err=%v want InputFileError", err)
	}
	var ce *errcode.Error
	if !errors.As(err, &ce) {
		t.Fatalf("want *errcode.Error, got %T", err)
	}
}
