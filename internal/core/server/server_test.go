package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammed-shakir/rasterman/internal/core/config"
	"github.com/mohammed-shakir/rasterman/internal/core/health"
	"github.com/mohammed-shakir/rasterman/internal/core/model"
	"github.com/mohammed-shakir/rasterman/internal/grid"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
	"github.com/mohammed-shakir/rasterman/internal/gridstore/memstore"
	"github.com/mohammed-shakir/rasterman/internal/logger"
	"github.com/mohammed-shakir/rasterman/internal/raster"
)

type notReady struct{}

func (notReady) Ready() bool { return false }

func newTestServer(t *testing.T, ready map[string]health.ReadinessReporter) *httptest.Server {
	t.Helper()
	reg := gridstore.NewRegistry()
	mem := memstore.New()
	reg.Register(gridstore.MEM, mem)
	m := grid.NewMeta(grid.NewExtent(2, 0, 2, 2, -1, 1), grid.Info{NoData: -1, DataType: grid.Float32})
	if err := mem.Put("dem.mem", m, []float64{1, 2, 3, -1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	eng := raster.New(reg, raster.Options{Logger: logger.Nop()})
	srv := httptest.NewServer(NewHandler(Deps{Logger: logger.Nop(), Service: eng, Ready: ready}))
	t.Cleanup(srv.Close)
	return srv
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestRoutes_EndToEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	if code, body := fetch(t, srv.URL+"/healthz"); code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz=%d %q", code, body)
	}
	if code, _ := fetch(t, srv.URL+"/readyz"); code != http.StatusOK {
		t.Fatalf("readyz=%d", code)
	}

	code, body := fetch(t, srv.URL+"/v1/properties?path=dem.mem")
	var p model.Properties
	if code != http.StatusOK || json.Unmarshal([]byte(body), &p) != nil || p.Rows != 2 || p.Driver != gridstore.MEM {
		t.Fatalf("properties=%d %s", code, body)
	}

	code, body = fetch(t, srv.URL+"/v1/value?path=dem.mem&x=0.5&y=0.5")
	var v model.Value
	if code != http.StatusOK || json.Unmarshal([]byte(body), &v) != nil || v.Value == nil || *v.Value != 3 {
		t.Fatalf("value=%d %s", code, body)
	}

	if code, body := fetch(t, srv.URL+"/v1/concurrent?a=dem.mem&b=dem.mem"); code != http.StatusOK || !strings.Contains(body, `"concurrent":true`) {
		t.Fatalf("concurrent=%d %s", code, body)
	}
	if code, _ := fetch(t, srv.URL+"/v1/properties?path=gone.mem"); code != http.StatusNotFound {
		t.Fatalf("missing raster status=%d", code)
	}

	if code, body := fetch(t, srv.URL+"/metrics"); code != http.StatusOK || !strings.Contains(body, `route="/v1/properties"`) {
		t.Fatalf("metrics=%d missing http series", code)
	}
}

func TestRoutes_NotReady(t *testing.T) {
	srv := newTestServer(t, map[string]health.ReadinessReporter{"events": notReady{}})
	if code, _ := fetch(t, srv.URL+"/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz=%d want 503", code)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, configWithAddr("127.0.0.1:0"), Deps{Logger: logger.Nop()})
	}()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func configWithAddr(addr string) config.Config {
	cfg := config.FromEnv()
	cfg.Addr = addr
	return cfg
}

func TestRoutes_DataRoot(t *testing.T) {
	root := t.TempDir()
	reg := gridstore.NewRegistry()
	mem := memstore.New()
	reg.Register(gridstore.MEM, mem)
	m := grid.NewMeta(grid.NewExtent(2, 0, 2, 2, -1, 1), grid.Info{NoData: -1, DataType: grid.Float32})
	if err := mem.Put(filepath.Join(root, "dem.mem"), m, []float64{1, 2, 3, -1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := mem.Put("outside.mem", m, []float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	eng := raster.New(reg, raster.Options{Logger: logger.Nop()})
	srv := httptest.NewServer(NewHandler(Deps{Logger: logger.Nop(), Service: eng, DataRoot: root}))
	t.Cleanup(srv.Close)

	if code, body := fetch(t, srv.URL+"/v1/properties?path=dem.mem"); code != http.StatusOK {
		t.Fatalf("inside root=%d %s", code, body)
	}
	if code, body := fetch(t, srv.URL+"/v1/value?path=..%2F..%2Foutside.mem&x=0.5&y=0.5"); code != http.StatusForbidden || strings.Contains(body, root) {
		t.Fatalf("outside root=%d %s", code, body)
	}
}
