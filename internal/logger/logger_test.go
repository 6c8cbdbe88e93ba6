package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestBuild_JSONFieldsAndContext(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Mode: "cli", Component: "raster"}, &buf)
	log := NewSlog(&zl)

	ctx := WithOp(WithRequestID(context.Background(), "req-1"), "mosaic")
	ctx = WithPath(ctx, "out.tif")
	log.InfoContext(ctx, "written", "rows", 10, "ratio", 0.5, "ok", true)

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("not json: %v (%q)", err, buf.String())
	}
	want := map[string]any{
		"msg": "written", "level": "info", "mode": "cli", "component": "raster",
		"request_id": "req-1", "op": "mosaic", "path": "out.tif", "ok": true,
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s=%v want %v (line %s)", k, got[k], v, buf.String())
		}
	}
	if got["rows"] != float64(10) || got["ratio"] != 0.5 {
		t.Fatalf("numeric attrs: %v", got)
	}
	if _, ok := got["timestamp"]; !ok {
		t.Fatalf("missing timestamp")
	}
}

func TestBuild_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filter: %q", buf.String())
	}
	Build(Config{Level: "info"}, &buf)
}

func TestWithHelpers_IgnoreEmpty(t *testing.T) {
	ctx := context.Background()
	if WithOp(ctx, "") != ctx || WithPath(ctx, "") != ctx || WithComponent(ctx, "") != ctx {
		t.Fatalf("empty values should not wrap the context")
	}
	if id := ctx.Value(ctxReqIDKey); id != nil {
		t.Fatalf("unexpected request id %v", id)
	}
	if v := WithRequestID(ctx, "").Value(ctxReqIDKey).(string); len(v) != 16 {
		t.Fatalf("generated id %q", v)
	}
}

func TestNop_Discards(t *testing.T) {
	Nop().Error("nothing")
}
