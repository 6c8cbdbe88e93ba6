package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mohammed-shakir/rasterman/internal/cache"
	"github.com/mohammed-shakir/rasterman/internal/cache/redisstore"
	"github.com/mohammed-shakir/rasterman/internal/core/config"
	"github.com/mohammed-shakir/rasterman/internal/errcode"
	"github.com/mohammed-shakir/rasterman/internal/events"
	"github.com/mohammed-shakir/rasterman/internal/gridstore"
	"github.com/mohammed-shakir/rasterman/internal/gridstore/asciigrid"
	"github.com/mohammed-shakir/rasterman/internal/metrics"
	"github.com/mohammed-shakir/rasterman/internal/raster"
)

// app holds everything a subcommand needs, wired from the configuration.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	reg     *gridstore.Registry
	meta    *cache.MetaCache
	engine  *raster.Engine
	metrics *metrics.Provider

	redis *redisstore.Client
	kafka *events.KafkaPublisher
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	def, err := cfg.Defaults()
	if err != nil {
		return nil, errcode.Wrap(errcode.MissingArgument, err, "configuration")
	}

	reg := gridstore.NewRegistry()
	reg.Register(gridstore.AAIGrid, asciigrid.New())
	registerGDAL(reg)

	a := &app{cfg: cfg, log: log, reg: reg}

	var remote cache.Remote
	if addr := cfg.MetaCache.RedisAddr; addr != "" {
		rc, err := redisstore.New(ctx, addr, redisstore.WithTimeout(cfg.MetaCache.OpTimeout))
		if err != nil {
			log.Warn("redis unavailable, metadata cache is local only", "addr", addr, "err", err)
		} else {
			a.redis = rc
			remote = rc
		}
	}
	a.meta, err = cache.New(reg, cache.Options{
		Size:      cfg.MetaCache.Size,
		Remote:    remote,
		TTL:       cfg.MetaCache.TTL,
		OpTimeout: cfg.MetaCache.OpTimeout,
		Defaults:  def,
		Logger:    log,
	})
	if err != nil {
		a.close()
		return nil, errcode.Wrap(errcode.OtherError, err, "metadata cache")
	}

	pub := events.Nop()
	if cfg.Events.Enabled {
		kp, err := events.NewKafkaPublisher(cfg.Events.BrokerList(), cfg.Events.Topic, 0, log)
		if err != nil {
			log.Warn("kafka unavailable, raster events are not published", "brokers", cfg.Events.Brokers, "err", err)
		} else {
			a.kafka = kp
			pub = kp
		}
	}

	a.engine = raster.New(reg, raster.Options{
		Logger:       log,
		Meta:         a.meta,
		Events:       pub,
		Defaults:     def,
		RowCacheSize: cfg.RowCacheSize,
	})
	a.metrics = metrics.Init(metrics.Config{
		Path:     cfg.Metrics.Path,
		Textfile: cfg.Metrics.Textfile,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	return a, nil
}

// close flushes pending events and the metrics textfile and releases
// connections.
func (a *app) close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.log.Warn("close kafka publisher", "err", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.metrics != nil {
		if err := a.metrics.WriteTextfile(); err != nil {
			a.log.Warn("metrics textfile", "err", err)
		}
	}
}
