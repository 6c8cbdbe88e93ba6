package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/rasterman/internal/core/observability"
)

// Invalidator drops whatever is cached for a raster path.
type Invalidator interface {
	Invalidate(ctx context.Context, path string) error
}

type ConsumerConfig struct {
	Brokers          []string
	Topic            string
	GroupID          string
	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 3 * time.Second
	}
	if c.RebalanceTimeout <= 0 {
		c.RebalanceTimeout = 30 * time.Second
	}
	return c
}

// Consumer applies raster written events to an Invalidator. Events older
// than the last one applied for the same path are skipped.
type Consumer struct {
	cfg      ConsumerConfig
	log      *slog.Logger
	inv      Invalidator
	seen     *seenTimes
	assigned atomic.Bool
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func NewConsumer(cfg ConsumerConfig, inv Invalidator, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:  cfg.withDefaults(),
		log:  logger,
		inv:  inv,
		seen: newSeenTimes(8192),
	}
}

// Start joins the consumer group and processes events in the background
// until ctx is cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil {
		return errors.New("events consumer: invalidator is required")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" || c.cfg.GroupID == "" {
		return errors.New("events consumer: brokers, topic and group are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup:   func(sarama.ConsumerGroupSession) { c.assigned.Store(true) },
		cleanup: func(sarama.ConsumerGroupSession) { c.assigned.Store(false) },
		process: c.handleMessage,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.log.Error("kafka consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
				c.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			c.log.Error("kafka group error", "err", err)
		}
	}()

	c.log.Info("raster event consumer started",
		"topic", c.cfg.Topic, "group", c.cfg.GroupID, "brokers", c.cfg.Brokers)
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.log.Info("raster event consumer stopped")
}

// Ready reports whether the consumer currently holds partitions.
func (c *Consumer) Ready() bool {
	return c.assigned.Load()
}

func (c *Consumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncEvent("consume", "error")
		return fmt.Errorf("decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.IncEvent("consume", "invalid")
		c.log.Warn("dropping invalid raster event",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if !c.seen.shouldApply(ev.Path, ev.TS.UnixNano()) {
		observability.IncEvent("consume", "skip")
		return nil
	}
	if err := c.inv.Invalidate(ctx, ev.Path); err != nil {
		observability.IncEvent("consume", "error")
		c.seen.forget(ev.Path)
		return fmt.Errorf("invalidate %q: %w", ev.Path, err)
	}
	observability.IncEvent("consume", "ok")
	c.log.Debug("invalidated raster metadata", "path", ev.Path, "source", ev.Source)
	return nil
}

type seenTimes struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newSeenTimes(size int) *seenTimes {
	c, _ := lru.New[string, int64](size)
	return &seenTimes{lru: c}
}

// shouldApply returns true if ts is newer than the last applied for key.
func (s *seenTimes) shouldApply(key string, ts int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lru.Get(key); ok && ts <= last {
		return false
	}
	s.lru.Add(key, ts)
	return true
}

func (s *seenTimes) forget(key string) {
	s.mu.Lock()
	s.lru.Remove(key)
	s.mu.Unlock()
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return fmt.Errorf("process failed (topic=%s, part=%d, off=%d): %w",
				msg.Topic, msg.Partition, msg.Offset, err)
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
