package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/rasterman/internal/core/observability"
)

// Publisher announces written rasters. Publish must not block the caller.
type Publisher interface {
	Publish(ev Event)
}

type nop struct{}

func (nop) Publish(Event) {}

// Nop discards every event.
func Nop() Publisher { return nop{} }

type KafkaPublisher struct {
	topic   string
	log     *slog.Logger
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errDone chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return newKafkaPublisher(prod, topic, queueSize, logger), nil
}

func newKafkaPublisher(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *KafkaPublisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &KafkaPublisher{
		topic:   topic,
		log:     logger,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				observability.IncEvent("publish", "error")
				p.log.Error("events: marshal", "path", ev.Path, "err", err)
				continue
			}
			// keyed by path so rewrites of one file stay ordered
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Path),
				Value: sarama.ByteEncoder(b),
			}
			observability.IncEvent("publish", "ok")
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncEvent("publish", "error")
				p.log.Warn("events: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish queues ev. Events published after Close are dropped.
func (p *KafkaPublisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncEvent("publish", "dropped")
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.IncEvent("publish", "dropped")
	}
}

// Close flushes queued events and shuts the producer down. Later calls are
// no-ops.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped

	err := p.prod.Close()
	<-p.errDone
	if err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
