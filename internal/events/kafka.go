package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dcms/dentflow/pkg/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventBufferSize = 1_000

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher buffers events in memory and writes them from a single
// worker goroutine. Messages are keyed by appointment so one booking's
// events stay ordered within a partition.
type KafkaPublisher struct {
	w       messageWriter
	log     *zap.Logger
	metrics *metrics.Collector
	events  chan Event
	done    chan struct{}

	// mu guards closed so Publish never sends on a closed channel.
	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(brokers []string, topic string, m *metrics.Collector, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, m, log)
}

func newKafkaPublisher(w messageWriter, m *metrics.Collector, log *zap.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		w:       w,
		log:     log,
		metrics: m,
		events:  make(chan Event, eventBufferSize),
		done:    make(chan struct{}),
	}
	go p.worker()
	return p
}

// Publish drops the event and counts it when the buffer is full or the
// publisher has been closed.
func (p *KafkaPublisher) Publish(_ context.Context, e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.EventsDropped.Inc()
		p.log.Warn("event publisher closed, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("appointment_id", e.AppointmentID.String()),
		)
		return
	}
	select {
	case p.events <- e:
	default:
		p.metrics.EventsDropped.Inc()
		p.log.Warn("event buffer full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("appointment_id", e.AppointmentID.String()),
		)
	}
}

// Close drains the buffer and closes the writer. It is safe to call more
// than once.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(10 * time.Second):
		p.log.Warn("event publisher shutdown timed out; some events may be lost")
	}
	return p.w.Close()
}

func (p *KafkaPublisher) worker() {
	defer close(p.done)
	for e := range p.events {
		payload, err := json.Marshal(e)
		if err != nil {
			p.log.Error("failed to encode event", zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = p.w.WriteMessages(ctx, kafka.Message{
			Key:   []byte(e.AppointmentID.String()),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
		cancel()
		if err != nil {
			p.metrics.EventsDropped.Inc()
			p.log.Error("failed to publish event",
				zap.String("type", string(e.Type)),
				zap.String("appointment_id", e.AppointmentID.String()),
				zap.Error(err),
			)
			continue
		}
		p.metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()
	}
}
