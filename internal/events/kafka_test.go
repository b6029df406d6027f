package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dcms/dentflow/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_DeliversKeyedMessages(t *testing.T) {
	w := &fakeWriter{}
	m := metrics.NewCollector("dentflow", prometheus.NewRegistry())
	p := newKafkaPublisher(w, m, zap.NewNop())

	id := uuid.New()
	p.Publish(context.Background(), Event{Type: TypeBooked, AppointmentID: id, Date: "2026-10-19", TimeSlot: "09:00-09:30"})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(w.msgs) != 1 || !w.closed {
		t.Fatalf("messages = %d, closed = %v", len(w.msgs), w.closed)
	}
	if string(w.msgs[0].Key) != id.String() {
		t.Errorf("key = %s", w.msgs[0].Key)
	}
	var got Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil || got.TimeSlot != "09:00-09:30" {
		t.Errorf("payload = %s, %v", w.msgs[0].Value, err)
	}
	if v := testutil.ToFloat64(m.EventsPublished.WithLabelValues(string(TypeBooked))); v != 1 {
		t.Errorf("published counter = %v", v)
	}
}

func TestKafkaPublisher_CountsFailures(t *testing.T) {
	w := &fakeWriter{fail: true}
	m := metrics.NewCollector("dentflow", prometheus.NewRegistry())
	p := newKafkaPublisher(w, m, zap.NewNop())

	p.Publish(context.Background(), Event{Type: TypeStatusChanged, AppointmentID: uuid.New()})
	_ = p.Close()

	if v := testutil.ToFloat64(m.EventsDropped); v != 1 {
		t.Errorf("dropped counter = %v, want 1", v)
	}
}

func TestKafkaPublisher_PublishAfterCloseIsDropped(t *testing.T) {
	w := &fakeWriter{}
	m := metrics.NewCollector("dentflow", prometheus.NewRegistry())
	p := newKafkaPublisher(w, m, zap.NewNop())

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	// A handler still in flight after shutdown must not panic.
	p.Publish(context.Background(), Event{Type: TypeBooked, AppointmentID: uuid.New()})
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if v := testutil.ToFloat64(m.EventsDropped); v != 1 {
		t.Errorf("dropped counter = %v, want 1", v)
	}
	if len(w.msgs) != 0 {
		t.Errorf("writer got %d messages after close", len(w.msgs))
	}
}
