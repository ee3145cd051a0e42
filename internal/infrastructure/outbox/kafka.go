package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
	"github.com/henoc97/ecommerce-backend-sub001/internal/observability"

	"github.com/segmentio/kafka-go"
)

const kafkaPeer = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder copies bus events to a Kafka topic as JSON envelopes.
type KafkaForwarder struct {
	writer       messageWriter
	log          observability.Logger
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

type envelope struct {
	Event       string          `json:"event"`
	ForwardedAt time.Time       `json:"forwarded_at"`
	Payload     json.RawMessage `json:"payload"`
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaForwarder(w messageWriter, tel observability.Observability) *KafkaForwarder {
	if tel == nil {
		tel = observability.Nop()
	}
	return &KafkaForwarder{
		writer:       w,
		log:          tel.Logger().With(observability.F("component", "kafka_forwarder")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Register subscribes the forwarder to every named event.
func (f *KafkaForwarder) Register(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, f.Forward)
	}
}

func (f *KafkaForwarder) Forward(ctx context.Context, e domoutbox.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka forwarder: marshal %s: %w", e.EventName(), err)
	}
	value, err := json.Marshal(envelope{Event: e.EventName(), ForwardedAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("kafka forwarder: marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.EventName())},
		},
	}
	// Unkeyed events are spread by the balancer.
	if key := domoutbox.KeyOf(e); key != "" {
		msg.Key = []byte(key)
	}

	start := time.Now()
	err = f.writer.WriteMessages(ctx, msg)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	f.extCounter.Add(1,
		observability.L("peer", kafkaPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	f.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", kafkaPeer),
		observability.L("endpoint", e.EventName()),
	)
	if err != nil {
		return fmt.Errorf("kafka forwarder: write %s: %w", e.EventName(), err)
	}
	return nil
}

func (f *KafkaForwarder) Close() error { return f.writer.Close() }
