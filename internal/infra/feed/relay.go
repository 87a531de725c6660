package feed

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"

	"bchat/internal/infra/broker/kafka"
)

// Relay bridges hubs of separate instances over one Kafka topic. Local
// events are produced with the instance origin; consumed events from
// other instances are injected into the local hub. Events carrying the
// local origin are ignored on the consume side to prevent echo.
type Relay struct {
	Hub      *Hub
	Producer *kafka.Producer
	Topic    string
	Logger   *slog.Logger
}

// Publish forwards the event to the local hub and, best effort, to the
// topic. A broker failure never fails the local write path.
func (r *Relay) Publish(ev Event) {
	if ev.Origin == "" {
		ev.Origin = r.Hub.Origin()
	}
	r.Hub.Publish(ev)
	if r.Producer == nil {
		return
	}
	payload, err := MarshalEvent(ev)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Error("relay encode failed", "table", ev.Table, "error", err)
		}
		return
	}
	if err := r.Producer.Publish(context.Background(), r.Topic, string(ev.Table), payload); err != nil {
		if r.Logger != nil {
			r.Logger.Warn("relay publish failed", "table", ev.Table, "error", err)
		}
	}
}

// Handle ingests a consumed record into the local hub.
func (r *Relay) Handle(_ context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := UnmarshalEvent(msg.Value)
	if err != nil {
		return err
	}
	if ev.Origin == r.Hub.Origin() {
		return nil
	}
	r.Hub.Publish(ev)
	return nil
}

var _ Publisher = (*Relay)(nil)
var _ kafka.MessageHandler = (*Relay)(nil)
