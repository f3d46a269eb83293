package events

import (
	"log/slog"

	"github.com/NiMv1/payment-service/internal/core/notifications"
)

// WebhookPublisher delivers events to a single webhook URL from a background
// goroutine. The queue is bounded; when it is full the event is dropped with
// a log line rather than blocking the payment operation.
type WebhookPublisher struct {
	url   string
	queue chan Event
	done  chan struct{}
}

func NewWebhookPublisher(url string) *WebhookPublisher {
	p := &WebhookPublisher{
		url:   url,
		queue: make(chan Event, 256),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *WebhookPublisher) Publish(event Event) {
	select {
	case p.queue <- event:
	default:
		slog.Error("Event queue full, dropping event", "type", event.Type, "payment_id", event.PaymentID)
	}
}

// Close stops the delivery loop after draining queued events.
func (p *WebhookPublisher) Close() {
	close(p.queue)
	<-p.done
}

func (p *WebhookPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		if err := notifications.SendWebhook(p.url, event); err != nil {
			slog.Error("Event delivery failed", "type", event.Type, "payment_id", event.PaymentID, "error", err)
			continue
		}
		slog.Info("Event delivered", "type", event.Type, "payment_id", event.PaymentID)
	}
}

// NopPublisher discards events. Used when no webhook URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
