package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Routing keys published on the events exchange. Downstream consumers
// (kitchen displays, purchasing alerts) bind with order.# / inventory.#.
const (
	KeyOrderCompleted    = "order.completed"
	KeyOrderCheckedOut   = "order.checked_out"
	KeyInventoryShortage = "inventory.shortage"
)

// Publisher fans engine events into RabbitMQ. All publishing is
// best-effort: a dead broker is logged, never surfaced into the
// business operation that triggered the event. A nil Publisher is
// safe to call.
type Publisher struct {
	client   *Client
	exchange string
	logger   *zap.Logger
}

func NewPublisher(client *Client, exchange string, logger *zap.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, exchange: exchange, logger: logger}
}

func (p *Publisher) publish(ctx context.Context, key string, payload map[string]any) {
	if p == nil {
		return
	}
	payload["occurredAt"] = time.Now().Format(time.RFC3339)
	if err := p.client.PublishJSON(ctx, p.exchange, key, payload); err != nil {
		p.logger.Warn("event publish failed",
			zap.String("routingKey", key),
			zap.Error(err))
	}
}

func (p *Publisher) OrderCompleted(ctx context.Context, table string, itemCount int) {
	p.publish(ctx, KeyOrderCompleted, map[string]any{
		"table":     table,
		"itemCount": itemCount,
	})
}

func (p *Publisher) OrderCheckedOut(ctx context.Context, table string, transactionID int64, total float64, degraded bool) {
	p.publish(ctx, KeyOrderCheckedOut, map[string]any{
		"table":         table,
		"transactionId": transactionID,
		"totalAmount":   total,
		"degraded":      degraded,
	})
}

func (p *Publisher) InventoryShortage(ctx context.Context, ingredientID int64, name string, required, available float64) {
	p.publish(ctx, KeyInventoryShortage, map[string]any{
		"ingredientId": ingredientID,
		"name":         name,
		"required":     required,
		"available":    available,
	})
}
