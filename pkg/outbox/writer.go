package outbox

import (
	"context"
	"encoding/json"
)

// Writer 把领域事件写入 outbox，由 Dispatcher 异步投递到 MQ
type Writer struct {
	repo          *Repository
	aggregateType string
}

func NewWriter(repo *Repository, aggregateType string) *Writer {
	return &Writer{repo: repo, aggregateType: aggregateType}
}

// Emit 写入一条 pending 事件
func (w *Writer) Emit(ctx context.Context, routingKey, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return w.repo.InsertEvent(ctx, nil, &Event{
		AggregateType: w.aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       body,
		Status:        "pending",
	})
}
