package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db/models"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox/payloads"
)

func TestResolveRoutesByAggregate(t *testing.T) {
	reg := testRegistry(t)
	orderID, productID := uuid.New(), uuid.New()

	statusRow := models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: envelope(t, "", uuid.Nil, payloads.OrderStatusChangedEvent{
			OrderID: orderID,
			From:    enums.OrderStatusShipped,
			To:      enums.OrderStatusDelivered,
			Version: 3,
		}),
	}
	resolved, err := reg.Resolve(statusRow)
	require.NoError(t, err)
	require.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	require.NotEmpty(t, resolved.Envelope.EventID)
	status, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	require.Equal(t, orderID, status.OrderID)
	require.Equal(t, enums.OrderStatusDelivered, status.To)

	stockRow := models.OutboxEvent{
		EventType:     enums.EventProductStockAdjusted,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Payload:       envelope(t, enums.EventProductStockAdjusted, productID, payloads.ProductStockAdjustedEvent{ProductID: productID, Delta: -2}),
	}
	resolved, err = reg.Resolve(stockRow)
	require.NoError(t, err)
	require.Equal(t, "catalog-topic", resolved.Descriptor.Topic)
	require.ElementsMatch(t, []string{"orders-topic", "catalog-topic"}, reg.Topics())
}

func TestResolveRejectsRowsThatCanNeverSucceed(t *testing.T) {
	reg := testRegistry(t)
	valid := func() models.OutboxEvent {
		id := uuid.New()
		return models.OutboxEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Payload:       envelope(t, enums.EventOrderCreated, id, payloads.OrderCreatedEvent{OrderID: id}),
		}
	}
	_, err := reg.Resolve(valid())
	require.NoError(t, err, "baseline row must resolve")

	cases := map[string]func(*models.OutboxEvent){
		"unknown event":              func(e *models.OutboxEvent) { e.EventType = "ad_created" },
		"aggregate mismatch":         func(e *models.OutboxEvent) { e.AggregateType = enums.AggregateProduct },
		"missing aggregate id":       func(e *models.OutboxEvent) { e.AggregateID = uuid.Nil },
		"null data":                  func(e *models.OutboxEvent) { e.Payload = envelope(t, "", uuid.Nil, nil) },
		"broken envelope":            func(e *models.OutboxEvent) { e.Payload = json.RawMessage(`{"data":`) },
		"envelope type differs":      func(e *models.OutboxEvent) { e.Payload = envelope(t, enums.EventOrderStatusChanged, e.AggregateID, struct{}{}) },
		"envelope aggregate differs": func(e *models.OutboxEvent) { e.Payload = envelope(t, enums.EventOrderCreated, uuid.New(), struct{}{}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			row := valid()
			mutate(&row)
			_, err := reg.Resolve(row)
			var nonRetryable NonRetryableError
			require.ErrorAs(t, err, &nonRetryable)
		})
	}
}

func TestResolvedAttributesFallBackToRowID(t *testing.T) {
	reg := testRegistry(t)
	orderID := uuid.New()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelope(t, enums.EventOrderCreated, orderID, payloads.OrderCreatedEvent{OrderID: orderID}),
		CreatedAt:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600)),
	}

	resolved, err := reg.Resolve(row)
	require.NoError(t, err)
	resolved.Envelope.EventID = ""

	require.Equal(t, map[string]string{
		"event_id":       row.ID.String(),
		"event_type":     string(enums.EventOrderCreated),
		"aggregate_type": string(enums.AggregateOrder),
		"aggregate_id":   orderID.String(),
		"created_at":     "2026-05-01T03:00:00Z",
	}, resolved.Attributes(row))
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.ErrorContains(t, err, "catalog topic")
	_, err = NewEventRegistry(config.PubSubConfig{CatalogTopic: "catalog"})
	require.ErrorContains(t, err, "orders topic")
}

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:  "orders-topic",
		CatalogTopic: "catalog-topic",
	})
	require.NoError(t, err)
	return reg
}

// envelope wraps data the way outbox.Service.Emit does. A blank eventType
// or nil aggregateID leaves those envelope fields unset.
func envelope(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:     1,
		EventID:     uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Data:        raw,
	})
	require.NoError(t, err)
	return out
}
