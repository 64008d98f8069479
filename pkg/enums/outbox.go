package enums

// OutboxAggregateType is the aggregate_type column of outbox_events. It also
// picks the topic an event is routed to.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateProduct
}

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderPaymentRecorded  OutboxEventType = "order_payment_recorded"
	EventProductStockAdjusted  OutboxEventType = "product_stock_adjusted"
	EventProductCatalogChanged OutboxEventType = "product_catalog_changed"
)

var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:          AggregateOrder,
	EventOrderStatusChanged:    AggregateOrder,
	EventOrderPaymentRecorded:  AggregateOrder,
	EventProductStockAdjusted:  AggregateProduct,
	EventProductCatalogChanged: AggregateProduct,
}

// IsValid reports whether the event type is one the outbox knows.
func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate names the aggregate an event type belongs to, or "" when unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}
