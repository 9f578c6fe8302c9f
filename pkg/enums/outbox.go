package enums

// OutboxAggregateType is the entity an outbox row describes.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

var aggregateTypes = values[OutboxAggregateType]{AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType doubles as the suffix of the Redis channel a row is relayed to.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderPaid      OutboxEventType = "order_paid"
	EventOrderCancelled OutboxEventType = "order_cancelled"
)

var outboxEventTypes = values[OutboxEventType]{EventOrderCreated, EventOrderPaid, EventOrderCancelled}

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse("outbox event type", value)
}
