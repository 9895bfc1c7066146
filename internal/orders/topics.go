package orders

import "strconv"

const (
	TopicOrderCreated  = "order.created"
	TopicOrderPaid     = "order.paid"
	TopicOrderCanceled = "order.canceled"
)

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderPaid:
		return TopicOrderPaid
	case EventOrderCanceled:
		return TopicOrderCanceled
	}
	return ""
}

// Partition key = order id, so all events of one order stay ordered.
func PartitionKey(orderID int64) []byte { return []byte(PartitionKeyString(orderID)) }

func PartitionKeyString(orderID int64) string { return strconv.FormatInt(orderID, 10) }
