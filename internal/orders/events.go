package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated  = "OrderCreated"
	EventOrderPaid     = "OrderPaid"
	EventOrderCanceled = "OrderCanceled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID         int64       `json:"order_id"`
	MemberID        int64       `json:"member_id"`
	Status          Status      `json:"status"`
	Premium         bool        `json:"premium"`
	Items           []ItemPrice `json:"items"`
	TotalAmount     int64       `json:"total_amount"`
	DiscountAmount  int64       `json:"discount_amount"`
	ShippingCost    int64       `json:"shipping_cost"`
	ShippingPolicy  string      `json:"shipping_policy"`
	ShippingAddress string      `json:"shipping_address"`
	PhoneNumber     string      `json:"phone_number"`
}

type OrderPaidPayload struct {
	OrderID       int64         `json:"order_id"`
	Method        PaymentMethod `json:"method"`
	Amount        int64         `json:"amount"`
	TransactionID string        `json:"transaction_id"`
}

type OrderCanceledPayload struct {
	OrderID  int64       `json:"order_id"`
	MemberID int64       `json:"member_id"`
	Reason   string      `json:"reason"`
	Refund   int64       `json:"refund"`
	Items    []ItemPrice `json:"items"`
}

func CreatedPayload(o *Order) OrderCreatedPayload {
	return OrderCreatedPayload{
		OrderID:         o.ID,
		MemberID:        o.MemberID,
		Status:          o.Status,
		Premium:         o.Premium,
		Items:           itemPrices(o.Items),
		TotalAmount:     o.TotalAmount,
		DiscountAmount:  o.DiscountAmount,
		ShippingCost:    o.ShippingCost,
		ShippingPolicy:  o.ShippingPolicy,
		ShippingAddress: o.ShippingAddress,
		PhoneNumber:     o.PhoneNumber,
	}
}

func itemPrices(items []LineItem) []ItemPrice {
	out := make([]ItemPrice, 0, len(items))
	for _, it := range items {
		out = append(out, ItemPrice{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
}

func CanceledPayload(o *Order, reason string, refund int64) OrderCanceledPayload {
	return OrderCanceledPayload{
		OrderID:  o.ID,
		MemberID: o.MemberID,
		Reason:   reason,
		Refund:   refund,
		Items:    itemPrices(o.Items),
	}
}
