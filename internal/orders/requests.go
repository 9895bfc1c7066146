package orders

type ItemRequest struct {
	ProductID   int64  `json:"product_id"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name,omitempty"`
	Price       int64  `json:"price"`
}

func (it ItemRequest) Total() int64 { return int64(it.Quantity) * it.Price }

// CreateOrderRequest holds either explicit Items or CartItemIDs. Cart items
// are resolved into Items before validation runs.
type CreateOrderRequest struct {
	IdempotencyKey  string        `json:"idempotency_key,omitempty"`
	MemberID        int64         `json:"member_id"`
	CartItemIDs     []int64       `json:"cart_item_ids,omitempty"`
	Items           []ItemRequest `json:"items,omitempty"`
	ShippingAddress string        `json:"shipping_address"`
	PhoneNumber     string        `json:"phone_number"`
	PayNow          bool          `json:"pay_now"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
}

// Total is the pre-discount amount implied by the submitted lines.
func (r *CreateOrderRequest) Total() int64 {
	var total int64
	for _, it := range r.Items {
		total += it.Total()
	}
	return total
}

func (r *CreateOrderRequest) FromCart() bool { return len(r.CartItemIDs) > 0 }

type CancelRequest struct {
	OrderID  int64  `json:"order_id"`
	MemberID int64  `json:"member_id"`
	Reason   string `json:"reason"`
}
