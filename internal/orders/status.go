package orders

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusConfirmed Status = "CONFIRMED"
	StatusCanceled  Status = "CANCELED"
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:   {StatusPaid: true, StatusConfirmed: true, StatusCanceled: true},
	StatusPaid:      {StatusConfirmed: true, StatusCanceled: true},
	StatusConfirmed: {StatusCanceled: true},
	StatusCanceled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Transition moves the order forward or fails without touching it.
func (o *Order) Transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return Validation("order", "cannot move order from "+string(o.Status)+" to "+string(to))
	}
	o.Status = to
	return nil
}

var validPaymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:   {PaymentCompleted: true},
	PaymentCompleted: {PaymentCanceled: true, PaymentRefunded: true},
	PaymentCanceled:  {},
	PaymentRefunded:  {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validPaymentNext[from][to]
}

// Transition moves the payment forward or fails without touching it.
func (p *Payment) Transition(to PaymentStatus) error {
	if !CanTransitionPayment(p.Status, to) {
		return Validation("payment", "cannot move payment from "+string(p.Status)+" to "+string(to))
	}
	p.Status = to
	return nil
}
