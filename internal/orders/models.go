package orders

import "time"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleSeller   Role = "SELLER"
	RoleAdmin    Role = "ADMIN"
)

type Member struct {
	ID      int64
	Email   string
	Name    string
	Role    Role
	Deleted bool
}

type ProductStatus string

const (
	ProductActive  ProductStatus = "ACTIVE"
	ProductSoldOut ProductStatus = "SOLD_OUT"
)

type Product struct {
	ID        int64
	Name      string
	Price     int64
	Stock     int
	Status    ProductStatus
	UpdatedAt time.Time
}

// DecreaseStock claims qty units. Stock never goes below zero.
func (p *Product) DecreaseStock(qty int) error {
	if qty <= 0 {
		return Validation("inventory", "quantity must be positive")
	}
	if p.Stock < qty {
		return InsufficientStock(p.ID, qty, p.Stock)
	}
	p.Stock -= qty
	p.syncStatus()
	return nil
}

func (p *Product) IncreaseStock(qty int) error {
	if qty <= 0 {
		return Validation("inventory", "quantity must be positive")
	}
	p.Stock += qty
	p.syncStatus()
	return nil
}

func (p *Product) syncStatus() {
	if p.Stock == 0 {
		p.Status = ProductSoldOut
	} else {
		p.Status = ProductActive
	}
}

type Order struct {
	ID              int64
	MemberID        int64
	Status          Status // see status.go
	TotalAmount     int64
	DiscountAmount  int64
	ShippingCost    int64
	DiscountPolicy  string
	ShippingPolicy  string
	ShippingAddress string
	PhoneNumber     string
	Premium         bool
	Items           []LineItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Payable is what the buyer is charged once pricing has run.
func (o *Order) Payable() int64 {
	return o.TotalAmount - o.DiscountAmount + o.ShippingCost
}

// ItemsTotal sums the line items at their captured unit price.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Total()
	}
	return total
}

type LineItem struct {
	ProductID int64
	Quantity  int
	UnitPrice int64
}

func (li LineItem) Total() int64 { return int64(li.Quantity) * li.UnitPrice }

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "CARD"
	MethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	MethodVirtualAccount PaymentMethod = "VIRTUAL_ACCOUNT"
	MethodPoint          PaymentMethod = "POINT"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentCanceled  PaymentStatus = "CANCELED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type Payment struct {
	ID            int64
	OrderID       int64
	Method        PaymentMethod
	Status        PaymentStatus
	Amount        int64
	TransactionID string
	PaidAt        *time.Time
	CreatedAt     time.Time
}

type CartItem struct {
	ID        int64
	MemberID  int64
	ProductID int64
	Quantity  int
}
