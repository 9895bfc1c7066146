package shipping

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownShipment = errors.New("unknown shipment")
	ErrNotCancelable   = errors.New("shipment can no longer be canceled")
)

type Status string

const (
	StatusRegistered Status = "REGISTERED"
	StatusPickedUp   Status = "PICKED_UP"
	StatusInTransit  Status = "IN_TRANSIT"
	StatusDelivered  Status = "DELIVERED"
	StatusCanceled   Status = "CANCELED"
)

type PackageType string

const (
	PackageBox      PackageType = "BOX"
	PackageEnvelope PackageType = "ENVELOPE"
	PackageBag      PackageType = "BAG"
)

type Party struct {
	Name    string
	Phone   string
	Address string
	ZipCode string
}

type Request struct {
	OrderID     int64
	Sender      Party
	Receiver    Party
	WeightGrams int
	Package     PackageType
	Fragile     bool
	Express     bool
	Message     string
}

// Response is the carrier-neutral answer to every carrier call.
type Response struct {
	Success           bool
	TrackingNumber    string
	Status            Status
	Message           string
	Cost              int64
	EstimatedDelivery time.Time
	Carrier           string
	ErrorCode         string
}

// Carrier adapts one delivery company's API to the shipment flow.
type Carrier interface {
	Name() string
	Register(ctx context.Context, req Request) (Response, error)
	Track(ctx context.Context, trackingNumber string) (Response, error)
	Cancel(ctx context.Context, trackingNumber, reason string) (Response, error)
}
