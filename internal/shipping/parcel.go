package shipping

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result codes and delivery status codes of the parcel company's API.
const (
	resultOK       = "0000"
	resultNotFound = "4040"
	resultConflict = "4090"

	codeRegistered = "10"
	codePickedUp   = "20"
	codeInTransit  = "30"
	codeDelivered  = "40"
	codeCanceled   = "90"

	serviceNormal  = "01"
	serviceSameDay = "02"
)

// parcelRequest is the company's own wire shape.
type parcelRequest struct {
	OrderNo        string
	SenderName     string
	SenderTel      string
	SenderAddr     string
	ReceiverName   string
	ReceiverTel    string
	ReceiverAddr   string
	ReceiverZip    string
	Weight         int
	BoxType        string
	SpecialService string
	Message        string
}

type parcelResponse struct {
	ResultCode     string
	ResultMessage  string
	InvoiceNo      string
	OrderNo        string
	DeliveryCharge int64
	DeliveryStatus string
}

type parcel struct {
	req    parcelRequest
	charge int64
	status string
}

// Store is the simulated parcel company backend: an invoice ledger.
type Store struct {
	mu       sync.Mutex
	invoices map[string]*parcel

	// RemoteZipPrefixes mark islands and remote areas that carry a surcharge.
	RemoteZipPrefixes []string
}

func NewStore() *Store {
	return &Store{
		invoices:          make(map[string]*parcel),
		RemoteZipPrefixes: []string{"63"},
	}
}

func (s *Store) register(req parcelRequest) parcelResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice := "PC" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	charge := s.charge(req)
	s.invoices[invoice] = &parcel{req: req, charge: charge, status: codeRegistered}
	return parcelResponse{
		ResultCode:     resultOK,
		ResultMessage:  "registered",
		InvoiceNo:      invoice,
		OrderNo:        req.OrderNo,
		DeliveryCharge: charge,
		DeliveryStatus: codeRegistered,
	}
}

func (s *Store) tracking(invoice string) parcelResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.invoices[invoice]
	if !ok {
		return parcelResponse{ResultCode: resultNotFound, ResultMessage: "no such invoice", InvoiceNo: invoice}
	}
	return parcelResponse{
		ResultCode:     resultOK,
		ResultMessage:  "ok",
		InvoiceNo:      invoice,
		OrderNo:        p.req.OrderNo,
		DeliveryCharge: p.charge,
		DeliveryStatus: p.status,
	}
}

func (s *Store) cancel(invoice, reason string) parcelResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.invoices[invoice]
	if !ok {
		return parcelResponse{ResultCode: resultNotFound, ResultMessage: "no such invoice", InvoiceNo: invoice}
	}
	if p.status != codeRegistered && p.status != codeCanceled {
		return parcelResponse{ResultCode: resultConflict, ResultMessage: "already picked up", InvoiceNo: invoice, DeliveryStatus: p.status}
	}
	p.status = codeCanceled
	return parcelResponse{
		ResultCode:     resultOK,
		ResultMessage:  reason,
		InvoiceNo:      invoice,
		OrderNo:        p.req.OrderNo,
		DeliveryStatus: codeCanceled,
	}
}

// Advance moves a parcel one step along its route. It returns false for
// unknown, delivered or canceled parcels.
func (s *Store) Advance(invoice string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.invoices[invoice]
	if !ok {
		return false
	}
	switch p.status {
	case codeRegistered:
		p.status = codePickedUp
	case codePickedUp:
		p.status = codeInTransit
	case codeInTransit:
		p.status = codeDelivered
	default:
		return false
	}
	return true
}

// charge: base 3000, a weight tier, and a surcharge for remote areas.
func (s *Store) charge(req parcelRequest) int64 {
	c := int64(3000)
	switch {
	case req.Weight <= 2000:
		c += 2000
	case req.Weight <= 5000:
		c += 3000
	default:
		c += 5000
	}
	for _, p := range s.RemoteZipPrefixes {
		if p != "" && strings.HasPrefix(req.ReceiverZip, p) {
			c += 4000
			break
		}
	}
	return c
}

// ParcelCarrier adapts the parcel company's API to Carrier.
type ParcelCarrier struct {
	api    *Store
	logger *zap.Logger
	now    func() time.Time
}

func NewParcelCarrier(api *Store, logger *zap.Logger) *ParcelCarrier {
	return &ParcelCarrier{api: api, logger: logger, now: time.Now}
}

func (c *ParcelCarrier) Name() string { return "parcel" }

func (c *ParcelCarrier) Register(_ context.Context, req Request) (Response, error) {
	c.logger.Debug("registering shipment", zap.Int64("order_id", req.OrderID), zap.Int("weight_g", req.WeightGrams))

	resp := c.convert(c.api.register(c.toParcel(req)))
	days := 2
	if req.Express {
		days = 1
	}
	resp.EstimatedDelivery = c.now().AddDate(0, 0, days)
	if !resp.Success {
		return resp, fmt.Errorf("register order %d: %s", req.OrderID, resp.Message)
	}
	return resp, nil
}

func (c *ParcelCarrier) Track(_ context.Context, trackingNumber string) (Response, error) {
	resp := c.convert(c.api.tracking(trackingNumber))
	if resp.ErrorCode == resultNotFound {
		return resp, fmt.Errorf("track %s: %w", trackingNumber, ErrUnknownShipment)
	}
	return resp, nil
}

func (c *ParcelCarrier) Cancel(_ context.Context, trackingNumber, reason string) (Response, error) {
	c.logger.Info("canceling shipment", zap.String("tracking", trackingNumber), zap.String("reason", reason))

	resp := c.convert(c.api.cancel(trackingNumber, reason))
	switch resp.ErrorCode {
	case resultNotFound:
		return resp, fmt.Errorf("cancel %s: %w", trackingNumber, ErrUnknownShipment)
	case resultConflict:
		return resp, fmt.Errorf("cancel %s (%s): %w", trackingNumber, resp.Status, ErrNotCancelable)
	}
	return resp, nil
}

func (c *ParcelCarrier) toParcel(req Request) parcelRequest {
	service := serviceNormal
	if req.Express {
		service = serviceSameDay
	}
	return parcelRequest{
		OrderNo:        fmt.Sprintf("%d", req.OrderID),
		SenderName:     req.Sender.Name,
		SenderTel:      req.Sender.Phone,
		SenderAddr:     req.Sender.Address,
		ReceiverName:   req.Receiver.Name,
		ReceiverTel:    req.Receiver.Phone,
		ReceiverAddr:   req.Receiver.Address,
		ReceiverZip:    req.Receiver.ZipCode,
		Weight:         req.WeightGrams,
		BoxType:        boxType(req.Package),
		SpecialService: service,
		Message:        req.Message,
	}
}

func (c *ParcelCarrier) convert(r parcelResponse) Response {
	ok := r.ResultCode == resultOK
	resp := Response{
		Success:        ok,
		TrackingNumber: r.InvoiceNo,
		Status:         statusOf(r.DeliveryStatus),
		Message:        r.ResultMessage,
		Cost:           r.DeliveryCharge,
		Carrier:        c.Name(),
	}
	if !ok {
		resp.ErrorCode = r.ResultCode
	}
	return resp
}

func boxType(p PackageType) string {
	switch p {
	case PackageEnvelope:
		return "2"
	case PackageBag:
		return "3"
	default:
		return "1"
	}
}

func statusOf(code string) Status {
	switch code {
	case codePickedUp:
		return StatusPickedUp
	case codeInTransit:
		return StatusInTransit
	case codeDelivered:
		return StatusDelivered
	case codeCanceled:
		return StatusCanceled
	default:
		return StatusRegistered
	}
}
