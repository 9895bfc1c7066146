package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderService is what the handlers need from fulfillment.Service.
type OrderService interface {
	PlaceOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.Order, error)
	CancelOrder(ctx context.Context, req orders.CancelRequest) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID, memberID int64) (*orders.Order, error)
	ListOrders(ctx context.Context, memberID int64, limit, offset int) ([]orders.Order, error)
}

type OrdersHandler struct {
	Service OrderService
	Logger  *zap.Logger
}

type cancelReq struct {
	MemberID int64  `json:"member_id"`
	Reason   string `json:"reason"`
}

type itemResp struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type orderResp struct {
	OrderID         int64      `json:"order_id"`
	MemberID        int64      `json:"member_id"`
	Status          string     `json:"status"`
	Premium         bool       `json:"premium"`
	TotalAmount     int64      `json:"total_amount"`
	DiscountAmount  int64      `json:"discount_amount"`
	DiscountPolicy  string     `json:"discount_policy"`
	ShippingCost    int64      `json:"shipping_cost"`
	ShippingPolicy  string     `json:"shipping_policy"`
	Payable         int64      `json:"payable"`
	ShippingAddress string     `json:"shipping_address,omitempty"`
	Items           []itemResp `json:"items"`
	CreatedAt       time.Time  `json:"created_at"`
}

type errorResp struct {
	Error  string `json:"error"`
	Source string `json:"source,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/members/{id}/orders", h.listOrders)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func toResp(o *orders.Order) orderResp {
	items := make([]itemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResp{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return orderResp{
		OrderID:         o.ID,
		MemberID:        o.MemberID,
		Status:          string(o.Status),
		Premium:         o.Premium,
		TotalAmount:     o.TotalAmount,
		DiscountAmount:  o.DiscountAmount,
		DiscountPolicy:  o.DiscountPolicy,
		ShippingCost:    o.ShippingCost,
		ShippingPolicy:  o.ShippingPolicy,
		Payable:         o.Payable(),
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	if req.MemberID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing member_id"})
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Service.PlaceOrder(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResp(o))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body cancelReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Service.CancelOrder(ctx, orders.CancelRequest{OrderID: id, MemberID: body.MemberID, Reason: body.Reason})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(o))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	memberID, err := strconv.ParseInt(r.URL.Query().Get("member_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing member_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Service.GetOrder(ctx, id, memberID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(o))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.ListOrders(ctx, memberID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]orderResp, 0, len(list))
	for i := range list {
		out = append(out, toResp(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrInconsistent):
		return http.StatusInternalServerError
	case errors.Is(err, orders.ErrContention):
		return http.StatusConflict
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, orders.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, orders.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *OrdersHandler) writeError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if errors.Is(err, orders.ErrContention) {
		w.Header().Set("Retry-After", "1")
	}
	if code == http.StatusInternalServerError || code == http.StatusGatewayTimeout {
		h.Logger.Error("request failed", zap.Error(err))
		writeJSON(w, code, errorResp{Error: "internal error"})
		return
	}

	resp := errorResp{Error: err.Error()}
	var de *orders.Error
	if errors.As(err, &de) {
		resp.Source = de.Source
		if de.Reason != "" {
			resp.Error = de.Reason
		}
	}
	writeJSON(w, code, resp)
}
