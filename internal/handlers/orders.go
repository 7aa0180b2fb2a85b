package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/platform/auth"
	"github.com/partsdesk/api/internal/platform/httpx"
	"github.com/partsdesk/api/internal/platform/pagination"
	"github.com/partsdesk/api/internal/services"
)

// Order creation may carry a base64 image, so its body cap is generous.
const (
	maxOrderCreateBodySize     = 12 * 1024 * 1024
	maxOrderTransitionBodySize = 4 * 1024
)

type createOrderRequest struct {
	RequestID   string             `json:"request_id"`
	Report      orderReportRequest `json:"report"`
	Items       []orderLineRequest `json:"items"`
	ImageBase64 string             `json:"image_base64"`
}

type orderReportRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Diagnosis       string `json:"diagnosis"`
	Recommendations string `json:"recommendations"`
}

type orderLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type transitionOrderRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders []orderPayload `json:"orders"`
}

type orderPayload struct {
	ID         string             `json:"id"`
	RequestID  string             `json:"request_id"`
	Status     string             `json:"status"`
	ImageURL   string             `json:"image_url,omitempty"`
	TotalCents int64              `json:"total_cents"`
	Report     *reportPayload     `json:"report,omitempty"`
	Items      []orderLinePayload `json:"items"`
	CreatedAt  string             `json:"created_at"`
	UpdatedAt  string             `json:"updated_at"`
}

type reportPayload struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Diagnosis       string `json:"diagnosis,omitempty"`
	Recommendations string `json:"recommendations,omitempty"`
	CreatedBy       string `json:"created_by,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type orderLinePayload struct {
	ID             string `json:"id"`
	ItemID         string `json:"item_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// OrderHandlers exposes the order workflow endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireBearer())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/request/{requestID}", h.getOrderByRequestID)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:transition", h.transitionOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderCreateBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	actorID := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		actorID = identity.UserID
	}

	lines := make([]services.OrderLineInput, 0, len(req.Items))
	for _, line := range req.Items {
		lines = append(lines, services.OrderLineInput{
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}

	result, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		RequestID: req.RequestID,
		Report: services.ReportInput{
			Title:           req.Report.Title,
			Description:     req.Report.Description,
			Diagnosis:       req.Report.Diagnosis,
			Recommendations: req.Report.Recommendations,
		},
		Lines:       lines,
		ImageBase64: req.ImageBase64,
		ActorID:     actorID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	// Replays of an already-processed request id answer 200, first
	// processing answers 201.
	status := http.StatusCreated
	if result.AlreadyExisted {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, orderResponse{Order: buildOrderPayload(result.Order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		Status:     r.URL.Query().Get("status"),
		Pagination: services.Pagination{Limit: params.Limit, Offset: params.Offset},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := orderListResponse{Orders: make([]orderPayload, 0, len(orders))}
	for _, order := range orders {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrderByRequestID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	requestID := strings.TrimSpace(chi.URLParam(r, "requestID"))
	if requestID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrderByRequestID(ctx, requestID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req transitionOrderRequest
	if err := decodeJSONBody(r, maxOrderTransitionBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	target, ok := domain.ParseOrderStatus(strings.TrimSpace(strings.ToLower(req.Status)))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, orderID, target)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:         order.ID,
		RequestID:  order.RequestID,
		Status:     string(order.Status),
		ImageURL:   order.ImageURL,
		TotalCents: order.TotalCents(),
		Items:      make([]orderLinePayload, 0, len(order.Items)),
		CreatedAt:  formatTime(order.CreatedAt),
		UpdatedAt:  formatTime(order.UpdatedAt),
	}
	for _, line := range order.Items {
		payload.Items = append(payload.Items, orderLinePayload{
			ID:             line.ID,
			ItemID:         line.ItemID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}
	if order.Report != nil {
		payload.Report = &reportPayload{
			ID:              order.Report.ID,
			Title:           order.Report.Title,
			Description:     order.Report.Description,
			Diagnosis:       order.Report.Diagnosis,
			Recommendations: order.Report.Recommendations,
			CreatedBy:       order.Report.CreatedBy,
			CreatedAt:       formatTime(order.Report.CreatedAt),
		}
	}
	return payload
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderItemsEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("order_items_empty", "order must contain at least one item", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidQuantity):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_quantity", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_item_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("order_insufficient_stock", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_transition", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
