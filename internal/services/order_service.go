package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

const (
	eventOrderCreated       = "order.created"
	eventOrderStatusChanged = "order.status.changed"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid arguments.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderItemsEmpty indicates the creation request carried no lines.
	ErrOrderItemsEmpty = errors.New("order: items list is empty")
	// ErrOrderInvalidQuantity indicates a line quantity was zero or negative.
	ErrOrderInvalidQuantity = errors.New("order: invalid quantity")
	// ErrOrderItemNotFound indicates a requested item does not exist.
	ErrOrderItemNotFound = errors.New("order: item not found")
	// ErrOrderInsufficientStock indicates a line exceeds the available stock.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderStorage indicates an unexpected persistence failure.
	ErrOrderStorage = errors.New("order: storage failure")
)

// orderStateTransitions is the full transition table for non-terminal
// states. Absent targets are rejected, which also covers self-transitions.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusInProgress, domain.OrderStatusCancelled},
	domain.OrderStatusInProgress: {domain.OrderStatusCompleted, domain.OrderStatusCancelled},
}

func canTransition(from, to domain.OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	for _, allowed := range orderStateTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderServiceDeps bundles the collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Reports     repositories.TechnicalReportRepository
	Items       repositories.ItemRepository
	Stock       repositories.StockLedger
	UnitOfWork  repositories.UnitOfWork
	Uploader    ImageUploader
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	reports  repositories.TechnicalReportRepository
	items    repositories.ItemRepository
	stock    repositories.StockLedger
	uow      repositories.UnitOfWork
	uploader ImageUploader
	events   OrderEventPublisher
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Reports == nil {
		return nil, errors.New("order service: technical report repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("order service: item repository is required")
	}
	if deps.Stock == nil {
		return nil, errors.New("order service: stock ledger is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("order service: unit of work is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		reports:  deps.Reports,
		items:    deps.Items,
		stock:    deps.Stock,
		uow:      deps.UnitOfWork,
		uploader: deps.Uploader,
		events:   deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderResult, error) {
	requestID := strings.TrimSpace(cmd.RequestID)
	if requestID == "" {
		return OrderResult{}, fmt.Errorf("%w: request id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.Report.Title) == "" {
		return OrderResult{}, fmt.Errorf("%w: report title is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.Report.Description) == "" {
		return OrderResult{}, fmt.Errorf("%w: report description is required", ErrOrderInvalidInput)
	}

	// Idempotency fast path: a replayed request returns the stored order
	// without touching stock or storage.
	existing, err := s.orders.GetByRequestID(ctx, requestID)
	if err == nil {
		return OrderResult{Order: existing, AlreadyExisted: true}, nil
	}
	if !isOrderCode(err, repositories.OrderErrorNotFound) {
		return OrderResult{}, s.storageError("lookup request id", err)
	}

	lines, err := normaliseOrderLines(cmd.Lines)
	if err != nil {
		return OrderResult{}, err
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	catalogue, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return OrderResult{}, s.storageError("load items", err)
	}
	for _, line := range lines {
		item, ok := catalogue[line.ItemID]
		if !ok {
			return OrderResult{}, fmt.Errorf("%w: item %s does not exist", ErrOrderItemNotFound, line.ItemID)
		}
		if item.Stock < line.Quantity {
			return OrderResult{}, fmt.Errorf("%w: item %s has %d available, %d requested",
				ErrOrderInsufficientStock, line.ItemID, item.Stock, line.Quantity)
		}
	}

	// Image upload runs before the transaction opens so its latency never
	// holds row locks. Failures are logged and swallowed.
	imageURL := ""
	if strings.TrimSpace(cmd.ImageBase64) != "" && s.uploader != nil {
		url, err := s.uploader.UploadBase64(ctx, cmd.ImageBase64, requestID)
		if err != nil {
			s.logger(ctx, "order_image_upload_failed", map[string]any{
				"requestId": requestID,
				"error":     err.Error(),
			})
		} else {
			imageURL = url
		}
	}

	now := s.now()
	var created domain.Order
	txErr := s.uow.RunInTx(ctx, func(txCtx context.Context) error {
		report := domain.TechnicalReport{
			ID:              "trp_" + s.newID(),
			Title:           strings.TrimSpace(cmd.Report.Title),
			Description:     strings.TrimSpace(cmd.Report.Description),
			Diagnosis:       strings.TrimSpace(cmd.Report.Diagnosis),
			Recommendations: strings.TrimSpace(cmd.Report.Recommendations),
			CreatedBy:       strings.TrimSpace(cmd.ActorID),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		storedReport, err := s.reports.Create(txCtx, report)
		if err != nil {
			return err
		}

		order := domain.Order{
			ID:                "ord_" + s.newID(),
			RequestID:         requestID,
			TechnicalReportID: storedReport.ID,
			Status:            domain.OrderStatusPending,
			ImageURL:          imageURL,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		order.Items = make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			order.Items = append(order.Items, domain.OrderItem{
				ID:             "oli_" + s.newID(),
				OrderID:        order.ID,
				ItemID:         line.ItemID,
				Quantity:       line.Quantity,
				UnitPriceCents: catalogue[line.ItemID].PriceCents,
			})
		}

		stored, err := s.orders.Create(txCtx, order)
		if err != nil {
			return err
		}

		for _, line := range stored.Items {
			if err := s.stock.Reserve(txCtx, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}

		stored.Report = &storedReport
		created = stored
		return nil
	})
	if txErr != nil {
		// A duplicate request id means a concurrent create won the race;
		// the winner's order is the canonical result.
		if isOrderCode(txErr, repositories.OrderErrorDuplicateRequestID) {
			winner, err := s.orders.GetByRequestID(ctx, requestID)
			if err != nil {
				return OrderResult{}, s.storageError("fetch race winner", err)
			}
			return OrderResult{Order: winner, AlreadyExisted: true}, nil
		}
		return OrderResult{}, s.mapCreateError(txErr)
	}

	s.publish(ctx, OrderEvent{
		Type:       eventOrderCreated,
		OrderID:    created.ID,
		RequestID:  created.RequestID,
		Status:     string(created.Status),
		OccurredAt: now,
	})

	return OrderResult{Order: created, AlreadyExisted: false}, nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.Get(ctx, trimmed)
	if err != nil {
		return domain.Order{}, s.mapReadError(err)
	}
	return order, nil
}

func (s *orderService) GetOrderByRequestID(ctx context.Context, requestID string) (domain.Order, error) {
	trimmed := strings.TrimSpace(requestID)
	if trimmed == "" {
		return domain.Order{}, fmt.Errorf("%w: request id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.GetByRequestID(ctx, trimmed)
	if err != nil {
		return domain.Order{}, s.mapReadError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]domain.Order, error) {
	status := strings.TrimSpace(filter.Status)
	if status != "" {
		if _, ok := domain.ParseOrderStatus(status); !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
	}
	orders, err := s.orders.List(ctx, repositories.OrderListQuery{
		Status: status,
		Limit:  filter.Pagination.Limit,
		Offset: filter.Pagination.Offset,
	})
	if err != nil {
		return nil, s.storageError("list orders", err)
	}
	return orders, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if _, ok := domain.ParseOrderStatus(string(target)); !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	var updated domain.Order
	txErr := s.uow.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.Get(txCtx, trimmed)
		if err != nil {
			return err
		}
		if !canTransition(current.Status, target) {
			return fmt.Errorf("%w: cannot move from %s to %s", ErrOrderInvalidTransition, current.Status, target)
		}

		// Stock restoration and the status flip commit together. The
		// transition table already rejects re-cancellation, and the
		// compare-and-set below closes the concurrent window, so each
		// line is released exactly once.
		if target == domain.OrderStatusCancelled {
			for _, line := range current.Items {
				if err := s.stock.Release(txCtx, line.ItemID, line.Quantity); err != nil {
					return err
				}
			}
		}

		updated, err = s.orders.UpdateStatus(txCtx, trimmed, current.Status, target)
		return err
	})
	if txErr != nil {
		switch {
		case errors.Is(txErr, ErrOrderInvalidTransition):
			return domain.Order{}, txErr
		case isOrderCode(txErr, repositories.OrderErrorNotFound):
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, trimmed)
		case isOrderCode(txErr, repositories.OrderErrorStatusConflict):
			return domain.Order{}, fmt.Errorf("%w: order changed concurrently", ErrOrderInvalidTransition)
		}
		return domain.Order{}, s.storageError("transition status", txErr)
	}

	s.publish(ctx, OrderEvent{
		Type:       eventOrderStatusChanged,
		OrderID:    updated.ID,
		RequestID:  updated.RequestID,
		Status:     string(updated.Status),
		OccurredAt: s.now(),
	})

	return updated, nil
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publish(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order_event_publish_failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) mapCreateError(err error) error {
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorItemNotFound:
			return fmt.Errorf("%w: item %s does not exist", ErrOrderItemNotFound, stockErr.ItemID)
		case repositories.StockErrorInsufficient:
			return fmt.Errorf("%w: item %s has %d available, %d requested",
				ErrOrderInsufficientStock, stockErr.ItemID, stockErr.Available, stockErr.Requested)
		}
	}
	return s.storageError("create order", err)
}

func (s *orderService) mapReadError(err error) error {
	if isOrderCode(err, repositories.OrderErrorNotFound) {
		return ErrOrderNotFound
	}
	return s.storageError("read order", err)
}

func (s *orderService) storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrOrderStorage, op, err)
}

func isOrderCode(err error, code repositories.OrderErrorCode) bool {
	var orderErr *repositories.OrderError
	return errors.As(err, &orderErr) && orderErr.Code == code
}

// normaliseOrderLines validates quantities and aggregates duplicate item ids,
// preserving first-appearance order.
func normaliseOrderLines(lines []OrderLineInput) ([]OrderLineInput, error) {
	if len(lines) == 0 {
		return nil, ErrOrderItemsEmpty
	}

	index := make(map[string]int, len(lines))
	result := make([]OrderLineInput, 0, len(lines))
	for _, line := range lines {
		itemID := strings.TrimSpace(line.ItemID)
		if itemID == "" {
			return nil, fmt.Errorf("%w: line item id is required", ErrOrderInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrOrderInvalidQuantity, itemID)
		}
		if pos, ok := index[itemID]; ok {
			result[pos].Quantity += line.Quantity
			continue
		}
		index[itemID] = len(result)
		result = append(result, OrderLineInput{ItemID: itemID, Quantity: line.Quantity})
	}
	return result, nil
}
