package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

type stubOrderRepository struct {
	createFn         func(ctx context.Context, order domain.Order) (domain.Order, error)
	getFn            func(ctx context.Context, id string) (domain.Order, error)
	getByRequestIDFn func(ctx context.Context, requestID string) (domain.Order, error)
	listFn           func(ctx context.Context, query repositories.OrderListQuery) ([]domain.Order, error)
	updateStatusFn   func(ctx context.Context, id string, from, to domain.OrderStatus) (domain.Order, error)
}

func (s *stubOrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.createFn == nil {
		return order, nil
	}
	return s.createFn(ctx, order)
}

func (s *stubOrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "", nil)
	}
	return s.getFn(ctx, id)
}

func (s *stubOrderRepository) GetByRequestID(ctx context.Context, requestID string) (domain.Order, error) {
	if s.getByRequestIDFn == nil {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "", nil)
	}
	return s.getByRequestIDFn(ctx, requestID)
}

func (s *stubOrderRepository) List(ctx context.Context, query repositories.OrderListQuery) ([]domain.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, query)
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (domain.Order, error) {
	if s.updateStatusFn == nil {
		return domain.Order{ID: id, Status: to}, nil
	}
	return s.updateStatusFn(ctx, id, from, to)
}

type stubReportRepository struct {
	createFn func(ctx context.Context, report domain.TechnicalReport) (domain.TechnicalReport, error)
}

func (s *stubReportRepository) Create(ctx context.Context, report domain.TechnicalReport) (domain.TechnicalReport, error) {
	if s.createFn == nil {
		return report, nil
	}
	return s.createFn(ctx, report)
}

func (s *stubReportRepository) Get(ctx context.Context, id string) (domain.TechnicalReport, error) {
	return domain.TechnicalReport{}, repositories.NewOrderError(repositories.OrderErrorReportNotFound, "", nil)
}

type stubItemRepository struct {
	items     map[string]domain.Item
	getManyFn func(ctx context.Context, ids []string) (map[string]domain.Item, error)
	createFn  func(ctx context.Context, item domain.Item) (domain.Item, error)
	listFn    func(ctx context.Context, query repositories.ItemListQuery) ([]domain.Item, error)
	updateFn  func(ctx context.Context, id string, update repositories.ItemUpdate) (domain.Item, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (s *stubItemRepository) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	if s.createFn != nil {
		return s.createFn(ctx, item)
	}
	return item, nil
}

func (s *stubItemRepository) Get(ctx context.Context, id string) (domain.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, repositories.NewCatalogError(repositories.CatalogErrorItemNotFound, "", nil)
	}
	return item, nil
}

func (s *stubItemRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Item, error) {
	if s.getManyFn != nil {
		return s.getManyFn(ctx, ids)
	}
	found := make(map[string]domain.Item, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			found[id] = item
		}
	}
	return found, nil
}

func (s *stubItemRepository) List(ctx context.Context, query repositories.ItemListQuery) ([]domain.Item, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil
}

func (s *stubItemRepository) Update(ctx context.Context, id string, update repositories.ItemUpdate) (domain.Item, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, update)
	}
	return domain.Item{}, repositories.NewCatalogError(repositories.CatalogErrorItemNotFound, "", nil)
}

func (s *stubItemRepository) Delete(ctx context.Context, id string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

type stockCall struct {
	itemID   string
	quantity int
}

type stubStockLedger struct {
	reserveFn func(ctx context.Context, itemID string, quantity int) error
	reserved  []stockCall
	released  []stockCall
}

func (s *stubStockLedger) Reserve(ctx context.Context, itemID string, quantity int) error {
	if s.reserveFn != nil {
		if err := s.reserveFn(ctx, itemID, quantity); err != nil {
			return err
		}
	}
	s.reserved = append(s.reserved, stockCall{itemID: itemID, quantity: quantity})
	return nil
}

func (s *stubStockLedger) Release(ctx context.Context, itemID string, quantity int) error {
	s.released = append(s.released, stockCall{itemID: itemID, quantity: quantity})
	return nil
}

// passthroughUnitOfWork runs the function without a real transaction, which is
// enough for service-level tests: rollback behaviour is asserted through the
// error path, not storage state.
type passthroughUnitOfWork struct {
	calls int
}

func (u *passthroughUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	return fn(ctx)
}

type stubUploader struct {
	url string
	err error
}

func (s *stubUploader) UploadBase64(ctx context.Context, payload string, requestID string) (string, error) {
	return s.url, s.err
}

type stubPublisher struct {
	events []OrderEvent
	err    error
}

func (s *stubPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error) {
	s.events = append(s.events, event)
	return "msg-1", s.err
}

func testOrderServiceDeps() (OrderServiceDeps, *stubOrderRepository, *stubItemRepository, *stubStockLedger, *stubPublisher) {
	orders := &stubOrderRepository{}
	items := &stubItemRepository{items: map[string]domain.Item{
		"itm_bolt":   {ID: "itm_bolt", Name: "Hex bolt", SKU: "BOLT-8", PriceCents: 150, Stock: 40},
		"itm_filter": {ID: "itm_filter", Name: "Oil filter", SKU: "FILT-2", PriceCents: 2200, Stock: 3},
	}}
	stock := &stubStockLedger{}
	events := &stubPublisher{}

	seq := 0
	deps := OrderServiceDeps{
		Orders:     orders,
		Reports:    &stubReportRepository{},
		Items:      items,
		Stock:      stock,
		UnitOfWork: &passthroughUnitOfWork{},
		Events:     events,
		Clock: func() time.Time {
			return time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
		},
		IDGenerator: func() string {
			seq++
			return "01JTEST" + strings.Repeat("0", 3) + string(rune('A'+seq-1))
		},
	}
	return deps, orders, items, stock, events
}

func validCreateCommand() CreateOrderCommand {
	return CreateOrderCommand{
		RequestID: "req-100",
		Report: ReportInput{
			Title:       "Compressor inspection",
			Description: "Oil leak at the rear seal",
			Diagnosis:   "Worn seal",
		},
		Lines: []OrderLineInput{
			{ItemID: "itm_bolt", Quantity: 4},
			{ItemID: "itm_filter", Quantity: 1},
		},
	}
}

func TestCreateOrderReservesStockAndPublishes(t *testing.T) {
	deps, _, _, stock, events := testOrderServiceDeps()
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	result, err := svc.CreateOrder(context.Background(), validCreateCommand())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if result.AlreadyExisted {
		t.Fatal("expected a fresh order")
	}
	if result.Order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %s, want pending", result.Order.Status)
	}
	if !strings.HasPrefix(result.Order.ID, "ord_") {
		t.Fatalf("order id %q missing ord_ prefix", result.Order.ID)
	}
	if result.Order.Report == nil || !strings.HasPrefix(result.Order.Report.ID, "trp_") {
		t.Fatal("expected an embedded technical report")
	}
	if got := result.Order.TotalCents(); got != 4*150+2200 {
		t.Fatalf("total = %d, want %d", got, 4*150+2200)
	}

	if len(stock.reserved) != 2 {
		t.Fatalf("reserved %d lines, want 2", len(stock.reserved))
	}
	if stock.reserved[0] != (stockCall{itemID: "itm_bolt", quantity: 4}) {
		t.Fatalf("unexpected first reservation %+v", stock.reserved[0])
	}

	if len(events.events) != 1 || events.events[0].Type != "order.created" {
		t.Fatalf("unexpected events %+v", events.events)
	}
	if events.events[0].OrderID != result.Order.ID {
		t.Fatal("event order id mismatch")
	}
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	deps, orders, _, stock, events := testOrderServiceDeps()
	stored := domain.Order{ID: "ord_existing", RequestID: "req-100", Status: domain.OrderStatusPending}
	orders.getByRequestIDFn = func(ctx context.Context, requestID string) (domain.Order, error) {
		if requestID != "req-100" {
			t.Fatalf("unexpected request id %q", requestID)
		}
		return stored, nil
	}
	orders.createFn = func(ctx context.Context, order domain.Order) (domain.Order, error) {
		t.Fatal("create must not run on a replay")
		return domain.Order{}, nil
	}

	svc, _ := NewOrderService(deps)
	result, err := svc.CreateOrder(context.Background(), validCreateCommand())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !result.AlreadyExisted {
		t.Fatal("expected AlreadyExisted on replay")
	}
	if result.Order.ID != "ord_existing" {
		t.Fatalf("order id = %s, want ord_existing", result.Order.ID)
	}
	if len(stock.reserved) != 0 {
		t.Fatal("replay must not touch stock")
	}
	if len(events.events) != 0 {
		t.Fatal("replay must not publish events")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cmd *CreateOrderCommand)
		wantErr error
	}{
		{
			name:    "missing request id",
			mutate:  func(cmd *CreateOrderCommand) { cmd.RequestID = "  " },
			wantErr: ErrOrderInvalidInput,
		},
		{
			name:    "missing report title",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Report.Title = "" },
			wantErr: ErrOrderInvalidInput,
		},
		{
			name:    "empty lines",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Lines = nil },
			wantErr: ErrOrderItemsEmpty,
		},
		{
			name:    "zero quantity",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Lines[0].Quantity = 0 },
			wantErr: ErrOrderInvalidQuantity,
		},
		{
			name:    "unknown item",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Lines[0].ItemID = "itm_ghost" },
			wantErr: ErrOrderItemNotFound,
		},
		{
			name:    "insufficient stock",
			mutate:  func(cmd *CreateOrderCommand) { cmd.Lines[1].Quantity = 5 },
			wantErr: ErrOrderInsufficientStock,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deps, _, _, stock, _ := testOrderServiceDeps()
			svc, _ := NewOrderService(deps)

			cmd := validCreateCommand()
			tc.mutate(&cmd)

			_, err := svc.CreateOrder(context.Background(), cmd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if len(stock.reserved) != 0 {
				t.Fatal("validation failure must not reserve stock")
			}
		})
	}
}

func TestCreateOrderInsufficientStockDetail(t *testing.T) {
	deps, _, _, _, _ := testOrderServiceDeps()
	svc, _ := NewOrderService(deps)

	cmd := validCreateCommand()
	cmd.Lines = []OrderLineInput{{ItemID: "itm_filter", Quantity: 7}}

	_, err := svc.CreateOrder(context.Background(), cmd)
	if !errors.Is(err, ErrOrderInsufficientStock) {
		t.Fatalf("error = %v, want insufficient stock", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "3 available") || !strings.Contains(msg, "7 requested") {
		t.Fatalf("error %q missing available/requested quantities", msg)
	}
}

func TestCreateOrderAggregatesDuplicateLines(t *testing.T) {
	deps, _, _, stock, _ := testOrderServiceDeps()
	svc, _ := NewOrderService(deps)

	cmd := validCreateCommand()
	cmd.Lines = []OrderLineInput{
		{ItemID: "itm_bolt", Quantity: 2},
		{ItemID: "itm_bolt", Quantity: 3},
	}

	result, err := svc.CreateOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if len(result.Order.Items) != 1 {
		t.Fatalf("got %d lines, want 1 aggregated line", len(result.Order.Items))
	}
	if result.Order.Items[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", result.Order.Items[0].Quantity)
	}
	if len(stock.reserved) != 1 || stock.reserved[0].quantity != 5 {
		t.Fatalf("unexpected reservations %+v", stock.reserved)
	}
}

func TestCreateOrderDuplicateRequestIDRaceReturnsWinner(t *testing.T) {
	deps, orders, _, _, events := testOrderServiceDeps()
	winner := domain.Order{ID: "ord_winner", RequestID: "req-100", Status: domain.OrderStatusPending}

	lookups := 0
	orders.getByRequestIDFn = func(ctx context.Context, requestID string) (domain.Order, error) {
		lookups++
		if lookups == 1 {
			// First lookup runs before the transaction and misses.
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "", nil)
		}
		return winner, nil
	}
	orders.createFn = func(ctx context.Context, order domain.Order) (domain.Order, error) {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorDuplicateRequestID, "request id already used", nil)
	}

	svc, _ := NewOrderService(deps)
	result, err := svc.CreateOrder(context.Background(), validCreateCommand())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !result.AlreadyExisted {
		t.Fatal("race loser must report AlreadyExisted")
	}
	if result.Order.ID != "ord_winner" {
		t.Fatalf("order id = %s, want the winner's order", result.Order.ID)
	}
	if len(events.events) != 0 {
		t.Fatal("race loser must not publish an event")
	}
}

func TestCreateOrderUploadFailureIsSwallowed(t *testing.T) {
	deps, _, _, _, _ := testOrderServiceDeps()
	deps.Uploader = &stubUploader{err: errors.New("bucket unavailable")}

	var logged []string
	deps.Logger = func(ctx context.Context, event string, fields map[string]any) {
		logged = append(logged, event)
	}

	svc, _ := NewOrderService(deps)
	cmd := validCreateCommand()
	cmd.ImageBase64 = "aGVsbG8="

	result, err := svc.CreateOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if result.Order.ImageURL != "" {
		t.Fatalf("image url = %q, want empty after failed upload", result.Order.ImageURL)
	}

	found := false
	for _, event := range logged {
		if event == "order_image_upload_failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the upload failure to be logged")
	}
}

func TestCreateOrderAttachesUploadedImage(t *testing.T) {
	deps, _, _, _, _ := testOrderServiceDeps()
	deps.Uploader = &stubUploader{url: "https://img.example.com/maintenance-images/req-100/x.png"}

	svc, _ := NewOrderService(deps)
	cmd := validCreateCommand()
	cmd.ImageBase64 = "aGVsbG8="

	result, err := svc.CreateOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if result.Order.ImageURL != "https://img.example.com/maintenance-images/req-100/x.png" {
		t.Fatalf("unexpected image url %q", result.Order.ImageURL)
	}
}

func TestCreateOrderReservationFailureAborts(t *testing.T) {
	deps, _, _, stock, events := testOrderServiceDeps()
	stock.reserveFn = func(ctx context.Context, itemID string, quantity int) error {
		if itemID == "itm_filter" {
			return &repositories.StockError{
				Code:      repositories.StockErrorInsufficient,
				ItemID:    itemID,
				Available: 0,
				Requested: quantity,
				Message:   "insufficient stock",
			}
		}
		return nil
	}

	svc, _ := NewOrderService(deps)
	_, err := svc.CreateOrder(context.Background(), validCreateCommand())
	if !errors.Is(err, ErrOrderInsufficientStock) {
		t.Fatalf("error = %v, want insufficient stock", err)
	}
	if len(events.events) != 0 {
		t.Fatal("aborted create must not publish an event")
	}
}

func TestTransitionStatusTable(t *testing.T) {
	tests := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusInProgress, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusCompleted, false},
		{domain.OrderStatusPending, domain.OrderStatusPending, false},
		{domain.OrderStatusInProgress, domain.OrderStatusCompleted, true},
		{domain.OrderStatusInProgress, domain.OrderStatusCancelled, true},
		{domain.OrderStatusInProgress, domain.OrderStatusPending, false},
		{domain.OrderStatusCompleted, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCompleted, domain.OrderStatusInProgress, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPending, false},
		{domain.OrderStatusCancelled, domain.OrderStatusCancelled, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			deps, orders, _, _, _ := testOrderServiceDeps()
			orders.getFn = func(ctx context.Context, id string) (domain.Order, error) {
				return domain.Order{ID: id, Status: tc.from}, nil
			}

			svc, _ := NewOrderService(deps)
			updated, err := svc.TransitionStatus(context.Background(), "ord_1", tc.to)
			if tc.allowed {
				if err != nil {
					t.Fatalf("TransitionStatus: %v", err)
				}
				if updated.Status != tc.to {
					t.Fatalf("status = %s, want %s", updated.Status, tc.to)
				}
				return
			}
			if !errors.Is(err, ErrOrderInvalidTransition) {
				t.Fatalf("error = %v, want invalid transition", err)
			}
		})
	}
}

func TestTransitionStatusCancelReleasesStockOnce(t *testing.T) {
	deps, orders, _, stock, events := testOrderServiceDeps()
	orders.getFn = func(ctx context.Context, id string) (domain.Order, error) {
		return domain.Order{
			ID:     id,
			Status: domain.OrderStatusPending,
			Items: []domain.OrderItem{
				{ItemID: "itm_bolt", Quantity: 4},
				{ItemID: "itm_filter", Quantity: 1},
			},
		}, nil
	}

	svc, _ := NewOrderService(deps)
	_, err := svc.TransitionStatus(context.Background(), "ord_1", domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if len(stock.released) != 2 {
		t.Fatalf("released %d lines, want 2", len(stock.released))
	}
	if stock.released[0] != (stockCall{itemID: "itm_bolt", quantity: 4}) {
		t.Fatalf("unexpected release %+v", stock.released[0])
	}
	if len(events.events) != 1 || events.events[0].Type != "order.status.changed" {
		t.Fatalf("unexpected events %+v", events.events)
	}
}

func TestTransitionStatusCompletionKeepsStock(t *testing.T) {
	deps, orders, _, stock, _ := testOrderServiceDeps()
	orders.getFn = func(ctx context.Context, id string) (domain.Order, error) {
		return domain.Order{
			ID:     id,
			Status: domain.OrderStatusInProgress,
			Items:  []domain.OrderItem{{ItemID: "itm_bolt", Quantity: 4}},
		}, nil
	}

	svc, _ := NewOrderService(deps)
	_, err := svc.TransitionStatus(context.Background(), "ord_1", domain.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if len(stock.released) != 0 {
		t.Fatal("completion must not release stock")
	}
}

func TestTransitionStatusConcurrentConflict(t *testing.T) {
	deps, orders, _, _, _ := testOrderServiceDeps()
	orders.getFn = func(ctx context.Context, id string) (domain.Order, error) {
		return domain.Order{ID: id, Status: domain.OrderStatusPending}, nil
	}
	orders.updateStatusFn = func(ctx context.Context, id string, from, to domain.OrderStatus) (domain.Order, error) {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorStatusConflict, "order status is cancelled, expected pending", nil)
	}

	svc, _ := NewOrderService(deps)
	_, err := svc.TransitionStatus(context.Background(), "ord_1", domain.OrderStatusInProgress)
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("error = %v, want invalid transition", err)
	}
}

func TestTransitionStatusUnknownOrder(t *testing.T) {
	deps, _, _, _, _ := testOrderServiceDeps()
	svc, _ := NewOrderService(deps)

	_, err := svc.TransitionStatus(context.Background(), "ord_missing", domain.OrderStatusCancelled)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestTransitionStatusRejectsUnknownTarget(t *testing.T) {
	deps, _, _, _, _ := testOrderServiceDeps()
	svc, _ := NewOrderService(deps)

	_, err := svc.TransitionStatus(context.Background(), "ord_1", domain.OrderStatus("archived"))
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	deps, _, _, _, _ := testOrderServiceDeps()
	svc, _ := NewOrderService(deps)

	_, err := svc.ListOrders(context.Background(), OrderListFilter{Status: "archived"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestListOrdersPassesFilter(t *testing.T) {
	deps, orders, _, _, _ := testOrderServiceDeps()
	var captured repositories.OrderListQuery
	orders.listFn = func(ctx context.Context, query repositories.OrderListQuery) ([]domain.Order, error) {
		captured = query
		return []domain.Order{{ID: "ord_1"}}, nil
	}

	svc, _ := NewOrderService(deps)
	got, err := svc.ListOrders(context.Background(), OrderListFilter{
		Status:     "pending",
		Pagination: Pagination{Limit: 10, Offset: 20},
	})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d orders, want 1", len(got))
	}
	if captured.Status != "pending" || captured.Limit != 10 || captured.Offset != 20 {
		t.Fatalf("unexpected query %+v", captured)
	}
}

func TestNewOrderServiceRequiresDependencies(t *testing.T) {
	deps, _, _, _, _ := testOrderServiceDeps()
	deps.Stock = nil
	if _, err := NewOrderService(deps); err == nil {
		t.Fatal("expected an error for a missing stock ledger")
	}
}
