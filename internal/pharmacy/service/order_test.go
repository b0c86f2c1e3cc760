package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	"github.com/pharmacy/pharmacy-backend/pkg/messaging"
	"github.com/pharmacy/pharmacy-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	centralPharmacy   = int64(1)
	northPharmacy     = int64(2)
	aspirin           = int64(10)
	unstocked         = int64(11)
	alice             = int64(20)
	centralPharmacist = int64(30)
	northPharmacist   = int64(31)
)

var commitTime = time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

func seedStore() *memStore {
	m := newMemStore()
	m.pharmacies[centralPharmacy] = &repository.Pharmacy{ID: centralPharmacy, Name: "Central"}
	m.pharmacies[northPharmacy] = &repository.Pharmacy{ID: northPharmacy, Name: "North"}
	m.medications[aspirin] = &repository.Medication{ID: aspirin, Name: "Aspirin", Form: "TABLET", Price: 100.0}
	m.medications[unstocked] = &repository.Medication{ID: unstocked, Name: "Syrup", Form: "SYRUP", Price: 12.5}
	m.customers[alice] = &repository.Customer{ID: alice, Name: "Alice", Phone: "+100"}
	m.employees[centralPharmacist] = &repository.Employee{ID: centralPharmacist, Name: "Bob", Email: "bob@example.com", PharmacyID: centralPharmacy}
	m.employees[northPharmacist] = &repository.Employee{ID: northPharmacist, Name: "Eve", Email: "eve@example.com", PharmacyID: northPharmacy}
	m.stock[stockKey{centralPharmacy, aspirin}] = 50
	return m
}

type orderFixture struct {
	store     *memStore
	publisher *testutil.MockPublisher
	service   *OrderService
}

func newOrderFixture(cfg config.OrdersConfig) *orderFixture {
	store := seedStore()
	pub := testutil.NewMockPublisher()
	svc := NewOrderService(&memTx{store: store}, store.stores(),
		events.New(pub, testutil.NewMockPublisher(), logger.Nop()), cfg, logger.Nop()).
		WithClock(testutil.FixedClock(commitTime))
	return &orderFixture{store: store, publisher: pub, service: svc}
}

func validRequest(quantity int) PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerID:   alice,
		EmployeeID:   centralPharmacist,
		PharmacyID:   centralPharmacy,
		MedicationID: aspirin,
		Quantity:     quantity,
	}
}

func appError(t *testing.T, err error) *errors.AppError {
	t.Helper()
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %v", err)
	return appErr
}

func TestPlaceOrder_CommitsOrderAndDecrementsStock(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})

	order, err := f.service.PlaceOrder(context.Background(), validRequest(2))
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Equal(t, 200.0, order.TotalAmount)
	assert.Equal(t, commitTime, order.OrderDate)
	assert.Equal(t, repository.OrderStatusNew, order.Status)

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 48, qty)

	placed := f.publisher.Events(messaging.EventOrderPlaced)
	require.Len(t, placed, 1)
	assert.False(t, placed[0].Payload.(messaging.OrderPlacedEvent).Amended)
}

func TestPlaceOrder_TotalIsQuantityTimesPrice(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	f.store.medications[aspirin].Price = 0.1

	order, err := f.service.PlaceOrder(context.Background(), validRequest(3))
	require.NoError(t, err)
	assert.Equal(t, 0.3, order.TotalAmount)
}

func TestPlaceOrder_InsufficientStockLeavesStateUnchanged(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	f.store.stock[stockKey{centralPharmacy, aspirin}] = 1

	_, err := f.service.PlaceOrder(context.Background(), validRequest(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.Equal(t, map[string]any{"requested": 2, "available": 1}, appError(t, err).Details)

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 1, qty)
	assert.Zero(t, f.store.orderCount())
	f.publisher.AssertNoEventsPublished(t)
}

func TestPlaceOrder_EmployeeAtOtherPharmacy(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	req := validRequest(2)
	req.EmployeeID = northPharmacist

	_, err := f.service.PlaceOrder(context.Background(), req)
	assert.True(t, errors.Is(err, errors.ErrEmployeeNotAtPharmacy))

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 50, qty)
	assert.Zero(t, f.store.orderCount())
}

func TestPlaceOrder_MissingStockAssociation(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	req := validRequest(1)
	req.MedicationID = unstocked

	_, err := f.service.PlaceOrder(context.Background(), req)
	assert.True(t, errors.Is(err, errors.ErrStockAssociationMissing))
	assert.False(t, errors.Is(err, errors.ErrReferenceNotFound))
	assert.Zero(t, f.store.orderCount())
}

func TestPlaceOrder_ReferenceNotFound(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlaceOrderRequest)
		kind   string
		id     int64
	}{
		{name: "employee", mutate: func(r *PlaceOrderRequest) { r.EmployeeID = 999 }, kind: "employee", id: 999},
		{name: "customer", mutate: func(r *PlaceOrderRequest) { r.CustomerID = 998 }, kind: "customer", id: 998},
		{name: "pharmacy", mutate: func(r *PlaceOrderRequest) { r.PharmacyID = 997 }, kind: "pharmacy", id: 997},
		{name: "medication", mutate: func(r *PlaceOrderRequest) { r.MedicationID = 996 }, kind: "medication", id: 996},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(config.OrdersConfig{})
			req := validRequest(1)
			tt.mutate(&req)

			_, err := f.service.PlaceOrder(context.Background(), req)
			require.True(t, errors.Is(err, errors.ErrReferenceNotFound))
			details := appError(t, err).Details
			assert.Equal(t, tt.kind, details["kind"])
			assert.Equal(t, tt.id, details["id"])
			assert.Zero(t, f.store.orderCount())
		})
	}
}

func TestPlaceOrder_RejectsNonPositiveQuantity(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})

	_, err := f.service.PlaceOrder(context.Background(), validRequest(0))
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestPlaceOrder_InfrastructureFailurePropagates(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	f.store.errs["orders.create"] = stderrors.New("connection reset")

	_, err := f.service.PlaceOrder(context.Background(), validRequest(2))
	require.Error(t, err)
	var appErr *errors.AppError
	assert.False(t, errors.As(err, &appErr))

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 50, qty)
}

// racingStock lets another order take the remaining stock between the
// quantity check and the decrement.
type racingStock struct {
	memStock
}

func (r racingStock) Decrement(ctx context.Context, pharmacyID, medicationID int64, n int) (bool, error) {
	r.mu.Lock()
	r.stock[stockKey{pharmacyID, medicationID}] = 1
	r.mu.Unlock()
	return r.memStock.Decrement(ctx, pharmacyID, medicationID, n)
}

func TestPlaceOrder_LostRaceRollsBack(t *testing.T) {
	store := seedStore()
	stores := store.stores()
	stores.Stock = racingStock{memStock{store}}
	svc := NewOrderService(&memTx{store: store}, stores, nil, config.OrdersConfig{}, logger.Nop())

	_, err := svc.PlaceOrder(context.Background(), validRequest(5))
	require.True(t, errors.Is(err, errors.ErrInsufficientStock))
	assert.Equal(t, 1, appError(t, err).Details["available"])
	assert.Zero(t, store.orderCount())
}

func TestPlaceOrder_ConcurrentOrdersNeverOversell(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.PlaceOrder(context.Background(), validRequest(5))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			if errors.Is(err, errors.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, 10, rejected)
	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 0, qty)
}

func TestAmendOrder_DecrementsAgainByDefault(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	ctx := context.Background()

	first, err := f.service.PlaceOrder(ctx, validRequest(2))
	require.NoError(t, err)

	amended, err := f.service.AmendOrder(ctx, first.ID, validRequest(3))
	require.NoError(t, err)

	assert.Equal(t, first.ID, amended.ID)
	assert.Equal(t, 300.0, amended.TotalAmount)
	assert.Equal(t, 1, f.store.orderCount())

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 45, qty)

	placed := f.publisher.Events(messaging.EventOrderPlaced)
	require.Len(t, placed, 2)
	assert.True(t, placed[1].Payload.(messaging.OrderPlacedEvent).Amended)
}

func TestAmendOrder_RestoresPreviousQuantityWhenEnabled(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{RestoreStockOnAmend: true})
	ctx := context.Background()

	first, err := f.service.PlaceOrder(ctx, validRequest(2))
	require.NoError(t, err)

	_, err = f.service.AmendOrder(ctx, first.ID, validRequest(3))
	require.NoError(t, err)

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 47, qty)
}

func TestAmendOrder_RestoreIsRolledBackOnRejection(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{RestoreStockOnAmend: true})
	ctx := context.Background()

	first, err := f.service.PlaceOrder(ctx, validRequest(2))
	require.NoError(t, err)

	req := validRequest(3)
	req.EmployeeID = northPharmacist
	_, err = f.service.AmendOrder(ctx, first.ID, req)
	require.True(t, errors.Is(err, errors.ErrEmployeeNotAtPharmacy))

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 48, qty)
}

func TestAmendOrder_KeepsStatusWhenNotGiven(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	ctx := context.Background()

	req := validRequest(1)
	req.Status = repository.OrderStatusCompleted
	first, err := f.service.PlaceOrder(ctx, req)
	require.NoError(t, err)

	amended, err := f.service.AmendOrder(ctx, first.ID, validRequest(1))
	require.NoError(t, err)
	assert.Equal(t, repository.OrderStatusCompleted, amended.Status)
}

func TestAmendOrder_MissingOrder(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})

	_, err := f.service.AmendOrder(context.Background(), 404, validRequest(1))
	require.True(t, errors.Is(err, errors.ErrReferenceNotFound))
	assert.Equal(t, "order", appError(t, err).Details["kind"])

	qty, _ := f.store.quantity(centralPharmacy, aspirin)
	assert.Equal(t, 50, qty)
}

func TestPlaceOrder_WithIDOfExistingOrderAmends(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	ctx := context.Background()

	first, err := f.service.PlaceOrder(ctx, validRequest(1))
	require.NoError(t, err)

	req := validRequest(4)
	req.ID = &first.ID
	second, err := f.service.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.store.orderCount())

	unknown := int64(777)
	req.ID = &unknown
	third, err := f.service.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, unknown, third.ID)
	assert.Equal(t, 2, f.store.orderCount())
}

func TestPlaceOrder_ExistenceCheckRunsInsideTransaction(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})
	ctx := context.Background()

	first, err := f.service.PlaceOrder(ctx, validRequest(1))
	require.NoError(t, err)

	req := validRequest(2)
	req.ID = &first.ID
	_, err = f.service.PlaceOrder(ctx, req)
	require.NoError(t, err)

	missing := int64(404)
	req.ID = &missing
	_, err = f.service.PlaceOrder(ctx, req)
	require.NoError(t, err)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Equal(t, []bool{true, true}, f.store.existsCalls)
}

func TestPlaceOrder_UnknownIDEventIsNotAnAmend(t *testing.T) {
	f := newOrderFixture(config.OrdersConfig{})

	missing := int64(99)
	req := validRequest(1)
	req.ID = &missing
	_, err := f.service.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	placed := f.publisher.Events(messaging.EventOrderPlaced)
	require.Len(t, placed, 1)
	assert.False(t, placed[0].Payload.(messaging.OrderPlacedEvent).Amended)
}
