package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

type stockKey struct{ pharmacyID, medicationID int64 }

// memStore is an in-memory entity store. Transactions through memTx are
// serialised and roll back by restoring a snapshot.
type memStore struct {
	mu          sync.Mutex
	customers   map[int64]*repository.Customer
	employees   map[int64]*repository.Employee
	pharmacies  map[int64]*repository.Pharmacy
	medications map[int64]*repository.Medication
	stock       map[stockKey]int
	orders      map[int64]repository.Order
	nextOrderID int64

	// errs makes the named operation fail
	errs map[string]error

	// existsCalls records, per Orders.Exists call, whether it ran in a memTx
	existsCalls []bool
}

func newMemStore() *memStore {
	return &memStore{
		customers:   make(map[int64]*repository.Customer),
		employees:   make(map[int64]*repository.Employee),
		pharmacies:  make(map[int64]*repository.Pharmacy),
		medications: make(map[int64]*repository.Medication),
		stock:       make(map[stockKey]int),
		orders:      make(map[int64]repository.Order),
		nextOrderID: 1,
		errs:        make(map[string]error),
	}
}

func (m *memStore) stores() Stores {
	return Stores{
		Customers:   memCustomers{m},
		Employees:   memEmployees{m},
		Pharmacies:  memPharmacies{m},
		Medications: memMedications{m},
		Stock:       memStock{m},
		Orders:      memOrders{m},
	}
}

func (m *memStore) fail(op string) error {
	return m.errs[op]
}

func (m *memStore) quantity(pharmacyID, medicationID int64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.stock[stockKey{pharmacyID, medicationID}]
	return q, ok
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memSnapshot struct {
	stock       map[stockKey]int
	orders      map[int64]repository.Order
	nextOrderID int64
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		stock:       make(map[stockKey]int, len(m.stock)),
		orders:      make(map[int64]repository.Order, len(m.orders)),
		nextOrderID: m.nextOrderID,
	}
	for k, v := range m.stock {
		s.stock[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock = s.stock
	m.orders = s.orders
	m.nextOrderID = s.nextOrderID
}

type memTxKey struct{}

type memTx struct {
	mu    sync.Mutex
	store *memStore
}

func (t *memTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.store.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

type memCustomers struct{ *memStore }

func (m memCustomers) GetByID(_ context.Context, id int64) (*repository.Customer, error) {
	if err := m.fail("customers.get"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, errors.NotFound("customer")
	}
	return c, nil
}

type memEmployees struct{ *memStore }

func (m memEmployees) GetByID(_ context.Context, id int64) (*repository.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, errors.NotFound("employee")
	}
	return e, nil
}

func (m memEmployees) ListByPharmacy(_ context.Context, pharmacyID int64) ([]*repository.Employee, error) {
	if err := m.fail("employees.list"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Employee
	for _, e := range m.employees {
		if e.PharmacyID == pharmacyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memPharmacies struct{ *memStore }

func (m memPharmacies) GetByID(_ context.Context, id int64) (*repository.Pharmacy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pharmacies[id]
	if !ok {
		return nil, errors.NotFound("pharmacy")
	}
	return p, nil
}

type memMedications struct{ *memStore }

func (m memMedications) GetByID(_ context.Context, id int64) (*repository.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.medications[id]
	if !ok {
		return nil, errors.NotFound("medication")
	}
	return med, nil
}

type memStock struct{ *memStore }

func (m memStock) Get(_ context.Context, pharmacyID, medicationID int64) (*repository.StockAssociation, error) {
	if err := m.fail("stock.get"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.stock[stockKey{pharmacyID, medicationID}]
	if !ok {
		return nil, nil
	}
	return &repository.StockAssociation{PharmacyID: pharmacyID, MedicationID: medicationID, Quantity: q}, nil
}

func (m memStock) Decrement(_ context.Context, pharmacyID, medicationID int64, n int) (bool, error) {
	if err := m.fail("stock.decrement"); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stockKey{pharmacyID, medicationID}
	q, ok := m.stock[k]
	if !ok || q < n {
		return false, nil
	}
	m.stock[k] = q - n
	return true, nil
}

func (m memStock) Increment(_ context.Context, pharmacyID, medicationID int64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stockKey{pharmacyID, medicationID}
	q, ok := m.stock[k]
	if !ok {
		return errors.StockAssociationMissing(pharmacyID, medicationID)
	}
	m.stock[k] = q + n
	return nil
}

func (m memStock) AddOrUpdate(_ context.Context, pharmacyID, medicationID int64, quantity int) (*repository.StockAssociation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stockKey{pharmacyID, medicationID}
	m.stock[k] += quantity
	return &repository.StockAssociation{PharmacyID: pharmacyID, MedicationID: medicationID, Quantity: m.stock[k]}, nil
}

func (m memStock) Delete(_ context.Context, pharmacyID, medicationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stockKey{pharmacyID, medicationID}
	if _, ok := m.stock[k]; !ok {
		return errors.StockAssociationMissing(pharmacyID, medicationID)
	}
	delete(m.stock, k)
	return nil
}

func (m memStock) list(match func(k stockKey, q int) bool) []*repository.MedicationStock {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.MedicationStock
	for k, q := range m.stock {
		if !match(k, q) {
			continue
		}
		med := m.medications[k.medicationID]
		out = append(out, &repository.MedicationStock{
			PharmacyID:   k.pharmacyID,
			MedicationID: k.medicationID,
			Name:         med.Name,
			Form:         med.Form,
			Price:        med.Price,
			Quantity:     q,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PharmacyID != out[j].PharmacyID {
			return out[i].PharmacyID < out[j].PharmacyID
		}
		return out[i].MedicationID < out[j].MedicationID
	})
	return out
}

func (m memStock) ListBelowThreshold(_ context.Context, threshold int) ([]*repository.MedicationStock, error) {
	if err := m.fail("stock.below"); err != nil {
		return nil, err
	}
	return m.list(func(_ stockKey, q int) bool { return q < threshold }), nil
}

func (m memStock) ListByPharmacy(_ context.Context, pharmacyID int64) ([]*repository.MedicationStock, error) {
	return m.list(func(k stockKey, _ int) bool { return k.pharmacyID == pharmacyID }), nil
}

func (m memStock) ListOutOfStock(_ context.Context, pharmacyID int64) ([]*repository.MedicationStock, error) {
	return m.list(func(k stockKey, q int) bool { return k.pharmacyID == pharmacyID && q == 0 }), nil
}

type memOrders struct{ *memStore }

func (m memOrders) GetByID(_ context.Context, id int64) (*repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, errors.NotFound("order")
	}
	return &o, nil
}

func (m memOrders) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls = append(m.existsCalls, ctx.Value(memTxKey{}) != nil)
	_, ok := m.orders[id]
	return ok, nil
}

func (m memOrders) Create(_ context.Context, o *repository.Order) error {
	if err := m.fail("orders.create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.nextOrderID
	m.nextOrderID++
	m.orders[o.ID] = *o
	return nil
}

func (m memOrders) Update(_ context.Context, o *repository.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return errors.ReferenceNotFound("order", o.ID)
	}
	m.orders[o.ID] = *o
	return nil
}

func (m memOrders) List(_ context.Context, filter repository.OrderFilter) ([]*repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Order
	for _, o := range m.orders {
		if filter.PharmacyID != nil && o.PharmacyID != *filter.PharmacyID {
			continue
		}
		if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
			continue
		}
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memOrders) ListByCustomerPhone(_ context.Context, phone string) ([]*repository.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Order
	for _, o := range m.orders {
		if c, ok := m.customers[o.CustomerID]; ok && c.Phone == phone {
			o := o
			out = append(out, &o)
		}
	}
	return out, nil
}

func (m memOrders) Totals(_ context.Context, from, to time.Time) (*repository.OrderTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t repository.OrderTotals
	for _, o := range m.orders {
		if !o.OrderDate.Before(from) && o.OrderDate.Before(to) {
			t.TotalQuantity += int64(o.Quantity)
			t.TotalAmount += o.TotalAmount
		}
	}
	return &t, nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	configured bool
	failFor    map[string]error

	mu   sync.Mutex
	sent []sentMail
}

func (f *fakeMailer) Configured() bool { return f.configured }

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if err := f.failFor[to]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, s.to)
	}
	return out
}
