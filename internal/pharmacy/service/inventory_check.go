package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
	"github.com/pharmacy/pharmacy-backend/pkg/lock"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// LowStockSubject is the subject of every low-stock notification
const LowStockSubject = "Low stock notification"

// Mailer is satisfied by *mail.Sender
type Mailer interface {
	Configured() bool
	Send(ctx context.Context, to, subject, body string) error
}

// LowStockSource is the part of the stock ledger the watchdog reads
type LowStockSource interface {
	ListBelowThreshold(ctx context.Context, threshold int) ([]*repository.MedicationStock, error)
}

// StaffDirectory lists the employees of a pharmacy
type StaffDirectory interface {
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*repository.Employee, error)
}

// CheckState is where a check run ended
type CheckState string

const (
	CheckSkippedNoMail   CheckState = "skipped_no_mail"
	CheckLockNotAcquired CheckState = "lock_not_acquired"
	CheckLockError       CheckState = "lock_error"
	CheckScanFailed      CheckState = "scan_failed"
	CheckCompleted       CheckState = "completed"
)

// CheckResult summarises one check run
type CheckResult struct {
	State         CheckState    `json:"state"`
	Pharmacies    int           `json:"pharmacies"`
	LowStockItems int           `json:"low_stock_items"`
	Sent          int           `json:"sent"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
}

// PharmacyLowStock is the low-stock items of one pharmacy
type PharmacyLowStock struct {
	PharmacyID int64
	Items      []*repository.MedicationStock
}

// InventoryWatchdog finds stock associations below the threshold and mails
// the staff of each affected pharmacy. Runs are mutually exclusive across
// instances through a lease lock.
type InventoryWatchdog struct {
	stock     LowStockSource
	staff     StaffDirectory
	locker    lock.Locker
	mailer    Mailer
	events    *events.PharmacyEventPublisher
	threshold int
	lockName  string
	lockTTL   time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewInventoryWatchdog creates a new inventory watchdog
func NewInventoryWatchdog(
	stock LowStockSource,
	staff StaffDirectory,
	locker lock.Locker,
	mailer Mailer,
	ev *events.PharmacyEventPublisher,
	cfg config.InventoryConfig,
	log *logger.Logger,
) *InventoryWatchdog {
	return &InventoryWatchdog{
		stock:     stock,
		staff:     staff,
		locker:    locker,
		mailer:    mailer,
		events:    ev,
		threshold: cfg.Threshold,
		lockName:  cfg.LockName,
		lockTTL:   cfg.LockTTL,
		now:       time.Now,
		logger:    log.WithComponent("inventory-watchdog"),
	}
}

// RunCheck performs one check cycle. Failures end the run and are logged;
// they are reported through the result, never as an error.
func (w *InventoryWatchdog) RunCheck(ctx context.Context) CheckResult {
	start := w.now()
	result := w.runCheck(ctx)
	result.Duration = w.now().Sub(start)
	return result
}

func (w *InventoryWatchdog) runCheck(ctx context.Context) CheckResult {
	if !w.mailer.Configured() {
		w.logger.Warn().Msg("mail is not configured, skipping inventory check")
		return CheckResult{State: CheckSkippedNoMail}
	}

	lease, ok, err := w.locker.TryAcquire(ctx, w.lockName, w.lockTTL)
	if err != nil {
		w.logger.Error().Err(err).Str("lock", w.lockName).Msg("failed to acquire inventory check lock")
		return CheckResult{State: CheckLockError}
	}
	if !ok {
		w.logger.Info().Str("lock", w.lockName).Msg("another instance is running the inventory check")
		return CheckResult{State: CheckLockNotAcquired}
	}
	defer w.release(ctx, lease)

	w.logger.Info().Int("threshold", w.threshold).Msg("inventory check started")

	items, err := w.stock.ListBelowThreshold(ctx, w.threshold)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to scan stock below threshold")
		return CheckResult{State: CheckScanFailed}
	}

	groups := GroupByPharmacy(items)
	result := CheckResult{
		State:         CheckCompleted,
		Pharmacies:    len(groups),
		LowStockItems: len(items),
	}

	for _, group := range groups {
		sent, failed := w.notify(ctx, group)
		result.Sent += sent
		result.Failed += failed
	}

	w.logger.Info().
		Int("pharmacies", result.Pharmacies).
		Int("low_stock_items", result.LowStockItems).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("inventory check completed")

	return result
}

// notify mails every employee of one pharmacy. A failed recipient does not
// stop the others.
func (w *InventoryWatchdog) notify(ctx context.Context, group PharmacyLowStock) (sent, failed int) {
	log := w.logger.WithPharmacyID(group.PharmacyID)

	w.events.PublishStockLow(ctx, group.PharmacyID, w.threshold, group.Items)

	employees, err := w.staff.ListByPharmacy(ctx, group.PharmacyID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pharmacy employees")
		return 0, 0
	}
	if len(employees) == 0 {
		log.Warn().Int("items", len(group.Items)).Msg("pharmacy has low stock but no employees to notify")
		return 0, 0
	}

	body := LowStockBody(group.Items)
	for _, employee := range employees {
		if employee.Email == "" {
			log.Warn().Int64("employee_id", employee.ID).Msg("employee has no email address")
			failed++
			continue
		}
		if err := w.mailer.Send(ctx, employee.Email, LowStockSubject, body); err != nil {
			log.Error().Err(err).Str("to", employee.Email).Msg("failed to send low stock notification")
			failed++
			continue
		}
		log.Info().Str("to", employee.Email).Msg("low stock notification sent")
		sent++
	}
	return sent, failed
}

func (w *InventoryWatchdog) release(ctx context.Context, lease *lock.Lease) {
	// The run context may already be cancelled; the lease must still go back.
	err := lease.Release(context.WithoutCancel(ctx))
	switch {
	case err == nil:
	case errors.Is(err, lock.ErrLeaseNotHeld):
		w.logger.Warn().Str("lock", lease.Name()).Msg("inventory check lock was no longer held by this instance")
	default:
		w.logger.Warn().Err(err).Str("lock", lease.Name()).Msg("failed to release inventory check lock")
	}
}

// GroupByPharmacy groups low-stock items by pharmacy in ascending pharmacy order.
func GroupByPharmacy(items []*repository.MedicationStock) []PharmacyLowStock {
	index := make(map[int64]int)
	var groups []PharmacyLowStock
	for _, item := range items {
		i, ok := index[item.PharmacyID]
		if !ok {
			i = len(groups)
			index[item.PharmacyID] = i
			groups = append(groups, PharmacyLowStock{PharmacyID: item.PharmacyID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].PharmacyID < groups[b].PharmacyID
	})
	return groups
}

// LowStockBody renders the notification text for one pharmacy
func LowStockBody(items []*repository.MedicationStock) string {
	var b strings.Builder
	b.WriteString("The following medications are running low:\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "ID: %d, Name: %s, Form: %s, Price: %.2f, Quantity: %d\n",
			item.MedicationID, item.Name, item.Form, item.Price, item.Quantity)
	}
	return b.String()
}
