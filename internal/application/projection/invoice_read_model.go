package projection

import (
	"context"
	"sort"
	"sync"
	"time"

	apppayment "github.com/erp/ledger/internal/application/payment"
	"github.com/erp/ledger/internal/domain/invoice"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// InvoiceRow is one invoice as seen by the reporting read model
type InvoiceRow struct {
	InvoiceID        uuid.UUID            `json:"invoice_id"`
	Number           string               `json:"number"`
	CounterpartyID   uuid.UUID            `json:"counterparty_id"`
	CounterpartyName string               `json:"counterparty_name"`
	Currency         valueobject.Currency `json:"currency"`
	DueDate          time.Time            `json:"due_date"`
	Total            valueobject.Money    `json:"total"`
	Balance          valueobject.Money    `json:"balance"`
	Status           invoice.Status       `json:"status"`
}

// InvoiceReadModel tracks invoice totals, balances and statuses for
// reporting and for automatic payment allocation. It folds the invoice
// event stream; the aggregate remains the authority for command checks.
type InvoiceReadModel struct {
	mu       sync.RWMutex
	position int64
	rows     map[uuid.UUID]*InvoiceRow
}

// NewInvoiceReadModel creates an empty invoice read model
func NewInvoiceReadModel() *InvoiceReadModel {
	return &InvoiceReadModel{rows: make(map[uuid.UUID]*InvoiceRow)}
}

// Name identifies the projection
func (m *InvoiceReadModel) Name() string {
	return "invoices"
}

// Position returns the global position of the last folded event
func (m *InvoiceReadModel) Position() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// Apply folds one event
func (m *InvoiceReadModel) Apply(ctx context.Context, event shared.DomainEvent, position int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if position <= m.position {
		return nil // Already folded; redelivery after a crash
	}

	switch ev := event.(type) {
	case *invoice.InvoiceCreatedEvent:
		m.rows[ev.InvoiceID] = &InvoiceRow{
			InvoiceID:        ev.InvoiceID,
			Number:           ev.Number,
			CounterpartyID:   ev.CounterpartyID,
			CounterpartyName: ev.CounterpartyName,
			Currency:         ev.Currency,
			DueDate:          ev.DueDate,
			Total:            valueobject.Zero(ev.Currency),
			Balance:          valueobject.Zero(ev.Currency),
			Status:           invoice.StatusDraft,
		}
	case *invoice.InvoiceApprovedEvent:
		if row, ok := m.rows[ev.InvoiceID]; ok {
			row.Total = ev.Total
			row.Balance = ev.Total
			row.Status = invoice.StatusApproved
		}
	case *invoice.InvoiceSentEvent:
		if row, ok := m.rows[ev.InvoiceID]; ok {
			row.Status = invoice.StatusSent
		}
	case *invoice.InvoiceCancelledEvent:
		if row, ok := m.rows[ev.InvoiceID]; ok {
			row.Status = invoice.StatusCancelled
		}
	case *invoice.InvoiceAllocationAppliedEvent:
		if row, ok := m.rows[ev.InvoiceID]; ok {
			row.Balance = ev.NewBalance
			row.Status = ev.NewStatus
		}
	}

	m.position = position
	return nil
}

// Reset discards all folded state
func (m *InvoiceReadModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = 0
	m.rows = make(map[uuid.UUID]*InvoiceRow)
}

// Get returns the row for one invoice
func (m *InvoiceReadModel) Get(invoiceID uuid.UUID) (InvoiceRow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[invoiceID]
	if !ok {
		return InvoiceRow{}, false
	}
	return *row, true
}

// ByCounterparty returns all invoices for a counterparty
func (m *InvoiceReadModel) ByCounterparty(counterpartyID uuid.UUID) []InvoiceRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []InvoiceRow
	for _, row := range m.rows {
		if row.CounterpartyID == counterpartyID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// OpenInvoices returns the counterparty's invoices that can still accept
// allocations, ordered oldest due date first. Feeds automatic payment
// allocation.
func (m *InvoiceReadModel) OpenInvoices(ctx context.Context, counterpartyID uuid.UUID) ([]apppayment.OpenInvoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var open []apppayment.OpenInvoice
	for _, row := range m.rows {
		if row.CounterpartyID != counterpartyID {
			continue
		}
		if !row.Status.CanAcceptAllocation() || !row.Balance.IsPositive() {
			continue
		}
		open = append(open, apppayment.OpenInvoice{
			InvoiceID: row.InvoiceID,
			Number:    row.Number,
			DueDate:   row.DueDate,
			Balance:   row.Balance,
		})
	}

	sort.Slice(open, func(i, j int) bool {
		if !open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].DueDate.Before(open[j].DueDate)
		}
		return open[i].Number < open[j].Number
	})
	return open, nil
}

// Ensure InvoiceReadModel implements Projection and the allocation source
var (
	_ Projection                   = (*InvoiceReadModel)(nil)
	_ apppayment.OpenInvoiceSource = (*InvoiceReadModel)(nil)
)
