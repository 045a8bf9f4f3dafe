package projection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// posting is one journal line as folded into the balance read model
type posting struct {
	position  int64
	entryDate time.Time
	sequence  int64
	accountID uuid.UUID
	side      ledger.Side
	amount    decimal.Decimal
}

// BalanceReadModel derives account balances by folding posted journal
// entries. Draft entries never appear here, and a reversal simply folds
// as another posted entry, so balances after a reversal equal balances
// as if the original had never been posted.
type BalanceReadModel struct {
	mu       sync.RWMutex
	position int64
	postings []posting
}

// NewBalanceReadModel creates an empty balance read model
func NewBalanceReadModel() *BalanceReadModel {
	return &BalanceReadModel{}
}

// Name identifies the projection
func (m *BalanceReadModel) Name() string {
	return "account-balances"
}

// Position returns the global position of the last folded event
func (m *BalanceReadModel) Position() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.position
}

// Apply folds one event. Only posted entries move balances; everything
// else advances the position and is otherwise ignored.
func (m *BalanceReadModel) Apply(ctx context.Context, event shared.DomainEvent, position int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if position <= m.position {
		return nil // Already folded; redelivery after a crash
	}

	if posted, ok := event.(*ledger.JournalEntryPostedEvent); ok {
		for _, line := range posted.Lines {
			m.postings = append(m.postings, posting{
				position:  position,
				entryDate: posted.EntryDate,
				sequence:  posted.Sequence,
				accountID: line.AccountID,
				side:      line.Side,
				amount:    line.Amount.Amount(),
			})
		}
	}

	m.position = position
	return nil
}

// Reset discards all folded state
func (m *BalanceReadModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = 0
	m.postings = nil
}

// MaxSequence returns the highest entry sequence folded so far. Used to
// seed the sequence allocator when restarting against a durable store.
func (m *BalanceReadModel) MaxSequence() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var max int64
	for _, p := range m.postings {
		if p.sequence > max {
			max = p.sequence
		}
	}
	return max
}

// NetMovement returns debits minus credits for an account over all
// posted entries
func (m *BalanceReadModel) NetMovement(accountID uuid.UUID) decimal.Decimal {
	return m.netMovement(accountID, nil)
}

// NetMovementAsOf returns debits minus credits considering only entries
// dated on or before asOf
func (m *BalanceReadModel) NetMovementAsOf(accountID uuid.UUID, asOf time.Time) decimal.Decimal {
	return m.netMovement(accountID, &asOf)
}

func (m *BalanceReadModel) netMovement(accountID uuid.UUID, asOf *time.Time) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	net := decimal.Zero
	for _, p := range m.postings {
		if p.accountID != accountID {
			continue
		}
		if asOf != nil && p.entryDate.After(*asOf) {
			continue
		}
		if p.side == ledger.SideDebit {
			net = net.Add(p.amount)
		} else {
			net = net.Sub(p.amount)
		}
	}
	return net
}

// Balance returns the account's balance oriented to its normal side:
// positive means the account carries a balance on its usual side.
func (m *BalanceReadModel) Balance(account *ledger.Account) decimal.Decimal {
	net := m.NetMovement(account.ID)
	if account.NormalSide() == ledger.SideCredit {
		return net.Neg()
	}
	return net
}

// BalanceAsOf is Balance restricted to entries dated on or before asOf
func (m *BalanceReadModel) BalanceAsOf(account *ledger.Account, asOf time.Time) decimal.Decimal {
	net := m.NetMovementAsOf(account.ID, asOf)
	if account.NormalSide() == ledger.SideCredit {
		return net.Neg()
	}
	return net
}

// TrialBalanceRow is one account's line in a trial balance
type TrialBalanceRow struct {
	AccountID   uuid.UUID       `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType string          `json:"account_type"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// TrialBalanceReport lists every account with activity and its net
// position. TotalDebits always equals TotalCredits: every source entry
// balanced, so the fold preserves the equality.
type TrialBalanceReport struct {
	AsOf         *time.Time        `json:"as_of,omitempty"`
	Rows         []TrialBalanceRow `json:"rows"`
	TotalDebits  decimal.Decimal   `json:"total_debits"`
	TotalCredits decimal.Decimal   `json:"total_credits"`
}

// Balanced returns true when total debits equal total credits
func (r TrialBalanceReport) Balanced() bool {
	return r.TotalDebits.Equal(r.TotalCredits)
}

// TrialBalance builds a trial balance over all posted entries
func (m *BalanceReadModel) TrialBalance(chart *ledger.ChartOfAccounts) TrialBalanceReport {
	return m.trialBalance(chart, nil)
}

// TrialBalanceAsOf builds a trial balance over entries dated on or
// before asOf
func (m *BalanceReadModel) TrialBalanceAsOf(chart *ledger.ChartOfAccounts, asOf time.Time) TrialBalanceReport {
	return m.trialBalance(chart, &asOf)
}

func (m *BalanceReadModel) trialBalance(chart *ledger.ChartOfAccounts, asOf *time.Time) TrialBalanceReport {
	m.mu.RLock()
	nets := make(map[uuid.UUID]decimal.Decimal)
	for _, p := range m.postings {
		if asOf != nil && p.entryDate.After(*asOf) {
			continue
		}
		if p.side == ledger.SideDebit {
			nets[p.accountID] = nets[p.accountID].Add(p.amount)
		} else {
			nets[p.accountID] = nets[p.accountID].Sub(p.amount)
		}
	}
	m.mu.RUnlock()

	report := TrialBalanceReport{
		AsOf:         asOf,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for accountID, net := range nets {
		row := TrialBalanceRow{
			AccountID: accountID,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
		}
		if account, err := chart.Get(accountID); err == nil {
			row.AccountCode = account.Code
			row.AccountName = account.Name
			row.AccountType = account.Type.String()
		}
		if net.IsPositive() {
			row.Debit = net
		} else {
			row.Credit = net.Neg()
		}
		report.TotalDebits = report.TotalDebits.Add(row.Debit)
		report.TotalCredits = report.TotalCredits.Add(row.Credit)
		report.Rows = append(report.Rows, row)
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].AccountCode < report.Rows[j].AccountCode
	})
	return report
}

// Ensure BalanceReadModel implements Projection
var _ Projection = (*BalanceReadModel)(nil)
