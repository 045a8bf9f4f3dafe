package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountType classifies an account in the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is a valid AccountType
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// String returns the string representation of AccountType
func (t AccountType) String() string {
	return string(t)
}

// NormalSide returns the side on which this account type normally carries
// its balance: assets and expenses are debit-normal, the rest credit-normal.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Side represents the debit or credit side of a journal line
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// IsValid checks if the side is valid
func (s Side) IsValid() bool {
	return s == SideDebit || s == SideCredit
}

// String returns the string representation of Side
func (s Side) String() string {
	return string(s)
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// Account is reference data in the chart of accounts. It is not an event
// stream: once referenced by a posted line only the Active flag may change.
type Account struct {
	ID       uuid.UUID   `json:"id"`
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Type     AccountType `json:"type"`
	ParentID *uuid.UUID  `json:"parent_id,omitempty"`
	Active   bool        `json:"active"`
}

// NewAccount creates a new active account
func NewAccount(code, name string, accountType AccountType, parentID *uuid.UUID) (*Account, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_NAME", "Account name cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_TYPE", "Account type is not valid")
	}
	return &Account{
		ID:       uuid.New(),
		Code:     code,
		Name:     name,
		Type:     accountType,
		ParentID: parentID,
		Active:   true,
	}, nil
}

// NormalSide returns the account's normal balance side
func (a *Account) NormalSide() Side {
	return a.Type.NormalSide()
}
