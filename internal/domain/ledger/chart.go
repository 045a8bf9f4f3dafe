package ledger

import (
	"fmt"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ChartOfAccounts is an in-memory index of accounts keyed by ID and code.
// The parent relation is a tree: a child holds a parent-id reference and no
// back-pointer is stored on the parent, so cycles can only be introduced by
// re-parenting, which Register rejects by walking the parent chain.
type ChartOfAccounts struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Account
	byCode map[string]*Account
}

// NewChartOfAccounts creates an empty chart of accounts
func NewChartOfAccounts() *ChartOfAccounts {
	return &ChartOfAccounts{
		byID:   make(map[uuid.UUID]*Account),
		byCode: make(map[string]*Account),
	}
}

// Register adds an account to the chart.
// The parent, when given, must already be registered.
func (c *ChartOfAccounts) Register(account *Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[account.ID]; ok {
		return shared.ErrAlreadyExists
	}
	if _, ok := c.byCode[account.Code]; ok {
		return shared.NewDomainError("DUPLICATE_ACCOUNT_CODE",
			fmt.Sprintf("Account code %s is already registered", account.Code))
	}
	if account.ParentID != nil {
		if err := c.checkParentChain(account.ID, *account.ParentID); err != nil {
			return err
		}
	}

	c.byID[account.ID] = account
	c.byCode[account.Code] = account
	return nil
}

// checkParentChain verifies the parent exists and that following parent
// references from it never reaches childID. Caller must hold the lock.
func (c *ChartOfAccounts) checkParentChain(childID, parentID uuid.UUID) error {
	current := parentID
	for {
		if current == childID {
			return shared.NewDomainError("ACCOUNT_CYCLE",
				"Account parent chain would form a cycle")
		}
		parent, ok := c.byID[current]
		if !ok {
			return shared.NewDomainError("PARENT_NOT_FOUND",
				fmt.Sprintf("Parent account %s is not registered", current))
		}
		if parent.ParentID == nil {
			return nil
		}
		current = *parent.ParentID
	}
}

// Get returns the account with the given ID
func (c *ChartOfAccounts) Get(id uuid.UUID) (*Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	account, ok := c.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

// GetByCode returns the account with the given code
func (c *ChartOfAccounts) GetByCode(code string) (*Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	account, ok := c.byCode[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

// RequireActive returns the account only if it exists and is active
func (c *ChartOfAccounts) RequireActive(id uuid.UUID) (*Account, error) {
	account, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, shared.NewDomainError("ACCOUNT_INACTIVE",
			fmt.Sprintf("Account %s is deactivated", account.Code))
	}
	return account, nil
}

// Deactivate marks an account inactive. Existing posted lines keep
// referencing it; new postings are rejected by RequireActive.
func (c *ChartOfAccounts) Deactivate(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	account, ok := c.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	account.Active = false
	return nil
}

// Activate re-enables a deactivated account
func (c *ChartOfAccounts) Activate(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	account, ok := c.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	account.Active = true
	return nil
}

// All returns a snapshot of every registered account
func (c *ChartOfAccounts) All() []*Account {
	c.mu.RLock()
	defer c.mu.RUnlock()

	accounts := make([]*Account, 0, len(c.byID))
	for _, account := range c.byID {
		accounts = append(accounts, account)
	}
	return accounts
}
