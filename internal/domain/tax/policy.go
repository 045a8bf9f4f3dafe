package tax

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxableItem is the evaluator's view of an invoice line item
type TaxableItem struct {
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Amount      valueobject.Money `json:"amount"` // Taxable base (quantity * unit price)
}

// Predicate decides whether a rule exempts a given item.
// A nil predicate exempts nothing.
type Predicate func(item TaxableItem) bool

// ExemptCategories returns a predicate exempting items in any of the
// given categories
func ExemptCategories(categories ...string) Predicate {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return func(item TaxableItem) bool {
		return set[item.Category]
	}
}

// Rule is a single externally supplied tax rule. Rules are read-only to
// the core; rates and accounts come from jurisdiction configuration.
type Rule struct {
	Key              string          // Stable identifier, e.g. "VAT_STANDARD"
	Name             string          // Display name for the tax line memo
	Rate             decimal.Decimal // e.g. 0.15 for 15%
	Compounding      bool            // This rule's tax joins the base for later rules
	PayableAccountID uuid.UUID       // Liability account credited on approval
	Exempt           Predicate       // Items matching are skipped for this rule
}

// JurisdictionConfig is the ordered rule set for one jurisdiction.
// Rule order is significant when compounding is involved.
type JurisdictionConfig struct {
	Key   string
	Rules []Rule
}

// Line is one computed tax line. Amount is rounded half-up to two decimal
// places exactly once, at line level, so replayed evaluations are
// bit-identical to live ones.
type Line struct {
	RuleKey          string            `json:"rule_key"`
	RuleName         string            `json:"rule_name"`
	PayableAccountID uuid.UUID         `json:"payable_account_id"`
	Rate             decimal.Decimal   `json:"rate"`
	Amount           valueobject.Money `json:"amount"`
}

// Evaluate computes tax lines for the given items under a jurisdiction's
// rules. It is a pure function: no mutable state, no I/O, and identical
// inputs always produce identical lines.
//
// Per-item bases are carried unrounded between rules; only the line total
// for each rule is rounded. A compounding rule's per-item tax is added to
// that item's base before later rules are applied.
func Evaluate(items []TaxableItem, cfg JurisdictionConfig) ([]Line, error) {
	if len(items) == 0 {
		return []Line{}, nil
	}

	currency := items[0].Amount.Currency()
	for _, item := range items {
		if item.Amount.Currency() != currency {
			return nil, shared.ErrMixedCurrencies
		}
		if item.Amount.IsNegative() {
			return nil, shared.NewDomainError("INVALID_AMOUNT", "Taxable base cannot be negative")
		}
	}

	bases := make([]decimal.Decimal, len(items))
	for i, item := range items {
		bases[i] = item.Amount.Amount()
	}

	lines := make([]Line, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		lineTotal := decimal.Zero
		for i, item := range items {
			if rule.Exempt != nil && rule.Exempt(item) {
				continue
			}
			itemTax := bases[i].Mul(rule.Rate)
			lineTotal = lineTotal.Add(itemTax)
			if rule.Compounding {
				bases[i] = bases[i].Add(itemTax)
			}
		}

		amount, err := valueobject.NewMoney(lineTotal.Round(2), currency)
		if err != nil {
			return nil, err
		}
		lines = append(lines, Line{
			RuleKey:          rule.Key,
			RuleName:         rule.Name,
			PayableAccountID: rule.PayableAccountID,
			Rate:             rule.Rate,
			Amount:           amount,
		})
	}

	return lines, nil
}

// Total sums the amounts of a set of tax lines
func Total(lines []Line, currency valueobject.Currency) valueobject.Money {
	total := valueobject.Zero(currency)
	for _, line := range lines {
		total = total.MustAdd(line.Amount)
	}
	return total
}
