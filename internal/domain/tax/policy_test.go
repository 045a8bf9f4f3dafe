package tax

import (
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(category, amount string) TaxableItem {
	return TaxableItem{
		Description: category + " item",
		Category:    category,
		Amount:      valueobject.MustMoneyFromString(amount, valueobject.USD),
	}
}

func rate(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEvaluate_SingleRule(t *testing.T) {
	payable := uuid.New()
	cfg := JurisdictionConfig{
		Key: "US-CA",
		Rules: []Rule{
			{Key: "SALES_TAX", Name: "Sales Tax 7.25%", Rate: rate("0.0725"), PayableAccountID: payable},
		},
	}

	lines, err := Evaluate([]TaxableItem{item("STANDARD", "100.00"), item("STANDARD", "50.00")}, cfg)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	// 150 * 0.0725 = 10.875, rounded half-up to 10.88
	assert.Equal(t, "SALES_TAX", lines[0].RuleKey)
	assert.Equal(t, payable, lines[0].PayableAccountID)
	assert.Equal(t, "10.88", lines[0].Amount.StringFixed(2))
}

func TestEvaluate_RoundsOncePerLine(t *testing.T) {
	cfg := JurisdictionConfig{
		Key: "X",
		Rules: []Rule{
			{Key: "T", Name: "T", Rate: rate("0.10"), PayableAccountID: uuid.New()},
		},
	}

	// Three items of 0.14 at 10%: per-item tax is 0.014. Rounding each
	// item would give 0.03; rounding the line total once gives 0.04.
	items := []TaxableItem{item("A", "0.14"), item("B", "0.14"), item("C", "0.14")}
	lines, err := Evaluate(items, cfg)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "0.04", lines[0].Amount.StringFixed(2))
}

func TestEvaluate_Exemption(t *testing.T) {
	cfg := JurisdictionConfig{
		Key: "X",
		Rules: []Rule{
			{
				Key:              "VAT",
				Name:             "VAT 10%",
				Rate:             rate("0.10"),
				PayableAccountID: uuid.New(),
				Exempt:           ExemptCategories("BOOKS", "FOOD"),
			},
		},
	}

	items := []TaxableItem{item("BOOKS", "100.00"), item("STANDARD", "200.00")}
	lines, err := Evaluate(items, cfg)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "20.00", lines[0].Amount.StringFixed(2))
}

func TestEvaluate_Compounding(t *testing.T) {
	cfg := JurisdictionConfig{
		Key: "CA-QC",
		Rules: []Rule{
			{Key: "GST", Name: "GST 5%", Rate: rate("0.05"), Compounding: true, PayableAccountID: uuid.New()},
			{Key: "QST", Name: "QST 9.975%", Rate: rate("0.09975"), PayableAccountID: uuid.New()},
		},
	}

	lines, err := Evaluate([]TaxableItem{item("STANDARD", "100.00")}, cfg)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// GST: 100 * 0.05 = 5.00; QST applies to the compounded base 105:
	// 105 * 0.09975 = 10.47375 -> 10.47
	assert.Equal(t, "5.00", lines[0].Amount.StringFixed(2))
	assert.Equal(t, "10.47", lines[1].Amount.StringFixed(2))
}

func TestEvaluate_CompoundingSkipsExemptItems(t *testing.T) {
	cfg := JurisdictionConfig{
		Key: "X",
		Rules: []Rule{
			{Key: "A", Name: "A", Rate: rate("0.10"), Compounding: true, PayableAccountID: uuid.New(), Exempt: ExemptCategories("BOOKS")},
			{Key: "B", Name: "B", Rate: rate("0.10"), PayableAccountID: uuid.New()},
		},
	}

	// The exempt item's base is never inflated by rule A
	items := []TaxableItem{item("BOOKS", "100.00"), item("STANDARD", "100.00")}
	lines, err := Evaluate(items, cfg)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "10.00", lines[0].Amount.StringFixed(2))
	// Rule B: books base stays 100, standard base compounded to 110
	assert.Equal(t, "21.00", lines[1].Amount.StringFixed(2))
}

func TestEvaluate_Deterministic(t *testing.T) {
	cfg := JurisdictionConfig{
		Key: "X",
		Rules: []Rule{
			{Key: "A", Name: "A", Rate: rate("0.0725"), Compounding: true, PayableAccountID: uuid.New()},
			{Key: "B", Name: "B", Rate: rate("0.033"), PayableAccountID: uuid.New()},
		},
	}
	items := []TaxableItem{item("STANDARD", "123.457"), item("OTHER", "0.01")}

	first, err := Evaluate(items, cfg)
	require.NoError(t, err)
	second, err := Evaluate(items, cfg)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Amount.Equals(second[i].Amount))
	}
}

func TestEvaluate_EdgeCases(t *testing.T) {
	t.Run("no items yields no lines", func(t *testing.T) {
		lines, err := Evaluate(nil, JurisdictionConfig{Key: "X", Rules: []Rule{{Key: "A", Rate: rate("0.1")}}})
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("no rules yields no lines", func(t *testing.T) {
		lines, err := Evaluate([]TaxableItem{item("STANDARD", "100.00")}, JurisdictionConfig{Key: "X"})
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("all items exempt yields zero line", func(t *testing.T) {
		cfg := JurisdictionConfig{
			Key:   "X",
			Rules: []Rule{{Key: "A", Name: "A", Rate: rate("0.1"), Exempt: ExemptCategories("BOOKS")}},
		}
		lines, err := Evaluate([]TaxableItem{item("BOOKS", "100.00")}, cfg)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.True(t, lines[0].Amount.IsZero())
	})

	t.Run("mixed currencies rejected", func(t *testing.T) {
		items := []TaxableItem{
			item("A", "100.00"),
			{Category: "B", Amount: valueobject.MustMoneyFromString("100.00", valueobject.EUR)},
		}
		_, err := Evaluate(items, JurisdictionConfig{Key: "X"})
		assert.ErrorIs(t, err, shared.ErrMixedCurrencies)
	})

	t.Run("negative base rejected", func(t *testing.T) {
		_, err := Evaluate([]TaxableItem{item("A", "-1.00")}, JurisdictionConfig{Key: "X"})
		assert.Error(t, err)
	})
}

func TestTotal(t *testing.T) {
	lines := []Line{
		{Amount: valueobject.MustMoneyFromString("5.00", valueobject.USD)},
		{Amount: valueobject.MustMoneyFromString("10.47", valueobject.USD)},
	}
	total := Total(lines, valueobject.USD)
	assert.Equal(t, "15.47", total.StringFixed(2))

	assert.True(t, Total(nil, valueobject.USD).IsZero())
}

func TestPolicyRegistry(t *testing.T) {
	registry := NewPolicyRegistry()

	_, err := registry.Get("NOWHERE")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	registry.Register(JurisdictionConfig{Key: "US-CA", Rules: []Rule{{Key: "SALES_TAX", Rate: rate("0.0725")}}})
	registry.Register(JurisdictionConfig{Key: "DE", Rules: []Rule{{Key: "VAT", Rate: rate("0.19")}}})

	cfg, err := registry.Get("US-CA")
	require.NoError(t, err)
	assert.Len(t, cfg.Rules, 1)

	assert.ElementsMatch(t, []string{"US-CA", "DE"}, registry.Keys())

	// Re-registering replaces the previous configuration
	registry.Register(JurisdictionConfig{Key: "DE", Rules: nil})
	cfg, err = registry.Get("DE")
	require.NoError(t, err)
	assert.Empty(t, cfg.Rules)
}
