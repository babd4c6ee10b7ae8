package segmentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-segments/internal/domain"
)

func TestToAPIOperatorTable(t *testing.T) {
	for uiOp, want := range uiToAPIOperators {
		spec := ToAPI(UIFilter{FilterType: domain.FilterLocation, Operator: uiOp, Value: map[string]any{}})
		assert.Equal(t, string(want), spec.Config[KeyOperator], uiOp)
	}

	passthrough := ToAPI(UIFilter{FilterType: domain.FilterDate, Operator: "between", Value: map[string]any{}})
	assert.Equal(t, "between", passthrough.Config[KeyOperator])
}

func TestToAPINumericCoercion(t *testing.T) {
	spec := ToAPI(UIFilter{
		FilterType: domain.FilterPayment,
		Operator:   "is_more_than",
		Value:      map[string]any{"amount": "19.99"},
	})
	assert.Equal(t, domain.FilterPayment, spec.FilterType)
	assert.Equal(t, domain.FilterConfig{"operator": "is_more_than", "amount_cents": int64(1999)}, spec.Config)

	between := ToAPI(UIFilter{
		FilterType: domain.FilterPayment,
		Operator:   "is_between",
		Value:      map[string]any{"min_amount": "$5", "max_amount": 12.5},
	})
	assert.Equal(t, int64(500), between.Config[KeyMinAmountCents])
	assert.Equal(t, int64(1250), between.Config[KeyMaxAmountCents])

	days := ToAPI(UIFilter{
		FilterType: domain.FilterEmailEngagement,
		Operator:   "has_opened_in_last",
		Value:      map[string]any{"days": "14"},
	})
	assert.Equal(t, domain.FilterConfig{"operator": "in_last", "days": int64(14)}, days.Config)
}

func TestToAPIDropsUnconvertibleValues(t *testing.T) {
	spec := ToAPI(UIFilter{
		FilterType: domain.FilterPayment,
		Operator:   "is_less_than",
		Value:      map[string]any{"amount": "a lot", "days": ""},
	})
	assert.Equal(t, domain.FilterConfig{"operator": "is_less_than"}, spec.Config)

	outOfRange := ToAPI(UIFilter{
		FilterType: domain.FilterPayment,
		Operator:   "is_more_than",
		Value:      map[string]any{"amount": "100000000000000000"},
	})
	assert.Equal(t, domain.FilterConfig{"operator": "is_more_than"}, outOfRange.Config)

	hugeDays := ToAPI(UIFilter{
		FilterType: domain.FilterEmailEngagement,
		Operator:   "has_opened_in_last",
		Value:      map[string]any{"days": 1e30},
	})
	assert.Equal(t, domain.FilterConfig{"operator": "in_last"}, hugeDays.Config)

	noOperator := ToAPI(UIFilter{FilterType: domain.FilterLocation, Operator: "undefined", Value: map[string]any{"country": "FR"}})
	assert.Equal(t, domain.FilterConfig{"operator": "is", "country": "FR"}, noOperator.Config)
}

func TestToAPIDateThirdOperator(t *testing.T) {
	spec := ToAPI(UIFilter{
		FilterType:    domain.FilterDate,
		Operator:      "joining",
		ThirdOperator: "is_before",
		Value:         map[string]any{"date": "2025-05-01"},
	})
	assert.Equal(t, domain.FilterConfig{"operator": "is_before", "date": "2025-05-01"}, spec.Config)
}

func TestToUI(t *testing.T) {
	ui := ToUI(domain.FilterSpec{
		FilterType: domain.FilterPayment,
		Config:     domain.FilterConfig{"operator": "is_between", "min_amount_cents": float64(1050), "max_amount_cents": 20000},
	}, 0)
	assert.Equal(t, "is_equal_to", ui.Operator)
	assert.Equal(t, map[string]any{"min_amount": "10.5", "max_amount": "200"}, ui.Value)
	assert.Nil(t, ui.Connector)

	product := ToUI(domain.FilterSpec{
		FilterType: domain.FilterProduct,
		Config:     domain.FilterConfig{"operator": "has_not_bought", "product_ids": []any{"p1"}},
	}, 2)
	assert.Equal(t, "has_not_yet_bought", product.Operator)
	assert.Equal(t, "all", product.ThirdOperator)
	require.NotNil(t, product.Connector)
	assert.Equal(t, "and", *product.Connector)

	before := ToUI(domain.FilterSpec{
		FilterType: domain.FilterDate,
		Config:     domain.FilterConfig{"operator": "is_before", "date": "2025-05-01"},
	}, 0)
	assert.Equal(t, "joining", before.Operator)
	assert.Equal(t, "is_before", before.ThirdOperator)

	after := ToUI(domain.FilterSpec{FilterType: domain.FilterDate, Config: domain.FilterConfig{"operator": "is_after"}}, 0)
	assert.Equal(t, "is_after", after.ThirdOperator)

	unknown := ToUI(domain.FilterSpec{FilterType: domain.FilterLocation, Config: domain.FilterConfig{"operator": "near"}}, 0)
	assert.Equal(t, "is_equal_to", unknown.Operator)
}

func TestTranscodingRoundTrip(t *testing.T) {
	apiConfigs := []domain.FilterSpec{
		{FilterType: domain.FilterPayment, Config: domain.FilterConfig{"operator": "is_more_than", "amount_cents": int64(123456789)}},
		{FilterType: domain.FilterPayment, Config: domain.FilterConfig{"operator": "is_less_than", "amount_cents": int64(1)}},
		{FilterType: domain.FilterLocation, Config: domain.FilterConfig{"operator": "is", "country": "DE"}},
		{FilterType: domain.FilterLocation, Config: domain.FilterConfig{"operator": "is_not", "country": "US"}},
		{FilterType: domain.FilterProduct, Config: domain.FilterConfig{"operator": "has_bought", "product_ids": []any{"p1"}}},
		{FilterType: domain.FilterProduct, Config: domain.FilterConfig{"operator": "has_not_bought", "product_ids": []any{"p2"}}},
		{FilterType: domain.FilterDate, Config: domain.FilterConfig{"operator": "is_after", "date": "2025-01-01"}},
		{FilterType: domain.FilterDate, Config: domain.FilterConfig{"operator": "is_before", "date": "2025-01-01"}},
		{FilterType: domain.FilterEmailEngagement, Config: domain.FilterConfig{"operator": "in_last", "days": int64(30)}},
		{FilterType: domain.FilterEmailEngagement, Config: domain.FilterConfig{"operator": "not_in_last", "days": int64(90)}},
	}
	for _, spec := range apiConfigs {
		assert.Equal(t, spec, ToAPI(ToUI(spec, 0)), "api->ui->api %v", spec.Config)
	}

	for _, uiOperator := range apiToUIOperators {
		ui := UIFilter{
			FilterType: domain.FilterPayment,
			Operator:   uiOperator,
			Value:      map[string]any{"amount": "0.07", "days": "3"},
		}
		back := ToUI(ToAPI(ui), 0)
		assert.Equal(t, uiOperator, back.Operator)
		assert.Equal(t, "0.07", back.Value["amount"])
		assert.Equal(t, "3", back.Value["days"])
	}
}
