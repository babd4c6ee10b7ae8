// Package segmentation evaluates audience segments: OR-combinations of filter
// groups, each an AND-combination of typed filter predicates over the
// audience member table.
package segmentation

import "github.com/ignite/audience-segments/internal/domain"

// ==========================================
// OPERATORS
// ==========================================

// Operator is a canonical (API/storage) filter operator.
type Operator string

const (
	// Date operators
	OpIsAfter  Operator = "is_after"
	OpIsBefore Operator = "is_before"
	OpBetween  Operator = "between"

	// Product operators
	OpHasBought    Operator = "has_bought"
	OpHasNotBought Operator = "has_not_bought"

	// Payment operators
	OpIsMoreThan Operator = "is_more_than"
	OpIsLessThan Operator = "is_less_than"
	OpIsBetween  Operator = "is_between"

	// Location operators
	OpIs    Operator = "is"
	OpIsNot Operator = "is_not"

	// Email engagement operators
	OpInLast    Operator = "in_last"
	OpNotInLast Operator = "not_in_last"
)

// ==========================================
// CONFIG KEYS
// ==========================================

const (
	KeyOperator       = "operator"
	KeyDate           = "date"
	KeyStartDate      = "start_date"
	KeyEndDate        = "end_date"
	KeyProductIDs     = "product_ids"
	KeyAmountCents    = "amount_cents"
	KeyMinAmountCents = "min_amount_cents"
	KeyMaxAmountCents = "max_amount_cents"
	KeyCountry        = "country"
	KeyRegion         = "region"
	KeyCity           = "city"
	KeyDays           = "days"
	KeyEngagementType = "engagement_type"
)

// OperatorMetadata describes one operator of one filter type.
type OperatorMetadata struct {
	FilterType domain.FilterType `json:"filter_type"`
	Operator   Operator          `json:"operator"`
	Label      string            `json:"label"`
	Required   []string          `json:"required"`
}

var operatorCatalog = []OperatorMetadata{
	{domain.FilterDate, OpIsAfter, "Is after", []string{KeyDate}},
	{domain.FilterDate, OpIsBefore, "Is before", []string{KeyDate}},
	{domain.FilterDate, OpBetween, "Is between", []string{KeyStartDate, KeyEndDate}},

	{domain.FilterProduct, OpHasBought, "Has bought", []string{KeyProductIDs}},
	{domain.FilterProduct, OpHasNotBought, "Has not yet bought", []string{KeyProductIDs}},

	{domain.FilterPayment, OpIsMoreThan, "Is more than", []string{KeyAmountCents}},
	{domain.FilterPayment, OpIsLessThan, "Is less than", []string{KeyAmountCents}},
	{domain.FilterPayment, OpIsBetween, "Is between", []string{KeyMinAmountCents, KeyMaxAmountCents}},

	{domain.FilterLocation, OpIs, "Is", []string{KeyCountry}},
	{domain.FilterLocation, OpIsNot, "Is not", []string{KeyCountry}},

	{domain.FilterEmailEngagement, OpInLast, "Has opened in the last", []string{KeyDays}},
	{domain.FilterEmailEngagement, OpNotInLast, "Has not opened in the last", []string{KeyDays}},
}

// allowedKeys lists every config key a filter type may carry.
var allowedKeys = map[domain.FilterType][]string{
	domain.FilterDate:            {KeyOperator, KeyDate, KeyStartDate, KeyEndDate},
	domain.FilterProduct:         {KeyOperator, KeyProductIDs},
	domain.FilterPayment:         {KeyOperator, KeyAmountCents, KeyMinAmountCents, KeyMaxAmountCents},
	domain.FilterLocation:        {KeyOperator, KeyCountry, KeyRegion, KeyCity},
	domain.FilterEmailEngagement: {KeyOperator, KeyDays, KeyEngagementType},
}

// GetOperatorMetadata returns metadata for all operators.
func GetOperatorMetadata() []OperatorMetadata {
	out := make([]OperatorMetadata, len(operatorCatalog))
	copy(out, operatorCatalog)
	return out
}

// GetAvailableOperators returns operators available for a filter type.
func GetAvailableOperators(filterType domain.FilterType) []OperatorMetadata {
	var operators []OperatorMetadata
	for _, meta := range operatorCatalog {
		if meta.FilterType == filterType {
			operators = append(operators, meta)
		}
	}
	return operators
}

func getOperatorMeta(filterType domain.FilterType, op Operator) *OperatorMetadata {
	for i := range operatorCatalog {
		if operatorCatalog[i].FilterType == filterType && operatorCatalog[i].Operator == op {
			return &operatorCatalog[i]
		}
	}
	return nil
}

// KnownFilterType reports whether t is a supported filter type.
func KnownFilterType(t domain.FilterType) bool {
	_, ok := allowedKeys[t]
	return ok
}
