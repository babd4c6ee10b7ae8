package segmentation

import (
	"math"
	"strconv"
	"strings"

	"github.com/ignite/audience-segments/internal/domain"
)

// UIFilter is the form-friendly filter shape used by the segment builder.
// Scalar values are strings and operators use the UI vocabulary.
type UIFilter struct {
	FilterType    domain.FilterType `json:"filter_type"`
	Operator      string            `json:"operator"`
	ThirdOperator string            `json:"third_operator,omitempty"`
	Value         map[string]any    `json:"value"`
	Connector     *string           `json:"connector"`
}

var uiToAPIOperators = map[string]Operator{
	"is_more_than":           OpIsMoreThan,
	"is_less_than":           OpIsLessThan,
	"is_equal_to":            OpIs,
	"is_not":                 OpIsNot,
	"has_bought":             OpHasBought,
	"has_not_yet_bought":     OpHasNotBought,
	"joining":                OpIsAfter,
	"affiliation":            OpIsAfter,
	"following":              OpIsAfter,
	"purchase":               OpIsAfter,
	"has_opened_in_last":     OpInLast,
	"has_not_opened_in_last": OpNotInLast,
	"is_affiliated_to":       OpIs,
	"is_member_of":           OpIs,
}

var apiToUIOperators = map[Operator]string{
	OpIsMoreThan:   "is_more_than",
	OpIsLessThan:   "is_less_than",
	OpIs:           "is_equal_to",
	OpIsNot:        "is_not",
	OpHasBought:    "has_bought",
	OpHasNotBought: "has_not_yet_bought",
	OpIsAfter:      "joining",
	OpInLast:       "has_opened_in_last",
	OpNotInLast:    "has_not_opened_in_last",
}

// UI value keys that are converted rather than copied.
const (
	uiAmount    = "amount"
	uiMinAmount = "min_amount"
	uiMaxAmount = "max_amount"
)

var defaultThirdOperators = map[domain.FilterType]string{
	domain.FilterDate:    "is_after",
	domain.FilterProduct: "all",
}

// ToAPI converts a UI filter into its canonical form. Dollar amounts become
// integer cents and day counts become integers; values that cannot be
// converted are dropped.
func ToAPI(ui UIFilter) domain.FilterSpec {
	config := domain.FilterConfig{}
	for key, v := range ui.Value {
		switch key {
		case uiAmount, uiMinAmount, uiMaxAmount, KeyDays, KeyOperator:
			continue
		}
		config[key] = v
	}

	if cents, ok := dollarsToCents(ui.Value[uiAmount]); ok {
		config[KeyAmountCents] = cents
	}
	if cents, ok := dollarsToCents(ui.Value[uiMinAmount]); ok {
		config[KeyMinAmountCents] = cents
	}
	if cents, ok := dollarsToCents(ui.Value[uiMaxAmount]); ok {
		config[KeyMaxAmountCents] = cents
	}
	if days, ok := parseDays(ui.Value[KeyDays]); ok {
		config[KeyDays] = days
	}

	op, mapped := uiToAPIOperators[ui.Operator]
	switch {
	case mapped:
	case ui.Operator != "" && ui.Operator != "undefined":
		op = Operator(ui.Operator)
	default:
		op = OpIs
	}
	if ui.FilterType == domain.FilterDate && op == OpIsAfter && ui.ThirdOperator == string(OpIsBefore) {
		op = OpIsBefore
	}
	config[KeyOperator] = string(op)

	return domain.FilterSpec{FilterType: ui.FilterType, Config: config}
}

// ToUI converts a canonical filter into the UI shape. index is the filter's
// position within its group and decides the connector.
func ToUI(f domain.FilterSpec, index int) UIFilter {
	value := map[string]any{}
	for key, v := range f.Config {
		switch key {
		case KeyOperator, uiAmount, KeyAmountCents, KeyMinAmountCents, KeyMaxAmountCents, KeyDays:
			continue
		}
		value[key] = v
	}

	if dollars, ok := asFloat(f.Config[uiAmount]); ok {
		value[uiAmount] = formatNumber(dollars)
	}
	if cents, ok := intField(f.Config, KeyAmountCents); ok {
		value[uiAmount] = centsToDollars(cents)
	}
	if cents, ok := intField(f.Config, KeyMinAmountCents); ok {
		value[uiMinAmount] = centsToDollars(cents)
	}
	if cents, ok := intField(f.Config, KeyMaxAmountCents); ok {
		value[uiMaxAmount] = centsToDollars(cents)
	}
	if days, ok := intField(f.Config, KeyDays); ok {
		value[KeyDays] = strconv.FormatInt(days, 10)
	}

	op := operatorOf(f.Config)
	if op == "" {
		op = OpIs
	}
	ui := UIFilter{
		FilterType:    f.FilterType,
		ThirdOperator: defaultThirdOperators[f.FilterType],
		Value:         value,
	}
	if f.FilterType == domain.FilterDate && op == OpIsBefore {
		ui.Operator = apiToUIOperators[OpIsAfter]
		ui.ThirdOperator = string(OpIsBefore)
	} else if uiOp, ok := apiToUIOperators[op]; ok {
		ui.Operator = uiOp
	} else {
		ui.Operator = "is_equal_to"
	}
	if index > 0 {
		and := "and"
		ui.Connector = &and
	}
	return ui
}

func dollarsToCents(v any) (int64, bool) {
	var dollars float64
	switch x := v.(type) {
	case string:
		s := strings.TrimPrefix(strings.TrimSpace(x), "$")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		dollars = f
	default:
		f, ok := asFloat(v)
		if !ok {
			return 0, false
		}
		dollars = f
	}
	cents := math.Round(dollars * 100)
	if !fitsInt64(cents) {
		return 0, false
	}
	return int64(cents), true
}

func parseDays(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && fitsInt64(f) {
			return int64(f), true
		}
		return 0, false
	default:
		if f, ok := asFloat(v); ok && fitsInt64(f) {
			return int64(f), true
		}
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		if n, ok := asInt(v); ok {
			return float64(n), true
		}
		return 0, false
	}
}

func centsToDollars(cents int64) string {
	return formatNumber(float64(cents) / 100)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
