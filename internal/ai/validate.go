package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/segmentation"
)

var aiOperators = map[domain.FilterType][]string{
	domain.FilterDate:            {"is_after", "is_before", "between"},
	domain.FilterPayment:         {"is_more_than", "is_less_than", "is_between"},
	domain.FilterLocation:        {"is", "is_not"},
	domain.FilterProduct:         {"has_bought", "has_not_bought"},
	domain.FilterEmailEngagement: {"in_last", "not_in_last"},
}

// ParseFilterGroups parses a model response into filter group specs. The
// whole response is rejected if any part of it is malformed. Keys a filter
// type does not know are dropped, groups without filters are dropped, and
// every remaining filter must pass the same schema check as a saved one.
func ParseFilterGroups(content string) ([]domain.FilterGroupSpec, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripCodeFence(content))))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrUnparseable)
	}
	return validateResponse(raw)
}

func validateResponse(raw any) ([]domain.FilterGroupSpec, error) {
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("response is not an object")
	}
	groups, ok := root["filter_groups"].([]any)
	if !ok {
		return nil, invalid("filter_groups is not an array")
	}
	if len(groups) == 0 {
		return nil, invalid("filter_groups is empty")
	}

	out := make([]domain.FilterGroupSpec, 0, len(groups))
	for gi, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			return nil, invalid("filter_groups[%d] is not an object", gi)
		}
		name, ok := group["name"].(string)
		if !ok {
			return nil, invalid("filter_groups[%d].name is not a string", gi)
		}
		filters, ok := group["filters"].([]any)
		if !ok {
			return nil, invalid("filter_groups[%d].filters is not an array", gi)
		}

		spec := domain.FilterGroupSpec{Name: strings.TrimSpace(name), Filters: make([]domain.FilterSpec, 0, len(filters))}
		for fi, f := range filters {
			filter, err := validateFilter(f)
			if err != nil {
				return nil, invalid("filter_groups[%d].filters[%d]: %v", gi, fi, err)
			}
			spec.Filters = append(spec.Filters, filter)
		}
		if len(spec.Filters) == 0 {
			continue
		}
		out = append(out, spec)
	}
	if len(out) == 0 {
		return nil, invalid("no filter group has filters")
	}
	return out, nil
}

func validateFilter(f any) (domain.FilterSpec, error) {
	filter, ok := f.(map[string]any)
	if !ok {
		return domain.FilterSpec{}, fmt.Errorf("not an object")
	}
	typeName, ok := filter["filter_type"].(string)
	if !ok {
		return domain.FilterSpec{}, fmt.Errorf("filter_type is not a string")
	}
	filterType := domain.FilterType(typeName)
	operators, known := aiOperators[filterType]
	if !known {
		return domain.FilterSpec{}, fmt.Errorf("unknown filter_type %q", typeName)
	}
	config, ok := filter["config"].(map[string]any)
	if !ok {
		return domain.FilterSpec{}, fmt.Errorf("config is not an object")
	}
	op, _ := config["operator"].(string)
	if !containsString(operators, op) {
		return domain.FilterSpec{}, fmt.Errorf("operator %q is not valid for %s", op, typeName)
	}

	var err error
	switch filterType {
	case domain.FilterDate:
		if op == "between" {
			err = requirePresent(config, "start_date", "end_date")
		} else {
			err = requirePresent(config, "date")
		}
	case domain.FilterPayment:
		if op == "is_between" {
			err = requireIntegers(config, 0, "min_amount_cents", "max_amount_cents")
		} else {
			err = requireIntegers(config, 0, "amount_cents")
		}
	case domain.FilterLocation:
		err = requirePresent(config, "country")
	case domain.FilterProduct:
		err = requireStringList(config, "product_ids")
	case domain.FilterEmailEngagement:
		err = requireIntegers(config, 1, "days")
	}
	if err != nil {
		return domain.FilterSpec{}, err
	}

	clean := segmentation.SanitizeConfig(filterType, normalizeConfig(config))
	if errs := segmentation.ValidateFilter(filterType, clean); len(errs) > 0 {
		return domain.FilterSpec{}, errors.New(segmentation.JoinFieldErrors(errs))
	}
	return domain.FilterSpec{FilterType: filterType, Config: clean}, nil
}

func requirePresent(config map[string]any, keys ...string) error {
	for _, key := range keys {
		s, ok := config[key].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	return nil
}

func requireIntegers(config map[string]any, min int64, keys ...string) error {
	for _, key := range keys {
		n, ok := config[key].(json.Number)
		if !ok || strings.ContainsAny(n.String(), ".eE") {
			return fmt.Errorf("%s must be an integer", key)
		}
		v, err := n.Int64()
		if err != nil || v < min {
			return fmt.Errorf("%s must be an integer of at least %d", key, min)
		}
	}
	return nil
}

func requireStringList(config map[string]any, key string) error {
	list, ok := config[key].([]any)
	if !ok || len(list) == 0 {
		return fmt.Errorf("%s must be a non-empty array of strings", key)
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s must be a non-empty array of strings", key)
		}
	}
	return nil
}

// normalizeConfig replaces json.Number values with int64 or float64 so the
// config looks like any other decoded config.
func normalizeConfig(config map[string]any) domain.FilterConfig {
	out := make(domain.FilterConfig, len(config))
	for k, v := range config {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidResponse}, args...)...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
