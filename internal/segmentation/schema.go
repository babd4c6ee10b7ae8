package segmentation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/audience-segments/internal/domain"
)

// FieldError is a single schema violation on a filter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + " " + e.Message
}

// MaxEngagementDays bounds the email_engagement window. Stored configs above
// it are evaluated as if they asked for the maximum.
const MaxEngagementDays = 36500

var engagementTypes = map[string]bool{"opened": true, "clicked": true, "replied": true, "unsubscribed": true}

// ValidateFilter checks a filter type and config against the per-type schema.
// It returns nil when the filter is storable.
func ValidateFilter(filterType domain.FilterType, config domain.FilterConfig) []FieldError {
	if filterType == "" {
		return []FieldError{{"filter_type", "is required"}}
	}
	if !KnownFilterType(filterType) {
		return []FieldError{{"filter_type", fmt.Sprintf("%q is not a supported filter type", filterType)}}
	}
	if config == nil {
		return []FieldError{{"config", "is required"}}
	}

	var errs []FieldError
	errs = append(errs, unknownKeys(filterType, config)...)

	op := operatorOf(config)
	if op == "" {
		return append(errs, FieldError{"config.operator", "is required"})
	}
	meta := getOperatorMeta(filterType, op)
	if meta == nil {
		return append(errs, FieldError{"config.operator", fmt.Sprintf("%q is not valid for %s filters", op, filterType)})
	}

	switch filterType {
	case domain.FilterDate:
		for _, key := range meta.Required {
			if _, ok := stringField(config, key); !ok {
				errs = append(errs, FieldError{"config." + key, "is required"})
				continue
			}
			if _, ok := dateField(config, key); !ok {
				errs = append(errs, FieldError{"config." + key, "must be a valid date"})
			}
		}
	case domain.FilterPayment:
		for _, key := range meta.Required {
			errs = append(errs, requireInt(config, key, 0)...)
		}
		for _, key := range []string{KeyAmountCents, KeyMinAmountCents, KeyMaxAmountCents} {
			if _, present := config[key]; present && !contains(meta.Required, key) {
				errs = append(errs, requireInt(config, key, 0)...)
			}
		}
	case domain.FilterProduct:
		ids, ok := stringListField(config, KeyProductIDs)
		switch {
		case !ok:
			errs = append(errs, FieldError{"config.product_ids", "must be a list of product identifiers"})
		case len(ids) == 0:
			errs = append(errs, FieldError{"config.product_ids", "must not be empty"})
		}
	case domain.FilterLocation:
		if _, ok := stringField(config, KeyCountry); !ok {
			errs = append(errs, FieldError{"config.country", "is required"})
		}
		for _, key := range []string{KeyRegion, KeyCity} {
			if v, present := config[key]; present && v != nil {
				if _, ok := v.(string); !ok {
					errs = append(errs, FieldError{"config." + key, "must be a string"})
				}
			}
		}
	case domain.FilterEmailEngagement:
		errs = append(errs, requireInt(config, KeyDays, 1)...)
		if n, ok := intField(config, KeyDays); ok && n > MaxEngagementDays {
			errs = append(errs, FieldError{"config.days", fmt.Sprintf("must be less than or equal to %d", MaxEngagementDays)})
		}
		if v, present := config[KeyEngagementType]; present && v != nil {
			s, _ := v.(string)
			if !engagementTypes[s] {
				errs = append(errs, FieldError{"config.engagement_type", "must be one of clicked, opened, replied, unsubscribed"})
			}
		}
	}
	return errs
}

// ValidateGroups validates every filter of every group and prefixes field
// paths with their position, e.g. "filter_groups[0].filters[1].config.date".
func ValidateGroups(groups []domain.FilterGroupSpec) []FieldError {
	var errs []FieldError
	for gi, g := range groups {
		for fi, f := range g.Filters {
			prefix := fmt.Sprintf("filter_groups[%d].filters[%d].", gi, fi)
			for _, fe := range ValidateFilter(f.FilterType, f.Config) {
				errs = append(errs, FieldError{prefix + fe.Field, fe.Message})
			}
		}
	}
	return errs
}

func requireInt(config domain.FilterConfig, key string, min int64) []FieldError {
	if _, present := config[key]; !present {
		return []FieldError{{"config." + key, "is required"}}
	}
	n, ok := intField(config, key)
	if !ok {
		return []FieldError{{"config." + key, "must be an integer"}}
	}
	if n < min {
		return []FieldError{{"config." + key, fmt.Sprintf("must be greater than or equal to %d", min)}}
	}
	return nil
}

func unknownKeys(filterType domain.FilterType, config domain.FilterConfig) []FieldError {
	allowed := allowedKeys[filterType]
	var extra []string
	for key := range config {
		if !contains(allowed, key) {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	errs := make([]FieldError, 0, len(extra))
	for _, key := range extra {
		errs = append(errs, FieldError{"config." + key, "is not allowed for " + string(filterType) + " filters"})
	}
	return errs
}

// SanitizeConfig returns a copy of config holding only the keys the filter
// type understands.
func SanitizeConfig(filterType domain.FilterType, config domain.FilterConfig) domain.FilterConfig {
	allowed := allowedKeys[filterType]
	out := make(domain.FilterConfig, len(config))
	for key, v := range config {
		if contains(allowed, key) {
			out[key] = v
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// JoinFieldErrors renders field errors as one line.
func JoinFieldErrors(errs []FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
