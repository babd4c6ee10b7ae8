package segmentation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/audience-segments/internal/domain"
)

// LegacyFilters are the per-installment/workflow filter columns that predate
// filter groups.
type LegacyFilters struct {
	Owner             domain.OwnerRef
	SellerID          string
	BoughtProducts    []string
	NotBoughtProducts []string
	PaidMoreThanCents *int64
	PaidLessThanCents *int64
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
	BoughtFrom        string
}

// HasAny reports whether any legacy column is set.
func (l LegacyFilters) HasAny() bool {
	return len(l.BoughtProducts) > 0 ||
		len(l.NotBoughtProducts) > 0 ||
		l.PaidMoreThanCents != nil ||
		l.PaidLessThanCents != nil ||
		l.CreatedAfter != nil ||
		l.CreatedBefore != nil ||
		strings.TrimSpace(l.BoughtFrom) != ""
}

// LegacyGroupName is the name given to a group converted from legacy columns.
func LegacyGroupName(owner domain.OwnerRef) string {
	kind := string(owner.Kind)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return fmt.Sprintf("Legacy Filters for %s %s", kind, owner.ID)
}

// ConvertLegacy builds the single filter group equivalent to the legacy
// columns. ok is false when no legacy column is set.
func ConvertLegacy(l LegacyFilters) (spec domain.FilterGroupSpec, ok bool) {
	if !l.HasAny() {
		return domain.FilterGroupSpec{}, false
	}
	spec.Name = LegacyGroupName(l.Owner)

	const isoDate = "2006-01-02"
	switch {
	case l.CreatedAfter != nil && l.CreatedBefore != nil:
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterDate,
			Config: domain.FilterConfig{
				KeyOperator:  string(OpBetween),
				KeyStartDate: l.CreatedAfter.UTC().Format(isoDate),
				KeyEndDate:   l.CreatedBefore.UTC().Format(isoDate),
			},
		})
	case l.CreatedAfter != nil:
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterDate,
			Config:     domain.FilterConfig{KeyOperator: string(OpIsAfter), KeyDate: l.CreatedAfter.UTC().Format(isoDate)},
		})
	case l.CreatedBefore != nil:
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterDate,
			Config:     domain.FilterConfig{KeyOperator: string(OpIsBefore), KeyDate: l.CreatedBefore.UTC().Format(isoDate)},
		})
	}

	if len(l.BoughtProducts) > 0 {
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterProduct,
			Config:     domain.FilterConfig{KeyOperator: string(OpHasBought), KeyProductIDs: toAnyList(l.BoughtProducts)},
		})
	}
	if len(l.NotBoughtProducts) > 0 {
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterProduct,
			Config:     domain.FilterConfig{KeyOperator: string(OpHasNotBought), KeyProductIDs: toAnyList(l.NotBoughtProducts)},
		})
	}

	switch {
	case l.PaidMoreThanCents != nil && l.PaidLessThanCents != nil:
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterPayment,
			Config: domain.FilterConfig{
				KeyOperator:       string(OpIsBetween),
				KeyMinAmountCents: *l.PaidMoreThanCents,
				KeyMaxAmountCents: *l.PaidLessThanCents,
			},
		})
	case l.PaidMoreThanCents != nil:
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterPayment,
			Config:     domain.FilterConfig{KeyOperator: string(OpIsMoreThan), KeyAmountCents: *l.PaidMoreThanCents},
		})
	case l.PaidLessThanCents != nil:
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterPayment,
			Config:     domain.FilterConfig{KeyOperator: string(OpIsLessThan), KeyAmountCents: *l.PaidLessThanCents},
		})
	}

	if country := strings.TrimSpace(l.BoughtFrom); country != "" {
		spec.Filters = append(spec.Filters, domain.FilterSpec{
			FilterType: domain.FilterLocation,
			Config:     domain.FilterConfig{KeyOperator: string(OpIs), KeyCountry: country},
		})
	}
	return spec, true
}

func toAnyList(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
