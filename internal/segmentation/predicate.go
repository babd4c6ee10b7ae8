package segmentation

import (
	"time"

	"github.com/lib/pq"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/pkg/logger"
)

// Predicate is a compiled filter. Match evaluates it against a single member;
// sql renders the same condition over the audience_members table aliased "s".
type Predicate interface {
	Match(m *domain.AudienceMember) bool
	sql(qb *QueryBuilder) string
}

// Compile turns a stored filter into a predicate. Filters that are malformed
// (unknown operator, missing or unparseable value) compile to a predicate
// that matches nothing. now anchors relative windows such as "in the last
// N days".
func Compile(filterType domain.FilterType, config domain.FilterConfig, now time.Time) Predicate {
	p, ok := compile(filterType, config, now)
	if !ok {
		logger.Debug("filter matches nothing", "filter_type", string(filterType), "operator", string(operatorOf(config)))
		return matchNone{}
	}
	return p
}

func compile(filterType domain.FilterType, config domain.FilterConfig, now time.Time) (Predicate, bool) {
	op := operatorOf(config)
	switch filterType {
	case domain.FilterDate:
		return compileDate(op, config)
	case domain.FilterProduct:
		ids, ok := stringListField(config, KeyProductIDs)
		if !ok || len(ids) == 0 {
			return nil, false
		}
		switch op {
		case OpHasBought:
			return productPredicate{ids: ids}, true
		case OpHasNotBought:
			return productPredicate{ids: ids, negate: true}, true
		}
	case domain.FilterPayment:
		return compilePayment(op, config)
	case domain.FilterLocation:
		country, ok := stringField(config, KeyCountry)
		if !ok {
			return nil, false
		}
		switch op {
		case OpIs:
			return countryPredicate{country: country}, true
		case OpIsNot:
			return countryPredicate{country: country, negate: true}, true
		}
	case domain.FilterEmailEngagement:
		days, ok := intField(config, KeyDays)
		if !ok || days <= 0 {
			return nil, false
		}
		if days > MaxEngagementDays {
			days = MaxEngagementDays
		}
		cutoff := now.AddDate(0, 0, -int(days))
		switch op {
		case OpInLast:
			return engagementPredicate{cutoff: cutoff}, true
		case OpNotInLast:
			return engagementPredicate{cutoff: cutoff, negate: true}, true
		}
	}
	return nil, false
}

func compileDate(op Operator, config domain.FilterConfig) (Predicate, bool) {
	switch op {
	case OpIsAfter:
		day, ok := dateField(config, KeyDate)
		if !ok {
			return nil, false
		}
		return createdAfter{from: day}, true
	case OpIsBefore:
		day, ok := dateField(config, KeyDate)
		if !ok {
			return nil, false
		}
		return createdBefore{until: endOfDay(day)}, true
	case OpBetween:
		start, ok1 := dateField(config, KeyStartDate)
		end, ok2 := dateField(config, KeyEndDate)
		if !ok1 || !ok2 {
			return nil, false
		}
		return createdBetween{from: start, until: endOfDay(end)}, true
	}
	return nil, false
}

func compilePayment(op Operator, config domain.FilterConfig) (Predicate, bool) {
	switch op {
	case OpIsMoreThan:
		cents, ok := intField(config, KeyAmountCents)
		if !ok {
			return nil, false
		}
		return paidMoreThan{cents: cents}, true
	case OpIsLessThan:
		cents, ok := intField(config, KeyAmountCents)
		if !ok {
			return nil, false
		}
		return paidLessThan{cents: cents}, true
	case OpIsBetween:
		lo, ok1 := intField(config, KeyMinAmountCents)
		hi, ok2 := intField(config, KeyMaxAmountCents)
		if !ok1 || !ok2 {
			return nil, false
		}
		return paidBetween{min: lo, max: hi}, true
	}
	return nil, false
}

// ==========================================
// PREDICATES
// ==========================================

type matchNone struct{}

func (matchNone) Match(*domain.AudienceMember) bool { return false }
func (matchNone) sql(*QueryBuilder) string          { return "FALSE" }

type createdAfter struct{ from time.Time }

func (p createdAfter) Match(m *domain.AudienceMember) bool {
	return m.MinCreatedAt != nil && !m.MinCreatedAt.Before(p.from)
}

func (p createdAfter) sql(qb *QueryBuilder) string {
	return "s.min_created_at >= " + qb.nextArg(p.from)
}

type createdBefore struct{ until time.Time }

func (p createdBefore) Match(m *domain.AudienceMember) bool {
	return m.MaxCreatedAt != nil && !m.MaxCreatedAt.After(p.until)
}

func (p createdBefore) sql(qb *QueryBuilder) string {
	return "s.max_created_at <= " + qb.nextArg(p.until)
}

type createdBetween struct{ from, until time.Time }

func (p createdBetween) Match(m *domain.AudienceMember) bool {
	return m.MinCreatedAt != nil && !m.MinCreatedAt.Before(p.from) && !m.MinCreatedAt.After(p.until)
}

func (p createdBetween) sql(qb *QueryBuilder) string {
	return "s.min_created_at BETWEEN " + qb.nextArg(p.from) + " AND " + qb.nextArg(p.until)
}

type productPredicate struct {
	ids    []string
	negate bool
}

func (p productPredicate) Match(m *domain.AudienceMember) bool {
	found := false
	for _, purchase := range m.Details.Purchases {
		if contains(p.ids, purchase.ProductID) {
			found = true
			break
		}
	}
	return found != p.negate
}

func (p productPredicate) sql(qb *QueryBuilder) string {
	return purchaseExists(p.negate, "p->>'product_id' = ANY("+qb.nextArg(pq.Array(p.ids))+")")
}

type paidMoreThan struct{ cents int64 }

func (p paidMoreThan) Match(m *domain.AudienceMember) bool {
	return m.MaxPaidCents != nil && *m.MaxPaidCents > p.cents
}

func (p paidMoreThan) sql(qb *QueryBuilder) string {
	return "s.max_paid_cents > " + qb.nextArg(p.cents)
}

type paidLessThan struct{ cents int64 }

func (p paidLessThan) Match(m *domain.AudienceMember) bool {
	return m.MinPaidCents != nil && *m.MinPaidCents < p.cents
}

func (p paidLessThan) sql(qb *QueryBuilder) string {
	return "s.min_paid_cents < " + qb.nextArg(p.cents)
}

// paidBetween requires both the smallest and the largest payment to fall
// inside the inclusive range.
type paidBetween struct{ min, max int64 }

func (p paidBetween) Match(m *domain.AudienceMember) bool {
	if m.MinPaidCents == nil || m.MaxPaidCents == nil {
		return false
	}
	inRange := func(v int64) bool { return v >= p.min && v <= p.max }
	return inRange(*m.MinPaidCents) && inRange(*m.MaxPaidCents)
}

func (p paidBetween) sql(qb *QueryBuilder) string {
	lo, hi := qb.nextArg(p.min), qb.nextArg(p.max)
	return "(s.min_paid_cents BETWEEN " + lo + " AND " + hi + " AND s.max_paid_cents BETWEEN " + lo + " AND " + hi + ")"
}

type countryPredicate struct {
	country string
	negate  bool
}

func (p countryPredicate) Match(m *domain.AudienceMember) bool {
	found := false
	for _, purchase := range m.Details.Purchases {
		if purchase.Country == p.country {
			found = true
			break
		}
	}
	return found != p.negate
}

func (p countryPredicate) sql(qb *QueryBuilder) string {
	return purchaseExists(p.negate, "p->>'country' = "+qb.nextArg(p.country))
}

// engagementPredicate uses the member's last update as the engagement signal.
type engagementPredicate struct {
	cutoff time.Time
	negate bool
}

func (p engagementPredicate) Match(m *domain.AudienceMember) bool {
	if p.negate {
		return m.UpdatedAt.Before(p.cutoff)
	}
	return !m.UpdatedAt.Before(p.cutoff)
}

func (p engagementPredicate) sql(qb *QueryBuilder) string {
	if p.negate {
		return "s.updated_at < " + qb.nextArg(p.cutoff)
	}
	return "s.updated_at >= " + qb.nextArg(p.cutoff)
}

func purchaseExists(negate bool, cond string) string {
	clause := "EXISTS (SELECT 1 FROM jsonb_array_elements(COALESCE(s.details->'purchases', '[]'::jsonb)) AS p WHERE " + cond + ")"
	if negate {
		return "NOT " + clause
	}
	return clause
}
