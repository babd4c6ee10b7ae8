package domain

import (
	"encoding/json"
	"time"
)

// FilterType names the attribute family a filter predicate inspects.
type FilterType string

const (
	FilterDate            FilterType = "date"
	FilterProduct         FilterType = "product"
	FilterPayment         FilterType = "payment"
	FilterLocation        FilterType = "location"
	FilterEmailEngagement FilterType = "email_engagement"
)

// FilterTypes lists every supported filter type in display order.
var FilterTypes = []FilterType{FilterDate, FilterProduct, FilterPayment, FilterLocation, FilterEmailEngagement}

// OwnerKind tags the container a filter group belongs to.
type OwnerKind string

const (
	OwnerSegment     OwnerKind = "segment"
	OwnerInstallment OwnerKind = "installment"
	OwnerWorkflow    OwnerKind = "workflow"
)

// OwnerRef is a tagged reference to the container owning a filter group.
type OwnerRef struct {
	Kind OwnerKind `json:"kind" db:"owner_kind"`
	ID   string    `json:"id" db:"owner_id"`
}

// FilterConfig is the type-specific operator/operand map of a filter.
type FilterConfig map[string]any

// Filter is a persisted filter predicate (a.k.a. audience member filter).
type Filter struct {
	ID         string       `json:"id,omitempty" db:"id"`
	SellerID   string       `json:"-" db:"seller_id"`
	GroupID    string       `json:"-" db:"group_id"`
	FilterType FilterType   `json:"filter_type" db:"filter_type"`
	Config     FilterConfig `json:"config" db:"config"`
	CreatedAt  time.Time    `json:"-" db:"created_at"`
}

// FilterGroup is an AND-combination of filters.
type FilterGroup struct {
	ID        string    `json:"id,omitempty" db:"id"`
	SellerID  string    `json:"-" db:"seller_id"`
	Name      string    `json:"name" db:"name"`
	Owner     OwnerRef  `json:"-"`
	Filters   []Filter  `json:"audience_member_filters"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// Segment is a named, reusable OR-combination of filter groups.
type Segment struct {
	ID           string        `json:"id" db:"id"`
	SellerID     string        `json:"-" db:"seller_id"`
	Name         string        `json:"name" db:"name"`
	AudienceType AudienceType  `json:"audience_type" db:"audience_type"`
	Description  string        `json:"description,omitempty" db:"description"`
	Groups       []FilterGroup `json:"audience_member_filter_groups"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// FilterSpec is the wire shape of a single filter inside a filter-group spec.
type FilterSpec struct {
	FilterType FilterType   `json:"filter_type" validate:"required"`
	Config     FilterConfig `json:"config" validate:"required"`
}

// FilterGroupSpec is the wire shape of one filter group.
type FilterGroupSpec struct {
	Name    string       `json:"name"`
	Filters []FilterSpec `json:"filters" validate:"dive"`
}

// Clone returns a deep copy of the config via a JSON round trip.
func (c FilterConfig) Clone() FilterConfig {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return FilterConfig{}
	}
	out := FilterConfig{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return FilterConfig{}
	}
	return out
}
