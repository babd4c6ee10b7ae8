package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AudienceType enumerates the kinds of contact a seller can address.
type AudienceType string

const (
	AudienceCustomer   AudienceType = "customer"
	AudienceSubscriber AudienceType = "subscriber"
	AudienceAffiliate  AudienceType = "affiliate"
	AudienceEveryone   AudienceType = "everyone"
)

// Valid reports whether t is one of the known audience types.
func (t AudienceType) Valid() bool {
	switch t {
	case AudienceCustomer, AudienceSubscriber, AudienceAffiliate, AudienceEveryone:
		return true
	}
	return false
}

// AudienceMember is one contact of one seller. Rows are maintained by the
// purchase/follow pipelines; the segmentation engine only reads them.
type AudienceMember struct {
	ID           int64        `json:"id" db:"id"`
	SellerID     string       `json:"seller_id" db:"seller_id"`
	Email        string       `json:"email" db:"email"`
	AudienceType AudienceType `json:"audience_type" db:"audience_type"`

	// Aggregate purchase/join stats.
	MinCreatedAt *time.Time `json:"min_created_at,omitempty" db:"min_created_at"`
	MaxCreatedAt *time.Time `json:"max_created_at,omitempty" db:"max_created_at"`
	MinPaidCents *int64     `json:"min_paid_cents,omitempty" db:"min_paid_cents"`
	MaxPaidCents *int64     `json:"max_paid_cents,omitempty" db:"max_paid_cents"`

	Details   MemberDetails `json:"details" db:"details"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	// UpdatedAt doubles as the last-activity timestamp.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MemberDetails is the structured details blob of an audience member.
type MemberDetails struct {
	Purchases []Purchase `json:"purchases,omitempty"`
}

// Purchase is a single purchase record inside MemberDetails.
type Purchase struct {
	ProductID  string    `json:"product_id"`
	Country    string    `json:"country,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	PriceCents int64     `json:"price_cents"`
}

// UnmarshalJSON accepts purchase records whose product_id was stored as a
// number.
func (p *Purchase) UnmarshalJSON(data []byte) error {
	type alias Purchase
	var raw struct {
		alias
		ProductID json.RawMessage `json:"product_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Purchase(raw.alias)
	if len(raw.ProductID) == 0 || string(raw.ProductID) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.ProductID, &s); err == nil {
		p.ProductID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.ProductID, &n); err != nil {
		return fmt.Errorf("purchase product_id: %w", err)
	}
	p.ProductID = n.String()
	return nil
}
