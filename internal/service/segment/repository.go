package segment

import (
	"context"

	"github.com/ignite/audience-segments/internal/domain"
)

// Repository defines the data access contract for segments.
// Implementations must be safe for concurrent use.
type Repository interface {
	// List returns the seller's segments with their groups and filters,
	// ordered by created_at.
	List(ctx context.Context, sellerID string) ([]domain.Segment, error)

	// Get returns a single segment. Returns ErrNotFound if it doesn't exist
	// or belongs to another seller.
	Get(ctx context.Context, sellerID, id string) (*domain.Segment, error)

	// NameTaken reports whether another segment of the seller, other than
	// excludeID, already uses name.
	NameTaken(ctx context.Context, sellerID, name, excludeID string) (bool, error)

	// Create inserts the segment, its groups and filters in one transaction.
	// Returns ErrNameTaken on a uniqueness violation.
	Create(ctx context.Context, s *domain.Segment) error

	// Update writes the segment's metadata. When replaceGroups is true every
	// existing group and filter of the segment is deleted and s.Groups is
	// inserted, in the same transaction.
	Update(ctx context.Context, s *domain.Segment, replaceGroups bool) error

	// Delete removes the segment with its groups, filters and attachments.
	Delete(ctx context.Context, sellerID, id string) error

	// Attach records that an installment or workflow selects recipients
	// through the segment. Attaching twice is a no-op.
	Attach(ctx context.Context, sellerID, segmentID string, owner domain.OwnerRef) error
}

// CountCache stores audience counts per segment.
type CountCache interface {
	GetCount(ctx context.Context, sellerID, segmentID string) (int, bool, error)
	SetCount(ctx context.Context, sellerID, segmentID string, n int) error
	Invalidate(ctx context.Context, sellerID, segmentID string) error
}

// RateLimiter bounds AI generation requests per seller.
type RateLimiter interface {
	Allow(ctx context.Context, sellerID string) (bool, error)
}

// Exporter writes a segment's recipient emails somewhere durable and returns
// the location.
type Exporter interface {
	Export(ctx context.Context, sellerID, segmentID string, emails []string) (string, error)
}
