package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/pkg/logger"
	"github.com/ignite/audience-segments/internal/segmentation"
)

// LegacySource reads legacy per-installment/workflow filter columns and
// writes the owned filter groups that replace them.
type LegacySource interface {
	// ListLegacy returns every installment and workflow with its legacy
	// filter columns.
	ListLegacy(ctx context.Context) ([]segmentation.LegacyFilters, error)

	// HasOwnedGroups reports whether the owner already has filter groups.
	HasOwnedGroups(ctx context.Context, owner domain.OwnerRef) (bool, error)

	// CreateOwnedGroup inserts the group and its filters in one transaction.
	CreateOwnedGroup(ctx context.Context, g *domain.FilterGroup) error
}

// BackfillReport summarises a backfill run.
type BackfillReport struct {
	Converted int `json:"converted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Backfill converts legacy filter columns into owned filter groups.
type Backfill struct {
	src LegacySource
	now func() time.Time
}

// NewBackfill creates a backfill runner.
func NewBackfill(src LegacySource) *Backfill {
	return &Backfill{src: src, now: time.Now}
}

// Run converts every eligible owner. A failure on one owner is logged and
// counted and the run continues with the next.
func (b *Backfill) Run(ctx context.Context) (*BackfillReport, error) {
	items, err := b.src.ListLegacy(ctx)
	if err != nil {
		return nil, fmt.Errorf("list legacy filters: %w", err)
	}

	report := &BackfillReport{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		converted, err := b.convert(ctx, item)
		switch {
		case err != nil:
			report.Failed++
			logger.Error("legacy filter backfill failed",
				"owner_kind", string(item.Owner.Kind), "owner_id", item.Owner.ID, "error", err)
		case converted:
			report.Converted++
		default:
			report.Skipped++
		}
	}
	logger.Info("legacy filter backfill finished",
		"converted", report.Converted, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (b *Backfill) convert(ctx context.Context, item segmentation.LegacyFilters) (bool, error) {
	spec, ok := segmentation.ConvertLegacy(item)
	if !ok {
		return false, nil
	}
	owned, err := b.src.HasOwnedGroups(ctx, item.Owner)
	if err != nil {
		return false, err
	}
	if owned {
		return false, nil
	}
	if errs := segmentation.ValidateGroups([]domain.FilterGroupSpec{spec}); len(errs) > 0 {
		return false, fmt.Errorf("converted filters invalid: %s", segmentation.JoinFieldErrors(errs))
	}

	now := b.now().UTC()
	seg := &domain.Segment{ID: item.Owner.ID, SellerID: item.SellerID}
	g := buildGroups(seg, []domain.FilterGroupSpec{spec}, now)[0]
	g.Owner = item.Owner
	if err := b.src.CreateOwnedGroup(ctx, &g); err != nil {
		return false, err
	}
	return true, nil
}
