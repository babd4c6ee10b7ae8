package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/segmentation"
	"github.com/ignite/audience-segments/internal/service/segment"
)

// LegacyRepo reads the pre-filter-group columns of installments and
// workflows for the backfill.
type LegacyRepo struct{ db *sql.DB }

var _ segment.LegacySource = (*LegacyRepo)(nil)

// NewLegacyRepo creates a Postgres-backed legacy filter source.
func NewLegacyRepo(db *sql.DB) *LegacyRepo { return &LegacyRepo{db: db} }

const legacyColumns = `id::text, seller_id, bought_products, not_bought_products,
		       paid_more_than_cents, paid_less_than_cents, created_after, created_before,
		       COALESCE(bought_from, '')`

func (r *LegacyRepo) ListLegacy(ctx context.Context) ([]segmentation.LegacyFilters, error) {
	var out []segmentation.LegacyFilters
	for _, src := range []struct {
		kind  domain.OwnerKind
		table string
	}{
		{domain.OwnerInstallment, "installments"},
		{domain.OwnerWorkflow, "workflows"},
	} {
		rows, err := r.db.QueryContext(ctx, "SELECT "+legacyColumns+" FROM "+src.table+" ORDER BY id")
		if err != nil {
			return nil, fmt.Errorf("list legacy %s: %w", src.table, err)
		}
		items, err := scanLegacy(rows, src.kind)
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("list legacy %s: %w", src.table, err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func scanLegacy(rows *sql.Rows, kind domain.OwnerKind) ([]segmentation.LegacyFilters, error) {
	var out []segmentation.LegacyFilters
	for rows.Next() {
		var (
			l                   segmentation.LegacyFilters
			bought, notBought   pq.StringArray
			moreThan, lessThan  sql.NullInt64
			createdAfter, until sql.NullTime
		)
		if err := rows.Scan(&l.Owner.ID, &l.SellerID, &bought, &notBought,
			&moreThan, &lessThan, &createdAfter, &until, &l.BoughtFrom); err != nil {
			return nil, err
		}
		l.Owner.Kind = kind
		l.BoughtProducts = bought
		l.NotBoughtProducts = notBought
		if moreThan.Valid {
			l.PaidMoreThanCents = &moreThan.Int64
		}
		if lessThan.Valid {
			l.PaidLessThanCents = &lessThan.Int64
		}
		if createdAfter.Valid {
			l.CreatedAfter = &createdAfter.Time
		}
		if until.Valid {
			l.CreatedBefore = &until.Time
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LegacyRepo) HasOwnedGroups(ctx context.Context, owner domain.OwnerRef) (bool, error) {
	var owned bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM audience_member_filter_groups WHERE owner_kind = $1 AND owner_id = $2
		)
	`, owner.Kind, owner.ID).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("check owned groups: %w", err)
	}
	return owned, nil
}

func (r *LegacyRepo) CreateOwnedGroup(ctx context.Context, g *domain.FilterGroup) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertGroup(ctx, tx, g, 0); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit owned group: %w", err)
	}
	return nil
}
