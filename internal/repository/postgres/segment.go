package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/service/segment"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// SegmentRepo implements segment.Repository against PostgreSQL.
type SegmentRepo struct{ db *sql.DB }

var _ segment.Repository = (*SegmentRepo)(nil)

// NewSegmentRepo creates a Postgres-backed segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

func (r *SegmentRepo) List(ctx context.Context, sellerID string) ([]domain.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, name, audience_type, COALESCE(description, ''), created_at, updated_at
		FROM segments
		WHERE seller_id = $1
		ORDER BY created_at, id
	`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	out := []domain.Segment{}
	var ids []string
	for rows.Next() {
		var s domain.Segment
		if err := rows.Scan(&s.ID, &s.SellerID, &s.Name, &s.AudienceType, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	groups, err := loadGroups(ctx, r.db, sellerID, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Groups = ownedGroups(groups, out[i].ID)
	}
	return out, nil
}

func (r *SegmentRepo) Get(ctx context.Context, sellerID, id string) (*domain.Segment, error) {
	s := &domain.Segment{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, name, audience_type, COALESCE(description, ''), created_at, updated_at
		FROM segments
		WHERE id::text = $1 AND seller_id = $2
	`, id, sellerID).Scan(&s.ID, &s.SellerID, &s.Name, &s.AudienceType, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, segment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}

	groups, err := loadGroups(ctx, r.db, sellerID, []string{s.ID})
	if err != nil {
		return nil, err
	}
	s.Groups = ownedGroups(groups, s.ID)
	return s, nil
}

func (r *SegmentRepo) NameTaken(ctx context.Context, sellerID, name, excludeID string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM segments
			WHERE seller_id = $1 AND lower(name) = lower($2) AND id::text <> $3
		)
	`, sellerID, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check segment name: %w", err)
	}
	return taken, nil
}

func (r *SegmentRepo) Create(ctx context.Context, s *domain.Segment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments (id, seller_id, name, audience_type, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.SellerID, s.Name, s.AudienceType, s.Description, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return mapWriteError("insert segment", err)
	}
	for i := range s.Groups {
		if err := insertGroup(ctx, tx, &s.Groups[i], i); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Update(ctx context.Context, s *domain.Segment, replaceGroups bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE segments
		SET name = $1, audience_type = $2, description = $3, updated_at = $4
		WHERE id::text = $5 AND seller_id = $6
	`, s.Name, s.AudienceType, s.Description, s.UpdatedAt, s.ID, s.SellerID)
	if err != nil {
		return mapWriteError("update segment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return segment.ErrNotFound
	}

	if replaceGroups {
		if err := deleteOwnedGroups(ctx, tx, s.SellerID, s.ID); err != nil {
			return err
		}
		for i := range s.Groups {
			if err := insertGroup(ctx, tx, &s.Groups[i], i); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Delete(ctx context.Context, sellerID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE id::text = $1 AND seller_id = $2`, id, sellerID)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return segment.ErrNotFound
	}
	if err := deleteOwnedGroups(ctx, tx, sellerID, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segment delete: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Attach(ctx context.Context, sellerID, segmentID string, owner domain.OwnerRef) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO segment_attachments (segment_id, seller_id, owner_kind, owner_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (segment_id, owner_kind, owner_id) DO NOTHING
	`, segmentID, sellerID, owner.Kind, owner.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
			return segment.ErrNotFound
		}
		return fmt.Errorf("attach segment: %w", err)
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return segment.ErrNameTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadGroups returns the segment-owned groups of ownerIDs keyed by owner id,
// in insertion order, with their filters.
func loadGroups(ctx context.Context, q queryer, sellerID string, ownerIDs []string) (map[string][]domain.FilterGroup, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT g.id, g.name, g.owner_id, g.created_at,
		       f.id, f.filter_type, f.config, f.created_at
		FROM audience_member_filter_groups g
		LEFT JOIN audience_member_filters f ON f.group_id = g.id
		WHERE g.seller_id = $1 AND g.owner_kind = $2 AND g.owner_id = ANY($3)
		ORDER BY g.owner_id, g.position, f.position
	`, sellerID, domain.OwnerSegment, pq.Array(ownerIDs))
	if err != nil {
		return nil, fmt.Errorf("load filter groups: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.FilterGroup)
	for rows.Next() {
		var (
			g          domain.FilterGroup
			filterID   sql.NullString
			filterType sql.NullString
			config     []byte
			filterAt   sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Owner.ID, &g.CreatedAt, &filterID, &filterType, &config, &filterAt); err != nil {
			return nil, fmt.Errorf("scan filter group: %w", err)
		}
		groups := out[g.Owner.ID]
		if n := len(groups); n == 0 || groups[n-1].ID != g.ID {
			g.SellerID = sellerID
			g.Owner.Kind = domain.OwnerSegment
			g.Filters = []domain.Filter{}
			groups = append(groups, g)
		}
		if filterID.Valid {
			last := &groups[len(groups)-1]
			last.Filters = append(last.Filters, domain.Filter{
				ID:         filterID.String,
				SellerID:   sellerID,
				GroupID:    last.ID,
				FilterType: domain.FilterType(filterType.String),
				Config:     decodeConfig(config),
				CreatedAt:  filterAt.Time,
			})
		}
		out[g.Owner.ID] = groups
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load filter groups: %w", err)
	}
	return out, nil
}

// ownedGroups never returns nil so a segment without groups renders as [].
func ownedGroups(groups map[string][]domain.FilterGroup, ownerID string) []domain.FilterGroup {
	if g, ok := groups[ownerID]; ok {
		return g
	}
	return []domain.FilterGroup{}
}

// decodeConfig parses a stored config. Anything that is not a JSON object
// reads as an empty config, which evaluates to match nothing.
func decodeConfig(raw []byte) domain.FilterConfig {
	cfg := domain.FilterConfig{}
	if len(raw) == 0 {
		return cfg
	}
	if err := json.Unmarshal(raw, &cfg); err != nil || cfg == nil {
		return domain.FilterConfig{}
	}
	return cfg
}

func insertGroup(ctx context.Context, tx *sql.Tx, g *domain.FilterGroup, position int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audience_member_filter_groups (id, seller_id, name, owner_kind, owner_id, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.ID, g.SellerID, g.Name, g.Owner.Kind, g.Owner.ID, position, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert filter group: %w", err)
	}
	for i, f := range g.Filters {
		config, err := json.Marshal(f.Config)
		if err != nil {
			return fmt.Errorf("encode filter config: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audience_member_filters (id, seller_id, group_id, filter_type, config, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, f.ID, f.SellerID, g.ID, f.FilterType, config, i, createdAt(f.CreatedAt, g.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert filter: %w", err)
		}
	}
	return nil
}

func createdAt(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

// deleteOwnedGroups removes a segment's groups; filters follow via ON DELETE
// CASCADE.
func deleteOwnedGroups(ctx context.Context, tx *sql.Tx, sellerID, segmentID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM audience_member_filter_groups
		WHERE seller_id = $1 AND owner_kind = $2 AND owner_id = $3
	`, sellerID, domain.OwnerSegment, segmentID)
	if err != nil {
		return fmt.Errorf("delete filter groups: %w", err)
	}
	return nil
}
