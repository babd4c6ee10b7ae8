package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/audience-segments/internal/segmentation"
)

// AudienceStore implements segmentation.AudienceStore by pushing compiled
// predicates down into SQL over audience_members.
type AudienceStore struct{ db *sql.DB }

var _ segmentation.AudienceStore = (*AudienceStore)(nil)

// NewAudienceStore creates a Postgres-backed audience store.
func NewAudienceStore(db *sql.DB) *AudienceStore { return &AudienceStore{db: db} }

func (s *AudienceStore) CountMembers(ctx context.Context, sellerID string, q segmentation.Query, limit int) (int, error) {
	query, args := segmentation.NewQueryBuilder().SetSellerID(sellerID).BuildCountQuery(q, limit)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audience members: %w", err)
	}
	return n, nil
}

func (s *AudienceStore) MemberEmails(ctx context.Context, sellerID string, q segmentation.Query, limit int) ([]string, error) {
	query, args := segmentation.NewQueryBuilder().SetSellerID(sellerID).BuildEmailQuery(q, limit)
	return s.queryEmails(ctx, query, args...)
}

func (s *AudienceStore) MemberIDs(ctx context.Context, sellerID string, q segmentation.Query) ([]int64, error) {
	query, args := segmentation.NewQueryBuilder().SetSellerID(sellerID).BuildIDQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audience member ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan audience member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *AudienceStore) EmailsByIDs(ctx context.Context, sellerID string, ids []int64, limit int) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	query := `SELECT email FROM audience_members WHERE seller_id = $1 AND id = ANY($2) ORDER BY id`
	args := []interface{}{sellerID, pq.Array(ids)}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	return s.queryEmails(ctx, query, args...)
}

func (s *AudienceStore) queryEmails(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audience emails: %w", err)
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan audience email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
