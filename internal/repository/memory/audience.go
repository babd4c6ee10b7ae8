// Package memory provides in-process implementations of the segment
// repository and the audience store. They back the server's memory database
// driver and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/segmentation"
)

// AudienceStore is an in-memory segmentation.AudienceStore.
type AudienceStore struct {
	mu      sync.RWMutex
	members map[string][]domain.AudienceMember // keyed by seller id
	nextID  int64
}

// NewAudienceStore creates an empty store.
func NewAudienceStore() *AudienceStore {
	return &AudienceStore{members: make(map[string][]domain.AudienceMember)}
}

// Add inserts members, assigning ids to those without one. A member whose
// (seller, email) pair already exists replaces the stored row.
func (s *AudienceStore) Add(members ...domain.AudienceMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		if m.ID == 0 {
			s.nextID++
			m.ID = s.nextID
		} else if m.ID > s.nextID {
			s.nextID = m.ID
		}
		rows := s.members[m.SellerID]
		replaced := false
		for i := range rows {
			if rows[i].Email == m.Email {
				m.ID = rows[i].ID
				rows[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			rows = append(rows, m)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		s.members[m.SellerID] = rows
	}
}

func (s *AudienceStore) matching(sellerID string, q segmentation.Query) []domain.AudienceMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AudienceMember
	for i := range s.members[sellerID] {
		if q.Match(&s.members[sellerID][i]) {
			out = append(out, s.members[sellerID][i])
		}
	}
	return out
}

func (s *AudienceStore) CountMembers(_ context.Context, sellerID string, q segmentation.Query, limit int) (int, error) {
	n := len(s.matching(sellerID, q))
	if limit > 0 && n > limit {
		n = limit
	}
	return n, nil
}

func (s *AudienceStore) MemberEmails(_ context.Context, sellerID string, q segmentation.Query, limit int) ([]string, error) {
	emails := []string{}
	for _, m := range s.matching(sellerID, q) {
		if limit > 0 && len(emails) == limit {
			break
		}
		emails = append(emails, m.Email)
	}
	return emails, nil
}

func (s *AudienceStore) MemberIDs(_ context.Context, sellerID string, q segmentation.Query) ([]int64, error) {
	ids := []int64{}
	for _, m := range s.matching(sellerID, q) {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *AudienceStore) EmailsByIDs(_ context.Context, sellerID string, ids []int64, limit int) ([]string, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	emails := []string{}
	for _, m := range s.members[sellerID] {
		if !want[m.ID] {
			continue
		}
		if limit > 0 && len(emails) == limit {
			break
		}
		emails = append(emails, m.Email)
	}
	return emails, nil
}
