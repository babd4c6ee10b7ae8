package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/service/segment"
)

// SegmentRepo is an in-memory segment.Repository. Returned segments are deep
// copies, so callers may mutate them freely.
type SegmentRepo struct {
	mu          sync.RWMutex
	segments    map[string]*domain.Segment
	attachments map[string][]domain.OwnerRef // keyed by segment id
}

var _ segment.Repository = (*SegmentRepo)(nil)

// NewSegmentRepo creates an empty repository.
func NewSegmentRepo() *SegmentRepo {
	return &SegmentRepo{
		segments:    make(map[string]*domain.Segment),
		attachments: make(map[string][]domain.OwnerRef),
	}
}

func (r *SegmentRepo) List(_ context.Context, sellerID string) ([]domain.Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Segment, 0)
	for _, s := range r.segments {
		if s.SellerID == sellerID {
			out = append(out, copySegment(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *SegmentRepo) Get(_ context.Context, sellerID, id string) (*domain.Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.segments[id]
	if !ok || s.SellerID != sellerID {
		return nil, segment.ErrNotFound
	}
	c := copySegment(s)
	return &c, nil
}

func (r *SegmentRepo) NameTaken(_ context.Context, sellerID, name, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nameTaken(sellerID, name, excludeID), nil
}

func (r *SegmentRepo) nameTaken(sellerID, name, excludeID string) bool {
	for _, s := range r.segments {
		if s.SellerID == sellerID && s.ID != excludeID && strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

func (r *SegmentRepo) Create(_ context.Context, s *domain.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTaken(s.SellerID, s.Name, s.ID) {
		return segment.ErrNameTaken
	}
	c := copySegment(s)
	r.segments[s.ID] = &c
	return nil
}

func (r *SegmentRepo) Update(_ context.Context, s *domain.Segment, replaceGroups bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.segments[s.ID]
	if !ok || cur.SellerID != s.SellerID {
		return segment.ErrNotFound
	}
	if r.nameTaken(s.SellerID, s.Name, s.ID) {
		return segment.ErrNameTaken
	}
	c := copySegment(s)
	if !replaceGroups {
		c.Groups = copyGroups(cur.Groups)
	}
	r.segments[s.ID] = &c
	return nil
}

func (r *SegmentRepo) Delete(_ context.Context, sellerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.segments[id]
	if !ok || s.SellerID != sellerID {
		return segment.ErrNotFound
	}
	delete(r.segments, id)
	delete(r.attachments, id)
	return nil
}

func (r *SegmentRepo) Attach(_ context.Context, sellerID, segmentID string, owner domain.OwnerRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.segments[segmentID]
	if !ok || s.SellerID != sellerID {
		return segment.ErrNotFound
	}
	for _, o := range r.attachments[segmentID] {
		if o == owner {
			return nil
		}
	}
	r.attachments[segmentID] = append(r.attachments[segmentID], owner)
	return nil
}

// Attachments returns the owners attached to a segment.
func (r *SegmentRepo) Attachments(segmentID string) []domain.OwnerRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.OwnerRef(nil), r.attachments[segmentID]...)
}

func copySegment(s *domain.Segment) domain.Segment {
	c := *s
	c.Groups = copyGroups(s.Groups)
	return c
}

func copyGroups(groups []domain.FilterGroup) []domain.FilterGroup {
	out := make([]domain.FilterGroup, len(groups))
	for i, g := range groups {
		out[i] = g
		out[i].Filters = make([]domain.Filter, len(g.Filters))
		for j, f := range g.Filters {
			out[i].Filters[j] = f
			out[i].Filters[j].Config = f.Config.Clone()
		}
	}
	return out
}
