package segmentation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/audience-segments/internal/domain"
)

// DefaultPreviewLimit is the number of emails returned by previews.
const DefaultPreviewLimit = 5

// AudienceStore is the read-only query surface over audience members.
// Implementations must scope every call to sellerID. A limit of zero means
// no limit.
type AudienceStore interface {
	CountMembers(ctx context.Context, sellerID string, q Query, limit int) (int, error)
	MemberEmails(ctx context.Context, sellerID string, q Query, limit int) ([]string, error)
	MemberIDs(ctx context.Context, sellerID string, q Query) ([]int64, error)
	EmailsByIDs(ctx context.Context, sellerID string, ids []int64, limit int) ([]string, error)
}

// DraftPreview is the result of previewing unsaved filter groups.
type DraftPreview struct {
	AudienceCount int      `json:"audience_count"`
	PreviewEmails []string `json:"preview_emails"`
}

// Engine evaluates segments against an AudienceStore.
type Engine struct {
	store AudienceStore
	now   func() time.Time
}

// NewEngine creates a new segmentation engine
func NewEngine(store AudienceStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock overrides the clock used for relative date windows.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Compile compiles the filter groups of a stored segment.
func (e *Engine) Compile(groups []domain.FilterGroup) Query {
	return CompileSegment(groups, e.now().UTC())
}

// Evaluate returns the ids of every member matched by the segment groups.
func (e *Engine) Evaluate(ctx context.Context, sellerID string, groups []domain.FilterGroup) ([]int64, error) {
	q := e.Compile(groups)
	if q.Empty() {
		return []int64{}, nil
	}
	ids, err := e.store.MemberIDs(ctx, sellerID, q)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate segment: %w", err)
	}
	return ids, nil
}

// Count returns the size of the match set. A positive limit caps the result.
func (e *Engine) Count(ctx context.Context, sellerID string, groups []domain.FilterGroup, limit int) (int, error) {
	q := e.Compile(groups)
	if q.Empty() {
		return 0, nil
	}
	n, err := e.store.CountMembers(ctx, sellerID, q, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to count segment: %w", err)
	}
	return n, nil
}

// Preview returns up to limit emails from the match set.
func (e *Engine) Preview(ctx context.Context, sellerID string, groups []domain.FilterGroup, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	q := e.Compile(groups)
	if q.Empty() {
		return []string{}, nil
	}
	emails, err := e.store.MemberEmails(ctx, sellerID, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to preview segment: %w", err)
	}
	return emails, nil
}

// Emails returns the email of every member in the match set, in id order.
func (e *Engine) Emails(ctx context.Context, sellerID string, groups []domain.FilterGroup) ([]string, error) {
	q := e.Compile(groups)
	if q.Empty() {
		return []string{}, nil
	}
	emails, err := e.store.MemberEmails(ctx, sellerID, q, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list segment emails: %w", err)
	}
	return emails, nil
}

// PreviewDraft evaluates unsaved group specs. Each group with at least one
// filter is evaluated independently and the member ids are unioned before
// counting and sampling.
func (e *Engine) PreviewDraft(ctx context.Context, sellerID string, groups []domain.FilterGroupSpec) (*DraftPreview, error) {
	now := e.now().UTC()
	seen := make(map[int64]struct{})
	for _, spec := range groups {
		if len(spec.Filters) == 0 {
			continue
		}
		q := Query{Groups: []Group{compileSpecGroup(spec, now)}}
		ids, err := e.store.MemberIDs(ctx, sellerID, q)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate draft group %q: %w", spec.Name, err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	preview := &DraftPreview{AudienceCount: len(seen), PreviewEmails: []string{}}
	if len(seen) == 0 {
		return preview, nil
	}

	union := make([]int64, 0, len(seen))
	for id := range seen {
		union = append(union, id)
	}
	sort.Slice(union, func(i, j int) bool { return union[i] < union[j] })

	emails, err := e.store.EmailsByIDs(ctx, sellerID, union, DefaultPreviewLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample draft emails: %w", err)
	}
	preview.PreviewEmails = emails
	return preview, nil
}
