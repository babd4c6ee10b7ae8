package segment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ignite/audience-segments/internal/ai"
	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/pkg/logger"
	"github.com/ignite/audience-segments/internal/segmentation"
)

// DefaultGroupName is given to groups submitted without a name.
const DefaultGroupName = "Filter Group"

const maxNameLength = 255

// Generator produces filter groups from a free-text description.
type Generator interface {
	Generate(ctx context.Context, description string) (*ai.Result, error)
}

// Service implements segment business logic. All public methods are safe
// for concurrent use if the collaborators are.
type Service struct {
	repo      Repository
	engine    *segmentation.Engine
	generator Generator
	cache     CountCache
	limiter   RateLimiter
	exporter  Exporter
	now       func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithGenerator enables text-to-segment generation.
func WithGenerator(g Generator) Option { return func(s *Service) { s.generator = g } }

// WithCountCache caches audience counts.
func WithCountCache(c CountCache) Option { return func(s *Service) { s.cache = c } }

// WithRateLimiter bounds generation requests per seller.
func WithRateLimiter(l RateLimiter) Option { return func(s *Service) { s.limiter = l } }

// WithExporter enables recipient exports.
func WithExporter(e Exporter) Option { return func(s *Service) { s.exporter = e } }

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a segment service.
func NewService(repo Repository, engine *segmentation.Engine, opts ...Option) *Service {
	s := &Service{repo: repo, engine: engine, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View is a segment together with its current audience count.
type View struct {
	domain.Segment
	AudienceCount int `json:"audience_count"`
}

// CreateInput holds the fields for creating a segment.
type CreateInput struct {
	Name         string                   `json:"name"`
	AudienceType domain.AudienceType      `json:"audience_type"`
	Description  string                   `json:"description"`
	FilterGroups []domain.FilterGroupSpec `json:"filter_groups"`
}

// UpdateInput holds the mutable fields of a segment. Nil fields are left
// unchanged; a non-nil FilterGroups replaces every existing group.
type UpdateInput struct {
	Name         *string
	AudienceType *domain.AudienceType
	Description  *string
	FilterGroups *[]domain.FilterGroupSpec
}

// ExportResult describes a finished recipient export.
type ExportResult struct {
	Key  string `json:"key"`
	Rows int    `json:"rows"`
}

// List returns the seller's segments with audience counts.
func (s *Service) List(ctx context.Context, sellerID string) ([]View, error) {
	segments, err := s.repo.List(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	views := make([]View, 0, len(segments))
	for i := range segments {
		n, err := s.cachedCount(ctx, &segments[i])
		if err != nil {
			return nil, err
		}
		views = append(views, View{Segment: segments[i], AudienceCount: n})
	}
	return views, nil
}

// Get returns one segment with its audience count.
func (s *Service) Get(ctx context.Context, sellerID, id string) (*View, error) {
	seg, err := s.repo.Get(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, seg)
}

// Create validates the input and persists the segment with all of its
// groups and filters, or nothing at all.
func (s *Service) Create(ctx context.Context, sellerID string, in CreateInput) (*View, error) {
	verr := &ValidationError{}
	name := strings.TrimSpace(in.Name)
	s.validateName(verr, name)
	audienceType := in.AudienceType
	if audienceType == "" {
		audienceType = domain.AudienceCustomer
	}
	validateAudienceType(verr, audienceType)
	validateGroups(verr, in.FilterGroups)
	if verr.empty() {
		if err := s.checkNameFree(ctx, verr, sellerID, name, ""); err != nil {
			return nil, err
		}
	}
	if !verr.empty() {
		return nil, verr
	}

	now := s.now().UTC()
	seg := &domain.Segment{
		ID:           uuid.New().String(),
		SellerID:     sellerID,
		Name:         name,
		AudienceType: audienceType,
		Description:  strings.TrimSpace(in.Description),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	seg.Groups = buildGroups(seg, in.FilterGroups, now)

	if err := s.repo.Create(ctx, seg); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, nameTakenError()
		}
		return nil, fmt.Errorf("create segment: %w", err)
	}
	logger.Info("segment created", "seller_id", sellerID, "segment_id", seg.ID, "groups", len(seg.Groups))
	return s.view(ctx, seg)
}

// Update applies the input to an existing segment. Supplying FilterGroups
// discards all current groups and filters in favour of the new ones.
func (s *Service) Update(ctx context.Context, sellerID, id string, in UpdateInput) (*View, error) {
	seg, err := s.repo.Get(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		s.validateName(verr, name)
		if verr.empty() && name != seg.Name {
			if err := s.checkNameFree(ctx, verr, sellerID, name, seg.ID); err != nil {
				return nil, err
			}
		}
		seg.Name = name
	}
	if in.AudienceType != nil {
		validateAudienceType(verr, *in.AudienceType)
		seg.AudienceType = *in.AudienceType
	}
	if in.Description != nil {
		seg.Description = strings.TrimSpace(*in.Description)
	}
	replace := in.FilterGroups != nil
	if replace {
		validateGroups(verr, *in.FilterGroups)
	}
	if !verr.empty() {
		return nil, verr
	}

	now := s.now().UTC()
	seg.UpdatedAt = now
	if replace {
		seg.Groups = buildGroups(seg, *in.FilterGroups, now)
	}

	if err := s.repo.Update(ctx, seg, replace); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, nameTakenError()
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update segment: %w", err)
	}
	s.invalidate(ctx, sellerID, seg.ID)
	logger.Info("segment updated", "seller_id", sellerID, "segment_id", seg.ID, "groups_replaced", replace)
	return s.view(ctx, seg)
}

// Delete removes a segment. Campaigns that already captured their
// recipients are unaffected.
func (s *Service) Delete(ctx context.Context, sellerID, id string) error {
	if err := s.repo.Delete(ctx, sellerID, id); err != nil {
		return err
	}
	s.invalidate(ctx, sellerID, id)
	logger.Info("segment deleted", "seller_id", sellerID, "segment_id", id)
	return nil
}

// Count returns the segment's audience size. A positive limit caps it and
// bypasses the cache.
func (s *Service) Count(ctx context.Context, sellerID, id string, limit int) (int, error) {
	seg, err := s.repo.Get(ctx, sellerID, id)
	if err != nil {
		return 0, err
	}
	if limit > 0 {
		return s.engine.Count(ctx, sellerID, seg.Groups, limit)
	}
	return s.cachedCount(ctx, seg)
}

// Preview returns up to limit emails matched by a saved segment.
func (s *Service) Preview(ctx context.Context, sellerID, id string, limit int) ([]string, error) {
	seg, err := s.repo.Get(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Preview(ctx, sellerID, seg.Groups, limit)
}

// PreviewDraft evaluates unsaved filter groups. Malformed filters match
// nothing rather than failing the preview.
func (s *Service) PreviewDraft(ctx context.Context, sellerID string, groups []domain.FilterGroupSpec) (*segmentation.DraftPreview, error) {
	return s.engine.PreviewDraft(ctx, sellerID, groups)
}

// GenerateFromText turns a description into filter groups and a suggested
// name. Errors wrap the ai package sentinels.
func (s *Service) GenerateFromText(ctx context.Context, sellerID, description string) (*ai.Result, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ai.ErrEmptyDescription
	}
	if s.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", ai.ErrUnavailable)
	}
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, sellerID)
		if err != nil {
			logger.Warn("AI rate limiter unavailable", "seller_id", sellerID, "error", err)
		} else if !ok {
			return nil, ai.ErrRateLimited
		}
	}
	return s.generator.Generate(ctx, description)
}

// Export writes every matched email of the segment through the exporter.
func (s *Service) Export(ctx context.Context, sellerID, id string) (*ExportResult, error) {
	if s.exporter == nil {
		return nil, ErrExportConfig
	}
	seg, err := s.repo.Get(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	emails, err := s.engine.Emails(ctx, sellerID, seg.Groups)
	if err != nil {
		return nil, err
	}
	key, err := s.exporter.Export(ctx, sellerID, seg.ID, emails)
	if err != nil {
		return nil, fmt.Errorf("export segment: %w", err)
	}
	logger.Info("segment exported", "seller_id", sellerID, "segment_id", seg.ID, "rows", len(emails))
	return &ExportResult{Key: key, Rows: len(emails)}, nil
}

// Attach links the segment to an installment or workflow.
func (s *Service) Attach(ctx context.Context, sellerID, id string, owner domain.OwnerRef) error {
	verr := &ValidationError{}
	if owner.Kind != domain.OwnerInstallment && owner.Kind != domain.OwnerWorkflow {
		verr.Add("owner_kind", "must be installment or workflow")
	}
	if strings.TrimSpace(owner.ID) == "" {
		verr.Add("owner_id", "can't be blank")
	}
	if !verr.empty() {
		return verr
	}
	if _, err := s.repo.Get(ctx, sellerID, id); err != nil {
		return err
	}
	return s.repo.Attach(ctx, sellerID, id, owner)
}

func (s *Service) view(ctx context.Context, seg *domain.Segment) (*View, error) {
	n, err := s.cachedCount(ctx, seg)
	if err != nil {
		return nil, err
	}
	return &View{Segment: *seg, AudienceCount: n}, nil
}

func (s *Service) cachedCount(ctx context.Context, seg *domain.Segment) (int, error) {
	if s.cache != nil {
		n, ok, err := s.cache.GetCount(ctx, seg.SellerID, seg.ID)
		if err != nil {
			logger.Warn("count cache read failed", "segment_id", seg.ID, "error", err)
		} else if ok {
			return n, nil
		}
	}
	n, err := s.engine.Count(ctx, seg.SellerID, seg.Groups, 0)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetCount(ctx, seg.SellerID, seg.ID, n); err != nil {
			logger.Warn("count cache write failed", "segment_id", seg.ID, "error", err)
		}
	}
	return n, nil
}

func (s *Service) invalidate(ctx context.Context, sellerID, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, sellerID, id); err != nil {
		logger.Warn("count cache invalidation failed", "segment_id", id, "error", err)
	}
}

func (s *Service) validateName(verr *ValidationError, name string) {
	switch {
	case name == "":
		verr.Add("name", "can't be blank")
	case utf8.RuneCountInString(name) > maxNameLength:
		verr.Add("name", fmt.Sprintf("is too long (maximum is %d characters)", maxNameLength))
	}
}

func (s *Service) checkNameFree(ctx context.Context, verr *ValidationError, sellerID, name, excludeID string) error {
	taken, err := s.repo.NameTaken(ctx, sellerID, name, excludeID)
	if err != nil {
		return fmt.Errorf("check segment name: %w", err)
	}
	if taken {
		verr.Add("name", "has already been taken")
	}
	return nil
}

func nameTakenError() *ValidationError {
	verr := &ValidationError{}
	verr.Add("name", "has already been taken")
	return verr
}

func validateAudienceType(verr *ValidationError, t domain.AudienceType) {
	if !t.Valid() {
		verr.Add("audience_type", "must be one of customer, subscriber, affiliate, everyone")
	}
}

func validateGroups(verr *ValidationError, groups []domain.FilterGroupSpec) {
	for i, g := range groups {
		if len(g.Filters) == 0 {
			verr.Add(fmt.Sprintf("filter_groups[%d].filters", i), "must contain at least one filter")
		}
	}
	for _, fe := range segmentation.ValidateGroups(groups) {
		verr.Add(fe.Field, fe.Message)
	}
}

func buildGroups(seg *domain.Segment, specs []domain.FilterGroupSpec, now time.Time) []domain.FilterGroup {
	groups := make([]domain.FilterGroup, 0, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			name = DefaultGroupName
		}
		g := domain.FilterGroup{
			ID:        uuid.New().String(),
			SellerID:  seg.SellerID,
			Name:      name,
			Owner:     domain.OwnerRef{Kind: domain.OwnerSegment, ID: seg.ID},
			Filters:   make([]domain.Filter, 0, len(spec.Filters)),
			CreatedAt: now,
		}
		for _, f := range spec.Filters {
			g.Filters = append(g.Filters, domain.Filter{
				ID:         uuid.New().String(),
				SellerID:   seg.SellerID,
				GroupID:    g.ID,
				FilterType: f.FilterType,
				Config:     f.Config.Clone(),
				CreatedAt:  now,
			})
		}
		groups = append(groups, g)
	}
	return groups
}
