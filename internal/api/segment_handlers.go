package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/pkg/httputil"
	"github.com/ignite/audience-segments/internal/segmentation"
	"github.com/ignite/audience-segments/internal/service/segment"
)

// SegmentHandlers serves the segment builder endpoints.
type SegmentHandlers struct {
	svc *segment.Service
}

// NewSegmentHandlers creates handlers backed by svc.
func NewSegmentHandlers(svc *segment.Service) *SegmentHandlers {
	return &SegmentHandlers{svc: svc}
}

// RegisterRoutes mounts the segment routes on r. Every route requires a
// seller identity.
func (h *SegmentHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/segments", func(r chi.Router) {
		r.Use(requireSeller)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/preview", h.Preview)
		r.Post("/generate_with_ai", h.GenerateWithAI)
		r.Post("/transcode/to_api", h.TranscodeToAPI)
		r.Post("/transcode/to_ui", h.TranscodeToUI)
		r.Get("/operators", h.Operators)

		r.Route("/{segmentID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Get("/count", h.Count)
			r.Post("/export", h.Export)
			r.Post("/attachments", h.Attach)
		})
	})
}

type segmentFields struct {
	Name         string `json:"name" validate:"required,max=255"`
	AudienceType string `json:"audience_type" validate:"omitempty,oneof=customer subscriber affiliate everyone"`
	Description  string `json:"description" validate:"max=2000"`
}

type createSegmentRequest struct {
	Segment      segmentFields            `json:"segment" validate:"required"`
	FilterGroups []domain.FilterGroupSpec `json:"filter_groups" validate:"dive"`
}

type updateSegmentFields struct {
	Name         *string `json:"name" validate:"omitempty,max=255"`
	AudienceType *string `json:"audience_type" validate:"omitempty,oneof=customer subscriber affiliate everyone"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
}

type updateSegmentRequest struct {
	Segment      *updateSegmentFields      `json:"segment"`
	FilterGroups *[]domain.FilterGroupSpec `json:"filter_groups" validate:"omitnil,dive"`
}

type previewRequest struct {
	FilterGroups []domain.FilterGroupSpec `json:"filter_groups"`
}

type generateRequest struct {
	Description string `json:"description"`
}

type attachRequest struct {
	OwnerKind string `json:"owner_kind" validate:"required,oneof=installment workflow"`
	OwnerID   string `json:"owner_id" validate:"required,max=255"`
}

type toAPIRequest struct {
	Filters []segmentation.UIFilter `json:"filters"`
}

type toUIRequest struct {
	Filters []domain.FilterSpec `json:"filters"`
}

// List returns the seller's segments with their audience counts.
//
//	GET /segments
func (h *SegmentHandlers) List(w http.ResponseWriter, r *http.Request) {
	segments, err := h.svc.List(r.Context(), sellerFrom(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"segments": segments})
}

// Get returns one segment.
//
//	GET /segments/{segmentID}
func (h *SegmentHandlers) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), sellerFrom(r.Context()), chi.URLParam(r, "segmentID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"segment": v})
}

// Create stores a segment with its filter groups.
//
//	POST /segments
func (h *SegmentHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createSegmentRequest
	if !bind(w, r, &req) {
		return
	}
	v, err := h.svc.Create(r.Context(), sellerFrom(r.Context()), segment.CreateInput{
		Name:         req.Segment.Name,
		AudienceType: domain.AudienceType(req.Segment.AudienceType),
		Description:  req.Segment.Description,
		FilterGroups: req.FilterGroups,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"success": true, "segment": v})
}

// Update edits segment metadata and, when filter_groups is present, replaces
// every group.
//
//	PUT /segments/{segmentID}
func (h *SegmentHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSegmentRequest
	if !bind(w, r, &req) {
		return
	}
	in := segment.UpdateInput{FilterGroups: req.FilterGroups}
	if req.Segment != nil {
		in.Name = req.Segment.Name
		in.Description = req.Segment.Description
		if req.Segment.AudienceType != nil {
			t := domain.AudienceType(*req.Segment.AudienceType)
			in.AudienceType = &t
		}
	}
	v, err := h.svc.Update(r.Context(), sellerFrom(r.Context()), chi.URLParam(r, "segmentID"), in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "segment": v})
}

// Delete removes a segment.
//
//	DELETE /segments/{segmentID}
func (h *SegmentHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), sellerFrom(r.Context()), chi.URLParam(r, "segmentID")); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true})
}

// Count returns the audience size, optionally capped by ?limit=.
//
//	GET /segments/{segmentID}/count
func (h *SegmentHandlers) Count(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	n, err := h.svc.Count(r.Context(), sellerFrom(r.Context()), chi.URLParam(r, "segmentID"), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"audience_count": n})
}

// Preview evaluates unsaved filter groups for the builder's live count.
//
//	POST /segments/preview
func (h *SegmentHandlers) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	p, err := h.svc.PreviewDraft(r.Context(), sellerFrom(r.Context()), req.FilterGroups)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}

// GenerateWithAI turns a description into filter groups and a name.
//
//	POST /segments/generate_with_ai
func (h *SegmentHandlers) GenerateWithAI(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.svc.GenerateFromText(r.Context(), sellerFrom(r.Context()), req.Description)
	if err != nil {
		respondAIError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"success":        true,
		"filter_groups":  res.FilterGroups,
		"suggested_name": res.SuggestedName,
	})
}

// Export writes the segment's recipients to S3.
//
//	POST /segments/{segmentID}/export
func (h *SegmentHandlers) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Export(r.Context(), sellerFrom(r.Context()), chi.URLParam(r, "segmentID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, res)
}

// Attach links the segment to an installment or workflow.
//
//	POST /segments/{segmentID}/attachments
func (h *SegmentHandlers) Attach(w http.ResponseWriter, r *http.Request) {
	var req attachRequest
	if !bind(w, r, &req) {
		return
	}
	owner := domain.OwnerRef{Kind: domain.OwnerKind(req.OwnerKind), ID: req.OwnerID}
	if err := h.svc.Attach(r.Context(), sellerFrom(r.Context()), chi.URLParam(r, "segmentID"), owner); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true})
}

// TranscodeToAPI converts builder UI filters into stored filter configs.
//
//	POST /segments/transcode/to_api
func (h *SegmentHandlers) TranscodeToAPI(w http.ResponseWriter, r *http.Request) {
	var req toAPIRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	out := make([]domain.FilterSpec, 0, len(req.Filters))
	for _, f := range req.Filters {
		out = append(out, segmentation.ToAPI(f))
	}
	httputil.OK(w, map[string]any{"filters": out})
}

// TranscodeToUI converts stored filter configs into builder UI filters.
//
//	POST /segments/transcode/to_ui
func (h *SegmentHandlers) TranscodeToUI(w http.ResponseWriter, r *http.Request) {
	var req toUIRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	out := make([]segmentation.UIFilter, 0, len(req.Filters))
	for i, f := range req.Filters {
		out = append(out, segmentation.ToUI(f, i))
	}
	httputil.OK(w, map[string]any{"filters": out})
}

// Operators lists filter types with their operators and required fields.
//
//	GET /segments/operators
func (h *SegmentHandlers) Operators(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{"operators": segmentation.GetOperatorMetadata()})
}
