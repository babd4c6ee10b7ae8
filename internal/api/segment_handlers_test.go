package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-segments/internal/ai"
	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/repository/memory"
	"github.com/ignite/audience-segments/internal/segmentation"
	"github.com/ignite/audience-segments/internal/service/segment"
)

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type stubGenerator struct {
	result *ai.Result
	err    error
}

func (g stubGenerator) Generate(context.Context, string) (*ai.Result, error) { return g.result, g.err }

type stubExporter struct{}

func (stubExporter) Export(_ context.Context, sellerID, segmentID string, emails []string) (string, error) {
	return fmt.Sprintf("%s/%s.csv", sellerID, segmentID), nil
}

func i64(n int64) *int64 { return &n }

func newTestRouter(t *testing.T, opts ...segment.Option) http.Handler {
	t.Helper()
	store := memory.NewAudienceStore()
	store.Add(
		domain.AudienceMember{SellerID: "seller-1", Email: "a@example.com", MinPaidCents: i64(500), MaxPaidCents: i64(500), UpdatedAt: testNow,
			Details: domain.MemberDetails{Purchases: []domain.Purchase{{ProductID: "p1", Country: "DE"}}}},
		domain.AudienceMember{SellerID: "seller-1", Email: "b@example.com", MinPaidCents: i64(3000), MaxPaidCents: i64(3000), UpdatedAt: testNow,
			Details: domain.MemberDetails{Purchases: []domain.Purchase{{ProductID: "p2", Country: "US"}}}},
	)
	engine := segmentation.NewEngine(store).WithClock(func() time.Time { return testNow })
	svc := segment.NewService(memory.NewSegmentRepo(), engine, opts...)
	return SetupRoutes(NewSegmentHandlers(svc), NewHealthChecker(nil, nil), nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SellerHeader, "seller-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var createBody = map[string]any{
	"segment": map[string]any{"name": "VIPs", "audience_type": "customer"},
	"filter_groups": []any{
		map[string]any{"name": "Big spenders", "filters": []any{
			map[string]any{"filter_type": "payment", "config": map[string]any{"operator": "is_more_than", "amount_cents": 1000}},
		}},
	},
}

func createSegment(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/internal/segments", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	seg := decode(t, w)["segment"].(map[string]any)
	return seg["id"].(string)
}

func TestMissingSellerIsUnauthorized(t *testing.T) {
	h := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/internal/segments", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndGetSegment(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/internal/segments", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	seg := resp["segment"].(map[string]any)
	assert.Equal(t, "VIPs", seg["name"])
	assert.Equal(t, float64(1), seg["audience_count"])
	groups := seg["audience_member_filter_groups"].([]any)
	require.Len(t, groups, 1)
	filters := groups[0].(map[string]any)["audience_member_filters"].([]any)
	assert.Len(t, filters, 1)

	w = do(t, h, http.MethodGet, "/api/internal/segments/"+seg["id"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "VIPs", decode(t, w)["segment"].(map[string]any)["name"])

	w = do(t, h, http.MethodGet, "/api/internal/segments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["segments"].([]any), 1)
}

func TestCreateSegmentValidation(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/internal/segments", map[string]any{"segment": map[string]any{"name": ""}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["success"])
	assert.NotEmpty(t, resp["errors"])

	w = do(t, h, http.MethodPost, "/api/internal/segments", map[string]any{
		"segment": map[string]any{"name": "Bad"},
		"filter_groups": []any{map[string]any{"filters": []any{
			map[string]any{"filter_type": "date", "config": map[string]any{"operator": "is_after", "date": "soon"}},
		}}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "filter_groups[0].filters[0].config.date must be a valid date")

	w = do(t, h, http.MethodPost, "/api/internal/segments", map[string]any{
		"segment": map[string]any{"name": "Untyped"},
		"filter_groups": []any{map[string]any{"filters": []any{
			map[string]any{"config": map[string]any{"operator": "is", "country": "DE"}},
		}}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "filter_type is a required field")

	id := createSegment(t, h)
	w = do(t, h, http.MethodPut, "/api/internal/segments/"+id, map[string]any{
		"filter_groups": []any{map[string]any{"filters": []any{
			map[string]any{"filter_type": "location"},
		}}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "config is a required field")

	w = do(t, h, http.MethodPost, "/api/internal/segments", `{"segment":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateDuplicateName(t *testing.T) {
	h := newTestRouter(t)
	createSegment(t, h)

	w := do(t, h, http.MethodPost, "/api/internal/segments", createBody)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Name has already been taken")
}

func TestUpdateSegment(t *testing.T) {
	h := newTestRouter(t)
	id := createSegment(t, h)

	w := do(t, h, http.MethodPut, "/api/internal/segments/"+id, map[string]any{
		"segment": map[string]any{"name": "Germany"},
		"filter_groups": []any{map[string]any{"filters": []any{
			map[string]any{"filter_type": "location", "config": map[string]any{"operator": "is", "country": "DE"}},
		}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	seg := decode(t, w)["segment"].(map[string]any)
	assert.Equal(t, "Germany", seg["name"])
	groups := seg["audience_member_filter_groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, segment.DefaultGroupName, groups[0].(map[string]any)["name"])

	w = do(t, h, http.MethodPut, "/api/internal/segments/missing", map[string]any{"segment": map[string]any{"name": "x"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSegment(t *testing.T) {
	h := newTestRouter(t)
	id := createSegment(t, h)

	w := do(t, h, http.MethodDelete, "/api/internal/segments/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/internal/segments/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCountSegment(t *testing.T) {
	h := newTestRouter(t)
	id := createSegment(t, h)

	w := do(t, h, http.MethodGet, "/api/internal/segments/"+id+"/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["audience_count"])

	w = do(t, h, http.MethodGet, "/api/internal/segments/"+id+"/count?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewDraft(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/internal/segments/preview", map[string]any{
		"filter_groups": []any{
			map[string]any{"filters": []any{map[string]any{"filter_type": "location", "config": map[string]any{"operator": "is", "country": "DE"}}}},
			map[string]any{"filters": []any{map[string]any{"filter_type": "payment", "config": map[string]any{"operator": "is_more_than", "amount_cents": 1000}}}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"audience_count":2,"preview_emails":["a@example.com","b@example.com"]}`, w.Body.String())
}

func TestGenerateWithAI(t *testing.T) {
	result := &ai.Result{
		FilterGroups:  []domain.FilterGroupSpec{{Name: "US", Filters: []domain.FilterSpec{{FilterType: domain.FilterLocation, Config: domain.FilterConfig{"operator": "is", "country": "US"}}}}},
		SuggestedName: "US Customers",
	}

	tests := []struct {
		name string
		gen  stubGenerator
		body string
		code int
		msg  string
	}{
		{"success", stubGenerator{result: result}, `{"description":"customers in the US"}`, http.StatusOK, ""},
		{"blank", stubGenerator{result: result}, `{"description":"  "}`, http.StatusBadRequest, "Description is required"},
		{"unparseable", stubGenerator{err: ai.ErrUnparseable}, `{"description":"x"}`, http.StatusUnprocessableEntity, ai.UserMessage(ai.ErrUnparseable)},
		{"unavailable", stubGenerator{err: fmt.Errorf("%w: openai 500 body secret", ai.ErrUnavailable)}, `{"description":"x"}`, http.StatusServiceUnavailable, ai.UserMessage(ai.ErrUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, segment.WithGenerator(tt.gen))
			w := do(t, h, http.MethodPost, "/api/internal/segments/generate_with_ai", tt.body)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			resp := decode(t, w)
			if tt.code == http.StatusOK {
				assert.Equal(t, true, resp["success"])
				assert.Equal(t, "US Customers", resp["suggested_name"])
				assert.Len(t, resp["filter_groups"].([]any), 1)
				return
			}
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.msg, resp["error"])
			assert.NotContains(t, w.Body.String(), "secret")
		})
	}
}

func TestExportSegment(t *testing.T) {
	h := newTestRouter(t)
	id := createSegment(t, h)
	w := do(t, h, http.MethodPost, "/api/internal/segments/"+id+"/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h = newTestRouter(t, segment.WithExporter(stubExporter{}))
	id = createSegment(t, h)
	w = do(t, h, http.MethodPost, "/api/internal/segments/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, fmt.Sprintf(`{"key":"seller-1/%s.csv","rows":1}`, id), w.Body.String())
}

func TestAttachSegment(t *testing.T) {
	h := newTestRouter(t)
	id := createSegment(t, h)

	w := do(t, h, http.MethodPost, "/api/internal/segments/"+id+"/attachments", map[string]any{"owner_kind": "workflow", "owner_id": "wf-1"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/internal/segments/"+id+"/attachments", map[string]any{"owner_kind": "segment", "owner_id": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTranscode(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/internal/segments/transcode/to_api", map[string]any{
		"filters": []any{map[string]any{"filter_type": "payment", "operator": "is_more_than", "value": map[string]any{"amount": "12.50"}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"filters":[{"filter_type":"payment","config":{"operator":"is_more_than","amount_cents":1250}}]}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/internal/segments/transcode/to_ui", map[string]any{
		"filters": []any{map[string]any{"filter_type": "payment", "config": map[string]any{"operator": "is_more_than", "amount_cents": 1250}}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ui := decode(t, w)["filters"].([]any)[0].(map[string]any)
	assert.Equal(t, "is_more_than", ui["operator"])
	assert.Equal(t, "12.5", ui["value"].(map[string]any)["amount"])
}

func TestOperators(t *testing.T) {
	h := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/api/internal/segments/operators", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["operators"].([]any), 12)
}
