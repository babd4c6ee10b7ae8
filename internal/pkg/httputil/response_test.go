package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	Created(w, map[string]int{"n": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, w.Body.String())
}

func TestErrorEnvelopes(t *testing.T) {
	w := httptest.NewRecorder()
	NotFound(w, "segment not found")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"segment not found"}`, w.Body.String())

	w = httptest.NewRecorder()
	Errors(w, http.StatusUnprocessableEntity, []string{"Name can't be blank"})
	assert.JSONEq(t, `{"success":false,"errors":["Name can't be blank"]}`, w.Body.String())
}

func TestInternalErrorHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	InternalError(w, errors.New("pq: relation \"segments\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestDecode(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"VIPs"}`))
	require.True(t, Decode(httptest.NewRecorder(), r, &dst))
	assert.Equal(t, "VIPs", dst.Name)

	for _, body := range []string{``, `{"name":`, `{"name":"a"} {"name":"b"}`} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		assert.False(t, Decode(w, r, &dst), body)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
	}
}
