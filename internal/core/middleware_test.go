package core_test

import (
	"net/http"
	"net/http/httptest"
	"randpic/internal/core"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecovererConvertsPanic(t *testing.T) {
	t.Parallel()

	handler := core.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	t.Parallel()

	handler := core.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestIDInContext(t *testing.T) {
	t.Parallel()

	var seen string
	handler := core.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = core.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(core.RequestIDHeader))
	require.Empty(t, core.RequestIDFromContext(t.Context()))
}

func TestResponseWriterWrapperKeepsFirstStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := &core.ResponseWriterWrapper{ResponseWriter: rec}
	_, err := w.Write([]byte("ok"))
	require.NoError(t, err)
	w.WriteHeader(http.StatusTeapot)
	require.Equal(t, http.StatusOK, w.WrittenResponseCode)
}
