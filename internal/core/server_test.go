package core_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"randpic/internal/core"
	"randpic/pkg/storage"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// writeObject places a file at key below root, creating parent directories.
func writeObject(t *testing.T, root string, key string, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// NewTestServer creates a Server backed by a temporary directory and returns
// it along with an httptest.Server wrapping its handler.
func NewTestServer(t *testing.T, opts ...core.ConfigOption) (*core.Server, *httptest.Server, string) {
	t.Helper()

	dataDir := t.TempDir()
	opts = append([]core.ConfigOption{core.WithStorageEngine(storage.NewLocalFileStorage(dataDir))}, opts...)

	srv, err := core.NewServer(core.NewConfig(opts...))
	require.NoError(t, err, "NewServer error")

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	return srv, httpSrv, dataDir
}

func DoGet(t *testing.T, url string, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	require.NoError(t, err, "creating GET request")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "GET "+url)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	var body core.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Error)
	return body.Error
}

// seedGallery writes a "cats" gallery: three horizontal and one vertical
// image, no square manifest.
func seedGallery(t *testing.T, root string) {
	t.Helper()
	writeObject(t, root, "koishi/cats/horizontal/manifest.json", `["h1.png","h2.png","h3.png"]`)
	writeObject(t, root, "koishi/cats/horizontal/h1.png", "h1")
	writeObject(t, root, "koishi/cats/horizontal/h2.png", "h2")
	writeObject(t, root, "koishi/cats/horizontal/h3.png", "h3")
	writeObject(t, root, "koishi/cats/vertical/manifest.json", `["v1.png"]`)
	writeObject(t, root, "koishi/cats/vertical/v1.png", "v1")
}

func TestAPIExplicitOrientation(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	seedGallery(t, root)

	for range 20 {
		resp := DoGet(t, httpSrv.URL+"/api?orientation=horizontal")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		require.Contains(t, []string{"h1", "h2", "h3"}, body)

		sum := sha256.Sum256([]byte(body))
		require.Equal(t, `"`+hex.EncodeToString(sum[:])+`"`, resp.Header.Get("ETag"))
		require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		require.Equal(t, "2", resp.Header.Get("Content-Length"))
		require.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
		require.Equal(t, "no-cache", resp.Header.Get("Pragma"))
		require.Equal(t, "0", resp.Header.Get("Expires"))
	}

	resp := DoGet(t, httpSrv.URL+"/api?orientation=vertical")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "v1", readBody(t, resp))
}

func TestAPIAnyProportionalToManifestLength(t *testing.T) {
	t.Parallel()

	srv, _, root := NewTestServer(t)
	seedGallery(t, root)
	handler := srv.Handler()

	const draws = 2000
	counts := map[string]int{}
	for range draws {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		counts[rec.Body.String()]++
	}

	horizontal := counts["h1"] + counts["h2"] + counts["h3"]
	require.Equal(t, draws, horizontal+counts["v1"], "draws stay within the candidate set")
	require.InDelta(t, 0.75, float64(horizontal)/draws, 0.05)
	require.InDelta(t, 0.25, float64(counts["v1"])/draws, 0.05)
}

func TestAPIDeterministicRandomSource(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t, core.WithRandomSource(func(n int) int { return n - 1 }))
	seedGallery(t, root)

	resp := DoGet(t, httpSrv.URL+"/api?orientation=any")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "v1", readBody(t, resp))
}

func TestAPIEmptyGallery(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	writeObject(t, root, "koishi/cats/horizontal/manifest.json", `[]`)
	writeObject(t, root, "koishi/cats/vertical/manifest.json", `{"not":"a list"}`)

	resp := DoGet(t, httpSrv.URL+"/api?orientation=any")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "no images are available in the gallery", decodeError(t, resp))

	resp = DoGet(t, httpSrv.URL+"/api")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	decodeError(t, resp)

	resp = DoGet(t, httpSrv.URL+"/api?orientation=horizontal")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "category 'horizontal' has no images", decodeError(t, resp))

	resp = DoGet(t, httpSrv.URL+"/api?orientation=square")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "category 'square' does not exist or is missing manifest.json", decodeError(t, resp))
}

func TestAPIInvalidOrientation(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	seedGallery(t, root)

	resp := DoGet(t, httpSrv.URL+"/api?orientation=diagonal")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	msg := decodeError(t, resp)
	for _, v := range []string{"horizontal", "vertical", "square", "any"} {
		require.Contains(t, msg, v)
	}
}

func TestAPIMissingImageObject(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	writeObject(t, root, "koishi/cats/square/manifest.json", `["gone.jpg"]`)

	resp := DoGet(t, httpSrv.URL+"/api?orientation=square")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "selected image file 'gone.jpg' does not exist", decodeError(t, resp))
}

func TestAPIManifestEntryCannotLeaveOrientation(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	writeObject(t, root, "koishi/cats/horizontal/manifest.json", `["../vertical/v1.png"]`)
	writeObject(t, root, "koishi/cats/vertical/manifest.json", `["v1.png"]`)
	writeObject(t, root, "koishi/cats/vertical/v1.png", "v1")
	writeObject(t, root, "koishi/cats/square/manifest.json", `[""]`)

	resp := DoGet(t, httpSrv.URL+"/api?orientation=horizontal")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "selected image file '../vertical/v1.png' does not exist", decodeError(t, resp))

	resp = DoGet(t, httpSrv.URL+"/api?orientation=square")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "selected image file '' does not exist", decodeError(t, resp))
}

func TestAPIPrefixRouting(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	seedGallery(t, root)

	resp := DoGet(t, httpSrv.URL+"/api/anything?orientation=vertical")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "v1", readBody(t, resp))

	resp = DoGet(t, httpSrv.URL+"/apix?orientation=vertical")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNoTagDirectory(t *testing.T) {
	t.Parallel()

	_, httpSrv, _ := NewTestServer(t)

	resp := DoGet(t, httpSrv.URL+"/api")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Contains(t, decodeError(t, resp), "no tag directories found")

	resp = DoGet(t, httpSrv.URL+"/")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	require.Contains(t, readBody(t, resp), "Server configuration error: no tag directories found")
}

func TestWithoutStorageEngine(t *testing.T) {
	t.Parallel()

	srv, err := core.NewServer(core.NewConfig())
	require.NoError(t, err)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"storage bucket not bound"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Server configuration error: storage bucket not bound")
}

// emptyTagEngine lists a single tag directory whose name is empty.
type emptyTagEngine struct{}

func (emptyTagEngine) ListObjects(ctx context.Context, prefix string, delimiter string) (storage.Listing, error) {
	return storage.Listing{Prefixes: []string{prefix + "/"}}, nil
}

func (emptyTagEngine) GetObject(ctx context.Context, key string) (*storage.Object, error) {
	return nil, storage.ErrObjectNotFound
}

func TestIndexUndeterminedTag(t *testing.T) {
	t.Parallel()

	srv, err := core.NewServer(core.NewConfig(core.WithStorageEngine(emptyTagEngine{})))
	require.NoError(t, err)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "could not determine tag name from storage layout\n", rec.Body.String())
	require.NotContains(t, rec.Body.String(), "Server configuration error")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"could not determine tag name from storage layout"}`, rec.Body.String())
}

func TestAPIOrientationCheckedBeforeStorage(t *testing.T) {
	t.Parallel()

	srv, err := core.NewServer(core.NewConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api?orientation=diagonal", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotContains(t, rec.Body.String(), "storage bucket not bound")
}

type failingEngine struct{}

func (failingEngine) ListObjects(ctx context.Context, prefix string, delimiter string) (storage.Listing, error) {
	return storage.Listing{}, errors.New("connection refused by 10.0.0.7")
}

func (failingEngine) GetObject(ctx context.Context, key string) (*storage.Object, error) {
	return nil, errors.New("connection refused by 10.0.0.7")
}

func TestStorageFailureIsNotLeaked(t *testing.T) {
	t.Parallel()

	srv, err := core.NewServer(core.NewConfig(core.WithStorageEngine(failingEngine{})))
	require.NoError(t, err)
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"An unknown internal server error occurred."}`, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "10.0.0.7")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Error fetching data for index page.\n", rec.Body.String())
}

func TestIndexPageCounts(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	seedGallery(t, root)
	writeObject(t, root, "koishi/cats/square/manifest.json", `not json`)

	resp := DoGet(t, httpSrv.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	page := readBody(t, resp)
	require.Contains(t, page, "<strong>cats</strong>")
	require.Contains(t, page, "total: 4 images")
	require.Contains(t, page, "[count: 3]")
	require.Contains(t, page, "[count: 1]")
	require.Contains(t, page, "[count: 0]")
	require.Contains(t, page, httpSrv.URL+"/api?orientation=horizontal")
}

func TestIndexPageAPIBaseURL(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	seedGallery(t, root)
	engine := storage.NewLocalFileStorage(root)

	srv, err := core.NewServer(core.NewConfig(core.WithStorageEngine(engine)))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "img.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://img.example.com/api")

	srv, err = core.NewServer(core.NewConfig(
		core.WithStorageEngine(engine),
		core.WithPublicURL("https://pics.example.org/"),
	))
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://pics.example.org/api?orientation=square")
}

func TestNewServerRejectsRelativePublicURL(t *testing.T) {
	t.Parallel()

	_, err := core.NewServer(core.NewConfig(core.WithPublicURL("pics.example.org")))
	require.Error(t, err)
}

func TestCustomBasePrefix(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t, core.WithBasePrefix("gallery"))
	writeObject(t, root, "gallery/dogs/square/manifest.json", `["s.png"]`)
	writeObject(t, root, "gallery/dogs/square/s.png", "s")

	resp := DoGet(t, httpSrv.URL+"/api?orientation=square")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "s", readBody(t, resp))
}

func TestStyleSheet(t *testing.T) {
	t.Parallel()

	_, httpSrv, _ := NewTestServer(t)

	first := DoGet(t, httpSrv.URL+"/style.css")
	require.Equal(t, http.StatusOK, first.StatusCode)
	require.Equal(t, "text/css; charset=utf-8", first.Header.Get("Content-Type"))
	require.Equal(t, "public, max-age=86400", first.Header.Get("Cache-Control"))

	second := DoGet(t, httpSrv.URL+"/style.css")
	require.Equal(t, readBody(t, first), readBody(t, second))
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()

	_, httpSrv, root := NewTestServer(t)
	seedGallery(t, root)

	for _, path := range []string{"/nope", "/style.css/extra", "/index.html"} {
		resp := DoGet(t, httpSrv.URL+path)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		require.NotContains(t, resp.Header.Get("Content-Type"), "json", path)
		require.Equal(t, "Not Found\n", readBody(t, resp), path)
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	_, httpSrv, _ := NewTestServer(t)

	resp := DoGet(t, httpSrv.URL+"/style.css")
	_, err := uuid.Parse(resp.Header.Get(core.RequestIDHeader))
	require.NoError(t, err)

	const id = "7a1d1b0e-3f4c-4b8e-9d3a-2b6c5e4f1a90"
	resp = DoGet(t, httpSrv.URL+"/style.css", core.RequestIDHeader, id)
	require.Equal(t, id, resp.Header.Get(core.RequestIDHeader))

	resp = DoGet(t, httpSrv.URL+"/style.css", core.RequestIDHeader, "not-an-id")
	require.NotEqual(t, "not-an-id", resp.Header.Get(core.RequestIDHeader))
}
