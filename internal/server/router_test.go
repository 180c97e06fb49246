package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/Real-Bird/upload-server/internal/config"
	"github.com/Real-Bird/upload-server/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fiveMiB = 5 * 1024 * 1024

func TestUploadAcceptsUpToThreeFiles(t *testing.T) {
	router, dir := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	body, contentType := multipartBody(t, "many",
		part{"alpha.txt", []byte("a")},
		part{"beta.png", []byte("b")},
		part{"gamma", []byte("c")},
	)
	rr := do(router, http.MethodPost, "/upload", body, contentType)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assertMatchesOne(t, names, `^alpha\d{13}\.txt$`)
	assertMatchesOne(t, names, `^beta\d{13}\.png$`)
	assertMatchesOne(t, names, `^gamma\d{13}$`)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	router, dir := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	body, contentType := multipartBody(t, "many", part{"big.bin", bytes.Repeat([]byte("x"), fiveMiB+1)})
	rr := do(router, http.MethodPost, "/upload", body, contentType)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "file too large", rr.Body.String())
	assertEmptyDir(t, dir)
}

func TestUploadRejectsMoreThanThreeFiles(t *testing.T) {
	router, dir := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	body, contentType := multipartBody(t, "many",
		part{"1.txt", []byte("1")},
		part{"2.txt", []byte("2")},
		part{"3.txt", []byte("3")},
		part{"4.txt", []byte("4")},
	)
	rr := do(router, http.MethodPost, "/upload", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "too many files", rr.Body.String())
	assertEmptyDir(t, dir)
}

func TestUploadRejectsFilesUnderUnexpectedField(t *testing.T) {
	router, dir := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	body, contentType := multipartBody(t, "other", part{"a.txt", []byte("a")})
	rr := do(router, http.MethodPost, "/upload", body, contentType)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "unexpected field", rr.Body.String())
	assertEmptyDir(t, dir)
}

func TestUploadRejectsBodyAboveRequestLimit(t *testing.T) {
	router, dir := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 1, MaxFileSize: 1024})

	body, contentType := multipartBody(t, "many", part{"huge.bin", bytes.Repeat([]byte("x"), 2<<20)})
	rr := do(router, http.MethodPost, "/upload", body, contentType)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assertEmptyDir(t, dir)
}

func TestUploadRejectsNonMultipartBody(t *testing.T) {
	router, _ := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	rr := do(router, http.MethodPost, "/upload", strings.NewReader(`{"a":1}`), "application/json")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid multipart form", rr.Body.String())
}

func TestUploadFormPage(t *testing.T) {
	router, _ := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	rr := do(router, http.MethodGet, "/upload", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `enctype="multipart/form-data"`)

	rr = do(router, http.MethodGet, "/multipart.html", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="many"`)
}

func TestIndexRendersTitle(t *testing.T) {
	router, _ := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	rr := do(router, http.MethodGet, "/", nil, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Express")
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	router, _ := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	for _, path := range []string{"/nope", "/user/42/profile", "/uploads/secret.txt"} {
		rr := do(router, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Equal(t, "Not Found", rr.Body.String(), path)
	}

	rr := do(router, http.MethodDelete, "/upload", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestErrorHandlerHidesRawMessages(t *testing.T) {
	router, _ := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("mongodb://admin:hunter2@db:27017 unreachable"))
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("secret state")
	})

	rr := do(router, http.MethodGet, "/boom", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal Server Error", rr.Body.String())

	rr = do(router, http.MethodGet, "/panic", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
}

func TestUserRoutesTrackSession(t *testing.T) {
	router, _ := newTestRouter(t, upload.Limits{Field: "many", MaxFiles: 3, MaxFileSize: fiveMiB})

	rr := do(router, http.MethodGet, "/user", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "respond with a resource", rr.Body.String())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session-cookie", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/user/session", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"views":1}`, rr.Body.String())
}

func TestReadinessReflectsDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := &fakePinger{}
	router := NewRouter(Dependencies{Config: testConfig(), Logger: zap.NewNop(), DB: db})

	rr := do(router, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	db.err = errors.New("server selection timeout")
	rr = do(router, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","component":"mongo"}`, rr.Body.String())

	rr = do(router, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadinessReflectsObjectStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(Dependencies{
		Config:      testConfig(),
		Logger:      zap.NewNop(),
		DB:          &fakePinger{},
		ObjectStore: &fakeChecker{err: errors.New("bucket missing")},
	})

	rr := do(router, http.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "minio")
}

// --- helpers & fakes ---

func testConfig() config.Config {
	return config.Config{
		Session: config.SessionConfig{Name: "session-cookie", Secret: "test-secret"},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}
}

func newTestRouter(t *testing.T, limits upload.Limits) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	service := upload.NewService(upload.NewDiskStore(dir), limits)
	router := NewRouter(Dependencies{
		Config:  testConfig(),
		Logger:  zap.NewNop(),
		DB:      &fakePinger{},
		Uploads: service,
	})
	return router, dir
}

type part struct {
	name    string
	content []byte
}

func multipartBody(t *testing.T, field string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		w, err := writer.CreateFormFile(field, p.name)
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.WriteField("title", "holiday"))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func do(router http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func assertMatchesOne(t *testing.T, names []string, pattern string) {
	t.Helper()
	re := regexp.MustCompile(pattern)
	for _, n := range names {
		if re.MatchString(n) {
			return
		}
	}
	t.Fatalf("no stored file matches %s in %s", pattern, fmt.Sprint(names))
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}

type fakeChecker struct {
	err error
}

func (f *fakeChecker) Check(ctx context.Context) error {
	return f.err
}
