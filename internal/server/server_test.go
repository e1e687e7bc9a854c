package server

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chartvault/chartvault/internal/auth"
	"github.com/chartvault/chartvault/internal/cache"
	"github.com/chartvault/chartvault/internal/health"
	"github.com/chartvault/chartvault/internal/logger"
	"github.com/chartvault/chartvault/internal/repo"
	"github.com/chartvault/chartvault/internal/storage"
)

func buildChart(t *testing.T, name, version string) []byte {
	t.Helper()
	chartYAML := "name: " + name + "\nversion: " + version + "\n"

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{Name: name + "/Chart.yaml", Mode: 0644, Size: int64(len(chartYAML))}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if _, err := tw.Write([]byte(chartYAML)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	tw.Close()
	gz.Close()
	return buf.Bytes()
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := storage.NewMemoryStore()
	noCache, err := cache.New("", 0)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	log := logger.New()
	r := repo.New(store, noCache, log, "http://localhost:8080")
	checker := health.Init(store, noCache, log, repo.IndexKey)
	gate := auth.New("", "", "")
	return New(r, gate, checker, log, 0)
}

func TestPushThenGetIndexAndChart(t *testing.T) {
	s := newTestServer(t)
	raw := buildChart(t, "demo", "1.0.0")

	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT / = %d, body %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/index.yaml", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /index.yaml = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("name: demo")) {
		t.Fatalf("index missing pushed chart:\n%s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/demo-1.0.0.tgz", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET chart blob = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), raw) {
		t.Fatalf("chart blob mismatch")
	}
}

func TestGetIndexMissingIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/index.yaml", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /index.yaml on empty store = %d, want 404", w.Code)
	}
}

func TestPushUpdateIndexFalseSkipsIndex(t *testing.T) {
	s := newTestServer(t)
	raw := buildChart(t, "demo", "1.0.0")

	req := httptest.NewRequest(http.MethodPut, "/?updateIndex=false", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /?updateIndex=false = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/index.yaml", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("index should not exist when updateIndex=false, got %d", w.Code)
	}
}

func TestDeleteByNameAndVersion(t *testing.T) {
	s := newTestServer(t)
	for _, v := range []string{"1.0.1", "1.2.0"} {
		req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(buildChart(t, "ark", v)))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("seeding ark-%s failed: %d", v, w.Code)
		}
	}
	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(buildChart(t, "tomcat", "0.4.1")))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("seeding tomcat failed: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/charts/ark/1.0.1", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE /charts/ark/1.0.1 = %d, body %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/ark-1.0.1.tgz", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("ark-1.0.1.tgz should be gone, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/charts/ark", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE /charts/ark = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/index.yaml", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if bytes.Contains(w.Body.Bytes(), []byte("name: ark")) {
		t.Fatalf("ark should be fully removed from index:\n%s", w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("name: tomcat")) {
		t.Fatalf("tomcat should survive:\n%s", w.Body.String())
	}
}

func TestDeleteUnknownIs404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(buildChart(t, "ark", "1.0.1")))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("seed failed: %d", w.Code)
	}

	for _, path := range []string{"/charts/not-exist", "/charts/ark/0.0.0"} {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("DELETE %s = %d, want 404", path, w.Code)
		}
	}
}

func TestMalformedDeletePathsAre400(t *testing.T) {
	s := newTestServer(t)
	paths := []string{"/", "/charts", "/charts/", "/charts/name/1.3.2/extra", "/wrong/name/0.1.1"}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("DELETE %s = %d, want 400", path, w.Code)
		}
	}
}

func TestHealthzReportsHealthy(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, body %s", w.Code, w.Body.String())
	}
}

func TestMutatingRoutesRequireAuthWhenConfigured(t *testing.T) {
	store := storage.NewMemoryStore()
	noCache, _ := cache.New("", 0)
	log := logger.New()
	r := repo.New(store, noCache, log, "http://localhost:8080")
	checker := health.Init(store, noCache, log, repo.IndexKey)
	gate := auth.New("alice", "s3cret", "")
	s := New(r, gate, checker, log, 0)

	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(buildChart(t, "demo", "1.0.0")))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("PUT / without credentials = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/index.yaml", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Fatalf("GET /index.yaml should never require auth")
	}
}

func TestPushRejectsOversizedBodyByContentLength(t *testing.T) {
	store := storage.NewMemoryStore()
	noCache, _ := cache.New("", 0)
	log := logger.New()
	r := repo.New(store, noCache, log, "http://localhost:8080")
	checker := health.Init(store, noCache, log, repo.IndexKey)
	gate := auth.New("", "", "")
	s := New(r, gate, checker, log, 16)

	raw := buildChart(t, "demo", "1.0.0")
	req := httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(raw))
	req.ContentLength = int64(len(raw))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("PUT / over the configured limit = %d, want 413", w.Code)
	}
}
