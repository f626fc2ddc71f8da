package httpserver

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"tiergc/infra/census"
	"tiergc/service"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := census.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := service.NewRegistryService(service.Options{}, service.Deps{
		Census: db,
		Logger: log.New(io.Discard, "", 0),
	})
	return New(svc, "test-version")
}

func do(t *testing.T, srv *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, out
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	code, body := do(t, srv, "GET", "/api/health", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["consistent"] != true {
		t.Errorf("consistent = %v, want true", body["consistent"])
	}
}

func TestObjectLifecycle(t *testing.T) {
	srv := testServer(t)

	code, body := do(t, srv, "POST", "/api/objects", `{"value":10,"generation":"middle"}`)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", code, body)
	}
	handle := body["handle"].(float64)
	path := "/api/objects/" + strconv.FormatUint(uint64(handle), 10)

	code, body = do(t, srv, "POST", path+"/addref", "")
	if code != http.StatusOK || body["ref_count"] != float64(2) {
		t.Fatalf("addref = %d %v", code, body)
	}

	code, body = do(t, srv, "GET", path, "")
	if code != http.StatusOK {
		t.Fatalf("describe status = %d", code)
	}
	if body["generation"] != "middle" || body["value"] != float64(10) {
		t.Errorf("describe body = %v", body)
	}

	code, body = do(t, srv, "GET", "/api/generations/middle", "")
	if code != http.StatusOK || body["size"] != float64(1) {
		t.Fatalf("generation = %d %v", code, body)
	}

	for i := 0; i < 2; i++ {
		if code, body = do(t, srv, "POST", path+"/release", ""); code != http.StatusOK {
			t.Fatalf("release %d = %d %v", i, code, body)
		}
	}
	if code, _ = do(t, srv, "GET", path, ""); code != http.StatusNotFound {
		t.Errorf("describe after destroy = %d, want 404", code)
	}
	if code, _ = do(t, srv, "POST", path+"/release", ""); code != http.StatusNotFound {
		t.Errorf("release after destroy = %d, want 404", code)
	}
}

func TestCollectAndCollections(t *testing.T) {
	srv := testServer(t)
	for i := 0; i < 3; i++ {
		if code, _ := do(t, srv, "POST", "/api/objects", `{"value":1}`); code != http.StatusCreated {
			t.Fatalf("create status = %d", code)
		}
	}

	code, body := do(t, srv, "POST", "/api/collect", "")
	if code != http.StatusOK || body["young_to_middle"] != float64(3) {
		t.Fatalf("collect = %d %v", code, body)
	}

	code, body = do(t, srv, "GET", "/api/collections?limit=5", "")
	if code != http.StatusOK {
		t.Fatalf("collections status = %d", code)
	}
	rows := body["collections"].([]any)
	if len(rows) != 1 {
		t.Fatalf("collections = %d, want 1", len(rows))
	}
	totals := body["totals"].(map[string]any)
	if totals["passes"] != float64(1) || totals["promoted"] != float64(3) {
		t.Errorf("totals = %v", totals)
	}

	code, body = do(t, srv, "GET", "/api/stats", "")
	if code != http.StatusOK || body["collections"] != float64(1) {
		t.Fatalf("stats = %d %v", code, body)
	}
	sizes := body["sizes"].(map[string]any)
	if sizes["middle"] != float64(3) {
		t.Errorf("middle size = %v, want 3", sizes["middle"])
	}

	code, body = do(t, srv, "POST", "/api/cleanup", "")
	if code != http.StatusOK || body["destroyed"] != float64(3) {
		t.Fatalf("cleanup = %d %v", code, body)
	}
}

func TestBadRequests(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/objects", `not json`, http.StatusBadRequest},
		{"POST", "/api/objects", `{"value":1,"generation":"ancient"}`, http.StatusBadRequest},
		{"GET", "/api/objects/abc", "", http.StatusBadRequest},
		{"GET", "/api/objects/12345", "", http.StatusNotFound},
		{"GET", "/api/generations/ancient", "", http.StatusBadRequest},
		{"GET", "/api/collections?limit=0", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if code, _ := do(t, srv, tc.method, tc.path, tc.body); code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, code, tc.want)
		}
	}
}
