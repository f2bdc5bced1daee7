package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/store"
)

func testServer(t *testing.T, token string) (*Server, *store.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	srv := New(db, &Config{
		AuthToken: token,
		Logger:    log.New(io.Discard, "", 0),
	})
	return srv, db
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t, "s3cret")

	// The probe must work without auth, HEAD and GET alike.
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		w := doRequest(t, srv, method, "/healthz", "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s /healthz = %d, want 200", method, w.Code)
		}
	}
}

func TestAuth(t *testing.T) {
	srv, _ := testServer(t, "s3cret")

	w := doRequest(t, srv, http.MethodGet, "/api/v1/products", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/products", "wrong", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/products", "s3cret", nil)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuth_OpenWithoutConfiguredToken(t *testing.T) {
	srv, _ := testServer(t, "")

	w := doRequest(t, srv, http.MethodGet, "/api/v1/products", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("open server = %d, want 200", w.Code)
	}
}

func TestUpsertAndList(t *testing.T) {
	srv, _ := testServer(t, "")

	body := []byte(`{"id":"p1","name":"Paracetamol 500mg","price":4.5,"updated_at":"2025-06-01T12:00:00Z","created_at":"2025-06-01T12:00:00Z"}`)
	w := doRequest(t, srv, http.MethodPost, "/api/v1/products", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("POST = %d: %s", w.Code, w.Body)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/v1/products", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d", w.Code)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("response not a JSON array: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("%d records, want 1", len(records))
	}
}

func TestList_SinceFiltersStrictly(t *testing.T) {
	srv, db := testServer(t, "")
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		id string
		at time.Time
	}{
		{"old", base.Add(-time.Hour)},
		{"boundary", base},
		{"new", base.Add(time.Hour)},
	} {
		p := &schema.Product{ID: tc.id, Name: tc.id, Price: 1, CreatedAt: tc.at, UpdatedAt: tc.at}
		if err := db.UpsertRecord(ctx, p); err != nil {
			t.Fatalf("UpsertRecord() failed: %v", err)
		}
	}

	w := doRequest(t, srv, http.MethodGet,
		"/api/v1/products?since="+base.Format(time.RFC3339Nano), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d", w.Code)
	}

	var records []*schema.Product
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(records) != 1 || records[0].ID != "new" {
		t.Errorf("since filter returned %d records, want only the newer one", len(records))
	}
}

func TestList_MalformedSince(t *testing.T) {
	srv, _ := testServer(t, "")

	w := doRequest(t, srv, http.MethodGet, "/api/v1/products?since=yesterday", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed since = %d, want 400", w.Code)
	}
}

func TestUnknownTable(t *testing.T) {
	srv, _ := testServer(t, "")

	w := doRequest(t, srv, http.MethodGet, "/api/v1/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown table = %d, want 404", w.Code)
	}
}

func TestUpsert_RejectsInvalidAndMismatched(t *testing.T) {
	srv, _ := testServer(t, "")

	// No name fails validation.
	w := doRequest(t, srv, http.MethodPost, "/api/v1/products", "", []byte(`{"id":"p1"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid record = %d, want 400", w.Code)
	}

	// Path and body disagree on the ID.
	body := []byte(`{"id":"p1","name":"X","price":1}`)
	w = doRequest(t, srv, http.MethodPut, "/api/v1/products/other", "", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("id mismatch = %d, want 400", w.Code)
	}
}

func TestDelete(t *testing.T) {
	srv, db := testServer(t, "")
	ctx := context.Background()

	p := &schema.Product{ID: "p1", Name: "X", Price: 1}
	p.Touch(time.Now())
	if err := db.UpsertRecord(ctx, p); err != nil {
		t.Fatalf("UpsertRecord() failed: %v", err)
	}

	w := doRequest(t, srv, http.MethodDelete, "/api/v1/products/p1", "", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", w.Code)
	}

	// Idempotent: deleting again still succeeds.
	w = doRequest(t, srv, http.MethodDelete, "/api/v1/products/p1", "", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("second DELETE = %d, want 204", w.Code)
	}
}
