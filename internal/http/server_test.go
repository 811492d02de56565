package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"notaspese/internal/middleware/ratelimit"
	"notaspese/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewServer(":0", repo, nil, nil)
}

// do runs one request through the full middleware chain and decodes the JSON
// response into out when it is non-nil.
func do(t *testing.T, s *Server, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func TestPing(t *testing.T) {
	s := newTestServer(t)

	var body map[string]int
	rec := do(t, s, http.MethodGet, "/ping/", nil, &body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if body["pong"] != 200 {
		t.Fatalf("body: got %v", body)
	}
}

func TestEmployeeLifecycle(t *testing.T) {
	s := newTestServer(t)

	var created map[string]any
	rec := do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "asterios", "age": 23}, &created)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", rec.Code, rec.Body.String())
	}
	id := created["id"].(string)

	var got map[string]any
	if rec := do(t, s, http.MethodGet, "/employees/"+id+"/", nil, &got); rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}
	if got["name"] != "asterios" || got["age"].(float64) != 23 {
		t.Fatalf("get body: %v", got)
	}

	var updated map[string]any
	rec = do(t, s, http.MethodPut, "/employees/"+id+"/", map[string]any{"name": "nikos", "age": 30}, &updated)
	if rec.Code != http.StatusOK || updated["name"] != "nikos" {
		t.Fatalf("put: got %d body %v", rec.Code, updated)
	}

	rec = do(t, s, http.MethodPatch, "/employees/"+id+"/", map[string]any{"age": 31}, &updated)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: got %d body %s", rec.Code, rec.Body.String())
	}
	if updated["name"] != "nikos" || updated["age"].(float64) != 31 {
		t.Fatalf("patch should keep untouched fields: %v", updated)
	}

	if rec := do(t, s, http.MethodDelete, "/employees/"+id+"/", nil, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/employees/"+id+"/", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rec.Code)
	}
}

func TestValidationErrorsListEveryField(t *testing.T) {
	s := newTestServer(t)

	var fields map[string][]string
	rec := do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "", "age": 17}, &fields)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
	if len(fields["name"]) == 0 || len(fields["age"]) == 0 {
		t.Fatalf("expected both name and age violations, got %v", fields)
	}
}

func TestNotFoundShape(t *testing.T) {
	s := newTestServer(t)

	var body map[string]string
	rec := do(t, s, http.MethodGet, "/projects/missing/", nil, &body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rec.Code)
	}
	if body["detail"] != "Not found." {
		t.Fatalf("body: got %v", body)
	}
}

func TestReceiptTotalsThroughTheAPI(t *testing.T) {
	s := newTestServer(t)

	var emp, proj, receipt map[string]any
	do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "asterios", "age": 23}, &emp)
	do(t, s, http.MethodPost, "/projects/", map[string]any{
		"name": "first project", "description": "d", "employees": []string{emp["id"].(string)},
	}, &proj)
	rec := do(t, s, http.MethodPost, "/receipts/", map[string]any{
		"employee": emp["id"], "project": proj["id"],
	}, &receipt)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create receipt: got %d body %s", rec.Code, rec.Body.String())
	}
	if receipt["total"] != "0.00" {
		t.Fatalf("fresh receipt total: got %v", receipt["total"])
	}

	// Price as number and as string must both be accepted.
	for _, payload := range []map[string]any{
		{"receipt": receipt["id"], "item": "Tool", "price": 100, "VAT": 24},
		{"receipt": receipt["id"], "item": "Tool", "price": "200", "VAT": "14"},
	} {
		if rec := do(t, s, http.MethodPost, "/expenses/", payload, nil); rec.Code != http.StatusCreated {
			t.Fatalf("create expense: got %d body %s", rec.Code, rec.Body.String())
		}
	}

	var got map[string]any
	do(t, s, http.MethodGet, "/receipts/"+receipt["id"].(string)+"/", nil, &got)
	if got["total"] != "352.00" {
		t.Fatalf("receipt total: got %v", got["total"])
	}
	if got["employee_name"] != "asterios" || got["project_name"] != "first project" {
		t.Fatalf("names: got %v", got)
	}

	var gotProj map[string]any
	do(t, s, http.MethodGet, "/projects/"+proj["id"].(string)+"/", nil, &gotProj)
	if gotProj["total"] != "352.00" {
		t.Fatalf("project total: got %v", gotProj["total"])
	}
}

func TestExpenseQuantityDefaultsToOne(t *testing.T) {
	s := newTestServer(t)

	var emp, proj, receipt, expense map[string]any
	do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "a", "age": 20}, &emp)
	do(t, s, http.MethodPost, "/projects/", map[string]any{"name": "p"}, &proj)
	do(t, s, http.MethodPost, "/receipts/", map[string]any{"employee": emp["id"], "project": proj["id"]}, &receipt)

	rec := do(t, s, http.MethodPost, "/expenses/", map[string]any{
		"receipt": receipt["id"], "item": "Tool", "price": "10", "VAT": "0",
	}, &expense)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d body %s", rec.Code, rec.Body.String())
	}
	if expense["quantity"].(float64) != 1 {
		t.Fatalf("quantity default: got %v", expense["quantity"])
	}
	if expense["VAT"] != "0" {
		t.Fatalf("VAT field name or value wrong: %v", expense)
	}
}

func TestReceiptReferencesRejectedOnChange(t *testing.T) {
	s := newTestServer(t)

	var empA, empB, proj, receipt map[string]any
	do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "a", "age": 20}, &empA)
	do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "b", "age": 21}, &empB)
	do(t, s, http.MethodPost, "/projects/", map[string]any{"name": "p"}, &proj)
	do(t, s, http.MethodPost, "/receipts/", map[string]any{"employee": empA["id"], "project": proj["id"]}, &receipt)

	var fields map[string][]string
	rec := do(t, s, http.MethodPut, "/receipts/"+receipt["id"].(string)+"/", map[string]any{
		"employee": empB["id"], "project": proj["id"],
	}, &fields)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body %s", rec.Code, rec.Body.String())
	}
	if len(fields["employee"]) == 0 {
		t.Fatalf("expected employee violation, got %v", fields)
	}
}

func TestRateLimitBoundary(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	limiter := ratelimit.NewLimiter(ratelimit.Config{Limit: 8, Window: 60 * time.Second})
	s := NewServer(":0", repo, limiter, nil)
	t.Cleanup(limiter.Stop)

	for i := 0; i < 8; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/ping/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("9th request: got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body["error"] != "429" || body["message"] != "Too many requests" {
		t.Fatalf("429 body: got %v", body)
	}

	// A different forwarded client is unaffected.
	req = httptest.NewRequest(http.MethodGet, "/ping/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9")
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client: got %d", rec.Code)
	}
}

func TestProjectMembershipReplacedViaPut(t *testing.T) {
	s := newTestServer(t)

	var empA, empB, proj map[string]any
	do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "a", "age": 20}, &empA)
	do(t, s, http.MethodPost, "/employees/", map[string]any{"name": "b", "age": 21}, &empB)
	do(t, s, http.MethodPost, "/projects/", map[string]any{
		"name": "p", "employees": []string{empA["id"].(string)},
	}, &proj)

	var updated struct {
		Employees []string `json:"employees"`
	}
	rec := do(t, s, http.MethodPut, "/projects/"+proj["id"].(string)+"/", map[string]any{
		"name": "p", "employees": []string{empB["id"].(string)},
	}, &updated)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: got %d body %s", rec.Code, rec.Body.String())
	}
	if len(updated.Employees) != 1 || updated.Employees[0] != empB["id"].(string) {
		t.Fatalf("membership: got %v", updated.Employees)
	}
}
