package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	svc := services.NewExpenseService(repo, nil)
	t.Cleanup(func() { svc.Close() })
	return NewServer(":0", svc, Options{RateLimitPerMinute: 1000})
}

func do(t *testing.T, srv *Server, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func addExpense(t *testing.T, srv *Server, category, amount, date string) {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/add", url.Values{
		"category": {category},
		"amount":   {amount},
		"date":     {date},
	})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("add %s: status=%d location=%q body=%s", category, rr.Code, rr.Header().Get("Location"), rr.Body.String())
	}
}

func apiExpenses(t *testing.T, srv *Server) [][]any {
	t.Helper()
	rr := do(t, srv, http.MethodGet, "/api/expenses", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("api status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("api content type %q", ct)
	}
	var tuples [][]any
	if err := json.Unmarshal(rr.Body.Bytes(), &tuples); err != nil {
		t.Fatalf("decode api body %q: %v", rr.Body.String(), err)
	}
	return tuples
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Expense Tracker") {
		t.Fatalf("index body missing heading")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("security headers not applied")
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/app.js"} {
		rr := do(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestAPIEmptyListIsArray(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/expenses", nil)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", rr.Body.String())
	}
}

func TestAddThenList(t *testing.T) {
	srv := newTestServer(t)
	addExpense(t, srv, "Food", "12.50", "2024-01-02")

	tuples := apiExpenses(t, srv)
	if len(tuples) != 1 {
		t.Fatalf("expected 1 expense, got %v", tuples)
	}
	got := tuples[0]
	if len(got) != 4 {
		t.Fatalf("expected 4-tuple, got %v", got)
	}
	if got[0].(float64) != 1 || got[1] != "Food" || got[2].(float64) != 12.5 || got[3] != "2024-01-02" {
		t.Fatalf("unexpected tuple %v", got)
	}

	rr := do(t, srv, http.MethodGet, "/", nil)
	body := rr.Body.String()
	for _, want := range []string{"Food", "12.50", "2024-01-02", `action="/delete/1"`, "data-chart="} {
		if !strings.Contains(body, want) {
			t.Fatalf("index missing %q", want)
		}
	}
}

func TestAddKeepsTextVerbatim(t *testing.T) {
	srv := newTestServer(t)
	addExpense(t, srv, "  Food ", "1", " 2024-01-01 ")

	tuples := apiExpenses(t, srv)
	if len(tuples) != 1 || tuples[0][1] != "  Food " || tuples[0][3] != " 2024-01-01 " {
		t.Fatalf("text not stored verbatim: %q", tuples)
	}
}

func TestAPIOrderedByDateDescending(t *testing.T) {
	srv := newTestServer(t)
	addExpense(t, srv, "A", "1", "2024-01-01")
	addExpense(t, srv, "B", "1", "2024-01-10")
	addExpense(t, srv, "C", "1", "2024-01-02")

	var dates []string
	for _, tuple := range apiExpenses(t, srv) {
		dates = append(dates, tuple[3].(string))
	}
	want := "2024-01-10,2024-01-02,2024-01-01"
	if strings.Join(dates, ",") != want {
		t.Fatalf("dates = %v, want %s", dates, want)
	}
}

func TestDeleteExpense(t *testing.T) {
	srv := newTestServer(t)
	addExpense(t, srv, "A", "1", "2024-01-01")
	addExpense(t, srv, "B", "2", "2024-01-02")
	addExpense(t, srv, "C", "3", "2024-01-03")

	rr := do(t, srv, http.MethodPost, "/delete/2", nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status=%d", rr.Code)
	}

	tuples := apiExpenses(t, srv)
	if len(tuples) != 2 {
		t.Fatalf("expected 2 remaining, got %v", tuples)
	}
	for _, tuple := range tuples {
		if tuple[0].(float64) == 2 {
			t.Fatalf("expense 2 still present: %v", tuples)
		}
	}

	// Unknown id: silently accepted, table unchanged.
	rr = do(t, srv, http.MethodPost, "/delete/999", nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete unknown status=%d", rr.Code)
	}
	if len(apiExpenses(t, srv)) != 2 {
		t.Fatalf("table changed after deleting unknown id")
	}
}

func TestDeleteRejectsNonPositiveIDs(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/delete/abc", "/delete/0", "/delete/-1"} {
		if rr := do(t, srv, http.MethodPost, path, nil); rr.Code != http.StatusNotFound {
			t.Fatalf("%s status=%d, want 404", path, rr.Code)
		}
	}
}

func TestAddValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"non-numeric amount", url.Values{"category": {"Food"}, "amount": {"abc"}, "date": {"2024-01-01"}}, http.StatusUnprocessableEntity},
		{"overflowing amount", url.Values{"category": {"Food"}, "amount": {"1e400"}, "date": {"2024-01-01"}}, http.StatusUnprocessableEntity},
		{"empty amount", url.Values{"category": {"Food"}, "amount": {""}, "date": {"2024-01-01"}}, http.StatusUnprocessableEntity},
		{"missing date", url.Values{"category": {"Food"}, "amount": {"1"}}, http.StatusBadRequest},
		{"missing category", url.Values{"amount": {"1"}, "date": {"2024-01-01"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/add", tt.form)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d", rr.Code, tt.want)
			}
			if !strings.Contains(rr.Header().Get("Content-Type"), "text/html") {
				t.Fatalf("expected HTML error page")
			}
		})
	}

	if len(apiExpenses(t, srv)) != 0 {
		t.Fatalf("invalid input must not be stored")
	}
}

func TestWrongMethods(t *testing.T) {
	srv := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/add"},
		{http.MethodGet, "/delete/1"},
		{http.MethodPost, "/api/expenses"},
	} {
		if rr := do(t, srv, tc.method, tc.path, nil); rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s status=%d, want 405", tc.method, tc.path, rr.Code)
		}
	}
}

func TestHTMLAndJSONAgree(t *testing.T) {
	srv := newTestServer(t)
	addExpense(t, srv, "Food", "10", "2024-01-01")
	addExpense(t, srv, "Food", "5", "2024-01-03")
	addExpense(t, srv, "Travel", "20", "2024-01-02")
	do(t, srv, http.MethodPost, "/delete/1", nil)

	body := do(t, srv, http.MethodGet, "/", nil).Body.String()
	tuples := apiExpenses(t, srv)

	if got := strings.Count(body, "data-expense-id="); got != len(tuples) {
		t.Fatalf("HTML rows = %d, JSON rows = %d", got, len(tuples))
	}
	last := -1
	for _, tuple := range tuples {
		marker := fmt.Sprintf(`data-expense-id="%d"`, int64(tuple[0].(float64)))
		pos := strings.Index(body, marker)
		if pos < 0 {
			t.Fatalf("HTML missing row %s", marker)
		}
		if pos < last {
			t.Fatalf("HTML order differs from JSON order")
		}
		last = pos
	}
}

func TestIndexChartAggregates(t *testing.T) {
	srv := newTestServer(t)
	addExpense(t, srv, "Food", "10", "2024-01-01")
	addExpense(t, srv, "Food", "5", "2024-01-02")
	addExpense(t, srv, "Travel", "20", "2024-01-03")

	body := do(t, srv, http.MethodGet, "/", nil).Body.String()
	for _, want := range []string{"15.00", "20.00", "#ff9999"} {
		if !strings.Contains(body, want) {
			t.Fatalf("index missing %q", want)
		}
	}
}

type failingService struct{}

func (failingService) Dashboard(ctx context.Context) (services.Dashboard, error) {
	return services.Dashboard{}, errors.New("db locked")
}
func (failingService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return nil, errors.New("db locked")
}
func (failingService) AddExpense(ctx context.Context, e core.NewExpense) (int64, error) {
	return 0, errors.New("db locked")
}
func (failingService) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	return false, errors.New("db locked")
}
func (failingService) Ready(ctx context.Context) error { return errors.New("db locked") }

func TestStorageFailuresReturnServerErrors(t *testing.T) {
	srv := NewServer(":0", failingService{}, Options{RateLimitPerMinute: 1000})

	cases := []struct {
		method, path string
		form         url.Values
		want         int
	}{
		{http.MethodGet, "/", nil, http.StatusInternalServerError},
		{http.MethodGet, "/api/expenses", nil, http.StatusInternalServerError},
		{http.MethodPost, "/add", url.Values{"category": {"A"}, "amount": {"1"}, "date": {"d"}}, http.StatusInternalServerError},
		{http.MethodPost, "/delete/1", nil, http.StatusInternalServerError},
		{http.MethodGet, "/readyz", nil, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if rr := do(t, srv, tc.method, tc.path, tc.form); rr.Code != tc.want {
			t.Fatalf("%s %s status=%d, want %d", tc.method, tc.path, rr.Code, tc.want)
		}
	}
	if srv.Metrics().ServerErrors == 0 {
		t.Fatalf("server errors not counted")
	}
}

func TestPostRateLimited(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	svc := services.NewExpenseService(repo, nil)
	defer svc.Close()
	srv := NewServer(":0", svc, Options{RateLimitPerMinute: 2})

	form := url.Values{"category": {"A"}, "amount": {"1"}, "date": {"2024-01-01"}}
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/add", form); rr.Code != http.StatusSeeOther {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	if rr := do(t, srv, http.MethodPost, "/add", form); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/expenses", nil); rr.Code != http.StatusOK {
		t.Fatalf("GET must not be rate limited, got %d", rr.Code)
	}
}

func TestRateLimitIgnoresForwardedHeaderByDefault(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	svc := services.NewExpenseService(repo, nil)
	defer svc.Close()

	post := func(srv *Server, forwardedFor string) int {
		form := url.Values{"category": {"A"}, "amount": {"1"}, "date": {"2024-01-01"}}
		req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	direct := NewServer(":0", svc, Options{RateLimitPerMinute: 1})
	if code := post(direct, "1.1.1.1"); code != http.StatusSeeOther {
		t.Fatalf("first request status=%d", code)
	}
	if code := post(direct, "2.2.2.2"); code != http.StatusTooManyRequests {
		t.Fatalf("rotating X-Forwarded-For must not reset the limit, got %d", code)
	}

	proxied := NewServer(":0", svc, Options{RateLimitPerMinute: 1, TrustProxyHeaders: true})
	if code := post(proxied, "3.3.3.3"); code != http.StatusSeeOther {
		t.Fatalf("proxied first request status=%d", code)
	}
	if code := post(proxied, "4.4.4.4"); code != http.StatusSeeOther {
		t.Fatalf("distinct forwarded clients get separate buckets, got %d", code)
	}
}
