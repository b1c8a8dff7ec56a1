package web

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/query/querytest"
	"github.com/evcraddock/immo/internal/schema"
)

func apiRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAPIListCommunes(t *testing.T) {
	srv, _ := testServer(t)

	w := apiRequest(t, srv, "GET", "/api/communes")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Communes []struct {
			Name       string `json:"name"`
			PostalCode string `json:"postal_code"`
			Label      string `json:"label"`
		} `json:"communes"`
		Total int `json:"total"`
	}
	decode(t, w, &resp)
	if resp.Total != 2 || len(resp.Communes) != 2 {
		t.Fatalf("got %d communes (total %d), want 2", len(resp.Communes), resp.Total)
	}
	if resp.Communes[0].Name != "Bordeaux" || resp.Communes[0].Label != "Bordeaux (33000)" {
		t.Errorf("first commune = %+v", resp.Communes[0])
	}
}

func TestAPISearchCommunes(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name  string
		path  string
		want  int
		total int
	}{
		{"by name", "/api/communes?q=nic", 1, 1},
		{"by postal code", "/api/communes?q=330", 1, 1},
		{"no match", "/api/communes?q=zzz", 0, 0},
		{"limited", "/api/communes?limit=1", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := apiRequest(t, srv, "GET", tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var resp struct {
				Communes []json.RawMessage `json:"communes"`
				Total    int               `json:"total"`
			}
			decode(t, w, &resp)
			if len(resp.Communes) != tt.want || resp.Total != tt.total {
				t.Errorf("got %d communes (total %d), want %d (total %d)", len(resp.Communes), resp.Total, tt.want, tt.total)
			}
		})
	}
}

func TestAPIListCommunesBadLimit(t *testing.T) {
	srv, _ := testServer(t)

	w := apiRequest(t, srv, "GET", "/api/communes?limit=abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAPIListCommunesUpstreamError(t *testing.T) {
	srv, mem := testServer(t)
	mem.FailWith("Dim_ville", &query.APIError{Status: 401, Message: "Invalid API key"})

	w := apiRequest(t, srv, "GET", "/api/communes")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "access denied") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestAPIListCommunesPartialLoad(t *testing.T) {
	mem := querytest.NewMemory()
	mem.Put("Dim_ville",
		query.Row{"code_insee": "33063", "code_postal": "33000", "nom_commune": "Bordeaux"},
		query.Row{"code_insee": "06088", "code_postal": "06000", "nom_commune": "Nice"},
	)
	mem.FailTable = "Dim_ville"
	mem.FailAfter = 2
	mem.FailErr = &query.APIError{Status: 500, Message: "statement timeout"}
	svc := market.NewService(mem, schema.Default(), market.Options{
		Directory: commune.DirectoryOptions{PageSize: 1},
	})
	srv := NewServer(svc)

	w := apiRequest(t, srv, "GET", "/api/communes")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Communes []json.RawMessage `json:"communes"`
		Total    int               `json:"total"`
		Warning  string            `json:"warning"`
	}
	decode(t, w, &resp)
	if resp.Total != 1 || len(resp.Communes) != 1 {
		t.Errorf("total = %d, communes = %d, want 1", resp.Total, len(resp.Communes))
	}
	if !strings.Contains(resp.Warning, "statement timeout") {
		t.Errorf("warning = %q", resp.Warning)
	}
}

func TestAPIMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/api/communes", "/api/communes/33000"} {
		w := apiRequest(t, srv, "POST", path)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", path, w.Code)
		}
	}
}

func TestAPIGetReport(t *testing.T) {
	srv, _ := testServer(t)

	w := apiRequest(t, srv, "GET", "/api/communes/33000")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status  string `json:"status"`
		Summary struct {
			Median float64 `json:"median_price_per_area"`
			Delta  int     `json:"price_trend_delta"`
			Volume int     `json:"transaction_volume"`
			Yield  float64 `json:"gross_yield_pct"`
		} `json:"summary"`
		Trend []struct {
			Quarter string `json:"quarter"`
		} `json:"trend"`
		Context []struct {
			Column string   `json:"column"`
			Value  *float64 `json:"value"`
		} `json:"context"`
	}
	decode(t, w, &resp)

	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Summary.Median != 4000 || resp.Summary.Delta != 0 || resp.Summary.Volume != 3 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.Summary.Yield < 5.99 || resp.Summary.Yield > 6.01 {
		t.Errorf("yield = %v, want 6", resp.Summary.Yield)
	}
	if len(resp.Trend) != 3 || resp.Trend[0].Quarter != "2023-Q1" {
		t.Errorf("trend = %+v", resp.Trend)
	}
	for _, c := range resp.Context {
		if c.Value != nil {
			t.Errorf("context %s = %v, want null", c.Column, *c.Value)
		}
	}
}

func TestAPIGetReportNoReference(t *testing.T) {
	srv, _ := testServer(t)

	w := apiRequest(t, srv, "GET", "/api/communes/1000")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		JoinKey  string          `json:"join_key"`
		Status   string          `json:"status"`
		Commune  json.RawMessage `json:"commune"`
		Warnings []string        `json:"warnings"`
		Summary  struct {
			Volume int `json:"transaction_volume"`
		} `json:"summary"`
	}
	decode(t, w, &resp)
	if resp.JoinKey != "01000" || resp.Status != "no_reference" {
		t.Errorf("key = %q, status = %q", resp.JoinKey, resp.Status)
	}
	if resp.Commune != nil {
		t.Errorf("commune = %s, want absent", resp.Commune)
	}
	if resp.Summary.Volume != 1 {
		t.Errorf("volume = %d, want 1", resp.Summary.Volume)
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("warnings = %v", resp.Warnings)
	}
}

func TestAPIGetReportReferenceFailure(t *testing.T) {
	srv, mem := testServer(t)
	mem.FailWith("Dim_ville", &query.APIError{Status: 403, Code: query.CodeInsufficientPriv, Message: "permission denied for table Dim_ville"})

	w := apiRequest(t, srv, "GET", "/api/communes/1000")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Status         string `json:"status"`
		ReferenceError string `json:"reference_error"`
	}
	decode(t, w, &resp)
	if resp.Status != "reference_error" {
		t.Errorf("status = %q, want reference_error", resp.Status)
	}
	if !strings.Contains(resp.ReferenceError, "access denied") {
		t.Errorf("reference_error = %q", resp.ReferenceError)
	}
}

func TestAPIGetReportUpstreamError(t *testing.T) {
	srv, mem := testServer(t)
	mem.FailWith("Fct_transaction_immo", &query.APIError{Status: 400, Code: query.CodeUndefinedColumn, Message: "column code_postal does not exist"})

	w := apiRequest(t, srv, "GET", "/api/communes/33000")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"error"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAPIInvalidCode(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/api/communes/abc", "/api/communes/123456", "/api/communes/33000/nope"} {
		w := apiRequest(t, srv, "GET", path)
		if w.Code != http.StatusBadRequest && w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 400 or 404", path, w.Code)
		}
	}
}

func TestValidCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"33000", true},
		{"750", true},
		{"2A004", true},
		{"", false},
		{"330000", false},
		{"33 00", false},
		{"abc", false},
	}
	for _, tt := range tests {
		if got := validCode(tt.code); got != tt.want {
			t.Errorf("validCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestAPIListTransactions(t *testing.T) {
	srv, _ := testServer(t)

	w := apiRequest(t, srv, "GET", "/api/communes/33000/transactions")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Transactions []struct {
			PricePerArea float64 `json:"price_per_area"`
		} `json:"transactions"`
		Count int `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 3 || resp.Transactions[0].PricePerArea != 3000 {
		t.Errorf("resp = %+v", resp)
	}

	w = apiRequest(t, srv, "GET", "/api/communes/06000/transactions")
	if !strings.Contains(w.Body.String(), `"transactions":[]`) {
		t.Errorf("expected empty list, got %s", w.Body.String())
	}
}

func TestAPICharts(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/api/communes/33000/trend.png", "/api/communes/33000/histogram.png"} {
		w := apiRequest(t, srv, "GET", path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", path, w.Code, w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: content-type = %q", path, ct)
		}
		if _, err := png.Decode(w.Body); err != nil {
			t.Errorf("%s: decode png: %v", path, err)
		}
	}
}

func TestAPIChartNoSales(t *testing.T) {
	srv, _ := testServer(t)

	w := apiRequest(t, srv, "GET", "/api/communes/06000/trend.png")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
