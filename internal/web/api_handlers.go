package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/evcraddock/immo/internal/chart"
	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/logging"
	"github.com/evcraddock/immo/internal/market"
	"github.com/evcraddock/immo/internal/transaction"
)

// DefaultListLimit caps /api/communes responses unless ?limit= is given.
const DefaultListLimit = 100

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// handleAPICommunes lists or searches the commune directory.
// Query parameters: q (name or code prefix), limit (0 = all).
func (s *Server) handleAPICommunes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apiError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	communes, err := s.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil && !errors.Is(err, commune.ErrNoData) {
		if communes == nil {
			logging.FromContext(r.Context()).Error("directory load failed", "error", err)
			apiError(w, market.Describe(err), http.StatusBadGateway)
			return
		}
		logging.FromContext(r.Context()).Warn("directory loaded partially", "communes", len(communes), "error", err)
	}

	type response struct {
		Communes []commune.Commune `json:"communes"`
		Total    int               `json:"total"`
		Warning  string            `json:"warning,omitempty"`
	}
	resp := response{Communes: communes, Total: len(communes), Warning: market.Describe(err)}
	if resp.Communes == nil {
		resp.Communes = []commune.Commune{}
	}
	if limit > 0 && len(resp.Communes) > limit {
		resp.Communes = resp.Communes[:limit]
	}
	apiJSON(w, resp, http.StatusOK)
}

// handleAPICommune routes /api/communes/{code}[/transactions|/trend.png|/histogram.png].
func (s *Server) handleAPICommune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/communes/")
	code, sub, _ := strings.Cut(path, "/")
	if !validCode(code) {
		apiError(w, "invalid commune code", http.StatusBadRequest)
		return
	}

	switch sub {
	case "":
		s.apiGetReport(w, r, code)
	case "transactions":
		s.apiListTransactions(w, r, code)
	case "trend.png":
		s.apiChart(w, r, code, false)
	case "histogram.png":
		s.apiChart(w, r, code, true)
	default:
		apiError(w, "not found", http.StatusNotFound)
	}
}

// apiGetReport returns the full market report of one commune.
func (s *Server) apiGetReport(w http.ResponseWriter, r *http.Request, code string) {
	report := s.svc.Report(r.Context(), code)
	status := http.StatusOK
	switch report.Status {
	case market.StatusError:
		status = http.StatusBadGateway
	case market.StatusReferenceError:
		logging.FromContext(r.Context()).Warn("serving report without reference data",
			"code", report.JoinKey, "error", report.ReferenceError)
	}
	apiJSON(w, report, status)
}

// apiListTransactions returns the cleaned sales of one commune, oldest first.
func (s *Server) apiListTransactions(w http.ResponseWriter, r *http.Request, code string) {
	txs, err := s.svc.Transactions(r.Context(), code)
	if err != nil {
		logging.FromContext(r.Context()).Error("transaction fetch failed", "code", code, "error", err)
		apiError(w, market.Describe(err), http.StatusBadGateway)
		return
	}

	if txs == nil {
		txs = []transaction.Transaction{}
	}

	type response struct {
		Transactions []transaction.Transaction `json:"transactions"`
		Count        int                       `json:"count"`
	}
	apiJSON(w, response{Transactions: txs, Count: len(txs)}, http.StatusOK)
}

// apiChart renders the quarterly trend or the price histogram as PNG.
func (s *Server) apiChart(w http.ResponseWriter, r *http.Request, code string, histogram bool) {
	report := s.svc.Report(r.Context(), code)
	if report.Status == market.StatusError {
		apiError(w, strings.Join(report.Warnings, "; "), http.StatusBadGateway)
		return
	}

	title := report.JoinKey
	if report.Commune != nil {
		title = report.Commune.Label
	}

	var buf bytes.Buffer
	var err error
	if histogram {
		err = chart.Histogram(&buf, title, report.Histogram, report.Summary.MedianPricePerArea)
	} else {
		err = chart.Trend(&buf, title, report.Trend)
	}
	if errors.Is(err, chart.ErrNoData) {
		apiError(w, "no sales to plot", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("chart rendering failed", "code", code, "error", err)
		apiError(w, "rendering chart failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=300")
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.FromContext(r.Context()).Warn("writing chart", "error", err)
	}
}

// validCode accepts postal and INSEE codes, including Corsican 2A/2B.
func validCode(code string) bool {
	if code == "" || len(code) > 5 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) && r != 'A' && r != 'B' && r != 'a' && r != 'b' {
			return false
		}
	}
	return true
}
