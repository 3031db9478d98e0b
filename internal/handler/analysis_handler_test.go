package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"tax_analysis/internal/ingest"
	"tax_analysis/internal/model"
	"tax_analysis/internal/service"
	"tax_analysis/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisHandler_Upload(t *testing.T) {
	ts := newTestServer(1 << 20)

	w := ts.do(uploadRequest(t, "file", "returns.csv", []byte("PAN_Number,Income,Tax_Paid\nA1,1000,40\n")), ts.token(t, 3, model.RoleUser))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "returns.csv", body["filename"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["rows"])
	assert.Equal(t, []any{"PAN_Number", "Income", "Tax_Paid"}, summary["columns_list"])
	assert.Equal(t, 3, ts.analysis.uploadUser)
}

func TestAnalysisHandler_Upload_Errors(t *testing.T) {
	unreadable := fmt.Errorf("%w: csv: bare quote", ingest.ErrUnreadableFormat)
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"oversized", service.ErrFileSizeExceeded, http.StatusBadRequest, "File size exceeds limit"},
		{"bad name", utils.ErrInvalidFilename, http.StatusBadRequest, "Invalid file name"},
		{"unreadable", unreadable, http.StatusBadRequest, "Could not read file: " + unreadable.Error()},
		{"storage", fmt.Errorf("failed to store upload: %w", errBoom), http.StatusInternalServerError, "Failed to process upload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(1 << 20)
			ts.analysis.uploadErr = tt.err

			w := ts.do(uploadRequest(t, "file", "x.csv", []byte("a,b\n1,2\n")), ts.token(t, 3, model.RoleUser))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["message"])
		})
	}
}

func TestAnalysisHandler_Upload_MissingFile(t *testing.T) {
	ts := newTestServer(1 << 20)

	w := ts.do(uploadRequest(t, "attachment", "x.csv", []byte("a\n1\n")), ts.token(t, 3, model.RoleUser))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file uploaded", decode(t, w)["message"])
	assert.Empty(t, ts.analysis.uploadName)
}

func TestAnalysisHandler_Upload_RequiresAuth(t *testing.T) {
	ts := newTestServer(1 << 20)

	w := ts.do(uploadRequest(t, "file", "x.csv", []byte("a\n1\n")), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ts.analysis.uploadName)
}

func TestAnalysisHandler_GetUpload(t *testing.T) {
	ts := newTestServer(1 << 20)
	ts.analysis.files["returns.csv"] = "a,b\n1,2\n"
	token := ts.token(t, 3, model.RoleUser)

	w := ts.do(jsonRequest(http.MethodGet, "/uploads/returns.csv", ""), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b\n1,2\n", w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "returns.csv")

	w = ts.do(jsonRequest(http.MethodGet, "/uploads/other.csv", ""), token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.analysis.openErr = utils.ErrInvalidFilename
	w = ts.do(jsonRequest(http.MethodGet, "/uploads/bad%20name.csv", ""), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisHandler_GetUpload_SizeFromStoredBytes(t *testing.T) {
	ts := newTestServer(1 << 20)
	ts.analysis.files["returns.csv"] = "a,b\n1,2\n3,4\n"
	ts.analysis.recordedSize = 4

	w := ts.do(jsonRequest(http.MethodGet, "/uploads/returns.csv", ""), ts.token(t, 3, model.RoleUser))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b\n1,2\n3,4\n", w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Length"))
}

func TestAnalysisHandler_FraudData(t *testing.T) {
	ts := newTestServer(1 << 20)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	id := "A1"
	ts.analysis.mine[3] = []model.ScoredRow{{ID: 1, UserID: 3, TransactionID: &id, Income: 1000, TaxPaid: 40, FraudRisk: 0.8, PredictionDate: at}}
	token := ts.token(t, 3, model.RoleUser)

	w := ts.do(jsonRequest(http.MethodGet, "/fraud-data", ""), token)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []model.ScoredRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 0.8, rows[0].FraudRisk)

	w = ts.do(jsonRequest(http.MethodGet, "/fraud-data?format=csv&download=true", ""), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=fraud_data_"))
	assert.Contains(t, w.Body.String(), "A1,1000,40,0.8,2025-03-01T12:00:00Z")

	w = ts.do(jsonRequest(http.MethodGet, "/fraud-data", ""), ts.token(t, 9, model.RoleUser))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAnalysisHandler_FraudData_Failure(t *testing.T) {
	ts := newTestServer(1 << 20)
	ts.analysis.listErr = errBoom

	w := ts.do(jsonRequest(http.MethodGet, "/fraud-data", ""), ts.token(t, 3, model.RoleUser))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestAnalysisHandler_AdminFraudData(t *testing.T) {
	ts := newTestServer(1 << 20)
	ts.analysis.mine[3] = []model.ScoredRow{{UserID: 3}}
	ts.analysis.mine[4] = []model.ScoredRow{{UserID: 4}, {UserID: 4}}

	w := ts.do(jsonRequest(http.MethodGet, "/admin/fraud-data", ""), ts.token(t, 3, model.RoleUser))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(jsonRequest(http.MethodGet, "/admin/fraud-data", ""), ts.token(t, 1, model.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	var rows []model.ScoredRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 3)
}

func TestAnalysisHandler_AugmentedData(t *testing.T) {
	ts := newTestServer(1 << 20)
	ts.analysis.augmented = &model.AugmentedData{
		Source:  "ledger.csv",
		Columns: []string{"Amount", "Type"},
		Rows: []model.AugmentedRow{
			{Values: map[string]string{"Amount": "100", "Type": "Income"}, Tax: 20, FraudRisk: 0.4, FraudLevel: "Medium"},
		},
		LevelCounts: map[string]int{"Medium": 1},
	}
	token := ts.token(t, 3, model.RoleUser)

	w := ts.do(jsonRequest(http.MethodGet, "/augmented-data", ""), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "100,Income,20,0.4,Medium")

	w = ts.do(jsonRequest(http.MethodGet, "/augmented-data?format=json", ""), token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ledger.csv", body["source"])

	w = ts.do(jsonRequest(http.MethodGet, "/augmented-data?download=true", ""), token)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=augmented_data_"))
}

func TestAnalysisHandler_AugmentedData_Errors(t *testing.T) {
	ts := newTestServer(1 << 20)
	token := ts.token(t, 3, model.RoleUser)

	ts.analysis.augmentErr = service.ErrNoUpload
	w := ts.do(jsonRequest(http.MethodGet, "/augmented-data", ""), token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.analysis.augmentErr = fmt.Errorf("%w: file is empty", ingest.ErrUnreadableFormat)
	w = ts.do(jsonRequest(http.MethodGet, "/augmented-data", ""), token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisHandler_Stats(t *testing.T) {
	ts := newTestServer(1 << 20)
	ts.analysis.stats = &model.Stats{Users: 2, Uploads: 5, Fraud: 1}

	w := ts.do(jsonRequest(http.MethodGet, "/stats", ""), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users":2,"uploads":5,"fraud":1}`, w.Body.String())

	ts.analysis.statsErr = errBoom
	w = ts.do(jsonRequest(http.MethodGet, "/stats", ""), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
