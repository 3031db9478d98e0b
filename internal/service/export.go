package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"tax_analysis/internal/model"
)

var scoredRowsHeader = []string{"transaction_id", "income", "tax_paid", "fraud_risk", "prediction_date"}

// ScoredRowsCSV renders scored rows as CSV.
func ScoredRowsCSV(rows []model.ScoredRow) (*bytes.Buffer, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	if err := writer.Write(scoredRowsHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		var txID string
		if r.TransactionID != nil {
			txID = *r.TransactionID
		}
		record := []string{
			txID,
			formatFloat(r.Income),
			formatFloat(r.TaxPaid),
			formatFloat(r.FraudRisk),
			r.PredictionDate.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV writer: %w", err)
	}
	return buffer, nil
}

// AugmentedCSV renders the augmented ledger: the original columns followed
// by tax, fraud_risk and fraud_level.
func AugmentedCSV(data *model.AugmentedData) (*bytes.Buffer, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	header := append(append([]string{}, data.Columns...), "tax", "fraud_risk", "fraud_level")
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, 0, len(header))
		for _, col := range data.Columns {
			record = append(record, row.Values[col])
		}
		record = append(record, formatFloat(row.Tax), formatFloat(row.FraudRisk), row.FraudLevel)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV writer: %w", err)
	}
	return buffer, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
