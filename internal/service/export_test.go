package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax_analysis/internal/model"
)

func TestScoredRowsCSV(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	buf, err := ScoredRowsCSV([]model.ScoredRow{
		{TransactionID: strPtr("PAN1"), Income: 1000, TaxPaid: 40.5, FraudRisk: 0.8, PredictionDate: at},
		{Income: 1000, TaxPaid: 60, FraudRisk: 0.2, PredictionDate: at},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"transaction_id,income,tax_paid,fraud_risk,prediction_date\n"+
			"PAN1,1000,40.5,0.8,2025-02-03T04:05:06Z\n"+
			",1000,60,0.2,2025-02-03T04:05:06Z\n",
		buf.String())
}

func TestAugmentedCSV(t *testing.T) {
	buf, err := AugmentedCSV(&model.AugmentedData{
		Columns: []string{"Category", "Description"},
		Rows: []model.AugmentedRow{
			{Values: map[string]string{"Category": "Bonus", "Description": "Q1, late"}, Tax: 20, FraudRisk: 0.4, FraudLevel: "Medium"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"Category,Description,tax,fraud_risk,fraud_level\n"+
			"Bonus,\"Q1, late\",20,0.4,Medium\n",
		buf.String())
}
