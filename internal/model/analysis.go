package model

import "time"

// ScoredRow is one uploaded row annotated with its fraud risk.
type ScoredRow struct {
	ID             int64     `json:"id"`
	UserID         int       `json:"user_id"`
	TransactionID  *string   `json:"transaction_id"`
	Income         float64   `json:"income"`
	TaxPaid        float64   `json:"tax_paid"`
	FraudRisk      float64   `json:"fraud_risk"`
	PredictionDate time.Time `json:"prediction_date"`
}

// Upload records a raw file accepted from a user.
type Upload struct {
	ID         int64     `json:"id"`
	UserID     int       `json:"user_id"`
	Filename   string    `json:"filename"`
	StoredPath string    `json:"-"`
	FileType   string    `json:"file_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadTime time.Time `json:"upload_time"`
}

// UploadSummary is returned to the client after a successful upload.
type UploadSummary struct {
	Rows        int                 `json:"rows"`
	Columns     int                 `json:"columns"`
	ColumnsList []string            `json:"columns_list"`
	Preview     []map[string]string `json:"preview"`
	Flagged     int                 `json:"flagged"`
}

// Stats backs the dashboard counters.
type Stats struct {
	Users   int64 `json:"users"`
	Uploads int64 `json:"uploads"`
	Fraud   int64 `json:"fraud"`
}

// AugmentedRow is a ledger row enriched with tax and heuristic risk.
type AugmentedRow struct {
	Values     map[string]string `json:"values"`
	Tax        float64           `json:"tax"`
	FraudRisk  float64           `json:"fraud_risk"`
	FraudLevel string            `json:"fraud_level"`
}

// AugmentedData is the augmented export of one upload.
type AugmentedData struct {
	Source      string         `json:"source"`
	Columns     []string       `json:"columns"`
	Rows        []AugmentedRow `json:"rows"`
	LevelCounts map[string]int `json:"level_counts"`
}
