// Package scoring holds the fraud-risk rules applied to uploaded rows.
//
// Rules are pure functions of a row and the statistics of the batch it
// belongs to, so a trained model can replace them behind Scorer without
// touching ingestion or storage.
package scoring

import (
	"math"
	"strings"
)

const (
	LevelNone   = "None"
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"
)

// Row is the scoring view of one uploaded record.
type Row struct {
	TransactionID *string
	Income        float64
	TaxPaid       float64
	Amount        float64
	Category      string
	Type          string
}

// BatchStats are aggregates computed once over a whole batch.
type BatchStats struct {
	Count  int
	Mean   float64
	StdDev float64
}

// Scorer computes a fraud risk for a row.
type Scorer interface {
	Score(row Row, stats BatchStats) float64
}

// ComputeStats returns the mean and population standard deviation of Amount.
// A zero deviation is reported as 1 so callers can divide by it.
func ComputeStats(rows []Row) BatchStats {
	stats := BatchStats{Count: len(rows), StdDev: 1}
	if len(rows) == 0 {
		return stats
	}

	// Running mean; each step stays finite for any finite amounts.
	for i, r := range rows {
		n := float64(i + 1)
		stats.Mean += r.Amount/n - stats.Mean/n
	}

	var sq float64
	for _, r := range rows {
		d := r.Amount - stats.Mean
		sq += d * d
	}
	if std := math.Sqrt(sq / float64(len(rows))); std > 0 && !math.IsNaN(std) {
		stats.StdDev = std
	}
	return stats
}

// ScoreBatch computes the batch statistics first and then scores every row
// against them.
func ScoreBatch(s Scorer, rows []Row) []float64 {
	stats := ComputeStats(rows)
	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i] = s.Score(r, stats)
	}
	return scores
}

// ThresholdScorer flags rows whose tax paid is below a fraction of income.
type ThresholdScorer struct {
	Ratio float64
	High  float64
	Low   float64
}

// NewThresholdScorer returns the rule risk = 0.8 if tax_paid < income*0.05 else 0.2.
func NewThresholdScorer() ThresholdScorer {
	return ThresholdScorer{Ratio: 0.05, High: 0.8, Low: 0.2}
}

func (s ThresholdScorer) Score(row Row, _ BatchStats) float64 {
	if row.TaxPaid < row.Income*s.Ratio {
		return s.High
	}
	return s.Low
}

// HeuristicScorer scores ledger rows by how far their amount sits above the
// batch mean, plus a fixed weight for suspicious categories.
type HeuristicScorer struct {
	SuspiciousCategories map[string]struct{}
	CategoryWeight       float64
}

func NewHeuristicScorer() HeuristicScorer {
	return HeuristicScorer{
		SuspiciousCategories: map[string]struct{}{
			"investment": {},
			"bonus":      {},
			"freelance":  {},
		},
		CategoryWeight: 0.4,
	}
}

func (s HeuristicScorer) Score(row Row, stats BatchStats) float64 {
	std := stats.StdDev
	if std <= 0 {
		std = 1
	}

	var score float64
	if row.Amount > stats.Mean {
		if dev := (row.Amount - stats.Mean) / (3 * std); !math.IsNaN(dev) {
			score += math.Min(1, dev)
		}
	}
	if _, ok := s.SuspiciousCategories[strings.ToLower(strings.TrimSpace(row.Category))]; ok {
		score += s.CategoryWeight
	}
	return math.Min(1, score)
}

// Level buckets a risk into None, Low, Medium or High. Upper bounds are inclusive.
func Level(risk float64) string {
	switch {
	case math.IsNaN(risk), risk <= 0:
		return LevelNone
	case risk <= 0.25:
		return LevelLow
	case risk <= 0.6:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Tax is 20% of the amount on income rows and zero otherwise.
func Tax(row Row) float64 {
	if strings.EqualFold(strings.TrimSpace(row.Type), "income") {
		return row.Amount * 0.2
	}
	return 0
}
