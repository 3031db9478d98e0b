package repository

import (
	"context"
	"fmt"

	"tax_analysis/internal/model"

	"github.com/jackc/pgx/v5"
)

// AnalysisRepository stores scored rows per account
type AnalysisRepository interface {
	ReplaceForAccount(ctx context.Context, userID int, rows []model.ScoredRow) (int64, error)
	ListAll(ctx context.Context) ([]model.ScoredRow, error)
	ListByAccount(ctx context.Context, userID int) ([]model.ScoredRow, error)
	CountAbove(ctx context.Context, threshold float64) (int64, error)
}

type analysisRepository struct {
	db DB
}

func NewAnalysisRepository(db DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

var scoredRowCopyColumns = []string{"transaction_id", "income", "tax_paid", "fraud_risk", "prediction_date", "user_id"}

const scoredRowColumns = `id, user_id, transaction_id, income, tax_paid, fraud_risk, prediction_date`

// ReplaceForAccount deletes every scored row of the account and inserts rows
// in their place, all in one transaction. A transaction-scoped advisory lock
// on the account ID serializes concurrent replacements for the same account.
func (r *analysisRepository) ReplaceForAccount(ctx context.Context, userID int, rows []model.ScoredRow) (int64, error) {
	var inserted int64
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(userID)); err != nil {
			return fmt.Errorf("failed to lock account rows: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM fraud_analysis WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to delete previous rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"fraud_analysis"}, scoredRowCopyColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				row := rows[i]
				return []any{row.TransactionID, row.Income, row.TaxPaid, row.FraudRisk, row.PredictionDate, userID}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to insert scored rows: %w", err)
		}
		inserted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListAll returns the scored rows of every account
func (r *analysisRepository) ListAll(ctx context.Context) ([]model.ScoredRow, error) {
	return r.list(ctx, `SELECT `+scoredRowColumns+` FROM fraud_analysis ORDER BY user_id, id`)
}

// ListByAccount returns the scored rows of one account in insertion order
func (r *analysisRepository) ListByAccount(ctx context.Context, userID int) ([]model.ScoredRow, error) {
	return r.list(ctx, `SELECT `+scoredRowColumns+` FROM fraud_analysis WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *analysisRepository) list(ctx context.Context, sql string, args ...any) ([]model.ScoredRow, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scored rows: %w", err)
	}
	defer rows.Close()

	result := []model.ScoredRow{}
	for rows.Next() {
		var s model.ScoredRow
		if err := rows.Scan(&s.ID, &s.UserID, &s.TransactionID, &s.Income, &s.TaxPaid, &s.FraudRisk, &s.PredictionDate); err != nil {
			return nil, fmt.Errorf("failed to scan scored row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scored rows: %w", err)
	}
	return result, nil
}

// CountAbove counts scored rows whose risk is strictly greater than threshold
func (r *analysisRepository) CountAbove(ctx context.Context, threshold float64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM fraud_analysis WHERE fraud_risk > $1`, threshold).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count flagged rows: %w", err)
	}
	return n, nil
}
