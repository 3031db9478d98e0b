package repository

import (
	"context"
	"errors"
	"fmt"

	"tax_analysis/internal/model"

	"github.com/jackc/pgx/v5"
)

// UploadRepository records raw files accepted from accounts
type UploadRepository interface {
	Create(ctx context.Context, upload *model.Upload) error
	Count(ctx context.Context) (int64, error)
	LatestByAccount(ctx context.Context, userID int) (*model.Upload, error)
	FindByAccountAndName(ctx context.Context, userID int, filename string) (*model.Upload, error)
}

type uploadRepository struct {
	db DB
}

func NewUploadRepository(db DB) UploadRepository {
	return &uploadRepository{db: db}
}

const uploadColumns = `id, user_id, filename, stored_path, file_type, size_bytes, upload_time`

func (r *uploadRepository) Create(ctx context.Context, u *model.Upload) error {
	sql := `INSERT INTO uploads (user_id, filename, stored_path, file_type, size_bytes, upload_time)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := r.db.QueryRow(ctx, sql, u.UserID, u.Filename, u.StoredPath, u.FileType, u.SizeBytes, u.UploadTime).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create upload record: %w", err)
	}
	return nil
}

func (r *uploadRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return n, nil
}

// LatestByAccount returns the most recent upload of the account, or nil when there is none
func (r *uploadRepository) LatestByAccount(ctx context.Context, userID int) (*model.Upload, error) {
	sql := `SELECT ` + uploadColumns + ` FROM uploads WHERE user_id = $1 ORDER BY upload_time DESC, id DESC LIMIT 1`
	u, err := r.findOne(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest upload: %w", err)
	}
	return u, nil
}

// FindByAccountAndName returns the newest upload of the account with the given stored name
func (r *uploadRepository) FindByAccountAndName(ctx context.Context, userID int, filename string) (*model.Upload, error) {
	sql := `SELECT ` + uploadColumns + ` FROM uploads WHERE user_id = $1 AND filename = $2 ORDER BY id DESC LIMIT 1`
	u, err := r.findOne(ctx, sql, userID, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to find upload by name: %w", err)
	}
	return u, nil
}

func (r *uploadRepository) findOne(ctx context.Context, sql string, args ...any) (*model.Upload, error) {
	u := &model.Upload{}
	var fileType *string
	err := r.db.QueryRow(ctx, sql, args...).Scan(&u.ID, &u.UserID, &u.Filename, &u.StoredPath, &fileType, &u.SizeBytes, &u.UploadTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if fileType != nil {
		u.FileType = *fileType
	}
	return u, nil
}
