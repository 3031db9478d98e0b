package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"tax_analysis/internal/cache"
	"tax_analysis/internal/ingest"
	"tax_analysis/internal/metrics"
	"tax_analysis/internal/model"
	"tax_analysis/internal/repository"
	"tax_analysis/internal/scoring"
	"tax_analysis/internal/storage"
	"tax_analysis/internal/utils"
)

var (
	ErrFileRequired     = errors.New("no file uploaded")
	ErrFileSizeExceeded = errors.New("file size exceeds limit")
	ErrNoUpload         = errors.New("no uploaded data found")
	ErrUploadNotFound   = errors.New("uploaded file not found")
)

// UploadResult describes an accepted and scored upload.
type UploadResult struct {
	Upload  *model.Upload
	Summary model.UploadSummary
}

// AnalysisService handles uploads, scoring and the data views built on them
type AnalysisService interface {
	ProcessUpload(ctx context.Context, userID int, fileHeader *multipart.FileHeader) (*UploadResult, error)
	Stats(ctx context.Context) (*model.Stats, error)
	ListMine(ctx context.Context, userID int) ([]model.ScoredRow, error)
	ListAll(ctx context.Context) ([]model.ScoredRow, error)
	OpenUpload(ctx context.Context, userID int, filename string) (io.ReadCloser, *model.Upload, error)
	Augmented(ctx context.Context, userID int) (*model.AugmentedData, error)
}

// AnalysisDeps groups the collaborators of AnalysisService. Cache may be nil.
type AnalysisDeps struct {
	Users    repository.UserRepository
	Uploads  repository.UploadRepository
	Analyses repository.AnalysisRepository
	Store    storage.FileStore
	Cache    cache.StatsCache
	Metrics  metrics.Recorder
}

type analysisService struct {
	AnalysisDeps
	maxUploadBytes int64
	fraudThreshold float64
	scorer         scoring.Scorer
	ledgerScorer   scoring.Scorer
	now            func() time.Time
}

// NewAnalysisService creates a new AnalysisService. Uploads are scored with
// the tax-paid threshold rule; the augmented ledger view uses the
// batch-relative heuristic.
func NewAnalysisService(deps AnalysisDeps, maxUploadBytes int64, fraudThreshold float64) AnalysisService {
	return &analysisService{
		AnalysisDeps:   deps,
		maxUploadBytes: maxUploadBytes,
		fraudThreshold: fraudThreshold,
		scorer:         scoring.NewThresholdScorer(),
		ledgerScorer:   scoring.NewHeuristicScorer(),
		now:            time.Now,
	}
}

// ProcessUpload stores the raw file, records it, then parses and scores it
// and replaces the account's scored rows. The file and its record are kept
// even when parsing fails.
func (s *analysisService) ProcessUpload(ctx context.Context, userID int, fileHeader *multipart.FileHeader) (*UploadResult, error) {
	start := time.Now()
	defer func() { s.Metrics.RecordUploadDuration(time.Since(start)) }()

	if fileHeader == nil || fileHeader.Filename == "" {
		s.Metrics.RecordUpload(metrics.ResultRejected)
		return nil, ErrFileRequired
	}
	if fileHeader.Size > s.maxUploadBytes {
		s.Metrics.RecordUpload(metrics.ResultRejected)
		return nil, ErrFileSizeExceeded
	}
	name, err := utils.SanitizeFilename(fileHeader.Filename)
	if err != nil {
		s.Metrics.RecordUpload(metrics.ResultRejected)
		return nil, err
	}

	data, err := s.readUpload(fileHeader)
	if err != nil {
		s.Metrics.RecordUpload(metrics.ResultRejected)
		return nil, err
	}

	upload := &model.Upload{
		UserID:     userID,
		Filename:   name,
		StoredPath: storage.AccountKey(userID, name),
		FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		SizeBytes:  int64(len(data)),
		UploadTime: s.now(),
	}
	if err := s.Store.Save(ctx, upload.StoredPath, data); err != nil {
		s.Metrics.RecordUpload(metrics.ResultFailure)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := s.Uploads.Create(ctx, upload); err != nil {
		s.Metrics.RecordUpload(metrics.ResultFailure)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}
	invalidateStats(ctx, s.Cache)

	table, err := ingest.Parse(data, name)
	if err != nil {
		s.Metrics.RecordUpload(metrics.ResultUnparsed)
		return nil, err
	}

	records := table.Records()
	scores := scoring.ScoreBatch(s.scorer, records)
	predictedAt := s.now()

	rows := make([]model.ScoredRow, len(records))
	flagged := 0
	for i, rec := range records {
		rows[i] = model.ScoredRow{
			UserID:         userID,
			TransactionID:  rec.TransactionID,
			Income:         rec.Income,
			TaxPaid:        rec.TaxPaid,
			FraudRisk:      scores[i],
			PredictionDate: predictedAt,
		}
		if scores[i] > s.fraudThreshold {
			flagged++
		}
	}

	if _, err := s.Analyses.ReplaceForAccount(ctx, userID, rows); err != nil {
		s.Metrics.RecordUpload(metrics.ResultFailure)
		return nil, fmt.Errorf("failed to store scored rows: %w", err)
	}
	invalidateStats(ctx, s.Cache)

	s.Metrics.RecordUpload(metrics.ResultSuccess)
	s.Metrics.RecordRowsScored(len(rows))
	log.Printf("INFO: user %d uploaded %s: %d rows scored, %d flagged", userID, name, len(rows), flagged)

	return &UploadResult{
		Upload: upload,
		Summary: model.UploadSummary{
			Rows:        len(table.Rows),
			Columns:     len(table.Columns),
			ColumnsList: table.Columns,
			Preview:     table.Preview(ingest.DefaultPreviewRows),
			Flagged:     flagged,
		},
	}, nil
}

// readUpload reads at most maxUploadBytes; multipart sizes are client supplied.
func (s *analysisService) readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, ErrFileSizeExceeded
	}
	return data, nil
}

// Stats returns the dashboard counters, from the cache when it holds them.
func (s *analysisService) Stats(ctx context.Context) (*model.Stats, error) {
	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx)
		if err != nil {
			log.Printf("WARN: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	users, err := s.Users.Count(ctx)
	if err != nil {
		return nil, err
	}
	uploads, err := s.Uploads.Count(ctx)
	if err != nil {
		return nil, err
	}
	fraud, err := s.Analyses.CountAbove(ctx, s.fraudThreshold)
	if err != nil {
		return nil, err
	}

	stats := &model.Stats{Users: users, Uploads: uploads, Fraud: fraud}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, stats); err != nil {
			log.Printf("WARN: %v", err)
		}
	}
	return stats, nil
}

func (s *analysisService) ListMine(ctx context.Context, userID int) ([]model.ScoredRow, error) {
	return s.Analyses.ListByAccount(ctx, userID)
}

func (s *analysisService) ListAll(ctx context.Context) ([]model.ScoredRow, error) {
	return s.Analyses.ListAll(ctx)
}

// OpenUpload opens one of the caller's stored files. The name must already
// be in sanitized form; anything else is rejected rather than rewritten.
func (s *analysisService) OpenUpload(ctx context.Context, userID int, filename string) (io.ReadCloser, *model.Upload, error) {
	name, err := utils.SanitizeFilename(filename)
	if err != nil {
		return nil, nil, err
	}
	if name != filename {
		return nil, nil, utils.ErrInvalidFilename
	}

	upload, err := s.Uploads.FindByAccountAndName(ctx, userID, name)
	if err != nil {
		return nil, nil, err
	}
	if upload == nil {
		return nil, nil, ErrUploadNotFound
	}

	rc, err := s.Store.Open(ctx, upload.StoredPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrUploadNotFound
		}
		return nil, nil, err
	}
	return rc, upload, nil
}

// Augmented re-reads the caller's latest upload and scores it as a
// transaction ledger: tax on income rows, heuristic risk and its level.
func (s *analysisService) Augmented(ctx context.Context, userID int) (*model.AugmentedData, error) {
	upload, err := s.Uploads.LatestByAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, ErrNoUpload
	}

	rc, err := s.Store.Open(ctx, upload.StoredPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoUpload
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored upload: %w", err)
	}

	table, err := ingest.Parse(data, upload.Filename)
	if err != nil {
		return nil, err
	}

	records := table.Records()
	scores := scoring.ScoreBatch(s.ledgerScorer, records)

	out := &model.AugmentedData{
		Source:      upload.Filename,
		Columns:     table.Columns,
		Rows:        make([]model.AugmentedRow, len(records)),
		LevelCounts: map[string]int{},
	}
	for i, rec := range records {
		level := scoring.Level(scores[i])
		out.Rows[i] = model.AugmentedRow{
			Values:     table.RowMap(i),
			Tax:        scoring.Tax(rec),
			FraudRisk:  scores[i],
			FraudLevel: level,
		}
		out.LevelCounts[level]++
	}
	return out, nil
}
