package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"tax_analysis/internal/metrics"
	"tax_analysis/internal/model"
	"tax_analysis/internal/repository"
	"tax_analysis/internal/storage"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	users   []*model.User
	nextID  int
	findErr error
	// createErr is returned by Create before any row is stored.
	createErr error
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users = append(r.users, &cp)
	return nil
}

func (r *fakeUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email != nil && strings.EqualFold(*u.Email, email) })
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) List(context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range r.users {
		if u.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeUploadRepo struct {
	uploads []*model.Upload
}

func (r *fakeUploadRepo) Create(_ context.Context, u *model.Upload) error {
	u.ID = int64(len(r.uploads) + 1)
	cp := *u
	r.uploads = append(r.uploads, &cp)
	return nil
}

func (r *fakeUploadRepo) Count(context.Context) (int64, error) {
	return int64(len(r.uploads)), nil
}

func (r *fakeUploadRepo) LatestByAccount(_ context.Context, userID int) (*model.Upload, error) {
	for i := len(r.uploads) - 1; i >= 0; i-- {
		if r.uploads[i].UserID == userID {
			return r.uploads[i], nil
		}
	}
	return nil, nil
}

func (r *fakeUploadRepo) FindByAccountAndName(_ context.Context, userID int, filename string) (*model.Upload, error) {
	for i := len(r.uploads) - 1; i >= 0; i-- {
		if r.uploads[i].UserID == userID && r.uploads[i].Filename == filename {
			return r.uploads[i], nil
		}
	}
	return nil, nil
}

// fakeAnalysisRepo keeps the replace-per-account contract of the real store.
type fakeAnalysisRepo struct {
	rows       map[int][]model.ScoredRow
	replaceErr error
	replaces   int
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{rows: map[int][]model.ScoredRow{}}
}

func (r *fakeAnalysisRepo) ReplaceForAccount(_ context.Context, userID int, rows []model.ScoredRow) (int64, error) {
	if r.replaceErr != nil {
		return 0, r.replaceErr
	}
	r.replaces++
	stored := make([]model.ScoredRow, len(rows))
	copy(stored, rows)
	r.rows[userID] = stored
	return int64(len(rows)), nil
}

func (r *fakeAnalysisRepo) ListAll(context.Context) ([]model.ScoredRow, error) {
	var out []model.ScoredRow
	for _, rows := range r.rows {
		out = append(out, rows...)
	}
	return out, nil
}

func (r *fakeAnalysisRepo) ListByAccount(_ context.Context, userID int) ([]model.ScoredRow, error) {
	return r.rows[userID], nil
}

func (r *fakeAnalysisRepo) CountAbove(_ context.Context, threshold float64) (int64, error) {
	var n int64
	for _, rows := range r.rows {
		for _, row := range rows {
			if row.FraudRisk > threshold {
				n++
			}
		}
	}
	return n, nil
}

type memStore struct {
	files   map[string][]byte
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (s *memStore) Save(_ context.Context, key string, data []byte) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.files[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.files[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeStatsCache struct {
	stats       *model.Stats
	invalidated int
	getErr      error
}

func (c *fakeStatsCache) Get(context.Context) (*model.Stats, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.stats, nil
}

func (c *fakeStatsCache) Set(_ context.Context, stats *model.Stats) error {
	cp := *stats
	c.stats = &cp
	return nil
}

func (c *fakeStatsCache) Invalidate(context.Context) error {
	c.invalidated++
	c.stats = nil
	return nil
}

func newRecorder() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

func newFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

var errBoom = errors.New("boom")
