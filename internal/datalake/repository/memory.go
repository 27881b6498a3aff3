package repository

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/b3datalake/datalake-api/internal/models"
)

// MemoryHistoryRepo keeps the upload log in insertion order. Used by the
// offline loader when no Mongo is configured and by tests.
type MemoryHistoryRepo struct {
	mu      sync.RWMutex
	records []*models.UploadRecord
}

func NewMemoryHistoryRepo() *MemoryHistoryRepo {
	return &MemoryHistoryRepo{}
}

func (m *MemoryHistoryRepo) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryHistoryRepo) Insert(ctx context.Context, rec *models.UploadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Filename == rec.Filename {
			return ErrDuplicate
		}
	}
	if rec.ID == "" {
		rec.ID = primitive.NewObjectID().Hex()
	}
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *MemoryHistoryRepo) Delete(ctx context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.Filename == filename {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemoryHistoryRepo) List(ctx context.Context, f HistoryFilter, skip, limit int64) ([]*models.UploadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*models.UploadRecord
	for _, r := range m.records {
		if f.Filename != "" && r.Filename != f.Filename {
			continue
		}
		if !f.From.IsZero() && !inRange(r.UploadDate, f.From, f.To) {
			continue
		}
		cp := *r
		matched = append(matched, &cp)
	}
	return page(matched, skip, limit), nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

// Len returns the number of recorded uploads.
func (m *MemoryHistoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// MemoryRecordRepo keeps DataRecords in insertion order.
type MemoryRecordRepo struct {
	mu      sync.RWMutex
	records []models.DataRecord
}

func NewMemoryRecordRepo() *MemoryRecordRepo {
	return &MemoryRecordRepo{}
}

func (m *MemoryRecordRepo) InsertMany(ctx context.Context, recs []models.DataRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
	return nil
}

func (m *MemoryRecordRepo) Search(ctx context.Context, f RecordFilter, skip, limit int64) ([]models.DataRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []models.DataRecord
	for _, r := range m.records {
		if f.Ticker != "" && !equals(r.TckrSymb, f.Ticker) {
			continue
		}
		if f.ReportDate != "" && !equals(r.RptDt, f.ReportDate) {
			continue
		}
		matched = append(matched, r)
	}
	return page(matched, skip, limit), nil
}

// Len returns the number of stored rows.
func (m *MemoryRecordRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func equals(v *string, want string) bool {
	return v != nil && *v == want
}

func page[T any](items []T, skip, limit int64) []T {
	out := []T{}
	if skip >= int64(len(items)) {
		return out
	}
	end := int64(len(items))
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return append(out, items[skip:end]...)
}
