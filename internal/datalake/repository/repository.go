package repository

import (
	"context"
	"errors"
	"time"

	"github.com/b3datalake/datalake-api/internal/models"
)

// ErrDuplicate is returned by HistoryRepository.Insert when the filename is
// already recorded.
var ErrDuplicate = errors.New("filename already recorded")

// HistoryFilter narrows List. Zero values mean "no filter". When From is
// set, only uploads in [From, To) match.
type HistoryFilter struct {
	Filename string
	From     time.Time
	To       time.Time
}

// RecordFilter narrows Search by exact field match.
type RecordFilter struct {
	Ticker     string
	ReportDate string
}

// HistoryRepository is the upload log. Entries are only removed to release a
// claim whose upload failed before any row was stored.
type HistoryRepository interface {
	ExistsByFilename(ctx context.Context, filename string) (bool, error)
	Insert(ctx context.Context, rec *models.UploadRecord) error
	Delete(ctx context.Context, filename string) error
	List(ctx context.Context, f HistoryFilter, skip, limit int64) ([]*models.UploadRecord, error)
}

// RecordRepository stores normalized rows.
type RecordRepository interface {
	InsertMany(ctx context.Context, recs []models.DataRecord) error
	Search(ctx context.Context, f RecordFilter, skip, limit int64) ([]models.DataRecord, error)
}
