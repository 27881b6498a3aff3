package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/b3datalake/datalake-api/internal/datalake/repository"
	"github.com/b3datalake/datalake-api/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var reportDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// HistoryQuery filters the upload history. Empty strings disable a filter.
type HistoryQuery struct {
	Filename string
	Date     string
	Page     int
	Limit    int
}

// SearchQuery filters stored rows.
type SearchQuery struct {
	Ticker     string
	ReportDate string
	Skip       int
	Limit      int
}

// QueryService reads the upload history and the stored rows.
type QueryService struct {
	history repository.HistoryRepository
	records repository.RecordRepository
}

func NewQueryService(h repository.HistoryRepository, r repository.RecordRepository) *QueryService {
	return &QueryService{history: h, records: r}
}

// ListUploads returns one page of the history. An empty page is ErrNotFound.
func (s *QueryService) ListUploads(ctx context.Context, q HistoryQuery) ([]*models.UploadRecord, error) {
	if q.Page < 1 || q.Limit < 1 || q.Limit > MaxLimit {
		return nil, ErrInvalidPagination
	}
	f := repository.HistoryFilter{Filename: q.Filename}
	if q.Date != "" {
		day, err := time.ParseInLocation("2006-01-02", q.Date, time.UTC)
		if err != nil {
			return nil, ErrInvalidDateFormat
		}
		f.From, f.To = day, day.AddDate(0, 0, 1)
	}
	skip := int64(q.Page-1) * int64(q.Limit)
	out, err := s.history.List(ctx, f, skip, int64(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// SearchRecords matches rows by ticker and report date. RptDt is only
// checked for its YYYY-MM-DD shape, so "2024-13-40" is a valid filter.
func (s *QueryService) SearchRecords(ctx context.Context, q SearchQuery) ([]models.DataRecord, error) {
	if q.Skip < 0 || q.Limit < 1 || q.Limit > MaxLimit {
		return nil, ErrInvalidPagination
	}
	if q.ReportDate != "" && !reportDatePattern.MatchString(q.ReportDate) {
		return nil, ErrInvalidDateFormat
	}
	out, err := s.records.Search(ctx, repository.RecordFilter{Ticker: q.Ticker, ReportDate: q.ReportDate}, int64(q.Skip), int64(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	return out, nil
}
