package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/b3datalake/datalake-api/internal/datalake/parser"
	"github.com/b3datalake/datalake-api/internal/datalake/repository"
	"github.com/b3datalake/datalake-api/internal/models"
	"github.com/b3datalake/datalake-api/pkg/logger"
	"github.com/b3datalake/datalake-api/pkg/metrics"
)

// Archiver keeps a copy of the raw upload. Optional.
type Archiver interface {
	Archive(ctx context.Context, key string, content []byte, contentType string) error
}

// UploadResult is what a successful ingestion reports back.
type UploadResult struct {
	Filename     string
	TotalRecords int
}

// IngestService validates, parses and persists uploaded instrument files.
type IngestService struct {
	history  repository.HistoryRepository
	records  repository.RecordRepository
	archiver Archiver
	now      func() time.Time
}

func NewIngestService(h repository.HistoryRepository, r repository.RecordRepository) *IngestService {
	return &IngestService{history: h, records: r, now: func() time.Time { return time.Now().UTC() }}
}

// WithArchiver enables raw-file archiving. The archive is written once the
// upload has claimed its filename in history and before any row is stored.
func (s *IngestService) WithArchiver(a Archiver) *IngestService {
	s.archiver = a
	return s
}

// Upload runs the whole pipeline for one file. Nothing is written unless the
// file parses and carries every required column.
func (s *IngestService) Upload(ctx context.Context, filename string, body io.Reader, subject string) (*UploadResult, error) {
	format, ok := parser.DetectFormat(filename)
	if !ok {
		metrics.Uploads.WithLabelValues("unsupported_format").Inc()
		return nil, ErrUnsupportedFormat
	}

	exists, err := s.history.ExistsByFilename(ctx, filename)
	if err != nil {
		metrics.Uploads.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("check history: %w", err)
	}
	if exists {
		metrics.Uploads.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateUpload
	}

	content, err := io.ReadAll(body)
	if err != nil {
		metrics.Uploads.WithLabelValues("decode_error").Inc()
		return nil, &ParseError{Kind: ErrDecode, Cause: err}
	}
	table, err := parser.Read(format, content)
	if err != nil {
		if errors.Is(err, parser.ErrDecode) {
			metrics.Uploads.WithLabelValues("decode_error").Inc()
			return nil, &ParseError{Kind: ErrDecode, Cause: err}
		}
		metrics.Uploads.WithLabelValues("parse_error").Inc()
		return nil, &ParseError{Kind: ErrUnexpectedParse, Cause: err}
	}
	table.StripTimeOfDay(models.ColReportDate)
	total := table.Len()

	if missing := table.MissingColumns(models.RequiredColumns); len(missing) > 0 {
		metrics.Uploads.WithLabelValues("missing_columns").Inc()
		return nil, &MissingColumnsError{Columns: missing}
	}

	recs := make([]models.DataRecord, 0, total)
	for _, row := range table.Rows {
		recs = append(recs, models.NewDataRecord(row))
	}

	rec := &models.UploadRecord{Filename: filename, UploadDate: s.now()}
	if err := s.history.Insert(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			metrics.Uploads.WithLabelValues("duplicate").Inc()
			return nil, ErrDuplicateUpload
		}
		metrics.Uploads.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("record upload: %w", err)
	}
	// The history insert is the claim on the filename; only its winner may
	// write the archive object.
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, "uploads/"+filename, content, string(format)); err != nil {
			metrics.Uploads.WithLabelValues("store_error").Inc()
			if derr := s.history.Delete(context.WithoutCancel(ctx), filename); derr != nil {
				logger.Errorf("release history claim for %s: %v", filename, derr)
			}
			return nil, fmt.Errorf("archive raw file: %w", err)
		}
	}
	if len(recs) > 0 {
		if err := s.records.InsertMany(ctx, recs); err != nil {
			metrics.Uploads.WithLabelValues("store_error").Inc()
			return nil, fmt.Errorf("store records: %w", err)
		}
	}

	metrics.Uploads.WithLabelValues("ok").Inc()
	metrics.RecordsIngested.Add(float64(len(recs)))
	logger.Infof("upload %s by %s: %d rows (%d malformed lines skipped)", filename, subject, total, table.Skipped)
	return &UploadResult{Filename: filename, TotalRecords: total}, nil
}
