package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/b3datalake/datalake-api/internal/datalake/repository"
	"github.com/b3datalake/datalake-api/internal/models"
	"github.com/b3datalake/datalake-api/pkg/metrics"
)

const header = "RptDt;TckrSymb;Asst;MktNm;SctyCtgyNm;ISIN;CrpnNm"

func csvFile(lines ...string) *strings.Reader {
	return strings.NewReader("Status do Arquivo: Final\n" + strings.Join(lines, "\n") + "\n")
}

type fixture struct {
	history *repository.MemoryHistoryRepo
	records *repository.MemoryRecordRepo
	ingest  *IngestService
	query   *QueryService
}

func newFixture() *fixture {
	h := repository.NewMemoryHistoryRepo()
	r := repository.NewMemoryRecordRepo()
	return &fixture{history: h, records: r, ingest: NewIngestService(h, r), query: NewQueryService(h, r)}
}

func TestUpload_CSV(t *testing.T) {
	f := newFixture()
	before := testutil.ToFloat64(metrics.Uploads.WithLabelValues("ok"))

	res, err := f.ingest.Upload(context.Background(), "instruments.csv", csvFile(
		header,
		"2024-08-01;PETR4;PETR;EQUITY-CASH;SHARES;BRPETRACNPR6;PETROBRAS",
		"2024-08-01;VALE3;VALE;EQUITY-CASH;SHARES;BRVALEACNOR0;VALE S.A.",
	), "alice")
	require.NoError(t, err)
	require.Equal(t, "instruments.csv", res.Filename)
	require.Equal(t, 2, res.TotalRecords)
	require.Equal(t, 1, f.history.Len())
	require.Equal(t, 2, f.records.Len())
	require.Equal(t, before+1, testutil.ToFloat64(metrics.Uploads.WithLabelValues("ok")))

	got, err := f.query.SearchRecords(context.Background(), SearchQuery{Ticker: "VALE3", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "BRVALEACNOR0", *got[0].ISIN)
}

func TestUpload_CountsRowsWithMalformedLineSkipped(t *testing.T) {
	f := newFixture()
	res, err := f.ingest.Upload(context.Background(), "three.csv", csvFile(
		header,
		"2024-08-01;AAAA3;A;EQUITY-CASH;SHARES;BRAAAA000001;A SA",
		"2024-08-01;BBBB3;B;EQUITY-CASH;SHARES;BRBBBB000001;B SA;too;many;fields",
		"2024-08-01;CCCC3;C;EQUITY-CASH;SHARES;;C SA",
		"2024-08-01;DDDD3;D;EQUITY-CASH;SHARES;BRDDDD000001",
	), "alice")
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalRecords)
	require.Equal(t, 3, f.records.Len())

	got, err := f.query.SearchRecords(context.Background(), SearchQuery{Ticker: "CCCC3", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Nil(t, got[0].ISIN)
}

func TestUpload_DuplicateFilename(t *testing.T) {
	f := newFixture()
	body := []string{header, "2024-08-01;PETR4;PETR;EQUITY-CASH;SHARES;BRPETRACNPR6;PETROBRAS"}
	_, err := f.ingest.Upload(context.Background(), "dup.csv", csvFile(body...), "alice")
	require.NoError(t, err)

	_, err = f.ingest.Upload(context.Background(), "dup.csv", csvFile(header), "bob")
	require.ErrorIs(t, err, ErrDuplicateUpload)
	require.Equal(t, 1, f.history.Len())
	require.Equal(t, 1, f.records.Len())
}

func TestUpload_MissingISIN(t *testing.T) {
	f := newFixture()
	_, err := f.ingest.Upload(context.Background(), "noisin.csv", csvFile(
		"RptDt;TckrSymb;MktNm;SctyCtgyNm;CrpnNm",
		"2024-08-01;PETR4;EQUITY-CASH;SHARES;PETROBRAS",
	), "alice")
	require.ErrorIs(t, err, ErrMissingColumns)
	var mc *MissingColumnsError
	require.True(t, errors.As(err, &mc))
	require.Equal(t, []string{"ISIN"}, mc.Columns)
	require.Zero(t, f.history.Len())
	require.Zero(t, f.records.Len())
}

func TestUpload_UnsupportedFormat(t *testing.T) {
	f := newFixture()
	for _, name := range []string{"data.txt", "data", "data.CSV", "csv"} {
		_, err := f.ingest.Upload(context.Background(), name, csvFile(header), "alice")
		require.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
	require.Zero(t, f.history.Len())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestUpload_ParseFailures(t *testing.T) {
	f := newFixture()
	_, err := f.ingest.Upload(context.Background(), "broken.csv", failingReader{}, "alice")
	require.ErrorIs(t, err, ErrDecode)
	require.Contains(t, err.Error(), "connection reset")

	_, err = f.ingest.Upload(context.Background(), "broken.xlsx", strings.NewReader("not a zip"), "alice")
	require.ErrorIs(t, err, ErrUnexpectedParse)

	_, err = f.ingest.Upload(context.Background(), "empty.csv", strings.NewReader(""), "alice")
	require.ErrorIs(t, err, ErrUnexpectedParse)
	require.Zero(t, f.history.Len())
}

func TestUpload_HeaderOnlyRecordsHistory(t *testing.T) {
	f := newFixture()
	res, err := f.ingest.Upload(context.Background(), "empty-body.csv", csvFile(header), "alice")
	require.NoError(t, err)
	require.Zero(t, res.TotalRecords)
	require.Equal(t, 1, f.history.Len())
	require.Zero(t, f.records.Len())
}

func TestUpload_XLSXStripsTimeOfDay(t *testing.T) {
	x := excelize.NewFile()
	sheet := x.GetSheetName(0)
	rows := [][]interface{}{
		{"banner"},
		{"RptDt", "TckrSymb", "MktNm", "SctyCtgyNm", "ISIN", "CrpnNm", "Extra"},
		{"2024-08-01 00:00:00", "PETR4", "EQUITY-CASH", "SHARES", "BRPETRACNPR6", "PETROBRAS", "drop me"},
		{time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), "VALE3", "EQUITY-CASH", "SHARES", "BRVALEACNOR0", "VALE S.A.", nil},
	}
	for i, r := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, x.SetSheetRow(sheet, cellName, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, x.Write(&buf))

	f := newFixture()
	res, err := f.ingest.Upload(context.Background(), "sheet.xlsx", &buf, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalRecords)

	got, err := f.query.SearchRecords(context.Background(), SearchQuery{ReportDate: "2024-08-01", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2, "text and date-typed RptDt cells both match")
	require.Equal(t, "PETR4", *got[0].TckrSymb)
	require.Equal(t, "VALE3", *got[1].TckrSymb)
	require.Equal(t, "2024-08-01", *got[1].RptDt)
}

type recordingArchiver struct {
	keys []string
	err  error
}

func (a *recordingArchiver) Archive(_ context.Context, key string, content []byte, _ string) error {
	a.keys = append(a.keys, key)
	return a.err
}

func TestUpload_Archiver(t *testing.T) {
	f := newFixture()
	arch := &recordingArchiver{}
	f.ingest.WithArchiver(arch)
	_, err := f.ingest.Upload(context.Background(), "kept.csv", csvFile(header), "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"uploads/kept.csv"}, arch.keys)

	arch.err = errors.New("bucket gone")
	_, err = f.ingest.Upload(context.Background(), "lost.csv", csvFile(header,
		"2024-08-01;PETR4;PETR;EQUITY-CASH;SHARES;BRPETRACNPR6;PETROBRAS"), "alice")
	require.Error(t, err)
	require.Equal(t, 1, f.history.Len(), "failed archive releases the filename")
	require.Zero(t, f.records.Len())

	arch.err = nil
	_, err = f.ingest.Upload(context.Background(), "lost.csv", csvFile(header), "alice")
	require.NoError(t, err, "retry after a failed archive")
	require.Equal(t, 2, f.history.Len())
}

type racingHistory struct {
	*repository.MemoryHistoryRepo
}

func (racingHistory) ExistsByFilename(context.Context, string) (bool, error) { return false, nil }

func TestUpload_StoreLevelDuplicate(t *testing.T) {
	h := racingHistory{repository.NewMemoryHistoryRepo()}
	r := repository.NewMemoryRecordRepo()
	svc := NewIngestService(h, r)
	_, err := svc.Upload(context.Background(), "race.csv", csvFile(header), "a")
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), "race.csv", csvFile(header), "b")
	require.ErrorIs(t, err, ErrDuplicateUpload)
}

func TestUpload_DuplicateLoserDoesNotOverwriteArchive(t *testing.T) {
	h := racingHistory{repository.NewMemoryHistoryRepo()}
	r := repository.NewMemoryRecordRepo()
	arch := &recordingArchiver{}
	svc := NewIngestService(h, r).WithArchiver(arch)

	_, err := svc.Upload(context.Background(), "race.csv", csvFile(header,
		"2024-08-01;PETR4;PETR;EQUITY-CASH;SHARES;BRPETRACNPR6;PETROBRAS"), "a")
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), "race.csv", csvFile(header,
		"2024-08-02;VALE3;VALE;EQUITY-CASH;SHARES;BRVALEACNOR0;VALE S.A."), "b")
	require.ErrorIs(t, err, ErrDuplicateUpload)

	require.Equal(t, []string{"uploads/race.csv"}, arch.keys, "only the winner writes the archive")
	require.Equal(t, 1, h.Len())
	require.Equal(t, 1, r.Len())
}

func TestListUploads(t *testing.T) {
	f := newFixture()
	_, err := f.query.ListUploads(context.Background(), HistoryQuery{Page: 1, Limit: 10})
	require.ErrorIs(t, err, ErrNotFound)

	day := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	f.ingest.now = func() time.Time { return day }
	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		_, err := f.ingest.Upload(context.Background(), name, csvFile(header), "alice")
		require.NoError(t, err)
	}
	f.ingest.now = func() time.Time { return day.AddDate(0, 0, 1) }
	_, err = f.ingest.Upload(context.Background(), "d.csv", csvFile(header), "alice")
	require.NoError(t, err)

	all, err := f.query.ListUploads(context.Background(), HistoryQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 4)

	page2, err := f.query.ListUploads(context.Background(), HistoryQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, "c.csv", page2[0].Filename)

	_, err = f.query.ListUploads(context.Background(), HistoryQuery{Page: 3, Limit: 2})
	require.ErrorIs(t, err, ErrNotFound)

	onDay, err := f.query.ListUploads(context.Background(), HistoryQuery{Date: "2024-08-01", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, onDay, 3)

	byName, err := f.query.ListUploads(context.Background(), HistoryQuery{Filename: "d.csv", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byName, 1)

	_, err = f.query.ListUploads(context.Background(), HistoryQuery{Date: "01/08/2024", Page: 1, Limit: 10})
	require.ErrorIs(t, err, ErrInvalidDateFormat)
	_, err = f.query.ListUploads(context.Background(), HistoryQuery{Date: "2024-13-40", Page: 1, Limit: 10})
	require.ErrorIs(t, err, ErrInvalidDateFormat)
}

func TestListUploads_Bounds(t *testing.T) {
	f := newFixture()
	for _, q := range []HistoryQuery{{Page: 0, Limit: 10}, {Page: 1, Limit: 0}, {Page: 1, Limit: 101}} {
		_, err := f.query.ListUploads(context.Background(), q)
		require.ErrorIs(t, err, ErrInvalidPagination)
	}
}

func TestSearchRecords(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.records.InsertMany(context.Background(), []models.DataRecord{
		models.NewDataRecord(map[string]*string{"TckrSymb": ptr("PETR4"), "RptDt": ptr("2024-08-01")}),
	}))

	got, err := f.query.SearchRecords(context.Background(), SearchQuery{ReportDate: "2024-13-40", Limit: 10})
	require.NoError(t, err, "pattern-only date check")
	require.Empty(t, got)

	_, err = f.query.SearchRecords(context.Background(), SearchQuery{ReportDate: "1/8/2024", Limit: 10})
	require.ErrorIs(t, err, ErrInvalidDateFormat)

	_, err = f.query.SearchRecords(context.Background(), SearchQuery{Skip: -1, Limit: 10})
	require.ErrorIs(t, err, ErrInvalidPagination)
	_, err = f.query.SearchRecords(context.Background(), SearchQuery{Limit: 101})
	require.ErrorIs(t, err, ErrInvalidPagination)

	got, err = f.query.SearchRecords(context.Background(), SearchQuery{Ticker: "PETR4", ReportDate: "2024-08-01", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func ptr(s string) *string { return &s }
