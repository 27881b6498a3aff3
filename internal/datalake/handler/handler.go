package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/b3datalake/datalake-api/internal/datalake/service"
	"github.com/b3datalake/datalake-api/internal/models"
	"github.com/b3datalake/datalake-api/pkg/logger"
)

// Handler serves the /upload endpoints.
type Handler struct {
	ingest   *service.IngestService
	query    *service.QueryService
	maxBytes int64
}

// New builds the upload and query handlers. maxBytes <= 0 disables the body cap.
func New(ingest *service.IngestService, query *service.QueryService, maxBytes int64) *Handler {
	return &Handler{ingest: ingest, query: query, maxBytes: maxBytes}
}

// RegisterRoutes mounts the upload and query routes under rg. The caller
// attaches the auth middleware to rg.
func (h *Handler) RegisterRoutes(rg gin.IRouter) {
	u := rg.Group("/upload")
	u.POST("/", h.Upload)
	u.GET("/history/", h.History)
	u.GET("/search/", h.Search)
}

type historyItem struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	UploadDate string `json:"upload_date"`
}

// Upload handles POST /upload/: a multipart "file" field is parsed and
// stored, answering with the number of rows read.
func (h *Handler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file too large", "details": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\"", "details": err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not open upload", "details": err.Error()})
		return
	}
	defer f.Close()

	res, err := h.ingest.Upload(c.Request.Context(), fh.Filename, f, c.GetString("sub"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filename":        res.Filename,
		"message":         "file processed and data stored successfully",
		"total_registers": res.TotalRecords,
	})
}

// History handles GET /upload/history/, a paged view of the upload log
// filtered by filename and upload day.
func (h *Handler) History(c *gin.Context) {
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", service.DefaultLimit)
	if !ok {
		return
	}
	list, err := h.query.ListUploads(c.Request.Context(), service.HistoryQuery{
		Filename: c.Query("filename"),
		Date:     c.Query("date"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]historyItem, 0, len(list))
	for _, r := range list {
		out = append(out, historyItem{ID: r.ID, Filename: r.Filename, UploadDate: r.UploadDate.UTC().Format(time.RFC3339)})
	}
	c.JSON(http.StatusOK, out)
}

// Search handles GET /upload/search/ on TckrSymb and RptDt with skip/limit
// paging.
func (h *Handler) Search(c *gin.Context) {
	skip, ok := intQuery(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", service.DefaultLimit)
	if !ok {
		return
	}
	results, err := h.query.SearchRecords(c.Request.Context(), service.SearchQuery{
		Ticker:     c.Query(models.ColTicker),
		ReportDate: c.Query(models.ColReportDate),
		Skip:       skip,
		Limit:      limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if len(results) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "no results found for the given filters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// intQuery reads an optional integer query parameter, answering 400 itself
// when the value is not a number.
func intQuery(c *gin.Context, key string, def int) (int, bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidPagination.Error(), "details": key + " must be an integer"})
		return 0, false
	}
	return v, true
}

func writeError(c *gin.Context, err error) {
	var mc *service.MissingColumnsError
	switch {
	case errors.As(err, &mc):
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrMissingColumns.Error(), "missing": mc.Columns})
	case errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, service.ErrInvalidDateFormat),
		errors.Is(err, service.ErrInvalidPagination):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDecode):
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrDecode.Error(), "details": err.Error()})
	case errors.Is(err, service.ErrDuplicateUpload):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnexpectedParse):
		logger.Errorf("upload parse failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrUnexpectedParse.Error(), "details": err.Error()})
	default:
		logger.Errorf("datalake request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "details": err.Error()})
	}
}
