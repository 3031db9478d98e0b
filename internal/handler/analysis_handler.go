package handler

import (
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"tax_analysis/internal/ingest"
	"tax_analysis/internal/model"
	"tax_analysis/internal/service"
	"tax_analysis/internal/utils"

	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// AnalysisHandler serves uploads, scored data and the dashboard counters
type AnalysisHandler struct {
	service        service.AnalysisService
	maxUploadBytes int64
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(s service.AnalysisService, maxUploadBytes int64) *AnalysisHandler {
	return &AnalysisHandler{service: s, maxUploadBytes: maxUploadBytes}
}

func (h *AnalysisHandler) Upload(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "File size exceeds limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded"})
		return
	}

	result, err := h.service.ProcessUpload(c.Request.Context(), userID, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileRequired):
			c.JSON(http.StatusBadRequest, gin.H{"message": "No file uploaded"})
		case errors.Is(err, service.ErrFileSizeExceeded):
			c.JSON(http.StatusBadRequest, gin.H{"message": "File size exceeds limit"})
		case errors.Is(err, utils.ErrInvalidFilename):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid file name"})
		case errors.Is(err, ingest.ErrUnreadableFormat):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Could not read file: " + err.Error()})
		default:
			log.Printf("ERROR: upload for user %d: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to process upload"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "File uploaded and analyzed successfully",
		"filename": result.Upload.Filename,
		"summary":  result.Summary,
	})
}

func (h *AnalysisHandler) GetUpload(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	rc, upload, err := h.service.OpenUpload(c.Request.Context(), userID, c.Param("filename"))
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidFilename):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid file name"})
		case errors.Is(err, service.ErrUploadNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "File not found"})
		default:
			log.Printf("ERROR: open upload for user %d: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read file"})
		}
		return
	}
	defer rc.Close()

	// The recorded size can lag a concurrent re-upload of the same name.
	c.DataFromReader(http.StatusOK, -1, contentType(upload.Filename), rc, map[string]string{
		"Content-Disposition": "attachment; filename=" + upload.Filename,
	})
}

func (h *AnalysisHandler) FraudData(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	rows, err := h.service.ListMine(c.Request.Context(), userID)
	if err != nil {
		log.Printf("ERROR: list fraud data for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load fraud data"})
		return
	}
	writeScoredRows(c, rows, "fraud_data")
}

func (h *AnalysisHandler) AllFraudData(c *gin.Context) {
	rows, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		log.Printf("ERROR: list all fraud data: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load fraud data"})
		return
	}
	writeScoredRows(c, rows, "fraud_data_all")
}

func (h *AnalysisHandler) AugmentedData(c *gin.Context) {
	userID, err := getAuthUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
		return
	}

	data, err := h.service.Augmented(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoUpload):
			c.JSON(http.StatusNotFound, gin.H{"message": "No uploaded data found"})
		case errors.Is(err, ingest.ErrUnreadableFormat):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Could not read file: " + err.Error()})
		default:
			log.Printf("ERROR: augmented data for user %d: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to build augmented data"})
		}
		return
	}

	if c.Query("format") == "json" {
		if c.Query("download") == "true" {
			attachment(c, "augmented_data", "json")
		}
		c.JSON(http.StatusOK, data)
		return
	}

	buf, err := service.AugmentedCSV(data)
	if err != nil {
		log.Printf("ERROR: augmented csv for user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to export augmented data"})
		return
	}
	if c.Query("download") == "true" {
		attachment(c, "augmented_data", "csv")
	}
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (h *AnalysisHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		log.Printf("ERROR: stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func writeScoredRows(c *gin.Context, rows []model.ScoredRow, prefix string) {
	if rows == nil {
		rows = []model.ScoredRow{}
	}

	if c.Query("format") != "csv" {
		if c.Query("download") == "true" {
			attachment(c, prefix, "json")
		}
		c.JSON(http.StatusOK, rows)
		return
	}

	buf, err := service.ScoredRowsCSV(rows)
	if err != nil {
		log.Printf("ERROR: export scored rows: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to export fraud data"})
		return
	}
	if c.Query("download") == "true" {
		attachment(c, prefix, "csv")
	}
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}

// RegisterAnalysisRoutes registers upload and data routes. uploadMW runs
// after authentication on POST /upload only.
func (h *AnalysisHandler) RegisterAnalysisRoutes(rg *gin.RouterGroup, authMW, uploadMW, adminMW gin.HandlerFunc) {
	rg.GET("/stats", h.Stats)

	userGroup := rg.Group("")
	userGroup.Use(authMW)
	{
		userGroup.POST("/upload", uploadMW, h.Upload)
		userGroup.GET("/uploads/:filename", h.GetUpload)
		userGroup.GET("/fraud-data", h.FraudData)
		userGroup.GET("/augmented-data", h.AugmentedData)
	}

	rg.GET("/admin/fraud-data", authMW, adminMW, h.AllFraudData)
}
