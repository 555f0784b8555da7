package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/photo-classifier/internal/logging"
	"github.com/Brownie44l1/photo-classifier/internal/model"
	"github.com/Brownie44l1/photo-classifier/internal/photo"
	"github.com/Brownie44l1/photo-classifier/internal/pipeline"
	"github.com/Brownie44l1/photo-classifier/internal/staging"
)

const (
	requestIDHeader = "X-Request-ID"
	imageField      = "image"

	msgSelectFile   = "Please select a file for processing."
	msgNotJPEG      = "You must upload a \".jpg\" file. Please try again."
	msgUnreadable   = "The uploaded file could not be read. It may not be an acceptable image format."
	msgMissingField = "No image file provided. Use 'image' as the form field name"
)

type Handler struct {
	pipeline      *pipeline.Pipeline
	logger        *zap.Logger
	maxUploadSize int64
}

func NewHandler(p *pipeline.Pipeline, logger *zap.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		pipeline:      p,
		logger:        logger.Named("handlers"),
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handler) {
	router.Use(enableCORS(), h.requestContext())

	router.GET("/health", h.Health)
	router.GET("/exemplars", h.ListExemplars)

	router.GET("/selection", h.CurrentSelection)
	router.POST("/selection/exemplar", h.SelectExemplar)
	router.POST("/selection/upload", h.limitBody(), h.SelectUpload)

	router.POST("/predict", h.Predict)
	router.POST("/predict/image", h.limitBody(), h.PredictFromImage)
}

func enableCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// requestContext tags every request with an id and logs its outcome.
func (h *Handler) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(pipeline.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (h *Handler) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.maxUploadSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
		}
		c.Next()
	}
}

func (h *Handler) Health(c *gin.Context) {
	handle, err := h.pipeline.Ready()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"classes":     handle.Catalog.Labels(),
		"input_shape": handle.Metadata.InputShape,
	})
}

func (h *Handler) ListExemplars(c *gin.Context) {
	exemplars := photo.Exemplars()
	names := make([]string, len(exemplars))
	for i, e := range exemplars {
		names[i] = e.String()
	}
	c.JSON(http.StatusOK, gin.H{"exemplars": names})
}

type selectExemplarRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) SelectExemplar(c *gin.Context) {
	var req selectExemplarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if _, err := h.pipeline.Select(c.Request.Context(), photo.ModeCatalog, req.Name); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staged": true, "name": req.Name})
}

func (h *Handler) SelectUpload(c *gin.Context) {
	file, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusOK, gin.H{"staged": false, "message": msgSelectFile})
			return
		}
		h.writeFormError(c, err)
		return
	}

	src, err := file.Open()
	if err != nil {
		h.writeError(c, photo.ErrRead)
		return
	}
	defer src.Close()

	staged, err := h.pipeline.Select(c.Request.Context(), photo.ModeUpload, src)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !staged {
		c.JSON(http.StatusOK, gin.H{"staged": false, "message": msgSelectFile})
		return
	}
	c.JSON(http.StatusOK, gin.H{"staged": true, "filename": file.Filename})
}

func (h *Handler) CurrentSelection(c *gin.Context) {
	img, err := h.pipeline.Current(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", img.Data)
}

type predictionResponse struct {
	Summary string `json:"summary"`
	*model.PredictionReport
}

func (h *Handler) Predict(c *gin.Context) {
	report, err := h.pipeline.Classify(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, predictionResponse{Summary: report.Summary(), PredictionReport: report})
}

func (h *Handler) PredictFromImage(c *gin.Context) {
	file, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingField})
			return
		}
		h.writeFormError(c, err)
		return
	}

	src, err := file.Open()
	if err != nil {
		h.writeError(c, photo.ErrRead)
		return
	}
	defer src.Close()

	report, err := h.pipeline.ClassifyUpload(c.Request.Context(), src)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, predictionResponse{Summary: report.Summary(), PredictionReport: report})
}

func (h *Handler) writeFormError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds the upload size limit"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse form"})
}

// writeError maps the pipeline error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "Prediction failed"

	switch {
	case errors.Is(err, photo.ErrFormatRejected):
		status, message = http.StatusUnsupportedMediaType, msgNotJPEG
	case errors.Is(err, photo.ErrNotFound):
		status, message = http.StatusNotFound, "Unknown exemplar."
	case errors.Is(err, photo.ErrRead):
		status, message = http.StatusBadRequest, msgUnreadable
	case errors.Is(err, pipeline.ErrEmptyUpload):
		status, message = http.StatusBadRequest, msgSelectFile
	case errors.Is(err, staging.ErrNothingStaged):
		status, message = http.StatusConflict, "No image has been selected yet."
	case errors.Is(err, model.ErrModelLoad):
		status, message = http.StatusServiceUnavailable, "The classifier is unavailable."
	case errors.Is(err, model.ErrShape):
		message = "The classifier rejected the prepared input."
	}

	fields := append(logging.ErrorFields(err), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}
	c.JSON(status, gin.H{"error": message})
}
