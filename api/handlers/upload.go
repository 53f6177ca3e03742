package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feichai0017/document-intake/internal/apperr"
	"github.com/feichai0017/document-intake/internal/service/upload"
	"github.com/feichai0017/document-intake/pkg/logger"
)

// multipartOverhead is the allowance for boundaries and part headers on
// top of the file itself.
const multipartOverhead = 64 << 10

type UploadHandler struct {
	service  upload.Service
	maxBytes int64
	logger   logger.Logger
}

func NewUploadHandler(service upload.Service, maxUploadBytes int64, log logger.Logger) *UploadHandler {
	h := &UploadHandler{
		service: service,
		logger:  log.Named("handlers.upload"),
	}
	if maxUploadBytes > 0 {
		h.maxBytes = maxUploadBytes + multipartOverhead
	}
	return h
}

// Create handles POST /uploads/ with a multipart "file" part. The request
// body is capped before the form is parsed.
func (h *UploadHandler) Create(c *gin.Context) {
	if h.maxBytes > 0 {
		if c.Request.ContentLength > h.maxBytes {
			respondError(c, h.logger, errFileTooLarge(nil))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.logger, errFileTooLarge(err))
			return
		}
		respondError(c, h.logger, apperr.BadRequest("A file is required", err))
		return
	}
	defer file.Close()

	resp, err := h.service.Upload(c.Request.Context(), upload.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetJob handles GET /jobs/:id.
func (h *UploadHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, apperr.NotFound("Job not found", err))
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetDocument handles GET /documents/:id.
func (h *UploadHandler) GetDocument(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		if err == nil {
			err = errors.New("non-positive document id")
		}
		respondError(c, h.logger, apperr.NotFound("Document not found", err))
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func errFileTooLarge(err error) *apperr.Error {
	if err == nil {
		err = upload.ErrFileTooLarge
	}
	return apperr.New(http.StatusRequestEntityTooLarge, "File too large", err)
}
