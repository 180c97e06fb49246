package upload

import (
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/Real-Bird/upload-server/internal/apperr"
	"github.com/Real-Bird/upload-server/internal/logger"
	"github.com/Real-Bird/upload-server/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const formPage = "multipart.html"

// RegisterRoutes mounts the upload form and the multipart upload endpoint.
func RegisterRoutes(router gin.IRoutes, service *Service, pages fs.FS, log *zap.Logger) {
	handler := &httpHandler{service: service, pages: http.FS(pages), log: log}
	router.GET("/upload", handler.form)
	router.POST("/upload", handler.upload)
}

type httpHandler struct {
	service *Service
	pages   http.FileSystem
	log     *zap.Logger
}

func (h *httpHandler) form(c *gin.Context) {
	c.FileFromFS(formPage, h.pages)
}

func (h *httpHandler) upload(c *gin.Context) {
	limits := h.service.Limits()
	if c.Request.ContentLength > limits.RequestLimit() {
		h.fail(c, ErrRequestTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limits.RequestLimit())

	form, err := c.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			h.fail(c, apperr.Wrap(apperr.KindTooLarge, ErrRequestTooLarge.Message, err))
			return
		}
		h.fail(c, apperr.Wrap(apperr.KindBadRequest, ErrInvalidForm.Message, err))
		return
	}

	files, err := fieldFiles(form, limits.Field)
	if err != nil {
		h.fail(c, err)
		return
	}

	records, err := h.service.Save(c.Request.Context(), files)
	if err != nil {
		h.fail(c, err)
		return
	}

	log := logger.FromContext(c, h.log)
	var total int64
	for _, rec := range records {
		total += rec.Size
		log.Info("file uploaded",
			zap.String("field", rec.Field),
			zap.String("original_name", rec.OriginalName),
			zap.String("stored_name", rec.StoredName),
			zap.String("location", rec.Location),
			zap.Int64("size", rec.Size),
			zap.String("content_type", rec.ContentType))
	}
	if len(form.Value) > 0 {
		log.Debug("upload form fields", zap.Any("fields", form.Value))
	}
	metrics.UploadSucceeded(total)

	c.String(http.StatusOK, "ok")
}

func (h *httpHandler) fail(c *gin.Context, err error) {
	metrics.UploadFailed()
	_ = c.Error(err)
}

// fieldFiles returns the files sent under field and rejects parts under any other name.
func fieldFiles(form *multipart.Form, field string) ([]*multipart.FileHeader, error) {
	for name := range form.File {
		if name != field {
			return nil, fmt.Errorf("file part %q: %w", name, ErrUnexpectedField)
		}
	}
	return form.File[field], nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// mime/multipart does not always wrap the reader error
	return strings.Contains(err.Error(), "request body too large")
}
