package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragdesk/internal/ai"
	"ragdesk/internal/app"
	"ragdesk/internal/transport/http/response"
)

const (
	formTitle = "title"
	formFiles = "pdfs"
)

type CollectionHandler struct {
	ingest         *app.IngestService
	collections    *app.CollectionService
	maxUploadBytes int64
}

func NewCollectionHandler(ingest *app.IngestService, collections *app.CollectionService, maxUploadMB int) *CollectionHandler {
	return &CollectionHandler{
		ingest:         ingest,
		collections:    collections,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// Create builds a new collection from a multipart form with a "title" field
// and one or more "pdfs" parts.
func (h *CollectionHandler) Create(c *gin.Context) {
	form, ok := h.readForm(c)
	if !ok {
		return
	}
	title := ""
	if values := form.Value[formTitle]; len(values) > 0 {
		title = values[0]
	}

	result, err := h.ingest.CreateCollection(c.Request.Context(), app.CreateCollectionInput{
		Title: title,
		Files: uploadsFromForm(form),
	})
	if err != nil {
		writeIngestError(c, result, err)
		return
	}
	response.OK(c, result)
}

// AddDocuments appends the "pdfs" parts to an existing collection.
func (h *CollectionHandler) AddDocuments(c *gin.Context) {
	form, ok := h.readForm(c)
	if !ok {
		return
	}
	result, err := h.ingest.AddDocuments(c.Request.Context(), c.Param("name"), uploadsFromForm(form))
	if err != nil {
		writeIngestError(c, result, err)
		return
	}
	response.OK(c, result)
}

func (h *CollectionHandler) List(c *gin.Context) {
	collections, err := h.collections.List(c.Request.Context())
	if err != nil {
		writeError(c, "list collections", err)
		return
	}
	response.OK(c, collections)
}

func (h *CollectionHandler) Get(c *gin.Context) {
	info, err := h.collections.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, "get collection", err)
		return
	}
	response.OK(c, info)
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.collections.Delete(c.Request.Context(), name); err != nil {
		writeError(c, "delete collection", err)
		return
	}
	response.OK(c, gin.H{"deleted_collection": name})
}

func (h *CollectionHandler) readForm(c *gin.Context) (*multipart.Form, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeRequestTooLarge,
				fmt.Sprintf("upload exceeds %d MB", h.maxUploadBytes>>20))
			return nil, false
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid multipart form")
		return nil, false
	}
	return form, true
}

func uploadsFromForm(form *multipart.Form) []app.FileUpload {
	headers := form.File[formFiles]
	uploads := make([]app.FileUpload, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		uploads = append(uploads, app.FileUpload{
			Filename: fh.Filename,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return uploads
}

// writeIngestError reports a failed file together with the files that were
// committed before it.
func writeIngestError(c *gin.Context, result *app.IngestResult, err error) {
	var ingestErr *app.IngestError
	if !errors.As(err, &ingestErr) {
		writeError(c, "ingest", err)
		return
	}
	_ = c.Error(err)

	status, code := http.StatusInternalServerError, response.CodeIngestFailed
	switch {
	case errors.Is(err, app.ErrUnreadablePDF):
		status, code = http.StatusBadRequest, response.CodeUnreadablePDF
	case errors.Is(err, app.ErrInvalidInput):
		status, code = http.StatusBadRequest, response.CodeBadRequest
	case errors.Is(err, ai.ErrBackendUnavailable):
		status, code = http.StatusServiceUnavailable, response.CodeServiceUnavailable
	}
	data := gin.H{
		"failed_file": ingestErr.Filename,
		"processed":   ingestErr.Processed,
	}
	if result != nil {
		data["collection"] = result.Collection
	}
	response.ErrorWithData(c, status, code, err.Error(), data)
}
