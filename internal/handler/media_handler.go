package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/pkg/response"
)

const (
	uploadField = "file"
	// room for multipart boundaries and part headers on top of the file itself
	multipartOverhead = 64 << 10
)

type MediaService interface {
	Stage(ctx context.Context, r io.Reader, filename, mimeType string) (*domain.MediaRef, error)
}

type MediaHandler struct {
	service  MediaService
	maxBytes int64
}

func NewMediaHandler(service MediaService, maxBytes int64) *MediaHandler {
	return &MediaHandler{service: service, maxBytes: maxBytes}
}

// Upload streams the "file" part of a multipart body straight into staging; the
// body is never buffered in memory or in a temp file.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		response.BadRequest(w, "Expected a multipart/form-data body")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			response.BadRequest(w, "Missing file field")
			return
		}
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, r, err)
				return
			}
			response.BadRequest(w, "Malformed multipart body")
			return
		}

		if part.FormName() != uploadField {
			part.Close()
			continue
		}

		ref, err := h.service.Stage(r.Context(), part, part.FileName(), part.Header.Get("Content-Type"))
		part.Close()
		if err != nil {
			writeError(w, r, err)
			return
		}

		response.Created(w, ref)
		return
	}
}
