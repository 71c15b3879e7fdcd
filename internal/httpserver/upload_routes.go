package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"travelmate/internal/domain"
)

// AttachmentStore keeps uploaded media and resolves stored names back to
// files.
type AttachmentStore interface {
	Save(ctx context.Context, r io.Reader, originalName string) (*domain.Attachment, error)
	Path(name string) (string, error)
	Remove(att *domain.Attachment) error
}

// readMultipartAttachment parses a multipart body and stores its "file"
// part. When required is false a body without a file yields a nil
// attachment.
func readMultipartAttachment(
	w http.ResponseWriter,
	r *http.Request,
	files AttachmentStore,
	maxBytes int64,
	required bool,
) (*domain.Attachment, url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("%w: attachment exceeds %d bytes", domain.ErrValidation, maxBytes)
		}
		return nil, nil, fmt.Errorf("%w: failed to parse multipart form", domain.ErrValidation)
	}
	defer r.MultipartForm.RemoveAll()

	fields := url.Values(r.MultipartForm.Value)
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) && !required {
		return nil, fields, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrValidation, errMissingFile)
	}
	defer file.Close()

	att, err := files.Save(r.Context(), file, header.Filename)
	if err != nil {
		return nil, nil, err
	}
	return att, fields, nil
}

// UploadRoutes returns a sub-router mounted at /api/uploads:
//   - POST /           -> store one "file" part, return the attachment reference
//   - GET /{filename}  -> serve a stored file
func UploadRoutes(files AttachmentStore, maxBytes int64, log *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Post("/", handleUpload(files, maxBytes, log))

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		path, err := files.Path(chi.URLParam(r, "filename"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeFile(w, r, path)
	})

	return r
}

// @Summary      Upload an attachment
// @Description  Stores one file and returns the reference to put on a message.
// @Tags         uploads
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "File"
// @Success      201  {object}  domain.Attachment
// @Failure      400  {object}  errorResponse
// @Router       /uploads [post]
func handleUpload(files AttachmentStore, maxBytes int64, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		att, _, err := readMultipartAttachment(w, r, files, maxBytes, true)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, att)
	}
}
