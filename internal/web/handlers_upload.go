package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvvault/internal/auth"
	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/JonMunkholm/csvvault/internal/logging"
)

// multipartOverhead is the allowance for multipart boundaries and part
// headers on top of the file size limit.
const multipartOverhead = 64 << 10

// uploadFormField is the multipart field carrying the file.
const uploadFormField = "file"

type uploadListResponse struct {
	Uploads []core.Upload `json:"uploads"`
}

// handleDashboard lists the signed-in user's uploads.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := mustPrincipal(r)
	uploads, err := s.uploads.ListOwn(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadListResponse{Uploads: uploads})
}

// handleAdminUploads lists every upload in the system.
func (s *Server) handleAdminUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.uploads.ListAll(r.Context(), mustPrincipal(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadListResponse{Uploads: uploads})
}

// handleCreateUpload ingests the multipart "file" field.
func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	file, err := readUploadFile(r, maxSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	upload, err := s.uploads.Create(r.Context(), mustPrincipal(r), file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/uploads/"+upload.ID.String())
	writeJSON(w, http.StatusCreated, upload)
}

// handleShowUpload returns an upload with all of its rows.
func (s *Server) handleShowUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uploadID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	detail, err := s.uploads.Read(r.Context(), mustPrincipal(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleDownloadUpload streams the original file back as an attachment.
func (s *Server) handleDownloadUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uploadID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	dl, err := s.uploads.Download(r.Context(), mustPrincipal(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer dl.Body.Close()

	h := w.Header()
	h.Set("Content-Type", core.CSVContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	if dl.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, dl.Body); err != nil {
		// Headers are sent; the client sees a truncated body.
		logging.FromContext(r.Context()).Warn("download interrupted", "upload_id", id, "error", err)
	}
}

// handleDeleteUpload removes an upload the principal owns, or any upload for admins.
func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, err := uploadID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.uploads.Delete(r.Context(), mustPrincipal(r), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readUploadFile extracts the uploaded file. A request without the file
// field yields a nil FileInput so the pipeline reports NoFileProvided.
func readUploadFile(r *http.Request, maxSize int64) (*core.FileInput, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, err
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return nil, nil
		default:
			return nil, &core.Rejection{Reason: core.NoFileProvided, Detail: "the upload form could not be read"}
		}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, header, err := r.FormFile(uploadFormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, &http.MaxBytesError{Limit: maxSize}
	}

	return &core.FileInput{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}

// uploadID parses the {id} URL parameter. Malformed ids are reported as
// not found, like ids that do not exist.
func uploadID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, core.ErrNotFound
	}
	return id, nil
}

// mustPrincipal returns the principal RequireAuth stored on r.
func mustPrincipal(r *http.Request) core.Principal {
	p, ok := auth.Principal(r)
	if !ok {
		panic("web: handler mounted without RequireAuth")
	}
	return p
}
