package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/semekhin/fileward/internal/model"
)

type fileResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func toFileResponse(rec *model.FileRecord) fileResponse {
	return fileResponse{
		ID:          rec.ID.String(),
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		UploadedAt:  rec.UploadedAt,
	}
}

func fileIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return uuid.FromString(chi.URLParam(r, "id"))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	recs, err := s.files.List(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]fileResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toFileResponse(&recs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("file field missing"))
		return
	}
	defer f.Close()

	rec, err := s.files.Upload(r.Context(), id.UserID, hdr.Filename, f, hdr.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "file uploaded successfully",
		"file":    toFileResponse(rec),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, "attachment")
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, "inline")
}

// serveFile streams a stored file after the ownership check inside Resolve.
// Bytes missing on disk while metadata exists answer 404; metadata stays
// authoritative either way.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, disposition string) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	fileID, err := fileIDFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("invalid file id"))
		return
	}
	rec, path, err := s.files.Resolve(r.Context(), id.UserID, fileID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusNotFound, message("file not found on server"))
			return
		}
		s.writeError(w, err)
		return
	}
	defer f.Close()

	ct := rec.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, rec.Filename))
	http.ServeContent(w, r, rec.Filename, rec.UploadedAt, f)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	fileID, err := fileIDFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, message("invalid file id"))
		return
	}
	if err := s.files.Delete(r.Context(), id.UserID, fileID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message("file deleted successfully"))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, message("unauthorized"))
		return
	}
	usage, err := s.files.Usage(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"usage": usage})
}
