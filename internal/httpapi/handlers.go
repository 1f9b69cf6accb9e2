package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/valpere/cloudtran/internal/languages"
	"github.com/valpere/cloudtran/internal/orchestrator"
	"github.com/valpere/cloudtran/internal/upload"
)

type languageResponse struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Native  string `json:"native"`
	Default bool   `json:"default,omitempty"`
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type documentResponse struct {
	SessionID string `json:"session_id"`
	JobID     string `json:"job_id"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) listLanguages(w http.ResponseWriter, r *http.Request) {
	all := languages.All()
	out := make([]languageResponse, 0, len(all))
	for _, l := range all {
		out = append(out, languageResponse{
			Code:    l.Code,
			Name:    l.Name,
			Native:  languages.Native(l.Code),
			Default: l.Code == languages.Default,
		})
	}
	jsonResponse(w, out, http.StatusOK)
}

func (s *Server) translateText(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.orch.TranslateText(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	jsonResponse(w, res, http.StatusOK)
}

func (s *Server) submitDocument(w http.ResponseWriter, r *http.Request) {
	s.prune(time.Now())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "invalid file_size: file exceeds "+upload.FormatSize(upload.MaxFileSize), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "invalid file: please select a document to translate", http.StatusBadRequest)
		return
	}
	defer file.Close()

	targetLang := r.FormValue("target_lang")
	if targetLang == "" {
		targetLang = languages.Default
	}

	doc, err := upload.Read(header.Filename, header.Size, file)
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}

	sess := orchestrator.NewSession(s.orch, s.opts.Session)
	if !s.addSession(sess) {
		sess.Close()
		jsonError(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	jobID, err := sess.TranslateDocument(r.Context(), doc, targetLang)
	if err != nil {
		s.removeSession(sess.ID)
		sess.Close()
		jsonError(w, err.Error(), errorStatus(err))
		return
	}

	s.log.Info().Str("session_id", sess.ID).Str("job_id", jobID).Str("file", doc.Name).Msg("document submitted")
	jsonResponse(w, documentResponse{SessionID: sess.ID, JobID: jobID}, http.StatusAccepted)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, sess.Snapshot(), http.StatusOK)
}

func (s *Server) cancelDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	sess.Cancel()
	jsonResponse(w, sess.Snapshot(), http.StatusOK)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.removeSession(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

// errorStatus maps the error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	var stepErr *orchestrator.StepError
	switch {
	case orchestrator.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &stepErr):
		return http.StatusBadGateway
	case errors.Is(err, orchestrator.ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, map[string]string{"error": msg}, status)
}
