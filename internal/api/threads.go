package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/raphaelgruber/altron-go/internal/models"
)

func (s *Server) registerThreads(r *mux.Router) {
	r.HandleFunc("/threads", s.listThreads).Methods(http.MethodGet)
	r.HandleFunc("/threads/import", s.importThread).Methods(http.MethodPost)
	r.HandleFunc("/thread", s.createThread).Methods(http.MethodPost)
	r.HandleFunc("/thread/{id}", s.getThread).Methods(http.MethodGet)
	r.HandleFunc("/thread/{id}", s.renameThread).Methods(http.MethodPatch)
	r.HandleFunc("/thread/{id}", s.deleteThread).Methods(http.MethodDelete)
	r.HandleFunc("/thread/{id}/info", s.threadInfo).Methods(http.MethodGet)
	r.HandleFunc("/thread/{id}/messages", s.appendMessage).Methods(http.MethodPost)
	r.HandleFunc("/thread/{id}/converse", s.converse).Methods(http.MethodPost)
	r.HandleFunc("/thread/{id}/events", s.threadEvents).Methods(http.MethodGet)
}

type createThreadRequest struct {
	Title string `json:"title"`
}

type renameThreadRequest struct {
	Title *string `json:"title"`
}

type deleteThreadResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	infos, err := s.threads.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	thread, err := s.threads.Create(r.Context(), req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

func (s *Server) importThread(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	thread, err := models.DecodeThread(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.threads.Import(r.Context(), thread)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	thread, err := s.threads.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) threadInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.threads.Info(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) renameThread(w http.ResponseWriter, r *http.Request) {
	var req renameThreadRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Title == nil {
		writeError(w, r, &models.ValidationError{Field: "title", Reason: "is required", Err: models.ErrRequired})
		return
	}
	thread, err := s.threads.Rename(r.Context(), mux.Vars(r)["id"], *req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.threads.Delete(r.Context(), id); err != nil {
		status := statusFor(err)
		writeJSON(w, status, deleteThreadResponse{ID: id, Error: errorMessage(status, err)})
		return
	}
	writeJSON(w, http.StatusOK, deleteThreadResponse{ID: id, Deleted: true})
}

func (s *Server) appendMessage(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := models.DecodeNewMessage(body, uuid.NewString(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	appended, err := s.threads.Append(r.Context(), mux.Vars(r)["id"], msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appended)
}

// converse takes the same body as appendMessage. The role must be "user";
// the response holds the stored message and the assistant's reply.
func (s *Server) converse(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := models.DecodeNewMessage(body, uuid.NewString(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	exchange, err := s.threads.Converse(r.Context(), mux.Vars(r)["id"], msg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, exchange)
}
