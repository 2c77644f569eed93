package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/raphaelgruber/altron-go/internal/models"
	"github.com/raphaelgruber/altron-go/internal/service"
)

func (s *Server) registerJobs(r *mux.Router) {
	jobs := r.PathPrefix("/subprocess/job").Subrouter()
	jobs.HandleFunc("/create", s.createJob).Methods(http.MethodPost)
	jobs.HandleFunc("/get_status", s.jobStatus).Methods(http.MethodGet)
	jobs.HandleFunc("/get_result", s.jobResult).Methods(http.MethodGet)
	jobs.HandleFunc("/terminate", s.terminateJob).Methods(http.MethodDelete)
	jobs.HandleFunc("/list", s.listJobs).Methods(http.MethodGet)
}

// jobCreateBody is the wire form of a create request. All three members are
// required; pointers tell a missing member from a zero value.
type jobCreateBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
}

func (b jobCreateBody) request() (service.JobRequest, error) {
	missing := func(field string) error {
		return &models.ValidationError{Field: field, Reason: "is required", Err: models.ErrRequired}
	}
	switch {
	case b.Title == nil:
		return service.JobRequest{}, missing("title")
	case b.Description == nil:
		return service.JobRequest{}, missing("description")
	case b.Priority == nil:
		return service.JobRequest{}, missing("priority")
	}
	return service.JobRequest{Title: *b.Title, Description: *b.Description, Priority: *b.Priority}, nil
}

// jobCreated echoes the accepted job. created_at is Unix seconds with a
// fractional part.
type jobCreated struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	CreatedAt   string `json:"created_at"`
}

type jobStatus struct {
	ID       string           `json:"id"`
	Title    string           `json:"title,omitempty"`
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
}

type jobResult struct {
	ID     string           `json:"id"`
	Status models.JobStatus `json:"status"`
	Text   string           `json:"text"`
	Images []string         `json:"images"`
	Error  *string          `json:"error,omitempty"`
}

type jobTerminated struct {
	ID     string           `json:"id"`
	Status models.JobStatus `json:"status"`
}

func statusOf(job models.Job) jobStatus {
	return jobStatus{ID: job.ID, Status: job.Status, Progress: job.Progress}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var body jobCreateBody
	if err := decodeBody(w, r, &body, false); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := body.request()
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.jobs.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobCreated{
		ID:          job.ID,
		Title:       job.Title,
		Description: job.Description,
		Priority:    job.Priority,
		CreatedAt:   models.UnixSeconds(job.CreatedAt),
	})
}

// lookupJob resolves the job_id query parameter.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (models.Job, bool) {
	id, err := requiredQuery(r, "job_id")
	if err != nil {
		writeError(w, r, err)
		return models.Job{}, false
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return models.Job{}, false
	}
	return job, true
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusOf(job))
}

func (s *Server) jobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	images := job.Images
	if images == nil {
		images = []string{}
	}
	writeJSON(w, http.StatusOK, jobResult{
		ID:     job.ID,
		Status: job.Status,
		Text:   job.Text,
		Images: images,
		Error:  job.Error,
	})
}

func (s *Server) terminateJob(w http.ResponseWriter, r *http.Request) {
	id, err := requiredQuery(r, "job_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := s.jobs.Terminate(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobTerminated{ID: job.ID, Status: job.Status})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]jobStatus, 0, len(jobs))
	for _, job := range jobs {
		st := statusOf(job)
		st.Title = job.Title
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}
