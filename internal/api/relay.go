package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/raphaelgruber/altron-go/internal/models"
)

func (s *Server) registerRelay(r *mux.Router) {
	r.HandleFunc("/discord/ping", s.relayPing).Methods(http.MethodGet)
	r.HandleFunc("/discord/message", s.relayMessage).Methods(http.MethodPost)
}

type relayBatch struct {
	Messages []models.RelayMessage `json:"messages"`
}

func (s *Server) relayPing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.relay.Ping())
}

func (s *Server) relayMessage(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msgs, err := models.DecodeRelayBatch(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := s.relay.Handle(r.Context(), msgs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, relayBatch{Messages: reply})
}
