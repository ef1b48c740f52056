package handlers

import (
	"net/http"

	"github.com/wardrobe-labs/outfitter/internal/pipeline"
)

type sessionResponse struct {
	Status pipeline.Status `json:"status"`
	State  string          `json:"state"`
	Stage  pipeline.Stage  `json:"stage"`
}

// HandleStartSession blocks until the login is confirmed in the browser,
// fails, or the client disconnects.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	status := h.pipeline.StartSession(r.Context())
	h.writeJSON(w, httpStatus(status), sessionResponse{
		Status: status,
		State:  h.pipeline.SessionStatus(r.Context()).String(),
		Stage:  h.pipeline.Stage(),
	})
}

func (h *Handler) HandleSessionStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, sessionResponse{
		Status: pipeline.Status{Kind: pipeline.KindOK},
		State:  h.pipeline.SessionStatus(r.Context()).String(),
		Stage:  h.pipeline.Stage(),
	})
}

func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	status := h.pipeline.CloseSession()
	h.writeJSON(w, httpStatus(status), sessionResponse{
		Status: status,
		State:  h.pipeline.SessionStatus(r.Context()).String(),
		Stage:  h.pipeline.Stage(),
	})
}
