package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/pipeline"
)

type modelsResponse struct {
	Models   []string `json:"models"`
	Selected string   `json:"selected"`
}

func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, modelsResponse{Models: h.pipeline.Models(), Selected: h.pipeline.Model()})
}

type selectModelResponse struct {
	Status   pipeline.Status `json:"status"`
	Selected string          `json:"selected"`
}

func (h *Handler) HandleSelectModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	status := h.pipeline.SelectModel(req.Model)
	h.writeJSON(w, httpStatus(status), selectModelResponse{Status: status, Selected: h.pipeline.Model()})
}

type recommendResponse struct {
	Status pipeline.Status             `json:"status"`
	Result models.RecommendationResult `json:"result"`
}

func (h *Handler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, status := h.pipeline.Recommend(r.Context(), req)
	h.writeJSON(w, httpStatus(status), recommendResponse{Status: status, Result: result})
}
