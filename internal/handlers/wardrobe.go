package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/pipeline"
)

type harvestRequest struct {
	LookbackDays int `json:"lookback_days"`
}

type harvestResponse struct {
	Status  pipeline.Status `json:"status"`
	Stage   pipeline.Stage  `json:"stage"`
	Gallery []string        `json:"gallery"`
}

// HandleHarvest runs harvest and normalization. An empty body uses the default lookback.
func (h *Handler) HandleHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.LookbackDays < 0 {
		h.writeError(w, "lookback_days must not be negative", http.StatusBadRequest)
		return
	}

	gallery, status := h.pipeline.HarvestAndNormalize(r.Context(), req.LookbackDays)
	if gallery == nil {
		gallery = []string{}
	}
	h.writeJSON(w, httpStatus(status), harvestResponse{
		Status:  status,
		Stage:   h.pipeline.Stage(),
		Gallery: gallery,
	})
}

type wardrobeResponse struct {
	Stage pipeline.Stage        `json:"stage"`
	Items []models.ClothingItem `json:"items"`
}

func (h *Handler) HandleWardrobe(w http.ResponseWriter, r *http.Request) {
	items := h.pipeline.Collection().Items()
	if items == nil {
		items = []models.ClothingItem{}
	}
	h.writeJSON(w, http.StatusOK, wardrobeResponse{Stage: h.pipeline.Stage(), Items: items})
}
