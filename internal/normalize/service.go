package normalize

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/wardrobe-labs/outfitter/internal/models"
)

// Snapshotter persists the canonical collection, replacing any previous snapshot
type Snapshotter interface {
	SaveCollection(items []models.ClothingItem) error
}

// Service runs Normalize and persists the result
type Service struct {
	store Snapshotter
	mu    sync.Mutex
}

func NewService(store Snapshotter) *Service {
	return &Service{store: store}
}

// Run normalizes records and overwrites the persisted snapshot with the result.
// Concurrent runs are serialized so snapshots never interleave.
func (s *Service) Run(records []models.RawPurchaseRecord) (*models.ClothingCollection, Diagnostics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, diag := Normalize(records)
	if err := s.store.SaveCollection(collection.Items()); err != nil {
		return collection, diag, fmt.Errorf("failed to persist normalized collection: %w", err)
	}

	slog.Info("Normalized collection saved", "items", collection.Len(), "dropped", diag.Dropped(), "duplicates", diag.Duplicates)
	return collection, diag, nil
}
