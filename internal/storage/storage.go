package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wardrobe-labs/outfitter/internal/models"
)

// Store persists the two pipeline artifacts: the raw harvest and the normalized
// collection. Each write fully replaces the previous file.
type Store struct {
	dir       string
	format    string
	rawName   string
	itemsName string
	mu        sync.Mutex
}

// New returns a store writing <dir>/<rawName>.<format> and <dir>/<itemsName>.<format>
func New(dir, format, rawName, itemsName string) (*Store, error) {
	if format != "csv" && format != "parquet" {
		return nil, fmt.Errorf("unsupported storage format: %s (supported: csv, parquet)", format)
	}
	return &Store{dir: dir, format: format, rawName: rawName, itemsName: itemsName}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) RawPath() string {
	return filepath.Join(s.dir, s.rawName+"."+s.format)
}

func (s *Store) ItemsPath() string {
	return filepath.Join(s.dir, s.itemsName+"."+s.format)
}

// SaveRaw overwrites the raw harvest file
func (s *Store) SaveRaw(records []models.RawPurchaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]rawRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toRawRow(r))
	}
	return s.replace(s.RawPath(), func(f *os.File) error {
		if s.format == "parquet" {
			return writeParquet(f, rows)
		}
		return writeCSV(f, rawHeader, rows, rawRow.csv)
	})
}

// LoadRaw reads the raw harvest file back
func (s *Store) LoadRaw() ([]models.RawPurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []rawRow
	var err error
	if s.format == "parquet" {
		rows, err = readParquet[rawRow](s.RawPath())
	} else {
		rows, err = readCSV(s.RawPath(), rawHeader, rawRowFromCSV)
	}
	if err != nil {
		return nil, err
	}

	records := make([]models.RawPurchaseRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// SaveCollection overwrites the normalized snapshot
func (s *Store) SaveCollection(items []models.ClothingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]itemRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, toItemRow(item))
	}
	return s.replace(s.ItemsPath(), func(f *os.File) error {
		if s.format == "parquet" {
			return writeParquet(f, rows)
		}
		return writeCSV(f, itemHeader, rows, itemRow.csv)
	})
}

// LoadCollection reads the normalized snapshot back in stored order
func (s *Store) LoadCollection() ([]models.ClothingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []itemRow
	var err error
	if s.format == "parquet" {
		rows, err = readParquet[itemRow](s.ItemsPath())
	} else {
		rows, err = readCSV(s.ItemsPath(), itemHeader, itemRowFromCSV)
	}
	if err != nil {
		return nil, err
	}

	items := make([]models.ClothingItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item())
	}
	return items, nil
}

// replace writes through a temp file and renames it over path, so readers never
// observe a half-written snapshot
func (s *Store) replace(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
