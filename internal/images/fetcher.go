package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wardrobe-labs/outfitter/internal/models"
)

// Fetcher downloads wardrobe images to a local directory
type Fetcher struct {
	HTTPClient  *http.Client
	Concurrency int
	// MinSize rejects responses smaller than this many bytes, which are usually placeholders
	MinSize int
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Concurrency: 4,
		MinSize:     1000,
	}
}

// Result is the outcome of one image download
type Result struct {
	ItemID  string
	URL     string
	Path    string
	Skipped bool
	Err     error
}

// DownloadGallery saves every item's image as <outputDir>/<item id><ext>. Files that
// already exist are skipped. Individual failures are reported per result; the returned
// error is only set when the whole run could not proceed.
func (f *Fetcher) DownloadGallery(ctx context.Context, items []models.ClothingItem, outputDir string) ([]Result, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]Result, len(items))
	g := new(errgroup.Group)
	g.SetLimit(max(f.Concurrency, 1))

	for i, item := range items {
		outputPath := filepath.Join(outputDir, item.ID+extension(item.ImageURL))
		results[i] = Result{ItemID: item.ID, URL: item.ImageURL, Path: outputPath}

		if _, err := os.Stat(outputPath); err == nil {
			results[i].Skipped = true
			slog.Debug("Image already downloaded", "item_id", item.ID, "path", outputPath)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			if err := f.downloadImage(ctx, item.ImageURL, outputPath); err != nil {
				slog.Warn("Failed to download image", "item_id", item.ID, "url", item.ImageURL, "error", err)
				results[i].Err = err
				return nil
			}
			slog.Debug("Downloaded image", "item_id", item.ID, "path", outputPath)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// downloadImage downloads an image from a URL to a file
func (f *Fetcher) downloadImage(ctx context.Context, url, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read image data: %w", err)
	}

	if len(imageData) < f.MinSize {
		return fmt.Errorf("image too small (likely placeholder), size: %d bytes", len(imageData))
	}

	tmp := outputPath + ".part"
	if err := os.WriteFile(tmp, imageData, 0644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move image file: %w", err)
	}

	return nil
}

func extension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ".jpg"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	default:
		return ".jpg"
	}
}
