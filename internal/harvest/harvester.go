// Package harvest pages through a purchase-history source with an authenticated
// session and persists what it gathers before handing it on.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/session"
)

// ErrSessionExpired means the harvest was attempted without a live session; log in again
var ErrSessionExpired = errors.New("session expired, please log in again")

// PartialHarvestError reports a harvest aborted after bounded retries.
// The records gathered before the failure are still returned.
type PartialHarvestError struct {
	Page     int
	Attempts int
	Records  int
	Cause    error
}

func (e *PartialHarvestError) Error() string {
	return fmt.Sprintf("harvest incomplete: page %d failed after %d attempts (%d records kept): %v",
		e.Page, e.Attempts, e.Records, e.Cause)
}

func (e *PartialHarvestError) Unwrap() error {
	return e.Cause
}

// PageRequest asks a source for one page of history
type PageRequest struct {
	Number int
	Since  time.Time
	Until  time.Time
}

// Page is one page of raw records
type Page struct {
	Records []models.RawPurchaseRecord
	HasMore bool
}

// PageSource fetches pages of purchase history through a session
type PageSource interface {
	FetchPage(ctx context.Context, s *session.Session, req PageRequest) (*Page, error)
}

// RawSink persists raw records as an audit trail
type RawSink interface {
	SaveRaw(records []models.RawPurchaseRecord) error
}

// Config bounds pagination and retries
type Config struct {
	MaxPages       int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	// PageInterval is the minimum spacing between page requests
	PageInterval time.Duration
}

func (c *Config) defaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
}

// Harvester collects raw purchase records
type Harvester struct {
	cfg    Config
	source PageSource
	sink   RawSink
	now    func() time.Time
}

func New(cfg Config, source PageSource, sink RawSink) *Harvester {
	cfg.defaults()
	return &Harvester{cfg: cfg, source: source, sink: sink, now: time.Now}
}

// Harvest traverses pages until the source runs out, the lookback boundary is crossed or
// MaxPages is reached. Records are persisted before returning, including on a partial
// harvest, which is reported as *PartialHarvestError alongside the records kept so far.
func (h *Harvester) Harvest(ctx context.Context, s *session.Session, lookback time.Duration) ([]models.RawPurchaseRecord, error) {
	if s.State() != session.Authenticated {
		return nil, ErrSessionExpired
	}

	until := h.now()
	since := until.Add(-lookback)
	slog.Info("Starting harvest", "session_id", s.ID, "since", since.Format(time.DateOnly))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if h.cfg.PageInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(h.cfg.PageInterval), 1)
	}

	var records []models.RawPurchaseRecord
	var harvestErr error

	for number := 1; number <= h.cfg.MaxPages; number++ {
		if err := limiter.Wait(ctx); err != nil {
			harvestErr = &PartialHarvestError{Page: number, Records: len(records), Cause: err}
			break
		}

		page, attempts, err := h.fetchWithRetry(ctx, s, PageRequest{Number: number, Since: since, Until: until})
		if err != nil {
			if errors.Is(err, ErrSessionExpired) && number == 1 {
				harvestErr = err
				break
			}
			slog.Error("Page failed, aborting harvest", "page", number, "attempts", attempts, "error", err)
			harvestErr = &PartialHarvestError{Page: number, Attempts: attempts, Records: len(records), Cause: err}
			break
		}

		kept, crossed := withinWindow(page.Records, since, number)
		records = append(records, kept...)
		slog.Debug("Fetched page", "page", number, "records", len(page.Records), "kept", len(kept), "has_more", page.HasMore)

		if crossed {
			slog.Info("Lookback boundary crossed", "page", number)
			break
		}
		if !page.HasMore {
			break
		}
		if number == h.cfg.MaxPages {
			slog.Warn("Reached max pages, stopping harvest", "max_pages", h.cfg.MaxPages)
		}
	}

	if len(records) > 0 || harvestErr == nil {
		if err := h.sink.SaveRaw(records); err != nil {
			return records, fmt.Errorf("failed to persist raw records: %w", err)
		}
	}

	slog.Info("Harvest finished", "records", len(records), "complete", harvestErr == nil)
	return records, harvestErr
}

func (h *Harvester) fetchWithRetry(ctx context.Context, s *session.Session, req PageRequest) (*Page, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.cfg.RetryBaseDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(h.cfg.MaxAttempts-1)), ctx)

	var page *Page
	attempts := 0
	op := func() error {
		attempts++
		p, err := h.source.FetchPage(ctx, s, req)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) || errors.Is(err, session.ErrNotAuthenticated) {
				return backoff.Permanent(ErrSessionExpired)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		page = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("Page fetch failed, retrying", "page", req.Number, "attempt", attempts, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, attempts, err
	}
	return page, attempts, nil
}

// withinWindow drops records dated before since and reports whether the page lies
// entirely before the window. Records with unreadable dates are kept.
func withinWindow(records []models.RawPurchaseRecord, since time.Time, page int) ([]models.RawPurchaseRecord, bool) {
	kept := make([]models.RawPurchaseRecord, 0, len(records))
	dated, older := 0, 0
	for _, r := range records {
		r.Page = page
		if d, ok := models.ParsePurchaseDate(r.PurchaseDate); ok {
			dated++
			if d.Before(since) {
				older++
				continue
			}
		}
		kept = append(kept, r)
	}
	return kept, dated > 0 && older == dated
}
