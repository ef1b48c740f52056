package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wardrobe-labs/outfitter/internal/harvest"
	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/normalize"
	"github.com/wardrobe-labs/outfitter/internal/recommend"
	"github.com/wardrobe-labs/outfitter/internal/session"
)

// Stage is the gating state of the pipeline
type Stage int

const (
	NoSession Stage = iota
	SessionActive
	DataReady
)

func (s Stage) String() string {
	switch s {
	case NoSession:
		return "no_session"
	case SessionActive:
		return "session_active"
	case DataReady:
		return "data_ready"
	default:
		return "unknown"
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type SessionManager interface {
	Login(ctx context.Context) (*session.Session, error)
	Status(ctx context.Context, s *session.Session) session.State
	Close(s *session.Session) error
}

type Harvester interface {
	Harvest(ctx context.Context, s *session.Session, lookback time.Duration) ([]models.RawPurchaseRecord, error)
}

type Normalizer interface {
	Run(records []models.RawPurchaseRecord) (*models.ClothingCollection, normalize.Diagnostics, error)
}

type Recommender interface {
	Recommend(ctx context.Context, collection *models.ClothingCollection, req models.RecommendationRequest) (models.RecommendationResult, error)
}

type SnapshotLoader interface {
	LoadCollection() ([]models.ClothingItem, error)
}

type RecommendationLogger interface {
	LogRecommendation(req models.RecommendationRequest, items int, status string, result models.RecommendationResult) (string, error)
}

// Deps are the stage implementations. Snapshots and Log are optional.
type Deps struct {
	Sessions    SessionManager
	Harvester   Harvester
	Normalizer  Normalizer
	Recommender Recommender
	Snapshots   SnapshotLoader
	Log         RecommendationLogger
}

type Options struct {
	Models            []string
	DefaultModel      string
	LookbackDays      int
	CloseAfterHarvest bool
}

// Pipeline owns the single session and the single dataset of a process.
// The session is written only by the login and close operations, the
// collection only by harvest and snapshot loading.
type Pipeline struct {
	deps Deps
	opts Options

	mu         sync.Mutex
	session    *session.Session
	collection *models.ClothingCollection
	model      string

	// install serializes normalization so two harvests never interleave snapshot writes
	install sync.Mutex

	flight singleflight.Group
	callMu sync.Mutex
	calls  map[string]*call
}

// call is one in-flight shared operation and the number of callers waiting on it
type call struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	return &Pipeline{
		deps:  deps,
		opts:  opts,
		model: opts.DefaultModel,
		calls: make(map[string]*call),
	}
}

// share runs fn once for all concurrent callers of key. fn runs on a context detached
// from any single caller, cancelled only when the last waiting caller has gone. A caller
// whose own ctx ends returns ctx.Err() without waiting for the result.
func (p *Pipeline) share(ctx context.Context, key string, fn func(ctx context.Context) interface{}) (interface{}, error) {
	p.callMu.Lock()
	c, found := p.calls[key]
	if !found {
		workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{ctx: workCtx, cancel: cancel}
		p.calls[key] = c
	}
	c.waiters++
	ch := p.flight.DoChan(key, func() (interface{}, error) {
		defer p.finish(key, c)
		return fn(c.ctx), nil
	})
	p.callMu.Unlock()

	select {
	case res := <-ch:
		p.leave(key, c)
		return res.Val, nil
	case <-ctx.Done():
		p.leave(key, c)
		return nil, ctx.Err()
	}
}

func (p *Pipeline) finish(key string, c *call) {
	p.callMu.Lock()
	defer p.callMu.Unlock()
	p.forgetLocked(key, c)
	c.cancel()
}

func (p *Pipeline) leave(key string, c *call) {
	p.callMu.Lock()
	defer p.callMu.Unlock()
	c.waiters--
	if c.waiters == 0 {
		c.cancel()
		p.forgetLocked(key, c)
	}
}

// forgetLocked lets the next caller of key start a fresh call
func (p *Pipeline) forgetLocked(key string, c *call) {
	if p.calls[key] == c {
		delete(p.calls, key)
		p.flight.Forget(key)
	}
}

// Stage reports which operations are currently legal
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stageLocked()
}

func (p *Pipeline) stageLocked() Stage {
	if p.collection.Len() > 0 {
		return DataReady
	}
	if p.session.State() == session.Authenticated {
		return SessionActive
	}
	return NoSession
}

// StartSession runs the interactive login. A successful login replaces any
// existing session; a failed one leaves the pipeline untouched. Concurrent callers
// share one login, which is abandoned once all of them have given up.
func (p *Pipeline) StartSession(ctx context.Context) Status {
	v, err := p.share(ctx, "login", func(ctx context.Context) interface{} {
		s, err := p.deps.Sessions.Login(ctx)
		if err != nil {
			slog.Error("Login failed", "error", err)
			return statusFor(err)
		}

		p.mu.Lock()
		previous := p.session
		p.session = s
		p.mu.Unlock()

		if previous != nil {
			if err := p.deps.Sessions.Close(previous); err != nil {
				slog.Warn("Failed to close previous session", "session_id", previous.ID, "error", err)
			}
		}
		return ok("Logged in, session %s", s.ID)
	})
	if err != nil {
		return statusFor(&session.LoginError{Cause: err})
	}
	return v.(Status)
}

// SessionStatus probes the current session; it never fails
func (p *Pipeline) SessionStatus(ctx context.Context) session.State {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	if s == nil {
		return session.Unauthenticated
	}
	return p.deps.Sessions.Status(ctx, s)
}

// CloseSession releases the browser. The dataset is kept.
func (p *Pipeline) CloseSession() Status {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if err := p.deps.Sessions.Close(s); err != nil {
		slog.Warn("Failed to close session cleanly", "error", err)
	}
	return ok("Session closed")
}

type harvestOutcome struct {
	gallery []string
	status  Status
}

// HarvestAndNormalize harvests the lookback window with the live session, normalizes
// the records and installs the collection, returning its gallery URLs. A partial
// harvest still installs whatever was collected. Failures keep the previous dataset.
func (p *Pipeline) HarvestAndNormalize(ctx context.Context, lookbackDays int) ([]string, Status) {
	if lookbackDays <= 0 {
		lookbackDays = p.opts.LookbackDays
	}
	v, err := p.share(ctx, "harvest", func(ctx context.Context) interface{} {
		return p.harvestAndNormalize(ctx, lookbackDays)
	})
	if err != nil {
		return nil, statusFor(fmt.Errorf("harvest abandoned: %w", err))
	}
	out := v.(harvestOutcome)
	return out.gallery, out.status
}

func (p *Pipeline) harvestAndNormalize(ctx context.Context, lookbackDays int) harvestOutcome {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()

	if s.State() != session.Authenticated {
		return harvestOutcome{status: statusFor(harvest.ErrSessionExpired)}
	}

	lookback := time.Duration(lookbackDays) * 24 * time.Hour
	records, err := p.deps.Harvester.Harvest(ctx, s, lookback)

	if ctx.Err() != nil {
		slog.Warn("Harvest abandoned, keeping previous dataset", "records", len(records), "error", ctx.Err())
		return harvestOutcome{status: statusFor(fmt.Errorf("harvest abandoned: %w", ctx.Err()))}
	}

	var partial *harvest.PartialHarvestError
	status := ok("Harvested %d records", len(records))
	if err != nil {
		if !errors.As(err, &partial) {
			slog.Error("Harvest failed", "error", err)
			return harvestOutcome{status: statusFor(err)}
		}
		if len(records) == 0 {
			slog.Error("Harvest collected no records", "error", err)
			return harvestOutcome{status: emptyHarvestStatus(partial)}
		}
		status = statusFor(err)
		slog.Warn("Harvest incomplete, normalizing collected records", "records", len(records), "error", err)
	}

	p.install.Lock()
	collection, diag, err := p.deps.Normalizer.Run(records)
	if err == nil {
		p.mu.Lock()
		p.collection = collection
		p.mu.Unlock()
	}
	p.install.Unlock()
	if err != nil {
		slog.Error("Normalization failed", "error", err)
		return harvestOutcome{status: statusFor(err)}
	}

	if status.OK() {
		status = ok("Harvested %d records, kept %d items (%d dropped, %d duplicates)", diag.Total, diag.Kept, diag.Dropped(), diag.Duplicates)
	}

	if p.opts.CloseAfterHarvest {
		p.mu.Lock()
		if p.session == s {
			p.session = nil
		}
		p.mu.Unlock()
		if err := p.deps.Sessions.Close(s); err != nil {
			slog.Warn("Failed to close session after harvest", "session_id", s.ID, "error", err)
		}
	}

	return harvestOutcome{gallery: collection.ImageURLs(), status: status}
}

// LoadSnapshot installs the persisted normalized collection without a live session
func (p *Pipeline) LoadSnapshot() Status {
	if p.deps.Snapshots == nil {
		return statusFor(recommend.ErrNoDataAvailable)
	}
	items, err := p.deps.Snapshots.LoadCollection()
	if err != nil {
		slog.Error("Failed to load snapshot", "error", err)
		return statusFor(err)
	}
	collection := models.NewCollection(items...)
	if collection.Len() == 0 {
		return statusFor(recommend.ErrNoDataAvailable)
	}

	p.mu.Lock()
	p.collection = collection
	p.mu.Unlock()

	slog.Info("Loaded snapshot", "items", collection.Len())
	return ok("Loaded %d items", collection.Len())
}

// Collection returns the current dataset, or nil before any harvest
func (p *Pipeline) Collection() *models.ClothingCollection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.collection
}

func (p *Pipeline) Models() []string {
	return slices.Clone(p.opts.Models)
}

// Model returns the selected model
func (p *Pipeline) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// SelectModel changes the model used by Recommend. Models outside the
// allow-list are rejected and the previous selection is kept.
func (p *Pipeline) SelectModel(model string) Status {
	if !slices.Contains(p.opts.Models, model) {
		return Status{Kind: KindInvalidModel, Message: fmt.Sprintf("Model %q is not available", model)}
	}
	p.mu.Lock()
	p.model = model
	p.mu.Unlock()
	slog.Info("Model selected", "model", model)
	return ok("Model set to %s", model)
}

// Recommend is legal only in DataReady. An empty request model uses the selected one.
func (p *Pipeline) Recommend(ctx context.Context, req models.RecommendationRequest) (models.RecommendationResult, Status) {
	empty := models.RecommendationResult{ImageURLs: []string{}}

	p.mu.Lock()
	collection := p.collection
	if req.Model == "" {
		req.Model = p.model
	}
	p.mu.Unlock()

	if collection.Len() == 0 {
		return empty, statusFor(recommend.ErrNoDataAvailable)
	}
	if !slices.Contains(p.opts.Models, req.Model) {
		return empty, Status{Kind: KindInvalidModel, Message: fmt.Sprintf("Model %q is not available", req.Model)}
	}

	result, err := p.deps.Recommender.Recommend(ctx, collection, req)
	status := statusFor(err)
	if err == nil {
		status = ok("Recommended %d items", len(result.ImageURLs))
	}
	if result.ImageURLs == nil {
		result.ImageURLs = []string{}
	}

	if p.deps.Log != nil {
		if path, err := p.deps.Log.LogRecommendation(req, collection.Len(), string(status.Kind), result); err != nil {
			slog.Warn("Failed to log recommendation", "error", err)
		} else {
			slog.Debug("Logged recommendation", "path", path)
		}
	}
	return result, status
}

// Close abandons in-flight logins and harvests and releases the session, if any
func (p *Pipeline) Close() error {
	p.callMu.Lock()
	for _, c := range p.calls {
		c.cancel()
	}
	p.callMu.Unlock()

	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()
	return p.deps.Sessions.Close(s)
}
