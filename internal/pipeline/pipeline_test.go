package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/wardrobe-labs/outfitter/internal/harvest"
	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/normalize"
	"github.com/wardrobe-labs/outfitter/internal/providers"
	"github.com/wardrobe-labs/outfitter/internal/recommend"
	"github.com/wardrobe-labs/outfitter/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubBrowser struct {
	closed  atomic.Bool
	confirm <-chan struct{}
}

func (b *stubBrowser) Navigate(ctx context.Context, url string) error { return nil }
func (b *stubBrowser) URL(ctx context.Context) (string, error)        { return "", nil }
func (b *stubBrowser) Cookies(ctx context.Context) ([]session.Cookie, error) {
	if b.confirm != nil {
		select {
		case <-b.confirm:
		default:
			return nil, nil
		}
	}
	return []session.Cookie{{Name: "unb", Value: "1"}}, nil
}
func (b *stubBrowser) Eval(ctx context.Context, js string, args ...any) (string, error) {
	return "", nil
}
func (b *stubBrowser) Close() error {
	b.closed.Store(true)
	return nil
}

type stubLauncher struct {
	err error
	// confirm, when set, holds the login until it is closed
	confirm chan struct{}

	mu       sync.Mutex
	browsers []*stubBrowser
}

func (l *stubLauncher) Launch(ctx context.Context) (session.Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	b := &stubBrowser{confirm: l.confirm}
	l.mu.Lock()
	l.browsers = append(l.browsers, b)
	l.mu.Unlock()
	return b, nil
}

func (l *stubLauncher) launched() []*stubBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*stubBrowser(nil), l.browsers...)
}

type stubHarvester struct {
	records []models.RawPurchaseRecord
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (h *stubHarvester) Harvest(ctx context.Context, s *session.Session, lookback time.Duration) ([]models.RawPurchaseRecord, error) {
	h.calls.Add(1)
	if h.release != nil {
		select {
		case <-h.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return h.records, h.err
}

type memorySnapshots struct {
	items []models.ClothingItem
	err   error
}

func (m *memorySnapshots) SaveCollection(items []models.ClothingItem) error {
	m.items = items
	return nil
}

func (m *memorySnapshots) LoadCollection() ([]models.ClothingItem, error) {
	return m.items, m.err
}

type stubProvider struct {
	reply string
	err   error
}

func (p *stubProvider) Complete(ctx context.Context, config providers.Config) (string, error) {
	return p.reply, p.err
}

type memoryLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *memoryLog) LogRecommendation(req models.RecommendationRequest, items int, status string, result models.RecommendationResult) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf("%s/%s/%d", req.Model, status, items))
	return "memory", nil
}

var purchases = []models.RawPurchaseRecord{
	{ItemID: "1", Title: "linen shirt", ImageURL: "https://img.test/1.jpg", PurchaseDate: "2026-10-01"},
	{ItemID: "2", Title: "wool coat", ImageURL: "//img.test/2.jpg", PurchaseDate: "2026-10-02"},
	{ItemID: "2", Title: "wool coat again", ImageURL: "https://img.test/2b.jpg", PurchaseDate: "2026-10-02"},
	{ItemID: "3", Title: "gift card", PurchaseDate: "2026-10-03"},
}

type fixture struct {
	pipeline  *Pipeline
	launcher  *stubLauncher
	harvester *stubHarvester
	provider  *stubProvider
	snapshots *memorySnapshots
	log       *memoryLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		launcher:  &stubLauncher{},
		harvester: &stubHarvester{records: purchases},
		provider:  &stubProvider{reply: "Wear https://img.test/1.jpg with https://img.test/2.jpg, skip https://img.test/3.png"},
		snapshots: &memorySnapshots{},
		log:       &memoryLog{},
	}
	f.pipeline = New(Deps{
		Sessions:    session.NewManager(session.Config{SuccessCookie: "unb", PollInterval: time.Millisecond}, f.launcher),
		Harvester:   f.harvester,
		Normalizer:  normalize.NewService(f.snapshots),
		Recommender: recommend.New(f.provider, nil),
		Snapshots:   f.snapshots,
		Log:         f.log,
	}, Options{
		Models:            []string{"gpt-4o", "gpt-4o-mini"},
		DefaultModel:      "gpt-4o",
		CloseAfterHarvest: true,
	})
	t.Cleanup(func() { _ = f.pipeline.Close() })
	return f
}

func TestGating(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline
	ctx := context.Background()

	if got := p.Stage(); got != NoSession {
		t.Fatalf("Expected NoSession, got %s", got)
	}

	result, status := p.Recommend(ctx, models.RecommendationRequest{StylePreference: "casual"})
	if status.Kind != KindNoDataAvailable {
		t.Errorf("Expected no_data_available before login, got %s", status)
	}
	if result.ImageURLs == nil || len(result.ImageURLs) != 0 {
		t.Errorf("Expected empty image list, got %v", result.ImageURLs)
	}
	if _, status := p.Recommend(ctx, models.RecommendationRequest{Model: "llama-405b"}); status.Kind != KindNoDataAvailable {
		t.Errorf("Expected no_data_available for unknown model without data, got %s", status)
	}

	if _, status := p.HarvestAndNormalize(ctx, 0); status.Kind != KindSessionExpired {
		t.Errorf("Expected session_expired without login, got %s", status)
	}
	if f.harvester.calls.Load() != 0 {
		t.Error("Harvester must not run without a session")
	}

	if status := p.StartSession(ctx); !status.OK() {
		t.Fatalf("StartSession failed: %s", status)
	}
	if got := p.Stage(); got != SessionActive {
		t.Fatalf("Expected SessionActive, got %s", got)
	}
	if _, status := p.Recommend(ctx, models.RecommendationRequest{}); status.Kind != KindNoDataAvailable {
		t.Errorf("Expected no_data_available before harvest, got %s", status)
	}
	if _, status := p.Recommend(ctx, models.RecommendationRequest{Model: "llama-405b"}); status.Kind != KindNoDataAvailable {
		t.Errorf("Expected no_data_available for unknown model before harvest, got %s", status)
	}
}

func TestFullFlow(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline
	ctx := context.Background()

	if status := p.StartSession(ctx); !status.OK() {
		t.Fatalf("StartSession failed: %s", status)
	}
	if got := p.SessionStatus(ctx); got != session.Authenticated {
		t.Errorf("Expected authenticated session, got %s", got)
	}

	gallery, status := p.HarvestAndNormalize(ctx, 30)
	if !status.OK() {
		t.Fatalf("HarvestAndNormalize failed: %s", status)
	}
	want := []string{"https://img.test/1.jpg", "https://img.test/2.jpg"}
	if diff := cmp.Diff(want, gallery); diff != "" {
		t.Errorf("Gallery mismatch (-want +got):\n%s", diff)
	}
	if len(f.snapshots.items) != 2 {
		t.Errorf("Expected 2 items persisted, got %d", len(f.snapshots.items))
	}

	if got := p.Stage(); got != DataReady {
		t.Errorf("Expected DataReady, got %s", got)
	}
	if !f.launcher.launched()[0].closed.Load() {
		t.Error("Expected browser closed after harvest")
	}
	if got := p.SessionStatus(ctx); got != session.Unauthenticated {
		t.Errorf("Expected no live session after harvest, got %s", got)
	}

	result, status := p.Recommend(ctx, models.RecommendationRequest{StylePreference: "casual"})
	if !status.OK() {
		t.Fatalf("Recommend failed: %s", status)
	}
	if diff := cmp.Diff(want, result.ImageURLs); diff != "" {
		t.Errorf("Recommendation mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"gpt-4o/ok/2"}, f.log.entries); diff != "" {
		t.Errorf("Log mismatch (-want +got):\n%s", diff)
	}
}

func TestPartialHarvest(t *testing.T) {
	tests := []struct {
		name      string
		records   []models.RawPurchaseRecord
		cause     error
		wantKind  Kind
		wantStage Stage
		wantItems int
	}{
		{name: "collected records are installed", records: purchases[:2], cause: errors.New("timeout"), wantKind: KindPartialHarvest, wantStage: DataReady, wantItems: 2},
		{name: "nothing collected is a failure", cause: errors.New("timeout"), wantKind: KindStorageFailure, wantStage: SessionActive},
		{name: "nothing collected before expiry", cause: harvest.ErrSessionExpired, wantKind: KindSessionExpired, wantStage: SessionActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.harvester.records = tt.records
			f.harvester.err = &harvest.PartialHarvestError{Page: 1, Attempts: 3, Records: len(tt.records), Cause: tt.cause}
			p := f.pipeline

			if status := p.StartSession(context.Background()); !status.OK() {
				t.Fatalf("StartSession failed: %s", status)
			}
			gallery, status := p.HarvestAndNormalize(context.Background(), 0)
			if status.Kind != tt.wantKind {
				t.Errorf("Expected %s, got %s", tt.wantKind, status)
			}
			if len(gallery) != tt.wantItems {
				t.Errorf("Expected %d gallery items, got %v", tt.wantItems, gallery)
			}
			if got := p.Stage(); got != tt.wantStage {
				t.Errorf("Expected stage %s, got %s", tt.wantStage, got)
			}
		})
	}
}

func TestLoginFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = errors.New("chrome not found")

	status := f.pipeline.StartSession(context.Background())
	if status.Kind != KindLoginFailure {
		t.Errorf("Expected login_failure, got %s", status)
	}
	if got := f.pipeline.Stage(); got != NoSession {
		t.Errorf("Expected NoSession, got %s", got)
	}
}

func TestReloginClosesPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if status := f.pipeline.StartSession(ctx); !status.OK() {
			t.Fatalf("StartSession failed: %s", status)
		}
	}
	if !f.launcher.launched()[0].closed.Load() {
		t.Error("Expected first browser closed on re-login")
	}
	if f.launcher.launched()[1].closed.Load() {
		t.Error("Expected second browser still open")
	}
}

func TestSelectModel(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline

	if status := p.SelectModel("gpt-4o-mini"); !status.OK() {
		t.Fatalf("SelectModel failed: %s", status)
	}
	if status := p.SelectModel("llama-405b"); status.Kind != KindInvalidModel {
		t.Errorf("Expected invalid_model, got %s", status)
	}
	if got := p.Model(); got != "gpt-4o-mini" {
		t.Errorf("Expected previous selection kept, got %s", got)
	}

	f.snapshots.items = []models.ClothingItem{{ID: "a", ImageURL: "https://img.test/a.jpg"}}
	if status := p.LoadSnapshot(); !status.OK() {
		t.Fatalf("LoadSnapshot failed: %s", status)
	}
	if _, status := p.Recommend(context.Background(), models.RecommendationRequest{Model: "unknown"}); status.Kind != KindInvalidModel {
		t.Errorf("Expected invalid_model for request model, got %s", status)
	}
}

func TestModelFailureKeepsData(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("quota exceeded")
	f.snapshots.items = []models.ClothingItem{{ID: "a", ImageURL: "https://img.test/a.jpg"}}
	p := f.pipeline

	if status := p.LoadSnapshot(); !status.OK() {
		t.Fatalf("LoadSnapshot failed: %s", status)
	}
	result, status := p.Recommend(context.Background(), models.RecommendationRequest{})
	if status.Kind != KindModelCallFailed {
		t.Errorf("Expected model_call_failed, got %s", status)
	}
	if len(result.ImageURLs) != 0 || result.RawText == "" {
		t.Errorf("Expected empty gallery with diagnostic, got %+v", result)
	}
	if got := p.Stage(); got != DataReady {
		t.Errorf("Expected DataReady kept, got %s", got)
	}
}

func TestLoadSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		items    []models.ClothingItem
		err      error
		wantKind Kind
	}{
		{name: "missing file", err: fmt.Errorf("failed to open: %w", os.ErrNotExist), wantKind: KindNoDataAvailable},
		{name: "empty snapshot", wantKind: KindNoDataAvailable},
		{name: "unreadable", err: errors.New("corrupt parquet"), wantKind: KindStorageFailure},
		{name: "loaded", items: []models.ClothingItem{{ID: "a", ImageURL: "https://img.test/a.jpg"}}, wantKind: KindOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.snapshots.items = tt.items
			f.snapshots.err = tt.err

			status := f.pipeline.LoadSnapshot()
			if status.Kind != tt.wantKind {
				t.Errorf("Expected %s, got %s", tt.wantKind, status)
			}
		})
	}
}

func TestConcurrentHarvestRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.harvester.release = make(chan struct{})
	p := f.pipeline

	if status := p.StartSession(context.Background()); !status.OK() {
		t.Fatalf("StartSession failed: %s", status)
	}

	var wg sync.WaitGroup
	statuses := make([]Status, 2)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, statuses[i] = p.HarvestAndNormalize(context.Background(), 0)
		}(i)
	}

	deadline := time.After(2 * time.Second)
	for f.harvester.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Harvester never started")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(f.harvester.release)
	wg.Wait()

	if got := f.harvester.calls.Load(); got != 1 {
		t.Errorf("Expected one harvest, got %d", got)
	}
	for _, status := range statuses {
		if !status.OK() {
			t.Errorf("Expected ok status, got %s", status)
		}
	}
}

// waitFor polls cond until it holds or two seconds pass
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("Timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSharedLoginSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.launcher.confirm = make(chan struct{})
	p := f.pipeline

	leaving, cancel := context.WithCancel(context.Background())
	defer cancel()

	statuses := make(chan Status, 1)
	left := make(chan Status, 1)
	go func() { left <- p.StartSession(leaving) }()
	waitFor(t, "browser launch", func() bool { return len(f.launcher.launched()) == 1 })
	go func() { statuses <- p.StartSession(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if status := <-left; status.Kind != KindLoginFailure {
		t.Errorf("Expected login_failure for the cancelled caller, got %s", status)
	}

	close(f.launcher.confirm)
	if status := <-statuses; !status.OK() {
		t.Fatalf("Expected the remaining caller to log in, got %s", status)
	}
	if got := len(f.launcher.launched()); got != 1 {
		t.Errorf("Expected one shared login, got %d browsers", got)
	}
	if got := p.Stage(); got != SessionActive {
		t.Errorf("Expected SessionActive, got %s", got)
	}
}

func TestLoginAbandonedWhenAllCallersLeave(t *testing.T) {
	f := newFixture(t)
	f.launcher.confirm = make(chan struct{})
	p := f.pipeline

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Status, 1)
	go func() { done <- p.StartSession(ctx) }()
	waitFor(t, "browser launch", func() bool { return len(f.launcher.launched()) == 1 })

	cancel()
	if status := <-done; status.Kind != KindLoginFailure {
		t.Errorf("Expected login_failure, got %s", status)
	}
	waitFor(t, "abandoned browser to close", func() bool { return f.launcher.launched()[0].closed.Load() })
	if got := p.Stage(); got != NoSession {
		t.Errorf("Expected NoSession, got %s", got)
	}
}

func TestSharedHarvestSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.harvester.release = make(chan struct{})
	p := f.pipeline

	if status := p.StartSession(context.Background()); !status.OK() {
		t.Fatalf("StartSession failed: %s", status)
	}

	leaving, cancel := context.WithCancel(context.Background())
	defer cancel()

	left := make(chan Status, 1)
	stayed := make(chan Status, 1)
	go func() {
		_, status := p.HarvestAndNormalize(leaving, 0)
		left <- status
	}()
	waitFor(t, "harvest start", func() bool { return f.harvester.calls.Load() == 1 })
	go func() {
		_, status := p.HarvestAndNormalize(context.Background(), 0)
		stayed <- status
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if status := <-left; status.OK() {
		t.Errorf("Expected the cancelled caller to give up, got %s", status)
	}

	close(f.harvester.release)
	if status := <-stayed; !status.OK() {
		t.Fatalf("Expected the remaining caller to get the harvest, got %s", status)
	}
	if got := f.harvester.calls.Load(); got != 1 {
		t.Errorf("Expected one shared harvest, got %d", got)
	}
	if got := p.Stage(); got != DataReady {
		t.Errorf("Expected DataReady, got %s", got)
	}
}
