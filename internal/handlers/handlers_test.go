package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wardrobe-labs/outfitter/internal/models"
	"github.com/wardrobe-labs/outfitter/internal/pipeline"
	"github.com/wardrobe-labs/outfitter/internal/session"
)

type fakePipeline struct {
	stage      pipeline.Stage
	collection *models.ClothingCollection
	model      string
	lookback   int
	request    models.RecommendationRequest
	harvest    pipeline.Status
	recommend  pipeline.Status
}

func (f *fakePipeline) StartSession(ctx context.Context) pipeline.Status {
	f.stage = pipeline.SessionActive
	return pipeline.Status{Kind: pipeline.KindOK, Message: "Logged in"}
}

func (f *fakePipeline) SessionStatus(ctx context.Context) session.State {
	if f.stage == pipeline.SessionActive {
		return session.Authenticated
	}
	return session.Unauthenticated
}

func (f *fakePipeline) CloseSession() pipeline.Status {
	f.stage = pipeline.NoSession
	return pipeline.Status{Kind: pipeline.KindOK}
}

func (f *fakePipeline) HarvestAndNormalize(ctx context.Context, lookbackDays int) ([]string, pipeline.Status) {
	f.lookback = lookbackDays
	if f.harvest.Kind != pipeline.KindOK {
		return nil, f.harvest
	}
	f.stage = pipeline.DataReady
	return f.collection.ImageURLs(), f.harvest
}

func (f *fakePipeline) Collection() *models.ClothingCollection { return f.collection }
func (f *fakePipeline) Stage() pipeline.Stage                 { return f.stage }
func (f *fakePipeline) Models() []string                      { return []string{"gpt-4o", "o3-mini"} }
func (f *fakePipeline) Model() string                         { return f.model }

func (f *fakePipeline) SelectModel(model string) pipeline.Status {
	if model != "gpt-4o" && model != "o3-mini" {
		return pipeline.Status{Kind: pipeline.KindInvalidModel}
	}
	f.model = model
	return pipeline.Status{Kind: pipeline.KindOK}
}

func (f *fakePipeline) Recommend(ctx context.Context, req models.RecommendationRequest) (models.RecommendationResult, pipeline.Status) {
	f.request = req
	if f.recommend.Kind != pipeline.KindOK {
		return models.RecommendationResult{ImageURLs: []string{}}, f.recommend
	}
	return models.RecommendationResult{ImageURLs: []string{"https://img.test/1.jpg"}, RawText: "https://img.test/1.jpg"}, f.recommend
}

func newFake() *fakePipeline {
	return &fakePipeline{
		collection: models.NewCollection(models.ClothingItem{ID: "1", ImageURL: "https://img.test/1.jpg", Category: "top"}),
		model:      "gpt-4o",
		harvest:    pipeline.Status{Kind: pipeline.KindOK},
		recommend:  pipeline.Status{Kind: pipeline.KindOK},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionRoutes(t *testing.T) {
	fake := newFake()
	router := New(fake).Router()

	rec := do(t, router, http.MethodPost, "/api/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status pipeline.Status `json:"status"`
		State  string          `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "authenticated" {
		t.Errorf("Expected authenticated, got %q", resp.State)
	}

	rec = do(t, router, http.MethodDelete, "/api/session", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stage":"no_session"`) {
		t.Errorf("Unexpected close response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHarvestRoute(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		harvest      pipeline.Status
		wantCode     int
		wantLookback int
		wantGallery  []string
	}{
		{name: "default lookback", body: "", harvest: pipeline.Status{Kind: pipeline.KindOK}, wantCode: http.StatusOK, wantGallery: []string{"https://img.test/1.jpg"}},
		{name: "custom lookback", body: `{"lookback_days": 7}`, harvest: pipeline.Status{Kind: pipeline.KindOK}, wantCode: http.StatusOK, wantLookback: 7, wantGallery: []string{"https://img.test/1.jpg"}},
		{name: "session expired", body: "{}", harvest: pipeline.Status{Kind: pipeline.KindSessionExpired}, wantCode: http.StatusUnauthorized, wantGallery: []string{}},
		{name: "negative lookback", body: `{"lookback_days": -1}`, wantCode: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.harvest = tt.harvest
			rec := do(t, New(fake).Router(), http.MethodPost, "/api/harvest", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantCode == http.StatusBadRequest {
				return
			}
			var resp struct {
				Gallery []string `json:"gallery"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.wantGallery, resp.Gallery); diff != "" {
				t.Errorf("Gallery mismatch (-want +got):\n%s", diff)
			}
			if fake.lookback != tt.wantLookback {
				t.Errorf("Expected lookback %d, got %d", tt.wantLookback, fake.lookback)
			}
		})
	}
}

func TestModelRoutes(t *testing.T) {
	fake := newFake()
	router := New(fake).Router()

	rec := do(t, router, http.MethodGet, "/api/models", "")
	var got modelsResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Selected != "gpt-4o" || len(got.Models) != 2 {
		t.Errorf("Unexpected models response %+v", got)
	}

	rec = do(t, router, http.MethodPut, "/api/model", `{"model":"o3-mini"}`)
	if rec.Code != http.StatusOK || fake.model != "o3-mini" {
		t.Errorf("Expected model selected, got %d %q", rec.Code, fake.model)
	}

	rec = do(t, router, http.MethodPut, "/api/model", `{"model":"gpt-2"}`)
	if rec.Code != http.StatusBadRequest || fake.model != "o3-mini" {
		t.Errorf("Expected invalid model rejected, got %d %q", rec.Code, fake.model)
	}
}

func TestRecommendRoute(t *testing.T) {
	tests := []struct {
		name      string
		status    pipeline.Status
		wantCode  int
		wantCount int
	}{
		{name: "ok", status: pipeline.Status{Kind: pipeline.KindOK}, wantCode: http.StatusOK, wantCount: 1},
		{name: "no data", status: pipeline.Status{Kind: pipeline.KindNoDataAvailable}, wantCode: http.StatusConflict},
		{name: "model failed", status: pipeline.Status{Kind: pipeline.KindModelCallFailed}, wantCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.recommend = tt.status
			rec := do(t, New(fake).Router(), http.MethodPost, "/api/recommendations", `{"style_preference":"casual","temperature":21.5,"mood":"happy"}`)
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			var resp recommendResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Result.ImageURLs) != tt.wantCount {
				t.Errorf("Expected %d image URLs, got %v", tt.wantCount, resp.Result.ImageURLs)
			}
			if fake.request.Temperature == nil || *fake.request.Temperature != 21.5 || *fake.request.Mood != "happy" {
				t.Errorf("Request not decoded: %+v", fake.request)
			}
		})
	}
}

func TestWardrobeAndHealthcheck(t *testing.T) {
	fake := newFake()
	router := New(fake).Router()

	rec := do(t, router, http.MethodGet, "/api/wardrobe", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "https://img.test/1.jpg") {
		t.Errorf("Unexpected wardrobe response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/healthcheck", "")
	if rec.Body.String() != "OK" {
		t.Errorf("Unexpected healthcheck body %q", rec.Body.String())
	}
}
