package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/lukemenard/canopyviz/internal/adapters/http"
	"github.com/lukemenard/canopyviz/internal/core/domain"
	"github.com/lukemenard/canopyviz/internal/core/usecases"
)

// ---- Mock collaborators ----

type mockSource struct {
	fetchFn func(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection
}

func (m *mockSource) Fetch(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, bbox)
	}
	return domain.FeatureCollection{}
}

type mockProjectRepo struct {
	createFn  func(ctx context.Context, p *domain.Project) error
	getByIDFn func(ctx context.Context, id string) (*domain.Project, error)
	listFn    func(ctx context.Context, limit, offset int) ([]domain.Project, error)
	updateFn  func(ctx context.Context, p *domain.Project) error
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	p.ID = "p1"
	return nil
}
func (m *mockProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("no rows")
}
func (m *mockProjectRepo) List(ctx context.Context, limit, offset int) ([]domain.Project, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}
func (m *mockProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil
}
func (m *mockProjectRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockGeocoder struct {
	searchFn func(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

func (m *mockGeocoder) Search(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		PowerLines: usecases.NewPowerLineService(&mockSource{}, nil, usecases.PowerLineConfig{
			QuietPeriod: 10 * time.Millisecond,
		}),
		Proximity:  usecases.NewProximityService(0),
		TreeModels: usecases.NewTreeModelService(),
		Projects:   usecases.NewProjectService(&mockProjectRepo{}),
		Geocode:    usecases.NewGeocodeService(&mockGeocoder{}, nil),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func spanFeature(id int64, lat, lngA, lngB float64) domain.LineFeature {
	return domain.LineFeature{
		ID:        id,
		PowerKind: domain.PowerLine,
		Coordinates: []domain.GeoPoint{
			{Lng: lngA, Lat: lat},
			{Lng: lngB, Lat: lat},
		},
	}
}

// ---- Power-line handler tests ----

func TestGetPowerLines_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.PowerLines = usecases.NewPowerLineService(&mockSource{
			fetchFn: func(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection {
				return domain.FeatureCollection{Features: []domain.LineFeature{
					spanFeature(1, 37.78, -122.42, -122.41),
				}}
			},
		}, nil, usecases.PowerLineConfig{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/powerlines?south=37.77&west=-122.43&north=37.79&east=-122.40&zoom=15", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Status   string               `json:"status"`
		CacheKey string               `json:"cache_key"`
		Count    int                  `json:"count"`
		Features []domain.LineFeature `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Status != "ok" {
		t.Errorf("expected status ok, got %q", result.Status)
	}
	if result.Count != 1 || len(result.Features) != 1 {
		t.Errorf("expected 1 feature, got count=%d len=%d", result.Count, len(result.Features))
	}
	if result.CacheKey != "37.7700,-122.4300,37.7900,-122.4000" {
		t.Errorf("unexpected cache key %q", result.CacheKey)
	}
}

func TestGetPowerLines_BelowMinZoom(t *testing.T) {
	fetched := false
	deps := makeDeps(func(d *handler.Dependencies) {
		d.PowerLines = usecases.NewPowerLineService(&mockSource{
			fetchFn: func(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection {
				fetched = true
				return domain.FeatureCollection{}
			},
		}, nil, usecases.PowerLineConfig{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/powerlines?south=37.77&west=-122.43&north=37.79&east=-122.40&zoom=10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if fetched {
		t.Error("source must not be called below the minimum zoom")
	}

	var result struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Status != "below_min_zoom" {
		t.Errorf("expected status below_min_zoom, got %q", result.Status)
	}
	if result.Count != 0 {
		t.Errorf("expected empty collection, got %d features", result.Count)
	}
}

func TestGetPowerLines_MissingBounds(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/powerlines?south=37.77&zoom=15", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

func TestGetPowerLineBuffers_GeoJSON(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.PowerLines = usecases.NewPowerLineService(&mockSource{
			fetchFn: func(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection {
				return domain.FeatureCollection{Features: []domain.LineFeature{
					spanFeature(7, 37.78, -122.42, -122.41),
				}}
			},
		}, nil, usecases.PowerLineConfig{})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/powerlines/buffers?south=37.77&west=-122.43&north=37.79&east=-122.40&zoom=15", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected FeatureCollection, got %q", fc.Type)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 buffer polygon, got %d", len(fc.Features))
	}
	if fc.Features[0].Geometry.Type != "Polygon" {
		t.Errorf("expected Polygon geometry, got %q", fc.Features[0].Geometry.Type)
	}
	if fc.Features[0].Properties["buffer_ft"] != 30.0 {
		t.Errorf("expected default buffer_ft 30, got %v", fc.Features[0].Properties["buffer_ft"])
	}
}

// ---- Proximity handler tests ----

func TestCheckProximity_OnLine(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.PowerLines = usecases.NewPowerLineService(&mockSource{
			fetchFn: func(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection {
				return domain.FeatureCollection{Features: []domain.LineFeature{
					spanFeature(1, 37.78, -122.42, -122.41),
				}}
			},
		}, nil, usecases.PowerLineConfig{})
	})
	app := setupApp(deps)

	body := `{
		"location": {"lng": -122.415, "lat": 37.78},
		"bounds": {"south": 37.77, "west": -122.43, "north": 37.79, "east": -122.40},
		"zoom": 15
	}`
	req := httptest.NewRequest("POST", "/v1/proximity/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result domain.ProximityResult
	json.NewDecoder(resp.Body).Decode(&result)
	if !result.Near {
		t.Error("point on the line must be near")
	}
	if result.DistanceFt == nil || *result.DistanceFt != 0 {
		t.Errorf("expected distance 0, got %v", result.DistanceFt)
	}
}

func TestCheckProximity_EmptyViewport(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{
		"location": {"lng": -122.415, "lat": 37.78},
		"bounds": {"south": 37.77, "west": -122.43, "north": 37.79, "east": -122.40},
		"zoom": 15
	}`
	req := httptest.NewRequest("POST", "/v1/proximity/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result domain.ProximityResult
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Near {
		t.Error("no infrastructure means not near")
	}
	if result.DistanceFt != nil {
		t.Errorf("expected null distance, got %v", *result.DistanceFt)
	}
}

func TestCheckProximity_NegativeBuffer(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{
		"location": {"lng": -122.415, "lat": 37.78},
		"bounds": {"south": 37.77, "west": -122.43, "north": 37.79, "east": -122.40},
		"zoom": 15,
		"buffer_ft": -5
	}`
	req := httptest.NewRequest("POST", "/v1/proximity/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Tree model handler tests ----

func TestListModels(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/models", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			ModelType  string `json:"model_type"`
			Default    bool   `json:"default"`
			Definition struct {
				CrownShape string `json:"crown_shape"`
			} `json:"definition"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Models) != 7 {
		t.Fatalf("expected 7 models, got %d", len(result.Models))
	}
	defaults := 0
	for _, m := range result.Models {
		if m.Default {
			defaults++
			if m.ModelType != "broadleaf-round" {
				t.Errorf("expected broadleaf-round as default, got %q", m.ModelType)
			}
		}
		if m.ModelType == "conical" && m.Definition.CrownShape != "cone" {
			t.Errorf("conical model must have cone crown, got %q", m.Definition.CrownShape)
		}
	}
	if defaults != 1 {
		t.Errorf("expected exactly one default model, got %d", defaults)
	}
}

func TestRenderParams_ByModelType(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"model_type": "conical", "height_m": 20}`
	req := httptest.NewRequest("POST", "/v1/trees/render-params", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var params domain.RenderParams
	json.NewDecoder(resp.Body).Decode(&params)
	if params.TrunkHeight != 3 {
		t.Errorf("expected trunk height 3, got %v", params.TrunkHeight)
	}
	if params.CrownHeight != 17 {
		t.Errorf("expected crown height 17, got %v", params.CrownHeight)
	}
	if params.CrownShape != domain.ShapeCone {
		t.Errorf("expected cone crown, got %q", params.CrownShape)
	}
}

func TestRenderParams_BySpecies(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"species": {"species_group": "spruce"}, "height_m": 10}`
	req := httptest.NewRequest("POST", "/v1/trees/render-params", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var params domain.RenderParams
	json.NewDecoder(resp.Body).Decode(&params)
	if params.ModelType != domain.ModelConical {
		t.Errorf("spruce must resolve to conical, got %q", params.ModelType)
	}
}

func TestRenderParams_RequiresHeight(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"model_type": "conical"}`
	req := httptest.NewRequest("POST", "/v1/trees/render-params", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Geocode handler tests ----

func TestGeocode_Success(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Geocode = usecases.NewGeocodeService(&mockGeocoder{
			searchFn: func(ctx context.Context, query string, limit int) ([]domain.Place, error) {
				return []domain.Place{
					{Name: "Portland, Oregon", Center: domain.GeoPoint{Lng: -122.6765, Lat: 45.5231}},
				}, nil
			},
		}, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/geocode?q=portland", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Places []domain.Place `json:"places"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Places) != 1 {
		t.Errorf("expected 1 place, got %d", len(result.Places))
	}
}

func TestGeocode_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/geocode", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Project handler tests ----

func TestCreateProject_Success(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"name": "Backyard plan", "trees": [{"id": "t1", "location": {"lng": -122.41, "lat": 37.78}, "height_m": 12}]}`
	req := httptest.NewRequest("POST", "/v1/projects", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var project domain.Project
	json.NewDecoder(resp.Body).Decode(&project)
	if project.ID != "p1" {
		t.Errorf("expected assigned id p1, got %q", project.ID)
	}
}

func TestCreateProject_MissingName(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"trees": []}`
	req := httptest.NewRequest("POST", "/v1/projects", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/projects/nope", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListProjects(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Projects = usecases.NewProjectService(&mockProjectRepo{
			listFn: func(ctx context.Context, limit, offset int) ([]domain.Project, error) {
				return []domain.Project{
					{ID: "p1", Name: "First"},
					{ID: "p2", Name: "Second"},
				}, nil
			},
		})
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/projects", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []domain.Project `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 2 {
		t.Errorf("expected 2 projects, got %d", len(result.Data))
	}
}

func TestDeleteProject(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("DELETE", "/v1/projects/p1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Status != "healthy" {
		t.Errorf("expected healthy, got %q", result.Status)
	}
}

// ---- GraphQL ----

func TestGraphQL_Models(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"query": "{ models { model_type default } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Models []struct {
				ModelType string `json:"model_type"`
			} `json:"models"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	if len(result.Data.Models) != 7 {
		t.Errorf("expected 7 models, got %d", len(result.Data.Models))
	}
}

func TestGraphQL_RenderParams(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{"query": "{ renderParams(species_group: \"palm\", height_m: 8) { model_type trunk_height } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			RenderParams struct {
				ModelType   string  `json:"model_type"`
				TrunkHeight float64 `json:"trunk_height"`
			} `json:"renderParams"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	if result.Data.RenderParams.ModelType != "palm" {
		t.Errorf("expected palm, got %q", result.Data.RenderParams.ModelType)
	}
	// palm: trunk is 85% of total height
	if result.Data.RenderParams.TrunkHeight != 6.8 {
		t.Errorf("expected trunk height 6.8, got %v", result.Data.RenderParams.TrunkHeight)
	}
}

func TestGraphQL_Proximity(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.PowerLines = usecases.NewPowerLineService(&mockSource{
			fetchFn: func(ctx context.Context, bbox domain.BoundingBox) domain.FeatureCollection {
				return domain.FeatureCollection{Features: []domain.LineFeature{
					spanFeature(1, 37.78, -122.42, -122.41),
				}}
			},
		}, nil, usecases.PowerLineConfig{})
	})
	app := setupApp(deps)

	body := `{"query": "{ proximity(lng: -122.415, lat: 37.78, south: 37.77, west: -122.43, north: 37.79, east: -122.40) { near distance_ft } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Proximity struct {
				Near       bool     `json:"near"`
				DistanceFt *float64 `json:"distance_ft"`
			} `json:"proximity"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	if !result.Data.Proximity.Near {
		t.Error("expected point on the line to be near")
	}
	if result.Data.Proximity.DistanceFt == nil || *result.Data.Proximity.DistanceFt != 0 {
		t.Errorf("expected distance 0, got %v", result.Data.Proximity.DistanceFt)
	}
}
