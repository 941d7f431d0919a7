package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lukemenard/canopyviz/internal/core/domain"
)

// parseBBox reads south/west/north/east query parameters into a bounding box.
func parseBBox(c *fiber.Ctx) (domain.BoundingBox, error) {
	bbox := domain.BoundingBox{
		South: c.QueryFloat("south", -1000),
		West:  c.QueryFloat("west", -1000),
		North: c.QueryFloat("north", -1000),
		East:  c.QueryFloat("east", -1000),
	}
	if bbox.South == -1000 || bbox.West == -1000 || bbox.North == -1000 || bbox.East == -1000 {
		return bbox, errBadRequest(c, "south, west, north and east are required")
	}
	if bbox.South < -90 || bbox.North > 90 || bbox.South >= bbox.North {
		return bbox, errBadRequest(c, "latitude bounds out of range")
	}
	if bbox.West < -180 || bbox.East > 180 || bbox.West >= bbox.East {
		return bbox, errBadRequest(c, "longitude bounds out of range")
	}
	return bbox, nil
}

// GetPowerLinesHandler returns overhead power-line geometry for a viewport.
// Below the minimum zoom the response is an intentionally empty collection,
// marked by the "below_min_zoom" status so clients can tell it apart from
// a viewport with no infrastructure.
func GetPowerLinesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bbox, err := parseBBox(c)
		if err != nil {
			return err
		}
		zoom := c.QueryFloat("zoom", 0)

		status := "ok"
		fc := deps.PowerLines.Ensure(c.Context(), bbox, zoom)
		if fc.Empty() && !deps.PowerLines.AboveMinZoom(zoom) {
			status = "below_min_zoom"
		}

		features := fc.Features
		if features == nil {
			features = []domain.LineFeature{}
		}

		return c.JSON(fiber.Map{
			"status":    status,
			"cache_key": bbox.CacheKey(),
			"count":     len(features),
			"features":  features,
		})
	}
}

// GetPowerLineBuffersHandler returns buffered clearance polygons around the
// power lines in a viewport, as a GeoJSON FeatureCollection.
func GetPowerLineBuffersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bbox, err := parseBBox(c)
		if err != nil {
			return err
		}
		zoom := c.QueryFloat("zoom", 0)
		bufferFt := c.QueryFloat("buffer_ft", -1)

		fc := deps.PowerLines.Ensure(c.Context(), bbox, zoom)
		buffers := deps.Proximity.BufferFeatures(fc, bufferFt)

		c.Set("Content-Type", "application/geo+json")
		return c.JSON(buffers)
	}
}

// proximityRequest is the body for POST /v1/proximity/check.
type proximityRequest struct {
	Location domain.GeoPoint    `json:"location"`
	Bounds   domain.BoundingBox `json:"bounds"`
	Zoom     float64            `json:"zoom"`
	BufferFt *float64           `json:"buffer_ft"`
}

// CheckProximityHandler evaluates one location against the power lines in
// the surrounding viewport.
func CheckProximityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req proximityRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Location.Lat < -90 || req.Location.Lat > 90 ||
			req.Location.Lng < -180 || req.Location.Lng > 180 {
			return errBadRequest(c, "location out of range")
		}

		bufferFt := -1.0
		if req.BufferFt != nil {
			if *req.BufferFt < 0 {
				return errBadRequest(c, "buffer_ft must not be negative")
			}
			bufferFt = *req.BufferFt
		}

		fc := deps.PowerLines.Ensure(c.Context(), req.Bounds, req.Zoom)
		result := deps.Proximity.Check(req.Location, fc, bufferFt)

		return c.JSON(result)
	}
}

// renderParamsRequest is the body for POST /v1/trees/render-params.
// Either model_type or species may be given; species is resolved to a
// model type when model_type is absent.
type renderParamsRequest struct {
	ModelType   string                    `json:"model_type"`
	Species     *domain.SpeciesDescriptor `json:"species"`
	HeightM     float64                   `json:"height_m"`
	CrownWidthM float64                   `json:"crown_width_m"`
}

// RenderParamsHandler computes procedural geometry parameters for one tree.
func RenderParamsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req renderParamsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.HeightM <= 0 {
			return errBadRequest(c, "height_m must be positive")
		}

		modelType := domain.ModelType(req.ModelType)
		if req.ModelType == "" {
			modelType = deps.TreeModels.Resolve(req.Species)
		}

		params := deps.TreeModels.Parameterize(modelType, req.HeightM, req.CrownWidthM)
		return c.JSON(params)
	}
}

// ListModelsHandler returns the tree model catalog with shape definitions.
func ListModelsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		type modelEntry struct {
			ModelType  domain.ModelType           `json:"model_type"`
			Default    bool                       `json:"default,omitempty"`
			Definition domain.ModelTypeDefinition `json:"definition"`
		}

		models := make([]modelEntry, 0, len(domain.ModelTypes()))
		for _, m := range domain.ModelTypes() {
			models = append(models, modelEntry{
				ModelType:  m,
				Default:    m == domain.DefaultModelType,
				Definition: m.Definition(),
			})
		}

		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(fiber.Map{"models": models})
	}
}

// GeocodeHandler searches place names.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		limit := c.QueryInt("limit", 5)

		if deps.Geocode == nil {
			return errInternal(c, "geocoding not configured")
		}
		places, err := deps.Geocode.Search(c.Context(), query, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if places == nil {
			places = []domain.Place{}
		}

		return c.JSON(fiber.Map{"places": places})
	}
}

// ListProjectsHandler lists saved projects with pagination.
func ListProjectsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		projects, err := deps.Projects.List(c.Context(), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if projects == nil {
			projects = []domain.Project{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: offset + len(projects)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: projects, Pagination: pg})
	}
}

// GetProjectHandler returns a single project by ID.
func GetProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "project id is required")
		}
		project, err := deps.Projects.Get(c.Context(), id)
		if err != nil {
			return errNotFound(c, "project not found")
		}
		return c.JSON(project)
	}
}

// CreateProjectHandler saves a new project.
func CreateProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var project domain.Project
		if err := c.BodyParser(&project); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Projects.Create(c.Context(), &project); err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(project)
	}
}

// UpdateProjectHandler replaces a project.
func UpdateProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "project id is required")
		}
		var project domain.Project
		if err := c.BodyParser(&project); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		project.ID = id
		if err := deps.Projects.Update(c.Context(), &project); err != nil {
			return errNotFound(c, err.Error())
		}
		return c.JSON(project)
	}
}

// DeleteProjectHandler removes a project.
func DeleteProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "project id is required")
		}
		if err := deps.Projects.Delete(c.Context(), id); err != nil {
			return errNotFound(c, "project not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
