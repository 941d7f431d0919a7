package domain

import "time"

// CrownShape is the silhouette primitive the renderer draws for a crown.
type CrownShape string

const (
	ShapeSphere   CrownShape = "sphere"
	ShapeEllipse  CrownShape = "ellipse"
	ShapeCone     CrownShape = "cone"
	ShapeCylinder CrownShape = "cylinder"
	ShapeFan      CrownShape = "fan"
)

// ModelType identifies one of the seven canonical tree silhouettes. The
// set is fixed and closed.
type ModelType string

const (
	ModelBroadleafRound     ModelType = "broadleaf-round"
	ModelBroadleafOval      ModelType = "broadleaf-oval"
	ModelBroadleafSpreading ModelType = "broadleaf-spreading"
	ModelConical            ModelType = "conical"
	ModelColumnar           ModelType = "columnar"
	ModelPalm               ModelType = "palm"
	ModelWeeping            ModelType = "weeping"
)

// DefaultModelType is substituted whenever a species or model type
// cannot be resolved.
const DefaultModelType = ModelBroadleafRound

// ModelTypeDefinition holds the shape ratios of one canonical silhouette.
// All ratios are relative to total tree height and lie in (0, 2].
type ModelTypeDefinition struct {
	TrunkHeightRatio float64    `json:"trunk_height_ratio"`
	CrownWidthRatio  float64    `json:"crown_width_ratio"`
	CrownTopRatio    float64    `json:"crown_top_ratio"`
	TrunkWidthRatio  float64    `json:"trunk_width_ratio"`
	CrownShape       CrownShape `json:"crown_shape"`
}

// Definition returns the shape table entry for a model type. Unknown
// values substitute the broadleaf-round definition so rendering can
// never fail on bad input.
func (m ModelType) Definition() ModelTypeDefinition {
	switch m {
	case ModelBroadleafRound:
		return ModelTypeDefinition{TrunkHeightRatio: 0.30, CrownWidthRatio: 0.70, CrownTopRatio: 1.0, TrunkWidthRatio: 0.06, CrownShape: ShapeSphere}
	case ModelBroadleafOval:
		return ModelTypeDefinition{TrunkHeightRatio: 0.25, CrownWidthRatio: 0.50, CrownTopRatio: 1.0, TrunkWidthRatio: 0.05, CrownShape: ShapeEllipse}
	case ModelBroadleafSpreading:
		return ModelTypeDefinition{TrunkHeightRatio: 0.35, CrownWidthRatio: 1.10, CrownTopRatio: 0.80, TrunkWidthRatio: 0.07, CrownShape: ShapeEllipse}
	case ModelConical:
		return ModelTypeDefinition{TrunkHeightRatio: 0.15, CrownWidthRatio: 0.55, CrownTopRatio: 0.95, TrunkWidthRatio: 0.05, CrownShape: ShapeCone}
	case ModelColumnar:
		return ModelTypeDefinition{TrunkHeightRatio: 0.10, CrownWidthRatio: 0.30, CrownTopRatio: 0.90, TrunkWidthRatio: 0.05, CrownShape: ShapeCylinder}
	case ModelPalm:
		return ModelTypeDefinition{TrunkHeightRatio: 0.85, CrownWidthRatio: 0.60, CrownTopRatio: 0.40, TrunkWidthRatio: 0.04, CrownShape: ShapeFan}
	case ModelWeeping:
		return ModelTypeDefinition{TrunkHeightRatio: 0.20, CrownWidthRatio: 0.80, CrownTopRatio: 0.70, TrunkWidthRatio: 0.06, CrownShape: ShapeEllipse}
	default:
		return DefaultModelType.Definition()
	}
}

// Valid reports whether m names one of the seven catalog entries.
func (m ModelType) Valid() bool {
	switch m {
	case ModelBroadleafRound, ModelBroadleafOval, ModelBroadleafSpreading,
		ModelConical, ModelColumnar, ModelPalm, ModelWeeping:
		return true
	}
	return false
}

// ModelTypes lists the closed catalog in a stable order.
func ModelTypes() []ModelType {
	return []ModelType{
		ModelBroadleafRound,
		ModelBroadleafOval,
		ModelBroadleafSpreading,
		ModelConical,
		ModelColumnar,
		ModelPalm,
		ModelWeeping,
	}
}

// SpeciesDescriptor is what the species catalog collaborator hands us:
// either field may be empty.
type SpeciesDescriptor struct {
	SpeciesGroup string `json:"species_group,omitempty"`
	CanopyShape  string `json:"canopy_shape,omitempty"`
}

// RenderParams is the concrete geometry handed to the rendering
// collaborator for one tree instance. Derived, never persisted;
// recomputed on every placement or species change.
type RenderParams struct {
	ModelType     ModelType  `json:"model_type"`
	TrunkHeight   float64    `json:"trunk_height"`
	CrownHeight   float64    `json:"crown_height"`
	TrunkWidth    float64    `json:"trunk_width"`
	CrownWidth    float64    `json:"crown_width"`
	CrownShape    CrownShape `json:"crown_shape"`
	CrownTopRatio float64    `json:"crown_top_ratio"`
	TotalHeight   float64    `json:"total_height"`
}

// Tree is a placed tree inside a project.
type Tree struct {
	ID          string             `json:"id"`
	Species     *SpeciesDescriptor `json:"species,omitempty"`
	CommonName  string             `json:"common_name,omitempty"`
	Location    GeoPoint           `json:"location"`
	HeightM     float64            `json:"height_m"`
	CrownWidthM float64            `json:"crown_width_m,omitempty"`
}

// CameraPose is the saved map camera for a project.
type CameraPose struct {
	Center  GeoPoint `json:"center"`
	Zoom    float64  `json:"zoom"`
	Pitch   float64  `json:"pitch"`
	Bearing float64  `json:"bearing"`
}

// Project is a saved planting plan: trees, site settings, camera pose.
// Ingested power-line geometry and proximity results are never part of
// a project; they are recomputed per session.
type Project struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Trees     []Tree         `json:"trees"`
	Settings  map[string]any `json:"settings,omitempty"`
	Camera    CameraPose     `json:"camera"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Place is a ranked geocoding candidate from the search collaborator.
type Place struct {
	Name   string   `json:"name"`
	Center GeoPoint `json:"center"`
}

// IngestEvent is published after a viewport's power lines are fetched
// and written to the cache.
type IngestEvent struct {
	CacheKey  string      `json:"cache_key"`
	Bounds    BoundingBox `json:"bounds"`
	Features  int         `json:"features"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// ProximityWarning is published when a placed tree turns out to sit
// within the buffer distance of an overhead line.
type ProximityWarning struct {
	ProjectID  string   `json:"project_id"`
	TreeID     string   `json:"tree_id"`
	Location   GeoPoint `json:"location"`
	DistanceFt float64  `json:"distance_ft"`
	BufferFt   float64  `json:"buffer_ft"`
}
