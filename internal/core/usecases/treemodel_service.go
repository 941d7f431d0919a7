package usecases

import (
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/lukemenard/canopyviz/internal/core/domain"
)

// TreeModelService maps species descriptors to canonical silhouettes and
// derives concrete render geometry. Every operation is pure and total:
// unmapped values fall through to the broadleaf-round default, never to
// an error.
type TreeModelService struct{}

// NewTreeModelService creates a new TreeModelService.
func NewTreeModelService() *TreeModelService {
	return &TreeModelService{}
}

// speciesGroupModels maps a species catalog group to a model type. The
// group wins outright when recognized, regardless of canopy shape.
var speciesGroupModels = map[string]domain.ModelType{
	"oak":     domain.ModelBroadleafRound,
	"maple":   domain.ModelBroadleafRound,
	"ash":     domain.ModelBroadleafOval,
	"birch":   domain.ModelBroadleafOval,
	"elm":     domain.ModelBroadleafSpreading,
	"beech":   domain.ModelBroadleafSpreading,
	"spruce":  domain.ModelConical,
	"fir":     domain.ModelConical,
	"pine":    domain.ModelConical,
	"cedar":   domain.ModelConical,
	"poplar":  domain.ModelColumnar,
	"cypress": domain.ModelColumnar,
	"palm":    domain.ModelPalm,
	"willow":  domain.ModelWeeping,
}

// canopyShapeModels maps a canopy-shape tag to a model type. Consulted
// only when the species group is absent or unrecognized.
var canopyShapeModels = map[string]domain.ModelType{
	"round":     domain.ModelBroadleafRound,
	"oval":      domain.ModelBroadleafOval,
	"spreading": domain.ModelBroadleafSpreading,
	"vase":      domain.ModelBroadleafSpreading,
	"conical":   domain.ModelConical,
	"pyramidal": domain.ModelConical,
	"columnar":  domain.ModelColumnar,
	"palm":      domain.ModelPalm,
	"fan":       domain.ModelPalm,
	"weeping":   domain.ModelWeeping,
}

// Resolve picks the model type for a species descriptor. A nil
// descriptor, or one with no recognized group or shape, resolves to
// broadleaf-round.
func (s *TreeModelService) Resolve(species *domain.SpeciesDescriptor) domain.ModelType {
	if species == nil {
		return domain.DefaultModelType
	}
	if species.SpeciesGroup != "" {
		if m, ok := speciesGroupModels[strings.ToLower(species.SpeciesGroup)]; ok {
			return m
		}
	}
	if species.CanopyShape != "" {
		if m, ok := canopyShapeModels[strings.ToLower(species.CanopyShape)]; ok {
			return m
		}
	}
	return domain.DefaultModelType
}

// Parameterize derives render geometry for one tree instance from a
// model type and the tree's measured height and crown width (meters).
// A crown width of exactly 0 means "not supplied" and triggers
// derivation from the model's width ratio; a zero-width crown is
// physically meaningless, so this is intentional rather than a special
// case worth erroring on.
func (s *TreeModelService) Parameterize(modelType domain.ModelType, heightM, crownWidthM float64) domain.RenderParams {
	if !modelType.Valid() {
		modelType = domain.DefaultModelType
	}
	def := modelType.Definition()

	trunkHeight := heightM * def.TrunkHeightRatio
	crownWidth := crownWidthM
	if crownWidth == 0 {
		crownWidth = heightM * def.CrownWidthRatio
	}

	return domain.RenderParams{
		ModelType:     modelType,
		TrunkHeight:   trunkHeight,
		CrownHeight:   heightM - trunkHeight,
		TrunkWidth:    heightM * def.TrunkWidthRatio,
		CrownWidth:    crownWidth,
		CrownShape:    def.CrownShape,
		CrownTopRatio: def.CrownTopRatio,
		TotalHeight:   heightM,
	}
}

// EnrichFeatures attaches the resolved model type and its shape ratios
// to each feature's properties, reading species_group / canopy_shape
// tags where present. Geometry and unrelated properties are left
// untouched.
func (s *TreeModelService) EnrichFeatures(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}

		var species *domain.SpeciesDescriptor
		group, _ := f.Properties["species_group"].(string)
		shape, _ := f.Properties["canopy_shape"].(string)
		if group != "" || shape != "" {
			species = &domain.SpeciesDescriptor{SpeciesGroup: group, CanopyShape: shape}
		}

		modelType := s.Resolve(species)
		def := modelType.Definition()

		f.Properties["model_type"] = string(modelType)
		f.Properties["crown_shape"] = string(def.CrownShape)
		f.Properties["trunk_height_ratio"] = def.TrunkHeightRatio
		f.Properties["crown_width_ratio"] = def.CrownWidthRatio
		f.Properties["crown_top_ratio"] = def.CrownTopRatio
		f.Properties["trunk_width_ratio"] = def.TrunkWidthRatio
	}
	return fc
}
