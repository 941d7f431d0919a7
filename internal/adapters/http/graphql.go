package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/lukemenard/canopyviz/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lng": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	definitionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ModelDefinition",
		Fields: graphql.Fields{
			"trunk_height_ratio": &graphql.Field{Type: graphql.Float},
			"crown_width_ratio":  &graphql.Field{Type: graphql.Float},
			"crown_top_ratio":    &graphql.Field{Type: graphql.Float},
			"trunk_width_ratio":  &graphql.Field{Type: graphql.Float},
			"crown_shape":        &graphql.Field{Type: graphql.String},
		},
	})

	modelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TreeModel",
		Fields: graphql.Fields{
			"model_type": &graphql.Field{Type: graphql.String},
			"default":    &graphql.Field{Type: graphql.Boolean},
			"definition": &graphql.Field{Type: definitionType},
		},
	})

	renderParamsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RenderParams",
		Fields: graphql.Fields{
			"model_type":      &graphql.Field{Type: graphql.String},
			"trunk_height":    &graphql.Field{Type: graphql.Float},
			"crown_height":    &graphql.Field{Type: graphql.Float},
			"trunk_width":     &graphql.Field{Type: graphql.Float},
			"crown_width":     &graphql.Field{Type: graphql.Float},
			"crown_shape":     &graphql.Field{Type: graphql.String},
			"crown_top_ratio": &graphql.Field{Type: graphql.Float},
			"total_height":    &graphql.Field{Type: graphql.Float},
		},
	})

	treeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tree",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"common_name":   &graphql.Field{Type: graphql.String},
			"location":      &graphql.Field{Type: geoPointType},
			"height_m":      &graphql.Field{Type: graphql.Float},
			"crown_width_m": &graphql.Field{Type: graphql.Float},
		},
	})

	projectType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Project",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.String},
			"name":  &graphql.Field{Type: graphql.String},
			"trees": &graphql.Field{Type: graphql.NewList(treeType)},
		},
	})

	proximityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ProximityResult",
		Fields: graphql.Fields{
			"near":        &graphql.Field{Type: graphql.Boolean},
			"distance_ft": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":   &graphql.Field{Type: graphql.String},
			"center": &graphql.Field{Type: geoPointType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"models": &graphql.Field{
				Type:        graphql.NewList(modelType),
				Description: "List the tree model catalog",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var result []map[string]interface{}
					for _, m := range domain.ModelTypes() {
						result = append(result, map[string]interface{}{
							"model_type": string(m),
							"default":    m == domain.DefaultModelType,
							"definition": m.Definition(),
						})
					}
					return result, nil
				},
			},
			"renderParams": &graphql.Field{
				Type:        renderParamsType,
				Description: "Compute procedural geometry parameters for a tree",
				Args: graphql.FieldConfigArgument{
					"model_type":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"species_group": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"canopy_shape":  &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"height_m":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"crown_width_m": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					mt := domain.ModelType(p.Args["model_type"].(string))
					if mt == "" {
						mt = deps.TreeModels.Resolve(&domain.SpeciesDescriptor{
							SpeciesGroup: p.Args["species_group"].(string),
							CanopyShape:  p.Args["canopy_shape"].(string),
						})
					}
					return deps.TreeModels.Parameterize(mt,
						p.Args["height_m"].(float64),
						p.Args["crown_width_m"].(float64)), nil
				},
			},
			"project": &graphql.Field{
				Type:        projectType,
				Description: "Get a saved project by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Projects.Get(p.Context, p.Args["id"].(string))
				},
			},
			"projects": &graphql.Field{
				Type:        graphql.NewList(projectType),
				Description: "List saved projects",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Projects.List(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
				},
			},
			"proximity": &graphql.Field{
				Type:        proximityType,
				Description: "Check a point against the power lines in a viewport",
				Args: graphql.FieldConfigArgument{
					"lng":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"south":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"west":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"north":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"east":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"zoom":      &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 22.0},
					"buffer_ft": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: -1.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					bbox := domain.BoundingBox{
						South: p.Args["south"].(float64),
						West:  p.Args["west"].(float64),
						North: p.Args["north"].(float64),
						East:  p.Args["east"].(float64),
					}
					fc := deps.PowerLines.Ensure(p.Context, bbox, p.Args["zoom"].(float64))
					point := domain.GeoPoint{
						Lng: p.Args["lng"].(float64),
						Lat: p.Args["lat"].(float64),
					}
					return deps.Proximity.Check(point, fc, p.Args["buffer_ft"].(float64)), nil
				},
			},
			"geocode": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Search place names",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Geocode == nil {
						return []domain.Place{}, nil
					}
					return deps.Geocode.Search(p.Context, p.Args["query"].(string), p.Args["limit"].(int))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
