package http

import (
	"github.com/nats-io/nats.go"

	"github.com/lukemenard/canopyviz/internal/adapters/postgres"
	"github.com/lukemenard/canopyviz/internal/adapters/valkey"
	"github.com/lukemenard/canopyviz/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	PowerLines *usecases.PowerLineService
	Proximity  *usecases.ProximityService
	TreeModels *usecases.TreeModelService
	Projects   *usecases.ProjectService
	Geocode    *usecases.GeocodeService
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
}
