package api

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/threadswap/threadswap/catalog"
	"github.com/threadswap/threadswap/products"
	"github.com/threadswap/threadswap/studio"
)

// Deps are the services the handlers call. Wired once from main.
type Deps struct {
	Logger      zerolog.Logger
	Studio      *studio.Studio
	Catalog     *catalog.Catalog
	Products    *products.Store
	Generations *products.Generations
}

var (
	logger       zerolog.Logger
	studioSvc    *studio.Studio
	modelCatalog *catalog.Catalog
	productStore *products.Store
	generations  *products.Generations
)

// Init wires the handler package. Must run before any route is served.
func Init(d Deps) {
	logger = d.Logger.With().Str("component", "api").Logger()
	studioSvc = d.Studio
	modelCatalog = d.Catalog
	productStore = d.Products
	generations = d.Generations
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NilObjectID, fmt.Errorf("empty id")
	}
	return primitive.ObjectIDFromHex(id)
}
