package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/threadswap/threadswap/models"
)

// Catalog is the curated fashion model roster the studio composites
// garments onto. The studio treats entries as opaque read-only lookups;
// curation happens through the admin surface.
type Catalog struct {
	col    *mongo.Collection
	logger zerolog.Logger
}

// New creates a Catalog over the given collection.
func New(col *mongo.Collection, logger zerolog.Logger) *Catalog {
	return &Catalog{
		col:    col,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Filter narrows a model listing.
type Filter struct {
	Gender       string
	Category     string
	Search       string
	FeaturedOnly bool
	Page         int64
	Limit        int64
}

// List returns matching models, featured first, then most used.
func (c *Catalog) List(ctx context.Context, f Filter) ([]models.FashionModel, int64, error) {
	filter := bson.M{"is_deleted": false}
	if f.Gender != "" {
		// Unisex models show up for every gender preference.
		filter["gender"] = bson.M{"$in": []string{f.Gender, "unisex"}}
	}
	if f.Category != "" {
		filter["category"] = bson.M{"$in": []string{f.Category, "auto"}}
	}
	if f.FeaturedOnly {
		filter["featured"] = true
	}
	if f.Search != "" {
		filter["$or"] = []bson.M{
			{"name": bson.M{"$regex": f.Search, "$options": "i"}},
			{"tags": bson.M{"$regex": f.Search, "$options": "i"}},
		}
	}

	total, err := c.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count models: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 24
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "featured", Value: -1}, {Key: "usage_count", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := c.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find models: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.FashionModel
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode models: %w", err)
	}
	if out == nil {
		out = []models.FashionModel{}
	}
	return out, total, nil
}

// Get looks up one model by id.
func (c *Catalog) Get(ctx context.Context, id string) (*models.FashionModel, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid model id: %w", err)
	}

	var m models.FashionModel
	err = c.col.FindOne(ctx, bson.M{"_id": objID, "is_deleted": false}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("model %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find model: %w", err)
	}
	return &m, nil
}

// IncrementUsage bumps a model's usage counter. Called when a draft
// adopts the model, not when it is merely previewed.
func (c *Catalog) IncrementUsage(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid model id: %w", err)
	}
	_, err = c.col.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$inc": bson.M{"usage_count": 1}})
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

// Create adds a model to the roster.
func (c *Catalog) Create(ctx context.Context, m models.FashionModel) (models.FashionModel, error) {
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now()
	m.IsDeleted = false
	m.UsageCount = 0
	if _, err := c.col.InsertOne(ctx, m); err != nil {
		return models.FashionModel{}, fmt.Errorf("insert model: %w", err)
	}
	c.logger.Info().Str("model", m.ID.Hex()).Str("name", m.Name).Msg("model added to catalog")
	return m, nil
}

// Update replaces the editable fields of a model.
func (c *Catalog) Update(ctx context.Context, id string, m models.FashionModel) (models.FashionModel, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.FashionModel{}, fmt.Errorf("invalid model id: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"name":      m.Name,
		"gender":    m.Gender,
		"body_type": m.BodyType,
		"ethnicity": m.Ethnicity,
		"category":  m.Category,
		"tags":      m.Tags,
	}}
	if m.ImageKey != "" {
		update["$set"].(bson.M)["image_key"] = m.ImageKey
	}

	var out models.FashionModel
	err = c.col.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "is_deleted": false},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.FashionModel{}, fmt.Errorf("model %s not found", id)
	}
	if err != nil {
		return models.FashionModel{}, fmt.Errorf("update model: %w", err)
	}
	return out, nil
}

// SetFeatured toggles the featured flag.
func (c *Catalog) SetFeatured(ctx context.Context, id string, featured bool) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid model id: %w", err)
	}
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": objID, "is_deleted": false},
		bson.M{"$set": bson.M{"featured": featured}})
	if err != nil {
		return fmt.Errorf("set featured: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("model %s not found", id)
	}
	return nil
}

// SoftDelete hides a model from the roster without losing the rows that
// reference it.
func (c *Catalog) SoftDelete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid model id: %w", err)
	}
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": objID},
		bson.M{"$set": bson.M{"is_deleted": true, "featured": false}})
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("model %s not found", id)
	}
	return nil
}
