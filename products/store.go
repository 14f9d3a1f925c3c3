package products

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

// Store owns the products collection: drafts coming out of the studio or
// the importer, the seller lifecycle, and buyer browsing.
type Store struct {
	col    *mongo.Collection
	logger zerolog.Logger
}

// NewStore creates a Store over the given collection.
func NewStore(col *mongo.Collection, logger zerolog.Logger) *Store {
	return &Store{
		col:    col,
		logger: logger.With().Str("component", "products").Logger(),
	}
}

// DraftFields is everything a new draft can carry. Price may be zero;
// Publish refuses to list a product until the seller sets one.
type DraftFields struct {
	SellerID       string
	Title          string
	Description    string
	Category       string
	Brand          string
	Size           string
	Condition      string
	Gender         string
	PriceCents     int64
	Currency       string
	Images         []string
	Origin         string
	SourceURL      string
	SourceImageKey string
	AIPreviewKey   string
	GenerationID   string
}

// CreateDraft inserts a new draft listing.
func (s *Store) CreateDraft(ctx context.Context, f DraftFields) (models.Product, error) {
	now := time.Now()
	p := models.Product{
		ID:             primitive.NewObjectID(),
		SellerID:       f.SellerID,
		Title:          f.Title,
		Description:    f.Description,
		Category:       f.Category,
		Brand:          f.Brand,
		Size:           f.Size,
		Condition:      f.Condition,
		Gender:         f.Gender,
		PriceCents:     f.PriceCents,
		Currency:       f.Currency,
		Images:         f.Images,
		Status:         models.ProductStatusDraft,
		Origin:         f.Origin,
		SourceURL:      f.SourceURL,
		SourceImageKey: f.SourceImageKey,
		AIPreviewKey:   f.AIPreviewKey,
		GenerationID:   f.GenerationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if _, err := s.col.InsertOne(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("insert draft: %w", err)
	}
	s.logger.Info().Str("product", p.ID.Hex()).Str("seller", p.SellerID).Str("origin", p.Origin).Msg("draft created")
	return p, nil
}

// AttachModel patches a draft with the chosen fashion model and the
// preview image generated with it. Last write wins: repeated calls simply
// replace the previous pair. An empty modelID detaches the model but
// keeps the preview.
func (s *Store) AttachModel(ctx context.Context, productID, modelID, previewKey string) (models.Product, error) {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid product id: %w", err)
	}

	set := bson.M{"updated_at": time.Now()}
	update := bson.M{"$set": set}
	if modelID == "" {
		update["$unset"] = bson.M{"fashion_model_id": ""}
	} else {
		set["fashion_model_id"] = modelID
	}
	if previewKey != "" {
		set["ai_preview_key"] = previewKey
	}

	var out models.Product
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "is_deleted": false},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, fmt.Errorf("product %s not found", productID)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("attach model: %w", err)
	}
	return out, nil
}

// Updates are the seller-editable listing fields. Nil pointers leave the
// stored value alone.
type Updates struct {
	Title       *string
	Description *string
	Category    *string
	Brand       *string
	Size        *string
	Condition   *string
	Gender      *string
	PriceCents  *int64
}

// Update edits a listing owned by sellerID. Editing an active listing
// sends it back through moderation.
func (s *Store) Update(ctx context.Context, sellerID, productID string, u Updates) (models.Product, error) {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid product id: %w", err)
	}

	set := bson.M{"updated_at": time.Now()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.Brand != nil {
		set["brand"] = *u.Brand
	}
	if u.Size != nil {
		set["size"] = *u.Size
	}
	if u.Condition != nil {
		set["condition"] = *u.Condition
	}
	if u.Gender != nil {
		set["gender"] = *u.Gender
	}
	if u.PriceCents != nil {
		set["price_cents"] = *u.PriceCents
	}

	var out models.Product
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "seller_id": sellerID, "is_deleted": false, "status": bson.M{"$ne": models.ProductStatusSold}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, fmt.Errorf("product %s not found", productID)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("update product: %w", err)
	}

	if out.Status == models.ProductStatusActive {
		return s.setStatus(ctx, objID, models.ProductStatusPending)
	}
	return out, nil
}

// Publish submits a draft for moderation. A zero price is a draft
// placeholder, not a listable price.
func (s *Store) Publish(ctx context.Context, sellerID, productID string) (models.Product, error) {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid product id: %w", err)
	}

	var p models.Product
	err = s.col.FindOne(ctx, bson.M{"_id": objID, "seller_id": sellerID, "is_deleted": false}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, fmt.Errorf("product %s not found", productID)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("find product: %w", err)
	}
	if p.Status != models.ProductStatusDraft && p.Status != models.ProductStatusRejected {
		return models.Product{}, fmt.Errorf("product is %s, only drafts can be published", p.Status)
	}
	if p.PriceCents <= 0 {
		return models.Product{}, fmt.Errorf("set a price before publishing")
	}
	if p.Title == "" || len(p.Images) == 0 {
		return models.Product{}, fmt.Errorf("a title and at least one photo are required")
	}
	return s.setStatus(ctx, objID, models.ProductStatusPending)
}

// SetModeration resolves a pending listing. The note is shown to the
// seller on rejection.
func (s *Store) SetModeration(ctx context.Context, productID string, approve bool, note string) (models.Product, error) {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid product id: %w", err)
	}

	status := models.ProductStatusRejected
	if approve {
		status = models.ProductStatusActive
	}

	var out models.Product
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "status": models.ProductStatusPending, "is_deleted": false},
		bson.M{"$set": bson.M{"status": status, "moderation_note": note, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, fmt.Errorf("no pending product %s", productID)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("moderate product: %w", err)
	}
	s.logger.Info().Str("product", productID).Str("status", status).Msg("listing moderated")
	return out, nil
}

// MarkSold flips an active listing to sold. Listings are one of a kind,
// so sold is terminal. Returns the product as it was before the flip so
// checkout can snapshot it.
func (s *Store) MarkSold(ctx context.Context, productID string) (models.Product, error) {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return models.Product{}, fmt.Errorf("invalid product id: %w", err)
	}

	now := time.Now()
	var out models.Product
	err = s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "status": models.ProductStatusActive, "is_deleted": false},
		bson.M{"$set": bson.M{"status": models.ProductStatusSold, "sold_at": now, "updated_at": now}},
	).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.Product{}, fmt.Errorf("product %s is no longer available", productID)
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("mark sold: %w", err)
	}
	return out, nil
}

// SoftDelete hides a seller's listing. Sold listings stay put: orders
// reference them.
func (s *Store) SoftDelete(ctx context.Context, sellerID, productID string) error {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return fmt.Errorf("invalid product id: %w", err)
	}
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": objID, "seller_id": sellerID, "status": bson.M{"$ne": models.ProductStatusSold}},
		bson.M{"$set": bson.M{"is_deleted": true, "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product %s not found", productID)
	}
	return nil
}

// Get fetches one listing by id.
func (s *Store) Get(ctx context.Context, productID string) (*models.Product, error) {
	objID, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id: %w", err)
	}
	var p models.Product
	err = s.col.FindOne(ctx, bson.M{"_id": objID, "is_deleted": false}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("product %s not found", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

// ListBySeller returns everything a seller can see of their own shop,
// drafts included.
func (s *Store) ListBySeller(ctx context.Context, sellerID string, page, limit int64) ([]models.Product, int64, error) {
	filter := bson.M{"seller_id": sellerID, "is_deleted": false}
	return s.page(ctx, filter, page, limit)
}

// ListPending returns the moderation queue, oldest first.
func (s *Store) ListPending(ctx context.Context, page, limit int64) ([]models.Product, int64, error) {
	filter := bson.M{"status": models.ProductStatusPending, "is_deleted": false}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count pending: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	return s.find(ctx, filter, opts, total)
}

// BrowseFilter narrows the public storefront.
type BrowseFilter struct {
	Category string
	Gender   string
	Size     string
	Search   string
	Page     int64
	Limit    int64
}

// Browse lists active products for buyers, newest first.
func (s *Store) Browse(ctx context.Context, f BrowseFilter) ([]models.Product, int64, error) {
	filter := bson.M{"status": models.ProductStatusActive, "is_deleted": false}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Gender != "" {
		filter["gender"] = bson.M{"$in": []string{f.Gender, "unisex"}}
	}
	if f.Size != "" {
		filter["size"] = f.Size
	}
	if f.Search != "" {
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": f.Search, "$options": "i"}},
			{"brand": bson.M{"$regex": f.Search, "$options": "i"}},
			{"description": bson.M{"$regex": f.Search, "$options": "i"}},
		}
	}
	return s.page(ctx, filter, f.Page, f.Limit)
}

func (s *Store) page(ctx context.Context, filter bson.M, page, limit int64) ([]models.Product, int64, error) {
	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	return s.find(ctx, filter, opts, total)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions, total int64) ([]models.Product, int64, error) {
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.Product
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode products: %w", err)
	}
	if out == nil {
		out = []models.Product{}
	}
	return out, total, nil
}

func (s *Store) setStatus(ctx context.Context, id primitive.ObjectID, status string) (models.Product, error) {
	var out models.Product
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return models.Product{}, fmt.Errorf("set status: %w", err)
	}
	return out, nil
}
