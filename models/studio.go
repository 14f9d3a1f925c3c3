package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Generation statuses.
const (
	GenerationStatusCompleted = "completed"
	GenerationStatusFailed    = "failed"
)

// StudioGeneration records one AI studio run for the user's gallery
type StudioGeneration struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"user_id" json:"user_id"`
	SourceImageKey string             `bson:"source_image_key" json:"source_image_key"`
	FinalImageKey  string             `bson:"final_image_key,omitempty" json:"final_image_key,omitempty"`
	ThumbnailKey   string             `bson:"thumbnail_key,omitempty" json:"thumbnail_key,omitempty"`
	Category       string             `bson:"category" json:"category"`         // Top, Bottom, Full-body
	GarmentType    string             `bson:"garment_type" json:"garment_type"` // tops, bottoms, one-pieces, auto
	ModelGender    string             `bson:"model_gender" json:"model_gender"`
	FashionModelID string             `bson:"fashion_model_id,omitempty" json:"fashion_model_id,omitempty"`
	Degraded       bool               `bson:"degraded" json:"degraded"` // model overlay skipped, cutout only
	Narrative      string             `bson:"narrative,omitempty" json:"narrative,omitempty"`
	Status         string             `bson:"status" json:"status"`
	ProductID      string             `bson:"product_id,omitempty" json:"product_id,omitempty"` // draft created from this run
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	IsDeleted      bool               `bson:"is_deleted" json:"is_deleted"` // Soft delete flag
}
