package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product statuses.
const (
	ProductStatusDraft    = "draft"
	ProductStatusPending  = "pending"
	ProductStatusActive   = "active"
	ProductStatusRejected = "rejected"
	ProductStatusSold     = "sold"
)

// Product origins.
const (
	ProductOriginStudio = "studio"
	ProductOriginImport = "import"
	ProductOriginManual = "manual"
)

// Product represents a listing on the marketplace
type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SellerID       string             `bson:"seller_id" json:"seller_id"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description" json:"description"`
	Category       string             `bson:"category" json:"category"` // Top, Bottom, Full-body
	Brand          string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Size           string             `bson:"size,omitempty" json:"size,omitempty"`
	Condition      string             `bson:"condition,omitempty" json:"condition,omitempty"` // new_with_tags, like_new, good, fair
	Gender         string             `bson:"gender,omitempty" json:"gender,omitempty"`       // male, female, unisex
	PriceCents     int64              `bson:"price_cents" json:"price_cents"`
	Currency       string             `bson:"currency" json:"currency"`
	Images         []string           `bson:"images" json:"images"` // S3 object keys
	Status         string             `bson:"status" json:"status"`
	Origin         string             `bson:"origin" json:"origin"`
	SourceURL      string             `bson:"source_url,omitempty" json:"source_url,omitempty"` // imported listings only
	ModerationNote string             `bson:"moderation_note,omitempty" json:"moderation_note,omitempty"`

	// AI studio linkage
	FashionModelID string `bson:"fashion_model_id,omitempty" json:"fashion_model_id,omitempty"`
	AIPreviewKey   string `bson:"ai_preview_key,omitempty" json:"ai_preview_key,omitempty"`
	SourceImageKey string `bson:"source_image_key,omitempty" json:"source_image_key,omitempty"`
	GenerationID   string `bson:"generation_id,omitempty" json:"generation_id,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	SoldAt    *time.Time `bson:"sold_at,omitempty" json:"sold_at,omitempty"`
	IsDeleted bool       `bson:"is_deleted" json:"is_deleted"` // Soft delete flag
}
