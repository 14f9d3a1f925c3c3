package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FashionModel is a catalog entry garments can be composited onto
type FashionModel struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name" json:"name"`
	Gender     string             `bson:"gender" json:"gender"` // male, female, unisex
	BodyType   string             `bson:"body_type,omitempty" json:"body_type,omitempty"`
	Ethnicity  string             `bson:"ethnicity,omitempty" json:"ethnicity,omitempty"`
	Category   string             `bson:"category" json:"category"` // tops, bottoms, one-pieces, auto
	ImageKey   string             `bson:"image_key" json:"image_key"`
	Tags       []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Featured   bool               `bson:"featured" json:"featured"`
	UsageCount int64              `bson:"usage_count" json:"usage_count"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	IsDeleted  bool               `bson:"is_deleted" json:"is_deleted"` // Soft delete flag
}
