package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order statuses.
const (
	OrderStatusPlaced    = "placed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OrderItem is a snapshot of a product at purchase time
type OrderItem struct {
	ProductID  string `bson:"product_id" json:"product_id"`
	SellerID   string `bson:"seller_id" json:"seller_id"`
	Title      string `bson:"title" json:"title"`
	PriceCents int64  `bson:"price_cents" json:"price_cents"`
	ImageKey   string `bson:"image_key,omitempty" json:"image_key,omitempty"`
}

// Order represents a completed checkout
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BuyerID         string             `bson:"buyer_id" json:"buyer_id"`
	Items           []OrderItem        `bson:"items" json:"items"`
	TotalCents      int64              `bson:"total_cents" json:"total_cents"`
	Currency        string             `bson:"currency" json:"currency"`
	ShippingName    string             `bson:"shipping_name" json:"shipping_name"`
	ShippingAddress string             `bson:"shipping_address" json:"shipping_address"`
	PaymentMethod   string             `bson:"payment_method" json:"payment_method"` // cod for now, capture happens off platform
	PaymentStatus   string             `bson:"payment_status" json:"payment_status"` // pending, captured
	Status          string             `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}
