package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered user
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Password     string             `bson:"password" json:"-"` // Password is not returned in JSON
	Gender       string             `bson:"gender,omitempty" json:"gender,omitempty"`
	AvatarKey    string             `bson:"avatar_key,omitempty" json:"avatar_key,omitempty"`
	Bio          string             `bson:"bio,omitempty" json:"bio,omitempty"`
	Status       string             `bson:"status" json:"status"` // pending, verified, active
	Role         string             `bson:"role" json:"role"`     // user, admin
	OTP          string             `bson:"otp" json:"-"`         // OTP for email verification
	OTPExpiresAt time.Time          `bson:"otp_expires_at,omitempty" json:"-"`
	ResetToken   string             `bson:"reset_token,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}
