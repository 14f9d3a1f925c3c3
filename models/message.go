package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one chat message between a buyer and a seller
type Message struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationKey string             `bson:"conversation_key" json:"-"` // sorted "<userA>|<userB>|<productID>"
	SenderID        string             `bson:"sender_id" json:"sender_id"`
	RecipientID     string             `bson:"recipient_id" json:"recipient_id"`
	ProductID       string             `bson:"product_id,omitempty" json:"product_id,omitempty"`
	Body            string             `bson:"body" json:"body"`
	SentAt          time.Time          `bson:"sent_at" json:"sent_at"`
	ReadAt          *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
}
