package models

import (
	"time"

	"gorm.io/gorm"
)

// Chat is a conversation about one property between a buyer and its owner.
type Chat struct {
	gorm.Model
	BuyerID    uint `json:"buyerId" gorm:"uniqueIndex:idx_chat_participants;not null"`
	OwnerID    uint `json:"ownerId" gorm:"uniqueIndex:idx_chat_participants;not null"`
	PropertyID uint `json:"propertyId" gorm:"uniqueIndex:idx_chat_participants;not null"`
}

func (c *Chat) IsParticipant(userID uint) bool {
	return c.BuyerID == userID || c.OwnerID == userID
}

// Counterpart returns the other participant.
func (c *Chat) Counterpart(userID uint) uint {
	if c.BuyerID == userID {
		return c.OwnerID
	}
	return c.BuyerID
}

type ChatMessage struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	ChatID    uint      `json:"chatId" gorm:"index;not null"`
	SenderID  uint      `json:"senderId" gorm:"not null"`
	Content   string    `json:"content" gorm:"not null"`
	Read      bool      `json:"read" gorm:"default:false"`
	CreatedAt time.Time `json:"createdAt"`
}

type DirectMessage struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	SenderID   uint      `json:"senderId" gorm:"index;not null"`
	ReceiverID uint      `json:"receiverId" gorm:"index;not null"`
	Content    string    `json:"content" gorm:"not null"`
	Read       bool      `json:"read" gorm:"default:false"`
	CreatedAt  time.Time `json:"createdAt"`
}
