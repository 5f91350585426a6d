package models

import (
	"time"
)

// ChatMessage is the durable record of one room message. RoomID is the id of
// the group the room belongs to. History reads back sorted by SentAt ascending.
type ChatMessage struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	RoomID string `json:"room_id" gorm:"not null;size:36;index:idx_room_time"`

	SenderID   string `json:"sender_id" gorm:"not null;size:36;index"`
	SenderName string `json:"sender" gorm:"not null;size:100"`
	Body       string `json:"message" gorm:"type:text;not null"`

	SentAt time.Time `json:"time" gorm:"not null;index:idx_room_time"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
