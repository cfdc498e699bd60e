package models

import (
	"time"
)

// MessageStatus represents the status of a message
type MessageStatus string

const (
	MessageStatusSent MessageStatus = "sent"
	MessageStatusRead MessageStatus = "read"
)

// Message is a direct message between two users
type Message struct {
	BaseModel
	SenderID   string        `gorm:"size:36;index;not null" json:"senderId"`
	ReceiverID string        `gorm:"size:36;index;not null" json:"receiverId"`
	Subject    string        `gorm:"size:255" json:"subject,omitempty"`
	Content    string        `gorm:"type:text;not null" json:"content"`
	Status     MessageStatus `gorm:"size:10;default:'sent'" json:"status"`
	ReadAt     *time.Time    `json:"readAt,omitempty"`
}

// CanMessage applies the messaging rules: patients and doctors talk to each
// other, admins talk to anyone.
func CanMessage(from, to Role) bool {
	if from == RoleAdmin || to == RoleAdmin {
		return true
	}
	return (from == RolePatient && to == RoleDoctor) || (from == RoleDoctor && to == RolePatient)
}
