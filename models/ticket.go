package models

import "time"

// SupportTicket is a user support request. Creation sends an acknowledgement
// mail to the requester.
type SupportTicket struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;index" json:"email"`
	Subject   string    `gorm:"size:255;not null" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	// Status is "open", "answered" or "closed".
	Status  string       `gorm:"size:32;not null;default:open" json:"status"`
	Replies []AdminReply `gorm:"foreignKey:TicketID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"replies,omitempty"`
}

// AdminReply is an administrator answer on a support ticket; posting one mails
// the requester.
type AdminReply struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	TicketID   uint      `gorm:"index;not null" json:"ticketId"`
	AdminEmail string    `gorm:"size:255;not null" json:"adminEmail"`
	Message    string    `gorm:"type:text;not null" json:"message"`
}
