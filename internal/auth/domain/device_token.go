package domain

import "time"

// DeviceToken is a Firebase Cloud Messaging token of a device that receives
// bill notifications
type DeviceToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ClientID   string    `json:"client_id" gorm:"index"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DeviceToken) TableName() string {
	return "device_tokens"
}
