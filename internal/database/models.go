package database

import "time"

// Account is one monitored Cloudflare account. The API token is stored
// Fernet-encrypted; use crypto.Decrypt before handing it to the API client.
type Account struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID    string    `gorm:"uniqueIndex;not null" json:"account_id"`
	APIToken     string    `gorm:"not null" json:"-"`
	FriendlyName string    `gorm:"not null" json:"friendly_name"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
