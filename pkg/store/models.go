package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	Email     string `gorm:"index"`
	ImageURL  string
	Credits   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type ChannelModel struct {
	UserID          string `gorm:"primaryKey"`
	ChannelID       string `gorm:"primaryKey"`
	Title           string `gorm:"not null"`
	Description     string
	Thumbnail       string
	SubscriberCount string
	VideoCount      string
	ViewCount       string
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

type VideoIdeaModel struct {
	ID          string `gorm:"primaryKey"`
	ChannelID   string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	Script      string `gorm:"type:text"`
	Plan        string `gorm:"type:text"`
	Tags        string
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type AssetModel struct {
	ID           string `gorm:"primaryKey"`
	ChannelID    string `gorm:"not null;index"`
	GeneratorID  string `gorm:"uniqueIndex;not null"`
	Status       string `gorm:"not null"`
	URL          string
	ObjectKey    string
	AssetType    string         `gorm:"not null"`
	AgentPayload datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null;index"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

type ReelModel struct {
	ID          string `gorm:"primaryKey"`
	ChannelID   string `gorm:"not null;index"`
	GeneratorID string `gorm:"uniqueIndex;not null"`
	Status      string `gorm:"not null"`
	Title       string `gorm:"not null"`
	Description string
	URL         string
	VideoIdeaID *string   `gorm:"index"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type ReelAssetModel struct {
	ID          string `gorm:"primaryKey"`
	ReelID      string `gorm:"not null;index"`
	GeneratorID string `gorm:"not null"`
	Status      string `gorm:"not null"`
	URL         string
	AssetType   string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}
