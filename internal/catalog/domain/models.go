// Package domain contains persistence models for the streaming catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Publisher owns books and receives revenue-share payouts.
type Publisher struct {
	ID                       snowflake.ID `gorm:"primaryKey" json:"id"`
	Name                     string       `gorm:"type:text;not null" json:"name"`
	StripeAccountID          *string      `gorm:"type:text" json:"stripe_account_id,omitempty"`
	StripeOnboardingComplete bool         `gorm:"not null;default:false" json:"stripe_onboarding_complete"`
	CreatedAt                time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Publisher) TableName() string { return "publishers" }

// Book is a single catalog title.
type Book struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	PublisherID snowflake.ID `gorm:"not null;index" json:"publisher_id"`
	Title       string       `gorm:"type:text;not null" json:"title"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Book) TableName() string { return "books" }

// VideoAsset carries playback metadata for a book's video.
// Duration feeds completion-rate computation; zero or missing duration
// excludes the book from completion averages.
type VideoAsset struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	BookID          snowflake.ID `gorm:"not null;uniqueIndex" json:"book_id"`
	DurationSeconds int64        `gorm:"not null;default:0" json:"duration_seconds"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (VideoAsset) TableName() string { return "video_assets" }

// ChildProfile identifies a viewer for attribution and distinct-child counts.
type ChildProfile struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	DisplayName string       `gorm:"type:text;not null" json:"display_name"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ChildProfile) TableName() string { return "child_profiles" }

// PlaybackSession groups usage events from one continuous playback attempt.
type PlaybackSession struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ChildID   snowflake.ID `gorm:"not null;index" json:"child_id"`
	BookID    snowflake.ID `gorm:"not null;index" json:"book_id"`
	IssuedAt  time.Time    `gorm:"not null" json:"issued_at"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PlaybackSession) TableName() string { return "playback_sessions" }
