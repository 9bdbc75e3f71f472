package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// BookInfo is the denormalized view aggregation consumers need.
type BookInfo struct {
	BookID        snowflake.ID
	Title         string
	PublisherID   snowflake.ID
	PublisherName string
}

type Service interface {
	// ValidatePlaybackSession confirms the session exists and belongs to
	// the given child and book.
	ValidatePlaybackSession(ctx context.Context, sessionID, childID, bookID snowflake.ID) error
	// EnsureChildAndBook confirms both references resolve.
	EnsureChildAndBook(ctx context.Context, childID, bookID snowflake.ID) error
	// BookInfoByID resolves publisher/title metadata for the given books.
	BookInfoByID(ctx context.Context, bookIDs []snowflake.ID) (map[snowflake.ID]BookInfo, error)
	// AssetDurations returns the known positive video durations per book.
	AssetDurations(ctx context.Context, bookIDs []snowflake.ID) (map[snowflake.ID]int64, error)
	// GetPublisher loads a publisher for payout execution.
	GetPublisher(ctx context.Context, publisherID snowflake.ID) (*Publisher, error)
}

var (
	ErrChildNotFound     = errors.New("child_not_found")
	ErrBookNotFound      = errors.New("book_not_found")
	ErrSessionNotFound   = errors.New("playback_session_not_found")
	ErrPublisherNotFound = errors.New("publisher_not_found")
)
