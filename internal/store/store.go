package store

import (
	"context"
	"time"
)

// DraftComment is an inline comment authored locally and not yet
// published to the server. ReviewID/FileID key it to the review request
// and file diff it belongs to; FilePath is kept for display only.
type DraftComment struct {
	ID          string
	ReviewID    string
	FileID      string
	FilePath    string
	FirstLine   int
	NumLines    int
	Text        string
	IssueOpened bool
	CreatedAt   time.Time
}

// Store persists draft comments between CLI invocations. Drafts list in
// insertion order, which is the order they are published in.
type Store interface {
	CreateDraft(ctx context.Context, d *DraftComment) error
	GetDraft(ctx context.Context, id string) (*DraftComment, error)
	ListDrafts(ctx context.Context, reviewID string) ([]*DraftComment, error)
	DeleteDraft(ctx context.Context, id string) error
	DeleteDraftsForReview(ctx context.Context, reviewID string) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}
