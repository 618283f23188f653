package models

import "time"

// ReviewStatus is the lifecycle state of a review request.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusSubmitted ReviewStatus = "submitted"
	ReviewStatusDiscarded ReviewStatus = "discarded"
)

// Review is a review request as shown in listings. Values are rebuilt
// fresh on every fetch; there is no long-lived identity map.
type Review struct {
	ID           string
	Summary      string
	Description  string
	Branch       string
	Status       ReviewStatus
	LastUpdated  time.Time
	Submitter    string
	Repository   string
	TargetPeople []string
	TargetGroups []string
}

// File is one changed file in a review's diff revision. Contents are
// populated lazily by separate fetches; nil means absent on that side
// (a newly added or deleted file).
type File struct {
	FileID         string
	SourcePath     string
	DestPath       string
	SourceRevision string
	DiffRevision   string
	SourceContents *string
	DestContents   *string
}

// CommentState distinguishes locally drafted comments from ones the
// server has persisted and assigned an id.
type CommentState string

const (
	CommentDraft     CommentState = "draft"
	CommentPersisted CommentState = "persisted"
)

// Comment is an inline comment on a line range of a file diff. ID is set
// only in the Persisted state.
type Comment struct {
	State       CommentState
	ID          string
	FileID      string
	Text        string
	FirstLine   int
	NumLines    int
	IssueOpened bool
	Timestamp   time.Time
	Author      string
}

// Repository is a server-registered repository a review request can
// target.
type Repository struct {
	ID   string
	Name string
}
