package api

import (
	"encoding/json"
	"time"
)

// Response is the envelope every ReviewBoard payload embeds: stat is "ok"
// or "fail", and err carries code/msg on failure. Error codes arrive as
// JSON numbers; json.Number keeps the comparison textual.
type Response struct {
	Stat string         `json:"stat"`
	Err  *ResponseError `json:"err,omitempty"`
}

// ResponseError is the err object of a failed response.
type ResponseError struct {
	Code json.Number `json:"code"`
	Msg  string      `json:"msg"`
}

func (r *Response) envelope() *Response { return r }

// Link is a titled hyperlink as embedded throughout ReviewBoard payloads.
type Link struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// ReviewRequestList is the review-requests collection payload.
type ReviewRequestList struct {
	Response
	TotalResults   int             `json:"total_results"`
	ReviewRequests []ReviewRequest `json:"review_requests"`
}

// ReviewRequest is a single review request entry.
type ReviewRequest struct {
	ID           json.Number         `json:"id"`
	Summary      string              `json:"summary"`
	Description  string              `json:"description"`
	Branch       string              `json:"branch"`
	Status       string              `json:"status"`
	LastUpdated  time.Time           `json:"last_updated"`
	TargetPeople []Link              `json:"target_people"`
	TargetGroups []Link              `json:"target_groups"`
	Links        *ReviewRequestLinks `json:"links"`
}

// ReviewRequestLinks holds the submitter/repository back-links.
type ReviewRequestLinks struct {
	Submitter  *Link `json:"submitter"`
	Repository *Link `json:"repository"`
}

// DiffList is the diff-revisions collection for a review request.
type DiffList struct {
	Response
	TotalResults int    `json:"total_results"`
	Diffs        []Diff `json:"diffs"`
}

// Diff is one uploaded diff revision.
type Diff struct {
	Revision int `json:"revision"`
}

// FileDiffList is the files collection for one diff revision.
type FileDiffList struct {
	Response
	TotalResults int        `json:"total_results"`
	Files        []FileDiff `json:"files"`
}

// FileDiff is one changed file in a diff revision. The content links are
// fetched separately, keyed by href.
type FileDiff struct {
	ID             json.Number   `json:"id"`
	SourceFile     string        `json:"source_file"`
	DestFile       string        `json:"dest_file"`
	SourceRevision string        `json:"source_revision"`
	Links          FileDiffLinks `json:"links"`
}

// FileDiffLinks holds the original/patched content hrefs.
type FileDiffLinks struct {
	OriginalFile *Link `json:"original_file"`
	PatchedFile  *Link `json:"patched_file"`
}

// CommentList is the diff-comments collection for a file.
type CommentList struct {
	Response
	TotalResults int           `json:"total_results"`
	DiffComments []DiffComment `json:"diff_comments"`
}

// DiffComment is one published inline comment.
type DiffComment struct {
	ID          json.Number      `json:"id"`
	Text        string           `json:"text"`
	FirstLine   int              `json:"first_line"`
	NumLines    int              `json:"num_lines"`
	IssueOpened bool             `json:"issue_opened"`
	Timestamp   time.Time        `json:"timestamp"`
	Links       DiffCommentLinks `json:"links"`
}

// DiffCommentLinks holds the comment author link.
type DiffCommentLinks struct {
	User *Link `json:"user"`
}

// ReviewResult is the payload of a created review.
type ReviewResult struct {
	Response
	Review struct {
		ID json.Number `json:"id"`
	} `json:"review"`
}

// ReviewRequestResult is the payload of a created review request.
type ReviewRequestResult struct {
	Response
	ReviewRequest struct {
		ID json.Number `json:"id"`
	} `json:"review_request"`
}

// RepositoryList is the repositories collection payload.
type RepositoryList struct {
	Response
	TotalResults int               `json:"total_results"`
	Repositories []RepositoryEntry `json:"repositories"`
}

// RepositoryEntry is one registered repository.
type RepositoryEntry struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

// GroupList is the groups collection payload.
type GroupList struct {
	Response
	Groups []Group `json:"groups"`
}

// Group is a review group usable as a comment target.
type Group struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// UserList is the users collection payload.
type UserList struct {
	Response
	Users []User `json:"users"`
}

// User is a server account, matched by username prefix in autocomplete.
type User struct {
	Username string `json:"username"`
	FullName string `json:"fullname"`
}
