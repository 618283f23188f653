package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// URL template segments. Ordering is fixed by the server's API shape,
// e.g. /api/review-requests/{id}/diffs/{revision}/files/.
const (
	segAPI            = "api"
	segReviewRequests = "review-requests"
	segDiffs          = "diffs"
	segFiles          = "files"
	segDiffComments   = "diff-comments"
	segDraft          = "draft"
	segReviews        = "reviews"
	segRepositories   = "repositories"
	segGroups         = "groups"
	segUsers          = "users"
)

// codeLoginFailed is the wire error code the server uses for rejected
// credentials. It classifies distinctly from all other server errors.
const codeLoginFailed = "104"

// Client speaks the ReviewBoard 2.0 web API: one method per endpoint, a
// uniform envelope check after every call, Basic auth on every
// authenticated request.
type Client struct {
	baseURL  string
	username string
	password string
}

// NewClient creates a client for the server at baseURL with stored
// credentials.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
	}
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string { return c.baseURL }

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func (c *Client) auth() string {
	return basicAuth(c.username, c.password)
}

type responder interface {
	envelope() *Response
}

// checkResponse classifies a non-ok envelope: code 104 is invalid
// credentials, anything else is a server error carrying the server's
// message.
func checkResponse(r responder) error {
	env := r.envelope()
	if strings.EqualFold(env.Stat, "ok") {
		return nil
	}
	code, msg := "", "unknown error"
	if env.Err != nil {
		code = env.Err.Code.String()
		msg = env.Err.Msg
	}
	if code == codeLoginFailed {
		return fmt.Errorf("%w: server: %s", ErrInvalidCredentials, msg)
	}
	return &ServerError{Code: code, Message: msg}
}

func (c *Client) call(ctx context.Context, b *RequestBuilder, out responder) error {
	if err := b.Header("Authorization", c.auth()).AsJSON(ctx, out); err != nil {
		return err
	}
	return checkResponse(out)
}

// ListReviewRequests lists review requests filtered by author, reviewer,
// status and repository, windowed by start/count. Nil-equivalent (empty)
// filters are omitted from the query.
func (c *Client) ListReviewRequests(ctx context.Context, fromUser, toUser, status, repositoryID string, start, count int) (*ReviewRequestList, error) {
	b := Get(c.baseURL).Route(segAPI).Route(segReviewRequests).Slash()
	if toUser != "" {
		b.Query("to-users", toUser)
	}
	if fromUser != "" {
		b.Query("from-user", fromUser)
	}
	if repositoryID != "" {
		b.Query("repository", repositoryID)
	}
	b.Query("start", start).Query("max-results", count).Query("status", status)

	var result ReviewRequestList
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DiffList lists the diff revisions of a review request.
func (c *Client) DiffList(ctx context.Context, reviewRequestID string) (*DiffList, error) {
	b := Get(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).Route(segDiffs).Slash()
	var result DiffList
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FileDiffs lists the files of one diff revision.
func (c *Client) FileDiffs(ctx context.Context, reviewRequestID, revision string) (*FileDiffList, error) {
	b := Get(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).
		Route(segDiffs).Route(revision).Route(segFiles).Slash()
	var result FileDiffList
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DiffComments lists the published inline comments of a file within a
// diff revision.
func (c *Client) DiffComments(ctx context.Context, reviewRequestID, revision, fileID string) (*CommentList, error) {
	b := Get(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).
		Route(segDiffs).Route(revision).Route(segFiles).Route(fileID).Route(segDiffComments).Slash()
	var result CommentList
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateReview creates a review object on a review request. shipIt nil
// leaves the flag unset; true marks approval immediately.
func (c *Client) CreateReview(ctx context.Context, reviewRequestID string, shipIt *bool) (*ReviewResult, error) {
	b := Post(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).Route(segReviews).Slash()
	if shipIt != nil {
		b.Field("ship_it", *shipIt)
	}
	var result ReviewResult
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateDiffComment posts an inline comment on a line range of a file diff.
func (c *Client) CreateDiffComment(ctx context.Context, reviewRequestID, reviewID, fileDiffID string, firstLine, numLines int, text string, issueOpened bool) error {
	b := Post(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).
		Route(segReviews).Route(reviewID).Route(segDiffComments).Slash().
		Field("filediff_id", fileDiffID).
		Field("first_line", firstLine).
		Field("num_lines", numLines).
		Field("text", text).
		Field("issue_opened", issueOpened)
	var result Response
	return c.call(ctx, b, &result)
}

// PublishReview updates a review's public flag and top/bottom body text.
func (c *Client) PublishReview(ctx context.Context, reviewRequestID, reviewID string, public bool, bodyTop, bodyBottom string) error {
	b := Put(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).
		Route(segReviews).Route(reviewID).Slash().
		Field("public", public)
	if bodyBottom != "" {
		b.Field("body_bottom", bodyBottom)
	}
	if bodyTop != "" {
		b.Field("body_top", bodyTop)
	}
	var result Response
	return c.call(ctx, b, &result)
}

// UpdateDraft sets a review request's draft fields and publishes them.
func (c *Client) UpdateDraft(ctx context.Context, reviewRequestID, summary, description, targetGroups, targetPeople string, public bool) error {
	b := Post(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).Route(segDraft).Slash().
		Field("summary", summary).
		Field("description", description).
		Field("target_groups", targetGroups).
		Field("target_people", targetPeople).
		Field("public", public)
	var result Response
	return c.call(ctx, b, &result)
}

// UpdateStatus moves a review request to "submitted" or "discarded".
func (c *Client) UpdateStatus(ctx context.Context, reviewRequestID, status string) error {
	b := Put(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).Slash().
		Field("status", status)
	var result Response
	return c.call(ctx, b, &result)
}

// UploadDiff uploads diff content as the review request's draft diff.
func (c *Client) UploadDiff(ctx context.Context, reviewRequestID, content, basedir string) error {
	b := Post(c.baseURL).Route(segAPI).Route(segReviewRequests).Route(reviewRequestID).Route(segDiffs).Slash().
		Field("basedir", basedir).
		File("path", "rb.diff", []byte(content))
	var result Response
	return c.call(ctx, b, &result)
}

// CreateReviewRequest creates a bare review request against a repository.
func (c *Client) CreateReviewRequest(ctx context.Context, repositoryID string) (*ReviewRequestResult, error) {
	b := Post(c.baseURL).Route(segAPI).Route(segReviewRequests).Slash().
		Field("repository", repositoryID)
	var result ReviewRequestResult
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Repositories lists up to max registered repositories.
func (c *Client) Repositories(ctx context.Context, max int) (*RepositoryList, error) {
	b := Get(c.baseURL).Route(segAPI).Route(segRepositories).Slash().
		Query("max-results", max)
	var result RepositoryList
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Groups lists review groups matching the query prefix.
func (c *Client) Groups(ctx context.Context, q string, max int) (*GroupList, error) {
	b := Get(c.baseURL).Route(segAPI).Route(segGroups).Slash().
		Query("q", q).Query("max-results", max)
	var result GroupList
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Users lists user accounts matching the query prefix.
func (c *Client) Users(ctx context.Context, q string) (*UserList, error) {
	b := Get(c.baseURL).Route(segAPI).Route(segUsers).Slash().
		Query("q", q)
	var result UserList
	if err := c.call(ctx, b, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FileContents fetches file content by the absolute href embedded in a
// file diff. A 404 means the file legitimately has no content on that
// side (added or deleted file) and yields nil, not an error.
func (c *Client) FileContents(ctx context.Context, href string) (*string, error) {
	resp, err := Get(href).Header("Authorization", c.auth()).Do(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectivityError{Op: "read contents", Err: err}
	}
	s := string(data)
	return &s, nil
}

// TestConnection validates explicit credentials against a server URL
// without touching stored configuration, so it can run before settings
// are persisted.
func TestConnection(ctx context.Context, baseURL, username, password string) error {
	var result Response
	err := Get(strings.TrimRight(baseURL, "/")).Route(segAPI).Slash().
		Header("Authorization", basicAuth(username, password)).
		AsJSON(ctx, &result)
	if err != nil {
		return err
	}
	return checkResponse(&result)
}
