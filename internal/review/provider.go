// Package review is the session-scoped façade over the ReviewBoard API:
// it maps wire payloads to domain values, caches the repository list, and
// orchestrates the concurrent file-content fetch.
package review

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rkapoor/rb/internal/api"
	"github.com/rkapoor/rb/internal/models"
)

// Progress reports fractional completion of a long-running operation.
// Called from worker goroutines; the caller marshals to its own output.
type Progress func(text string, fraction float64)

func noProgress(string, float64) {}

// Config holds the connection settings a provider session is built from.
type Config struct {
	URL      string
	Username string
	Password string
	UseRBT   bool
	RepoRoot string
}

// Validate reports missing required fields before any network call.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" || strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return fmt.Errorf("%w: set url, username and password", api.ErrInvalidConfiguration)
	}
	return nil
}

// Provider translates client responses into domain objects for one
// configured session. Build a new provider after configuration changes;
// there is no hidden global instance.
type Provider struct {
	client *api.Client

	mu    sync.Mutex
	repos []models.Repository
}

// NewProvider validates cfg and builds a provider bound to it.
func NewProvider(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{client: api.NewClient(cfg.URL, cfg.Username, cfg.Password)}, nil
}

// ReviewURL returns the browsable URL of a review request.
func (p *Provider) ReviewURL(review models.Review) string {
	return p.client.BaseURL() + "/r/" + review.ID + "/"
}

// ListReviews fetches one window of review requests. Empty filter values
// are omitted. Total comes from the server; offset echoes the request.
func (p *Provider) ListReviews(ctx context.Context, fromUser, toUser, status, repositoryID string, start, count int) (models.Page[models.Review], error) {
	list, err := p.client.ListReviewRequests(ctx, fromUser, toUser, status, repositoryID, start, count)
	if err != nil {
		return models.Page[models.Review]{}, err
	}

	reviews := make([]models.Review, 0, len(list.ReviewRequests))
	for _, req := range list.ReviewRequests {
		review := models.Review{
			ID:          req.ID.String(),
			Summary:     req.Summary,
			Description: req.Description,
			Branch:      req.Branch,
			Status:      models.ReviewStatus(req.Status),
			LastUpdated: req.LastUpdated,
		}
		for _, person := range req.TargetPeople {
			review.TargetPeople = append(review.TargetPeople, person.Title)
		}
		for _, group := range req.TargetGroups {
			review.TargetGroups = append(review.TargetGroups, group.Title)
		}
		if req.Links != nil && req.Links.Submitter != nil {
			review.Submitter = req.Links.Submitter.Title
		}
		if req.Links != nil && req.Links.Repository != nil {
			review.Repository = req.Links.Repository.Title
		}
		reviews = append(reviews, review)
	}
	return models.NewPage(reviews, start, count, list.TotalResults), nil
}

// FileList fetches the file entries of the review's first diff revision,
// without contents. A review with zero diff revisions yields an empty
// list and no further calls.
func (p *Provider) FileList(ctx context.Context, review models.Review) ([]models.File, error) {
	diffs, err := p.client.DiffList(ctx, review.ID)
	if err != nil {
		return nil, err
	}
	if diffs.TotalResults == 0 || len(diffs.Diffs) == 0 {
		return []models.File{}, nil
	}
	revision := strconv.Itoa(diffs.Diffs[0].Revision)

	fileDiffs, err := p.client.FileDiffs(ctx, review.ID, revision)
	if err != nil {
		return nil, err
	}
	files := make([]models.File, 0, len(fileDiffs.Files))
	for _, fd := range fileDiffs.Files {
		files = append(files, models.File{
			FileID:         fd.ID.String(),
			SourcePath:     fd.SourceFile,
			DestPath:       fd.DestFile,
			SourceRevision: fd.SourceRevision,
			DiffRevision:   revision,
		})
	}
	return files, nil
}

// Files fetches the review's files and their before/after contents. The
// two fetches per file run concurrently across all files on one group;
// the join returns only after every fetch settles, and the first failure
// aborts the whole batch with no partial result. Progress advances by
// completed/(2N) as fetches finish.
func (p *Provider) Files(ctx context.Context, review models.Review, progress Progress) ([]models.File, error) {
	if progress == nil {
		progress = noProgress
	}

	diffs, err := p.client.DiffList(ctx, review.ID)
	if err != nil {
		return nil, err
	}
	if diffs.TotalResults == 0 || len(diffs.Diffs) == 0 {
		return []models.File{}, nil
	}
	revision := strconv.Itoa(diffs.Diffs[0].Revision)

	fileDiffs, err := p.client.FileDiffs(ctx, review.ID, revision)
	if err != nil {
		return nil, err
	}

	files := make([]models.File, len(fileDiffs.Files))
	total := 2 * len(fileDiffs.Files)
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, fd := range fileDiffs.Files {
		files[i] = models.File{
			FileID:         fd.ID.String(),
			SourcePath:     fd.SourceFile,
			DestPath:       fd.DestFile,
			SourceRevision: fd.SourceRevision,
			DiffRevision:   revision,
		}

		i := i
		src, dst := fd.Links.OriginalFile, fd.Links.PatchedFile
		srcName, dstName := path.Base(fd.SourceFile), path.Base(fd.DestFile)

		g.Go(func() error {
			progress("Loading "+srcName, float64(completed.Load())/float64(total))
			if src != nil {
				contents, err := p.client.FileContents(gctx, src.Href)
				if err != nil {
					return err
				}
				files[i].SourceContents = contents
			}
			progress("Loaded "+srcName, float64(completed.Add(1))/float64(total))
			return nil
		})
		g.Go(func() error {
			progress("Loading "+dstName, float64(completed.Load())/float64(total))
			if dst != nil {
				contents, err := p.client.FileContents(gctx, dst.Href)
				if err != nil {
					return err
				}
				files[i].DestContents = contents
			}
			progress("Loaded "+dstName, float64(completed.Add(1))/float64(total))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// Comments fetches the published inline comments of a file.
func (p *Provider) Comments(ctx context.Context, review models.Review, file models.File) ([]models.Comment, error) {
	list, err := p.client.DiffComments(ctx, review.ID, file.DiffRevision, file.FileID)
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(list.DiffComments))
	for _, dc := range list.DiffComments {
		comment := models.Comment{
			State:       models.CommentPersisted,
			ID:          dc.ID.String(),
			FileID:      file.FileID,
			Text:        dc.Text,
			FirstLine:   dc.FirstLine,
			NumLines:    dc.NumLines,
			IssueOpened: dc.IssueOpened,
			Timestamp:   dc.Timestamp,
		}
		if dc.Links.User != nil {
			comment.Author = dc.Links.User.Title
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// CreateReviewRequest creates a review request, uploads diffContent as
// its draft diff and publishes the draft fields. The three calls are
// sequential and not atomic: a failure after creation leaves a draft
// review request on the server, which the error message names so the
// user can discard it.
func (p *Provider) CreateReviewRequest(ctx context.Context, summary, description, targetPeople, targetGroups, repositoryID, diffContent string) (string, error) {
	created, err := p.client.CreateReviewRequest(ctx, repositoryID)
	if err != nil {
		return "", err
	}
	id := created.ReviewRequest.ID.String()

	if err := p.client.UploadDiff(ctx, id, diffContent, "/"); err != nil {
		return id, fmt.Errorf("review request %s created but diff upload failed (draft left on server): %w", id, err)
	}
	if err := p.client.UpdateDraft(ctx, id, summary, description, targetGroups, targetPeople, true); err != nil {
		return id, fmt.Errorf("review request %s created but publish failed (draft left on server): %w", id, err)
	}
	return id, nil
}

// UpdateReviewRequest publishes new draft fields on an existing request.
func (p *Provider) UpdateReviewRequest(ctx context.Context, review models.Review, summary, description, targetPeople, targetGroups string) error {
	return p.client.UpdateDraft(ctx, review.ID, summary, description, targetGroups, targetPeople, true)
}

// PublishComments creates a review, posts each drafted comment in list
// order and publishes the review with bodyTop. Progress is monotone and
// reaches exactly 1.0 on success; a single-comment batch is safe (the
// divisor is the comment count, never count-1). On failure the drafts
// remain the caller's to retry.
func (p *Provider) PublishComments(ctx context.Context, review models.Review, comments []models.Comment, bodyTop string, progress Progress) error {
	if progress == nil {
		progress = noProgress
	}

	created, err := p.client.CreateReview(ctx, review.ID, nil)
	if err != nil {
		return err
	}
	reviewID := created.Review.ID.String()

	for i, comment := range comments {
		progress("Publishing comment", float64(i)/float64(len(comments)))
		err := p.client.CreateDiffComment(ctx, review.ID, reviewID, comment.FileID,
			comment.FirstLine, comment.NumLines, comment.Text, comment.IssueOpened)
		if err != nil {
			return err
		}
	}

	progress("Making review public", 1)
	if err := p.client.PublishReview(ctx, review.ID, reviewID, true, bodyTop, ""); err != nil {
		return err
	}
	progress("Review completed", 1)
	return nil
}

// ShipIt records an approval: a ship-it review is created and then
// published. Two sequential calls, no rollback on partial failure.
func (p *Provider) ShipIt(ctx context.Context, review models.Review) error {
	shipIt := true
	created, err := p.client.CreateReview(ctx, review.ID, &shipIt)
	if err != nil {
		return err
	}
	return p.client.PublishReview(ctx, review.ID, created.Review.ID.String(), true, "", "")
}

// Submit closes the review request as submitted.
func (p *Provider) Submit(ctx context.Context, review models.Review) error {
	return p.client.UpdateStatus(ctx, review.ID, string(models.ReviewStatusSubmitted))
}

// Discard closes the review request as discarded.
func (p *Provider) Discard(ctx context.Context, review models.Review) error {
	return p.client.UpdateStatus(ctx, review.ID, string(models.ReviewStatusDiscarded))
}

// Repositories returns the repository list, cached after the first
// successful fetch. The cache is a convenience, not a contract: it may
// be invalidated at any time and is refetched transparently.
func (p *Provider) Repositories(ctx context.Context) ([]models.Repository, error) {
	p.mu.Lock()
	cached := p.repos
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	list, err := p.client.Repositories(ctx, 200)
	if err != nil {
		return nil, err
	}
	repos := make([]models.Repository, 0, len(list.Repositories))
	for _, entry := range list.Repositories {
		repos = append(repos, models.Repository{ID: entry.ID.String(), Name: entry.Name})
	}

	p.mu.Lock()
	p.repos = repos
	p.mu.Unlock()
	return repos, nil
}

// InvalidateRepositories drops the cached repository list.
func (p *Provider) InvalidateRepositories() {
	p.mu.Lock()
	p.repos = nil
	p.mu.Unlock()
}

// RepositoryByName resolves a repository by display name.
func (p *Provider) RepositoryByName(ctx context.Context, name string) (models.Repository, error) {
	repos, err := p.Repositories(ctx)
	if err != nil {
		return models.Repository{}, err
	}
	for _, repo := range repos {
		if repo.Name == name {
			return repo, nil
		}
	}
	return models.Repository{}, fmt.Errorf("repository %q not registered on the server", name)
}

// Groups lists review groups matching the prefix, for autocomplete.
func (p *Provider) Groups(ctx context.Context, q string) ([]api.Group, error) {
	list, err := p.client.Groups(ctx, q, 10)
	if err != nil {
		return nil, err
	}
	return list.Groups, nil
}

// Users lists user accounts matching the prefix, for autocomplete.
func (p *Provider) Users(ctx context.Context, q string) ([]api.User, error) {
	list, err := p.client.Users(ctx, q)
	if err != nil {
		return nil, err
	}
	return list.Users, nil
}
