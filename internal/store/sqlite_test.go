package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestDraftCommentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Create
	d := &DraftComment{
		ReviewID:    "42",
		FileID:      "311",
		FilePath:    "internal/api/client.go",
		FirstLine:   10,
		NumLines:    3,
		Text:        "tighten this error path",
		IssueOpened: true,
	}
	err := s.CreateDraft(ctx, d)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.False(t, d.CreatedAt.IsZero())

	// Get
	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", got.ReviewID)
	assert.Equal(t, "311", got.FileID)
	assert.Equal(t, "internal/api/client.go", got.FilePath)
	assert.Equal(t, 10, got.FirstLine)
	assert.Equal(t, 3, got.NumLines)
	assert.Equal(t, "tighten this error path", got.Text)
	assert.True(t, got.IssueOpened)

	// List
	drafts, err := s.ListDrafts(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	drafts, err = s.ListDrafts(ctx, "99")
	require.NoError(t, err)
	assert.Len(t, drafts, 0)

	// Delete
	err = s.DeleteDraft(ctx, d.ID)
	require.NoError(t, err)

	_, err = s.GetDraft(ctx, d.ID)
	assert.Error(t, err)
}

func TestListDrafts_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Same-millisecond inserts must still list in insertion order.
	for i := 0; i < 5; i++ {
		d := &DraftComment{
			ReviewID:  "42",
			FileID:    "311",
			FirstLine: i + 1,
			NumLines:  1,
			Text:      fmt.Sprintf("comment %d", i),
		}
		require.NoError(t, s.CreateDraft(ctx, d))
	}

	drafts, err := s.ListDrafts(ctx, "42")
	require.NoError(t, err)
	require.Len(t, drafts, 5)
	for i, d := range drafts {
		assert.Equal(t, fmt.Sprintf("comment %d", i), d.Text)
	}
}

func TestListDrafts_ScopedToReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDraft(ctx, &DraftComment{ReviewID: "42", FileID: "311", Text: "a"}))
	require.NoError(t, s.CreateDraft(ctx, &DraftComment{ReviewID: "43", FileID: "400", Text: "b"}))

	drafts, err := s.ListDrafts(ctx, "42")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "a", drafts[0].Text)
}

func TestDeleteDraftsForReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDraft(ctx, &DraftComment{ReviewID: "42", FileID: "311", Text: "a"}))
	require.NoError(t, s.CreateDraft(ctx, &DraftComment{ReviewID: "42", FileID: "312", Text: "b"}))
	require.NoError(t, s.CreateDraft(ctx, &DraftComment{ReviewID: "43", FileID: "400", Text: "c"}))

	n, err := s.DeleteDraftsForReview(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	drafts, err := s.ListDrafts(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, drafts, 0)

	// Other reviews untouched
	drafts, err = s.ListDrafts(ctx, "43")
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestGetDraft_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDraft(context.Background(), "nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDeleteDraft_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteDraft(context.Background(), "nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
