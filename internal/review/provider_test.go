package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkapoor/rb/internal/api"
	"github.com/rkapoor/rb/internal/models"
)

func newTestProvider(t *testing.T, handler http.Handler) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewProvider(Config{URL: srv.URL, Username: "alice", Password: "secret"})
	require.NoError(t, err)
	return p, srv
}

// progressRecorder collects progress callbacks from worker goroutines.
type progressRecorder struct {
	mu        sync.Mutex
	fractions []float64
}

func (r *progressRecorder) record(text string, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fractions = append(r.fractions, fraction)
}

func (r *progressRecorder) last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fractions) == 0 {
		return -1
	}
	return r.fractions[len(r.fractions)-1]
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"complete", Config{URL: "http://rb", Username: "a", Password: "b"}, true},
		{"missing url", Config{Username: "a", Password: "b"}, false},
		{"missing username", Config{URL: "http://rb", Password: "b"}, false},
		{"missing password", Config{URL: "http://rb", Username: "a"}, false},
		{"blank url", Config{URL: "   ", Username: "a", Password: "b"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, api.ErrInvalidConfiguration))
			}
		})
	}
}

func TestNewProviderRejectsIncompleteConfig(t *testing.T) {
	_, err := NewProvider(Config{URL: "http://rb"})
	assert.True(t, errors.Is(err, api.ErrInvalidConfiguration))
}

func TestListReviewsPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.URL.Query().Get("to-users"))
		assert.Equal(t, "", r.URL.Query().Get("from-user"))
		fmt.Fprint(w, `{"stat":"ok","total_results":60,"review_requests":[`)
		for i := 0; i < 25; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":%d,"summary":"change %d","status":"pending",
				"target_people":[{"title":"alice"}],"target_groups":[{"title":"platform"}],
				"links":{"submitter":{"title":"bob"},"repository":{"title":"core"}}}`, i+1, i+1)
		}
		fmt.Fprint(w, `]}`)
	})
	p, _ := newTestProvider(t, mux)

	page, err := p.ListReviews(context.Background(), "", "alice", "pending", "", 0, 25)
	require.NoError(t, err)

	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 25, page.Count)
	assert.Equal(t, 60, page.Total)
	assert.Len(t, page.Items, 25)
	assert.LessOrEqual(t, len(page.Items), page.Count)
	assert.True(t, page.HasMore())

	first := page.Items[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "change 1", first.Summary)
	assert.Equal(t, models.ReviewStatusPending, first.Status)
	assert.Equal(t, "bob", first.Submitter)
	assert.Equal(t, "core", first.Repository)
	assert.Equal(t, []string{"alice"}, first.TargetPeople)
	assert.Equal(t, []string{"platform"}, first.TargetGroups)
}

func TestListReviewsEchoesOffset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40", r.URL.Query().Get("start"))
		fmt.Fprint(w, `{"stat":"ok","total_results":60,"review_requests":[{"id":41,"summary":"s","status":"pending"}]}`)
	})
	p, _ := newTestProvider(t, mux)

	page, err := p.ListReviews(context.Background(), "", "", "pending", "", 40, 25)
	require.NoError(t, err)
	assert.Equal(t, 40, page.Offset)
	assert.Equal(t, 60, page.Total)
}

func TestFilesZeroDiffsNoFetches(t *testing.T) {
	var contentCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/42/diffs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","total_results":0,"diffs":[]}`)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		contentCalls.Add(1)
	})
	p, _ := newTestProvider(t, mux)

	files, err := p.Files(context.Background(), models.Review{ID: "42"}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, int64(0), contentCalls.Load())
}

// fakeDiffHandler serves one review with the given files, pointing the
// content hrefs back at the test server's /media/ routes.
func fakeDiffHandler(contentCalls *atomic.Int64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/42/diffs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","total_results":1,"diffs":[{"revision":2}]}`)
	})
	mux.HandleFunc("/api/review-requests/42/diffs/2/files/", func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		fmt.Fprintf(w, `{"stat":"ok","total_results":2,"files":[
			{"id":311,"source_file":"a.go","dest_file":"a.go","source_revision":"3",
			 "links":{"original_file":{"href":"%s/media/311/orig"},"patched_file":{"href":"%s/media/311/patched"}}},
			{"id":312,"source_file":"b.go","dest_file":"b.go","source_revision":"3",
			 "links":{"original_file":{"href":"%s/media/312/orig"},"patched_file":{"href":"%s/media/312/patched"}}}
		]}`, base, base, base, base)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		contentCalls.Add(1)
		fmt.Fprintf(w, "contents of %s", r.URL.Path)
	})
	return mux
}

func TestFilesFetchesTwoPerFile(t *testing.T) {
	var contentCalls atomic.Int64
	p, _ := newTestProvider(t, fakeDiffHandler(&contentCalls))

	rec := &progressRecorder{}
	files, err := p.Files(context.Background(), models.Review{ID: "42"}, rec.record)
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, int64(4), contentCalls.Load())

	assert.Equal(t, "311", files[0].FileID)
	assert.Equal(t, "2", files[0].DiffRevision)
	require.NotNil(t, files[0].SourceContents)
	assert.Equal(t, "contents of /media/311/orig", *files[0].SourceContents)
	require.NotNil(t, files[1].DestContents)
	assert.Equal(t, "contents of /media/312/patched", *files[1].DestContents)

	// Callbacks come from concurrent workers; ordering is not guaranteed,
	// but every fraction stays in range and the final completion is seen.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.fractions)
	for _, f := range rec.fractions {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
	assert.Contains(t, rec.fractions, 1.0)
}

func TestFilesMissingSideYieldsNilContents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/42/diffs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","total_results":1,"diffs":[{"revision":1}]}`)
	})
	mux.HandleFunc("/api/review-requests/42/diffs/1/files/", func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		// Newly added file: the server 404s the original side.
		fmt.Fprintf(w, `{"stat":"ok","total_results":1,"files":[
			{"id":311,"source_file":"new.go","dest_file":"new.go","source_revision":"0",
			 "links":{"original_file":{"href":"%s/media/311/orig"},"patched_file":{"href":"%s/media/311/patched"}}}
		]}`, base, base)
	})
	mux.HandleFunc("/media/311/orig", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/media/311/patched", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "new file contents")
	})
	p, _ := newTestProvider(t, mux)

	files, err := p.Files(context.Background(), models.Review{ID: "42"}, nil)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Nil(t, files[0].SourceContents)
	require.NotNil(t, files[0].DestContents)
	assert.Equal(t, "new file contents", *files[0].DestContents)
}

func TestFilesSingleFailureAbortsBatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/42/diffs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","total_results":1,"diffs":[{"revision":1}]}`)
	})
	mux.HandleFunc("/api/review-requests/42/diffs/1/files/", func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		// The second file's original content points at a dead endpoint.
		fmt.Fprintf(w, `{"stat":"ok","total_results":2,"files":[
			{"id":311,"source_file":"a.go","dest_file":"a.go","source_revision":"3",
			 "links":{"original_file":{"href":"%s/media/311/orig"},"patched_file":{"href":"%s/media/311/patched"}}},
			{"id":312,"source_file":"b.go","dest_file":"b.go","source_revision":"3",
			 "links":{"original_file":{"href":"http://127.0.0.1:1/dead"},"patched_file":{"href":"%s/media/312/patched"}}}
		]}`, base, base, base)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	p, _ := newTestProvider(t, mux)

	files, err := p.Files(context.Background(), models.Review{ID: "42"}, nil)
	require.Error(t, err)
	assert.Nil(t, files)
}

func TestCommentsMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/42/diffs/2/files/311/diff-comments/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","total_results":1,"diff_comments":[
			{"id":9,"text":"tighten this","first_line":10,"num_lines":3,"issue_opened":true,
			 "timestamp":"2015-03-30T18:35:13Z","links":{"user":{"title":"bob"}}}]}`)
	})
	p, _ := newTestProvider(t, mux)

	file := models.File{FileID: "311", DiffRevision: "2"}
	comments, err := p.Comments(context.Background(), models.Review{ID: "42"}, file)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	c := comments[0]
	assert.Equal(t, models.CommentPersisted, c.State)
	assert.Equal(t, "9", c.ID)
	assert.Equal(t, "tighten this", c.Text)
	assert.Equal(t, 10, c.FirstLine)
	assert.Equal(t, 3, c.NumLines)
	assert.True(t, c.IssueOpened)
	assert.Equal(t, "bob", c.Author)
	assert.Equal(t, "311", c.FileID)
}

// publishHandler fakes the create-review / diff-comment / publish trio.
func publishHandler(t *testing.T, postedComments *[]string, published *bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/42/reviews/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","review":{"id":99}}`)
	})
	mux.HandleFunc("/api/review-requests/42/reviews/99/diff-comments/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*postedComments = append(*postedComments, r.PostFormValue("text"))
		fmt.Fprint(w, `{"stat":"ok"}`)
	})
	mux.HandleFunc("/api/review-requests/42/reviews/99/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*published = r.PostFormValue("public") == "true"
		fmt.Fprint(w, `{"stat":"ok"}`)
	})
	return mux
}

func TestPublishCommentsProgress(t *testing.T) {
	var posted []string
	var published bool
	p, _ := newTestProvider(t, publishHandler(t, &posted, &published))

	comments := []models.Comment{
		{State: models.CommentDraft, FileID: "311", Text: "one", FirstLine: 1, NumLines: 1},
		{State: models.CommentDraft, FileID: "311", Text: "two", FirstLine: 5, NumLines: 2},
		{State: models.CommentDraft, FileID: "312", Text: "three", FirstLine: 9, NumLines: 1},
	}

	rec := &progressRecorder{}
	err := p.PublishComments(context.Background(), models.Review{ID: "42"}, comments, "looks good", rec.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three"}, posted)
	assert.True(t, published)

	// Monotone, non-decreasing, ending at exactly 1.0.
	prev := 0.0
	for _, f := range rec.fractions {
		assert.GreaterOrEqual(t, f, prev)
		prev = f
	}
	assert.Equal(t, 1.0, rec.fractions[len(rec.fractions)-1])
}

func TestPublishSingleCommentNoDivisionError(t *testing.T) {
	var posted []string
	var published bool
	p, _ := newTestProvider(t, publishHandler(t, &posted, &published))

	comments := []models.Comment{
		{State: models.CommentDraft, FileID: "311", Text: "only", FirstLine: 1, NumLines: 1},
	}

	rec := &progressRecorder{}
	err := p.PublishComments(context.Background(), models.Review{ID: "42"}, comments, "", rec.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"only"}, posted)
	assert.Equal(t, 1.0, rec.last())
	for _, f := range rec.fractions {
		assert.False(t, f < 0 || f > 1, "fraction out of range: %v", f)
	}
}

func TestPublishNoCommentsStillPublishes(t *testing.T) {
	var posted []string
	var published bool
	p, _ := newTestProvider(t, publishHandler(t, &posted, &published))

	err := p.PublishComments(context.Background(), models.Review{ID: "42"}, nil, "ship note", nil)
	require.NoError(t, err)
	assert.Empty(t, posted)
	assert.True(t, published)
}

func TestShipItCreatesAndPublishes(t *testing.T) {
	var shipItField string
	var published bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/42/reviews/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		shipItField = r.PostFormValue("ship_it")
		fmt.Fprint(w, `{"stat":"ok","review":{"id":99}}`)
	})
	mux.HandleFunc("/api/review-requests/42/reviews/99/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		published = r.PostFormValue("public") == "true"
		fmt.Fprint(w, `{"stat":"ok"}`)
	})
	p, _ := newTestProvider(t, mux)

	err := p.ShipIt(context.Background(), models.Review{ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "true", shipItField)
	assert.True(t, published)
}

func TestCreateReviewRequestWorkflow(t *testing.T) {
	var uploaded, drafted bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "3", r.PostFormValue("repository"))
		fmt.Fprint(w, `{"stat":"ok","review_request":{"id":55}}`)
	})
	mux.HandleFunc("/api/review-requests/55/diffs/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "/", r.PostFormValue("basedir"))
		uploaded = true
		fmt.Fprint(w, `{"stat":"ok"}`)
	})
	mux.HandleFunc("/api/review-requests/55/draft/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "add feature", r.PostFormValue("summary"))
		assert.Equal(t, "alice,bob", r.PostFormValue("target_people"))
		assert.Equal(t, "true", r.PostFormValue("public"))
		drafted = true
		fmt.Fprint(w, `{"stat":"ok"}`)
	})
	p, _ := newTestProvider(t, mux)

	id, err := p.CreateReviewRequest(context.Background(), "add feature", "desc", "alice,bob", "platform", "3", "diff --git\n")
	require.NoError(t, err)
	assert.Equal(t, "55", id)
	assert.True(t, uploaded)
	assert.True(t, drafted)
}

func TestCreateReviewRequestNoRollback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/review-requests/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","review_request":{"id":55}}`)
	})
	mux.HandleFunc("/api/review-requests/55/diffs/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"fail","err":{"code":105,"msg":"bad diff"}}`)
	})
	p, _ := newTestProvider(t, mux)

	id, err := p.CreateReviewRequest(context.Background(), "s", "d", "", "", "3", "junk")
	require.Error(t, err)
	// The orphaned draft's id is reported so the user can discard it.
	assert.Equal(t, "55", id)
	assert.Contains(t, err.Error(), "55")
}

func TestRepositoriesCached(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repositories/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"stat":"ok","total_results":1,"repositories":[{"id":3,"name":"core"}]}`)
	})
	p, _ := newTestProvider(t, mux)

	first, err := p.Repositories(context.Background())
	require.NoError(t, err)
	second, err := p.Repositories(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())

	p.InvalidateRepositories()
	_, err = p.Repositories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestRepositoryByName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repositories/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stat":"ok","total_results":2,"repositories":[{"id":3,"name":"core"},{"id":4,"name":"web"}]}`)
	})
	p, _ := newTestProvider(t, mux)

	repo, err := p.RepositoryByName(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, "4", repo.ID)

	_, err = p.RepositoryByName(context.Background(), "missing")
	assert.Error(t, err)
}

func TestReviewURL(t *testing.T) {
	p, srv := newTestProvider(t, http.NewServeMux())
	url := p.ReviewURL(models.Review{ID: "42"})
	assert.Equal(t, srv.URL+"/r/42/", url)
}
