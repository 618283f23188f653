package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rkapoor/rb/internal/diff"
	"github.com/rkapoor/rb/internal/output"
)

var (
	postSummary     string
	postDescription string
	postPeople      []string
	postGroups      []string
	postRepo        string
	postRevisions   []string
	postRepoRoot    string
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create a review request from your working copy",
	Long: `Generate a diff from the working copy's VCS and post it as a new
review request: the request is created, the diff uploaded as its draft
diff, and the draft fields published.

Without --revisions the diff covers uncommitted local changes; with one
or two revisions it covers that range.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return postRun(cmd.Context())
	},
}

func init() {
	postCmd.Flags().StringVar(&postSummary, "summary", "", "Review request summary (required)")
	postCmd.Flags().StringVar(&postDescription, "description", "", "Review request description")
	postCmd.Flags().StringSliceVar(&postPeople, "people", nil, "Target reviewers (usernames)")
	postCmd.Flags().StringSliceVar(&postGroups, "groups", nil, "Target review groups")
	postCmd.Flags().StringVar(&postRepo, "repo", "", "Repository name on the server (required)")
	postCmd.Flags().StringSliceVar(&postRevisions, "revisions", nil, "Revision or revision range to diff")
	postCmd.Flags().StringVar(&postRepoRoot, "repo-root", "", "Working copy root (default: cwd)")
	_ = postCmd.MarkFlagRequired("summary")
	_ = postCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(postCmd)
}

func postRun(ctx context.Context) error {
	root := postRepoRoot
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = cwd
	}

	vcs, err := diff.Detect(root, viper.GetBool("use_rbtools"))
	if err != nil {
		return err
	}

	ui.VerboseLog("Generating diff in %s", root)
	content, err := vcs.Diff(ctx, root, postRevisions...)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("nothing to post: the diff is empty")
	}

	if dryRun {
		ui.DryRunMsg("Would post %d-byte diff to repository %q", len(content), postRepo)
		fmt.Fprint(ui.Out, content)
		return nil
	}

	p, err := getProvider()
	if err != nil {
		return err
	}

	repo, err := p.RepositoryByName(ctx, postRepo)
	if err != nil {
		return err
	}

	id, err := p.CreateReviewRequest(ctx, postSummary, postDescription,
		strings.Join(postPeople, ","), strings.Join(postGroups, ","), repo.ID, content)
	if err != nil {
		return err
	}

	ui.Success("Created review request %s", output.Cyan(id))
	ui.Info("%s", viper.GetString("url")+"/r/"+id+"/")
	return nil
}
