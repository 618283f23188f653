package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rkapoor/rb/internal/models"
)

var publishBodyTop string

var publishCmd = &cobra.Command{
	Use:   "publish <review-id>",
	Short: "Publish drafted comments as a review",
	Long: `Post the local draft comments of a review request to the server
and publish them as one review. Drafts are deleted locally on success
and kept for retry on failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishRun(cmd.Context(), args[0])
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishBodyTop, "body-top", "", "Top-level review comment")
	rootCmd.AddCommand(publishCmd)
}

func publishRun(ctx context.Context, reviewID string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	drafts, err := s.ListDrafts(ctx, reviewID)
	if err != nil {
		return err
	}
	if len(drafts) == 0 && publishBodyTop == "" {
		ui.Info("Nothing to publish for review %s.", reviewID)
		return nil
	}

	comments := make([]models.Comment, 0, len(drafts))
	for _, d := range drafts {
		comments = append(comments, models.Comment{
			State:       models.CommentDraft,
			FileID:      d.FileID,
			Text:        d.Text,
			FirstLine:   d.FirstLine,
			NumLines:    d.NumLines,
			IssueOpened: d.IssueOpened,
		})
	}

	if dryRun {
		ui.DryRunMsg("Would publish %d comment(s) on review %s", len(comments), reviewID)
		return nil
	}

	err = p.PublishComments(ctx, models.Review{ID: reviewID}, comments, publishBodyTop, ui.Progress)
	ui.ProgressDone()
	if err != nil {
		ui.Warning("Publish failed; drafts kept for retry.")
		return err
	}

	if _, err := s.DeleteDraftsForReview(ctx, reviewID); err != nil {
		ui.Warning("Published, but could not clear local drafts: %v", err)
	}
	ui.Success("Published %d comment(s) on review %s", len(comments), reviewID)
	return nil
}
