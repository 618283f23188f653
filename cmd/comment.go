package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rkapoor/rb/internal/models"
	"github.com/rkapoor/rb/internal/output"
	"github.com/rkapoor/rb/internal/store"
)

var (
	commentFileID string
	commentPath   string
	commentLine   int
	commentLines  int
	commentText   string
	commentIssue  bool
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage local draft comments",
	Long: `Draft inline comments locally before publishing them. Drafts are
kept in the local database until 'rb publish' posts them to the server.`,
}

var commentAddCmd = &cobra.Command{
	Use:   "add <review-id>",
	Short: "Draft an inline comment on a file diff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentAddRun(cmd.Context(), args[0])
	},
}

var commentListCmd = &cobra.Command{
	Use:     "list <review-id>",
	Aliases: []string{"ls"},
	Short:   "List local draft comments for a review",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentListRun(cmd.Context(), args[0])
	},
}

var commentRmCmd = &cobra.Command{
	Use:   "rm <draft-id>",
	Short: "Delete a local draft comment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentRmRun(cmd.Context(), args[0])
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <review-id>",
	Short: "List published inline comments of a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentsRun(cmd.Context(), args[0])
	},
}

func init() {
	commentAddCmd.Flags().StringVar(&commentFileID, "file", "", "File diff id (from 'rb show')")
	commentAddCmd.Flags().StringVar(&commentPath, "path", "", "File path, for display")
	commentAddCmd.Flags().IntVar(&commentLine, "line", 0, "First line of the comment range")
	commentAddCmd.Flags().IntVar(&commentLines, "lines", 1, "Number of lines in the range")
	commentAddCmd.Flags().StringVar(&commentText, "text", "", "Comment text")
	commentAddCmd.Flags().BoolVar(&commentIssue, "issue", false, "Open an issue with this comment")
	_ = commentAddCmd.MarkFlagRequired("file")
	_ = commentAddCmd.MarkFlagRequired("line")
	_ = commentAddCmd.MarkFlagRequired("text")

	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentListCmd)
	commentCmd.AddCommand(commentRmCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(commentsCmd)
}

func commentAddRun(ctx context.Context, reviewID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	draft := &store.DraftComment{
		ReviewID:    reviewID,
		FileID:      commentFileID,
		FilePath:    commentPath,
		FirstLine:   commentLine,
		NumLines:    commentLines,
		Text:        commentText,
		IssueOpened: commentIssue,
	}

	if dryRun {
		ui.DryRunMsg("Would draft comment on file %s line %d: %s", commentFileID, commentLine, commentText)
		return nil
	}

	if err := s.CreateDraft(ctx, draft); err != nil {
		return err
	}
	ui.Success("Drafted comment %s (publish with 'rb publish %s')", output.Cyan(draft.ID), reviewID)
	return nil
}

func commentListRun(ctx context.Context, reviewID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	drafts, err := s.ListDrafts(ctx, reviewID)
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		ui.Info("No draft comments for review %s.", reviewID)
		return nil
	}

	table := ui.Table([]string{"Draft ID", "File", "Line", "Issue", "Text"})
	for _, d := range drafts {
		file := d.FilePath
		if file == "" {
			file = d.FileID
		}
		issue := ""
		if d.IssueOpened {
			issue = "yes"
		}
		_ = table.Append([]string{d.ID, file, lineRange(d.FirstLine, d.NumLines), issue, truncate(d.Text, 50)})
	}
	_ = table.Render()
	return nil
}

func lineRange(first, count int) string {
	if count <= 1 {
		return fmt.Sprintf("%d", first)
	}
	return fmt.Sprintf("%d-%d", first, first+count-1)
}

func commentRmRun(ctx context.Context, draftID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete draft %s", draftID)
		return nil
	}
	if err := s.DeleteDraft(ctx, draftID); err != nil {
		return err
	}
	ui.Success("Deleted draft %s", draftID)
	return nil
}

func commentsRun(ctx context.Context, reviewID string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}

	review := models.Review{ID: reviewID}
	files, err := p.FileList(ctx, review)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		ui.Info("No diff uploaded yet.")
		return nil
	}

	found := false
	for _, f := range files {
		comments, err := p.Comments(ctx, review, f)
		if err != nil {
			return err
		}
		if len(comments) == 0 {
			continue
		}
		found = true
		fmt.Fprintf(ui.Out, "%s\n", output.Cyan(f.DestPath))
		for _, c := range comments {
			marker := ""
			if c.IssueOpened {
				marker = output.Yellow(" [issue]")
			}
			fmt.Fprintf(ui.Out, "  %s %s%s (%s)\n    %s\n",
				lineRange(c.FirstLine, c.NumLines), c.Author, marker,
				c.Timestamp.Format("2006-01-02"), c.Text)
		}
	}
	if !found {
		ui.Info("No published comments.")
	}
	return nil
}
