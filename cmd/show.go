package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rkapoor/rb/internal/models"
	"github.com/rkapoor/rb/internal/output"
	"github.com/rkapoor/rb/internal/review"
)

var showCmd = &cobra.Command{
	Use:   "show <review-id>",
	Short: "Show a review request and its changed files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRun(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// findReview fetches a single review request by id. The list endpoint is
// the only one returning full review fields, so look it up there.
func findReview(ctx context.Context, p *review.Provider, id string) (models.Review, error) {
	const window = 50
	for start := 0; ; start += window {
		// Status "all" matches any lifecycle state.
		page, err := p.ListReviews(ctx, "", "", "all", "", start, window)
		if err != nil {
			return models.Review{}, err
		}
		for _, r := range page.Items {
			if r.ID == id {
				return r, nil
			}
		}
		if !page.HasMore() {
			return models.Review{}, fmt.Errorf("review request %s not found", id)
		}
	}
}

func showRun(ctx context.Context, id string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}

	r, err := findReview(ctx, p, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan("r/"+r.ID), r.Summary)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(r.Status)))
	fmt.Fprintf(ui.Out, "  Submitter:  %s\n", r.Submitter)
	fmt.Fprintf(ui.Out, "  Repository: %s\n", r.Repository)
	fmt.Fprintf(ui.Out, "  Branch:     %s\n", r.Branch)
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", r.LastUpdated.Format("2006-01-02 15:04"))
	if len(r.TargetPeople) > 0 {
		fmt.Fprintf(ui.Out, "  Reviewers:  %s\n", strings.Join(r.TargetPeople, ", "))
	}
	if len(r.TargetGroups) > 0 {
		fmt.Fprintf(ui.Out, "  Groups:     %s\n", strings.Join(r.TargetGroups, ", "))
	}
	fmt.Fprintf(ui.Out, "  URL:        %s\n", p.ReviewURL(r))
	if r.Description != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", r.Description)
	}

	files, err := p.FileList(ctx, r)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		ui.Info("No diff uploaded yet.")
		return nil
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"File ID", "Source", "Destination", "Revision"})
	for _, f := range files {
		_ = table.Append([]string{f.FileID, f.SourcePath, f.DestPath, f.SourceRevision})
	}
	_ = table.Render()
	return nil
}
