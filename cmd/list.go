package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rkapoor/rb/internal/output"
)

var (
	listFrom   string
	listTo     string
	listStatus string
	listRepo   string
	listStart  int
	listMax    int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List review requests",
	Long: `List review requests, filtered by author, reviewer, status and
repository. Results are windowed; use --start/--max to page.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRun(cmd)
	},
}

func init() {
	listCmd.Flags().StringVar(&listFrom, "from", "", "Filter by submitting user")
	listCmd.Flags().StringVar(&listTo, "to", "", "Filter by target reviewer")
	listCmd.Flags().StringVar(&listStatus, "status", "pending", "Status: pending, submitted, discarded, all")
	listCmd.Flags().StringVar(&listRepo, "repo", "", "Filter by repository id")
	listCmd.Flags().IntVar(&listStart, "start", 0, "Zero-based offset of the first result")
	listCmd.Flags().IntVar(&listMax, "max", 0, "Maximum results per page (default from config)")
	rootCmd.AddCommand(listCmd)
}

func listRun(cmd *cobra.Command) error {
	p, err := getProvider()
	if err != nil {
		return err
	}

	max := listMax
	if max <= 0 {
		max = viper.GetInt("list.max_results")
	}

	page, err := p.ListReviews(cmd.Context(), listFrom, listTo, listStatus, listRepo, listStart, max)
	if err != nil {
		return err
	}

	if len(page.Items) == 0 {
		ui.Info("No review requests found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Summary", "Submitter", "Status", "Branch", "Updated"})
	for _, r := range page.Items {
		_ = table.Append([]string{
			output.Cyan(r.ID),
			truncate(r.Summary, 60),
			r.Submitter,
			output.StatusColor(string(r.Status)),
			r.Branch,
			r.LastUpdated.Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()

	last := page.Offset + len(page.Items)
	fmt.Fprintf(ui.Out, "\nShowing %d-%d of %d", page.Offset+1, last, page.Total)
	if page.HasMore() {
		fmt.Fprintf(ui.Out, "  (next: --start %d)", last)
	}
	fmt.Fprintln(ui.Out)
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
