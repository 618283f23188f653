package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rkapoor/rb/internal/models"
)

var (
	closeSubmit  bool
	closeDiscard bool
)

var shipCmd = &cobra.Command{
	Use:   "ship <review-id>",
	Short: "Approve a review request (ship it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return shipRun(cmd.Context(), args[0])
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <review-id>",
	Short: "Close a review request as submitted or discarded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return closeRun(cmd.Context(), args[0])
	},
}

func init() {
	closeCmd.Flags().BoolVar(&closeSubmit, "submitted", false, "Mark as submitted")
	closeCmd.Flags().BoolVar(&closeDiscard, "discarded", false, "Mark as discarded")
	closeCmd.MarkFlagsOneRequired("submitted", "discarded")
	closeCmd.MarkFlagsMutuallyExclusive("submitted", "discarded")
	rootCmd.AddCommand(shipCmd)
	rootCmd.AddCommand(closeCmd)
}

func shipRun(ctx context.Context, id string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would ship review %s", id)
		return nil
	}
	if err := p.ShipIt(ctx, models.Review{ID: id}); err != nil {
		return err
	}
	ui.Success("Shipped review %s", id)
	return nil
}

func closeRun(ctx context.Context, id string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}

	review := models.Review{ID: id}
	status := "submitted"
	if closeDiscard {
		status = "discarded"
	}
	if dryRun {
		ui.DryRunMsg("Would close review %s as %s", id, status)
		return nil
	}

	if closeDiscard {
		err = p.Discard(ctx, review)
	} else {
		err = p.Submit(ctx, review)
	}
	if err != nil {
		return fmt.Errorf("close review %s: %w", id, err)
	}
	ui.Success("Closed review %s as %s", id, status)
	return nil
}
