package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories registered on the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reposRun(cmd.Context())
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups <prefix>",
	Short: "List review groups matching a prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return groupsRun(cmd.Context(), args[0])
	},
}

var usersCmd = &cobra.Command{
	Use:   "users <prefix>",
	Short: "List users matching a prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return usersRun(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(usersCmd)
}

func reposRun(ctx context.Context) error {
	p, err := getProvider()
	if err != nil {
		return err
	}
	repos, err := p.Repositories(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		ui.Info("No repositories registered.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name"})
	for _, r := range repos {
		_ = table.Append([]string{r.ID, r.Name})
	}
	_ = table.Render()
	return nil
}

func groupsRun(ctx context.Context, q string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}
	groups, err := p.Groups(ctx, q)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		ui.Info("No groups match %q.", q)
		return nil
	}

	table := ui.Table([]string{"Name", "Display Name"})
	for _, g := range groups {
		_ = table.Append([]string{g.Name, g.DisplayName})
	}
	_ = table.Render()
	return nil
}

func usersRun(ctx context.Context, q string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}
	users, err := p.Users(ctx, q)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users match %q.", q)
		return nil
	}

	table := ui.Table([]string{"Username", "Full Name"})
	for _, u := range users {
		_ = table.Append([]string{u.Username, u.FullName})
	}
	_ = table.Render()
	return nil
}
