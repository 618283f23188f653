package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rkapoor/rb/internal/models"
)

var diffOut string

var diffCmd = &cobra.Command{
	Use:   "diff <review-id>",
	Short: "Fetch a review's files with before/after contents",
	Long: `Fetch the changed files of a review's latest diff revision,
loading original and patched contents concurrently. With --out, the
contents are written as before/ and after/ trees under the given
directory; otherwise a summary table is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return diffRun(cmd.Context(), args[0])
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffOut, "out", "", "Directory to write before/ and after/ file trees")
	rootCmd.AddCommand(diffCmd)
}

func diffRun(ctx context.Context, id string) error {
	p, err := getProvider()
	if err != nil {
		return err
	}

	review := models.Review{ID: id}
	files, err := p.Files(ctx, review, ui.Progress)
	ui.ProgressDone()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		ui.Info("No diff uploaded yet.")
		return nil
	}

	if diffOut != "" {
		return writeFileTrees(files, diffOut)
	}

	table := ui.Table([]string{"File ID", "File", "Before", "After"})
	for _, f := range files {
		_ = table.Append([]string{
			f.FileID,
			displayPath(f),
			contentSize(f.SourceContents),
			contentSize(f.DestContents),
		})
	}
	_ = table.Render()
	return nil
}

func displayPath(f models.File) string {
	if f.DestPath != "" && f.DestPath != f.SourcePath {
		return f.SourcePath + " -> " + f.DestPath
	}
	return f.SourcePath
}

func contentSize(contents *string) string {
	if contents == nil {
		return "-"
	}
	lines := strings.Count(*contents, "\n")
	return fmt.Sprintf("%d lines", lines)
}

func writeFileTrees(files []models.File, dir string) error {
	for _, f := range files {
		if f.SourceContents != nil {
			if err := writeTreeFile(filepath.Join(dir, "before", f.SourcePath), *f.SourceContents); err != nil {
				return err
			}
		}
		if f.DestContents != nil {
			if err := writeTreeFile(filepath.Join(dir, "after", f.DestPath), *f.DestContents); err != nil {
				return err
			}
		}
	}
	ui.Success("Wrote %d file(s) under %s", len(files), dir)
	return nil
}

func writeTreeFile(path, contents string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0644)
}
