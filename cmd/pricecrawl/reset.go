package main

import (
	"github.com/spf13/cobra"
	"pricecrawl/pkg/ui"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all checkpoint files",
	Long: `Delete every level's checkpoint so the next crawl starts from scratch.
Record files are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(nil)
		if err != nil {
			return err
		}
		if err := resetLevels(buildLevels(cfg, log)); err != nil {
			return err
		}
		ui.PrintSuccess("Checkpoints deleted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
