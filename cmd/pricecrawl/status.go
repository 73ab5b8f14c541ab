package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"pricecrawl/pkg/record"
	"pricecrawl/pkg/traversal"
	"pricecrawl/pkg/ui"
)

var showItems int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending checkpoint items and record files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(nil)
		if err != nil {
			return err
		}

		rows, err := levelStatus(buildLevels(cfg, log), showItems)
		if err != nil {
			return err
		}
		files, err := record.Candidates(cfg.DataPath())
		if err != nil {
			return err
		}
		for _, f := range files {
			rows = append(rows, ui.Row{Label: "Record file", Value: filepath.Base(f)})
		}
		ui.PrintPanel("Status", rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&showItems, "items", 5, "number of pending items to list per level")
}

// levelStatus describes each level's checkpoint: absent, or the items still owed.
func levelStatus(levels []traversal.Level, show int) ([]ui.Row, error) {
	var rows []ui.Row
	pending := false
	for _, lvl := range levels {
		found, err := lvl.Checkpoint.Load()
		if err != nil {
			return nil, err
		}
		if !found {
			rows = append(rows, ui.Row{Label: lvl.Name, Value: "no checkpoint"})
			continue
		}
		pending = true

		items := lvl.Checkpoint.Remaining()
		value := strconv.Itoa(len(items)) + " pending"
		if show > 0 && len(items) > 0 {
			head := items
			if len(head) > show {
				head = head[:show]
			}
			value += ": " + strings.Join(head, ", ")
			if len(items) > show {
				value += fmt.Sprintf(", ... (%d more)", len(items)-show)
			}
		}
		rows = append(rows, ui.Row{Label: lvl.Name, Value: value})
	}

	state := "idle, next crawl starts fresh"
	if pending {
		state = "suspended, next crawl resumes"
	}
	return append([]ui.Row{{Label: "State", Value: state}}, rows...), nil
}
