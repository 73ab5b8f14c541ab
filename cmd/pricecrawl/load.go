package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"pricecrawl/internal/loader"
	"pricecrawl/pkg/config"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/record"
	"pricecrawl/pkg/ui"
)

var (
	loadFile   string
	loadSingle bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load record files into the configured database",
	Long: `Read the record file and, unless --single is given, every timestamped
continuation file written by later sessions, and insert the records into the
configured SQL or MongoDB store.

Records are routed to tables by a segment of their category path; see the
loader section of the configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(nil)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stats, err := load(ctx, cfg, log)
		if stats != nil {
			printLoadStats(stats)
		}
		if err != nil {
			return fmt.Errorf("load failed: %w", err)
		}
		ui.PrintSuccess("Load completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "record file to load (default is the configured data file)")
	loadCmd.Flags().BoolVar(&loadSingle, "single", false, "load only the named file, not its continuation files")
}

func load(ctx context.Context, cfg *config.Config, log logger.Logger) (*loader.Stats, error) {
	path := loadFile
	if path == "" {
		path = cfg.DataPath()
	}
	opts := []record.Option{record.WithLogger(log)}
	if cfg.Output.Continuation && !loadSingle {
		opts = append(opts, record.WithContinuation())
	}
	cursor := record.NewCursor(path, cfg.Output.ContainerTag, cfg.Output.RecordTag, opts...)
	defer cursor.Close()

	store, err := loader.OpenStore(ctx, cfg.Loader)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	l, err := loader.New(store, loader.RouterFor(cfg.Loader), loader.Options{
		Columns:    cfg.Loader.Columns,
		DateColumn: "date_collected",
		DateField:  cfg.Scrape.DateField,
		BatchSize:  cfg.Loader.BatchSize,
		Retries:    cfg.Scrape.Retries,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, cursor)
}

func printLoadStats(s *loader.Stats) {
	rows := []ui.Row{
		{Label: "Records read", Value: strconv.Itoa(s.Read)},
		{Label: "Rows inserted", Value: strconv.Itoa(s.Inserted)},
		{Label: "Without table", Value: strconv.Itoa(s.Unrouted)},
	}
	tables := make([]string, 0, len(s.Tables))
	for t := range s.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		rows = append(rows, ui.Row{Label: "  " + t, Value: strconv.Itoa(s.Tables[t])})
	}
	ui.PrintPanel("Load", rows)
}
