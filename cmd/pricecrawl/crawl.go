package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"pricecrawl/internal/driver"
	"pricecrawl/internal/driver/chrome"
	"pricecrawl/internal/driver/static"
	"pricecrawl/pkg/config"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/ratelimit"
	"pricecrawl/pkg/record"
	"pricecrawl/pkg/traversal"
	"pricecrawl/pkg/ui"
)

var (
	driverName   string
	hours        int
	minutes      int
	outputDir    string
	forceRestart bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run or resume a crawl session",
	Long: `Run a crawl session. If checkpoint files from an interrupted session exist
the crawl resumes from them; otherwise every level is enumerated afresh.

Each session writes to a new timestamped record file next to the configured
data file, so earlier sessions are never modified.`,
	Example: `  # Crawl until done
  pricecrawl crawl

  # Crawl for at most 2 hours 30 minutes, then suspend
  pricecrawl crawl --hours 2 --minutes 30

  # Plain HTTP instead of a headless browser
  pricecrawl crawl --driver static

  # Discard checkpoints and start over
  pricecrawl crawl --force-restart`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&driverName, "driver", "", "page driver (chrome, static)")
	crawlCmd.Flags().IntVar(&hours, "hours", 0, "session time budget, hours part")
	crawlCmd.Flags().IntVar(&minutes, "minutes", 0, "session time budget, minutes part")
	crawlCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for records and checkpoints")
	crawlCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "delete existing checkpoints before crawling")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if driverName != "" {
		flags["driver"] = driverName
	}
	if cmd.Flags().Changed("hours") {
		flags["hours"] = hours
	}
	if cmd.Flags().Changed("minutes") {
		flags["minutes"] = minutes
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}

	cfg, log, err := setup(flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Site", cfg.Site.URL)
	ui.PrintInfo("Driver", cfg.Browser.Driver)
	if cfg.Deadline.Hours > 0 || cfg.Deadline.Minutes > 0 {
		ui.PrintInfo("Time budget", fmt.Sprintf("%dh%02dm", cfg.Deadline.Hours, cfg.Deadline.Minutes))
	}

	report, err := crawl(ctx, cfg, log, forceRestart)
	if report != nil {
		printReport(cfg, report)
	}
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	return nil
}

type pageDriver interface {
	traversal.PageDriver
	Close() error
}

func newDriver(cfg *config.Config, log logger.Logger) (pageDriver, error) {
	opts := driver.Options{
		Store:     cfg,
		StartURL:  cfg.Site.URL,
		Levels:    levelNames(cfg),
		Fields:    cfg.Scrape.Fields,
		MaxPages:  cfg.Scrape.MaxPages,
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.Browser.Timeout,
		Limiter:   ratelimit.PerMinute(cfg.Browser.RequestsPerMinute),
		Logger:    log,
	}

	switch cfg.Browser.Driver {
	case "static":
		return static.New(opts)
	case "chrome":
		return chrome.New(chrome.Options{Options: opts, ExecPath: cfg.Browser.ExecPath, Headless: cfg.Browser.Headless})
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Browser.Driver)
	}
}

// crawl runs one session. The driver is closed on every path; the engine
// closes the sink.
func crawl(ctx context.Context, cfg *config.Config, log logger.Logger, restart bool) (*traversal.Report, error) {
	levels := buildLevels(cfg, log)
	if restart {
		if err := resetLevels(levels); err != nil {
			return nil, err
		}
		log.Info("Checkpoints cleared, starting over")
	}

	drv, err := newDriver(cfg, log)
	if err != nil {
		return nil, err
	}
	defer drv.Close()

	// A closed record file is never reopened; later sessions get a timestamped sibling.
	path, err := record.NextPath(cfg.DataPath(), time.Now())
	if err != nil {
		return nil, err
	}
	sink := record.NewSink(path, cfg.Output.ContainerTag, cfg.Output.RecordTag, record.WithLogger(log))

	engine, err := traversal.New(drv, sink, levels,
		traversal.WithLimit(cfg.Deadline.Hours, cfg.Deadline.Minutes),
		traversal.WithLogger(log),
		traversal.WithRetries(cfg.Scrape.Retries, cfg.Scrape.RetryDelay),
		traversal.WithRequiredFields(cfg.Scrape.RequiredFields...),
		traversal.WithStaticFields(cfg.Scrape.StaticFields),
		traversal.WithDateStamp(cfg.Scrape.DateField, record.TimestampLayout),
	)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx)
}

func printReport(cfg *config.Config, r *traversal.Report) {
	elapsed := r.Finished.Sub(r.Started).Round(time.Second)
	rows := []ui.Row{
		{Label: "Outcome", Value: string(r.Outcome)},
		{Label: "Record file", Value: r.Sink},
		{Label: "Records written", Value: strconv.Itoa(r.Written)},
		{Label: "Records dropped", Value: strconv.Itoa(r.Dropped)},
		{Label: "Items ignored", Value: strconv.Itoa(r.Ignored)},
		{Label: "Elapsed", Value: elapsed.String()},
	}
	for _, lc := range cfg.Levels {
		rows = append(rows, ui.Row{Label: "Visited " + lc.Name, Value: strconv.Itoa(r.Processed[lc.Name])})
	}
	if limit := time.Duration(cfg.Deadline.Hours)*time.Hour + time.Duration(cfg.Deadline.Minutes)*time.Minute; limit > 0 {
		rows = append(rows, ui.Row{Label: "Budget used", Value: ui.Bar(int(elapsed/time.Second), int(limit/time.Second), 20)})
	}
	ui.PrintPanel("Crawl", rows)

	if r.Outcome == traversal.OutcomeSuspended {
		ui.PrintWarning("Crawl suspended", "run crawl again to resume")
	} else {
		ui.PrintSuccess("Crawl completed")
	}
}
