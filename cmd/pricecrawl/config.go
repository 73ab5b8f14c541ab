package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"pricecrawl/internal/driver"
	"pricecrawl/pkg/config"
	"pricecrawl/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage pricecrawl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PRICECRAWL_*)
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create a configuration file holding the defaults plus example selectors.

The file is created as 'pricecrawl.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = "pricecrawl.yaml"
		}
		if err := writeExampleConfig(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration file created: " + path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(masked(cfg))
		if err != nil {
			return fmt.Errorf("failed to format configuration: %w", err)
		}
		ui.PrintHighlight("Current Configuration")
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check it, including that
each level and the leaf page have the selectors a driver needs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		if err := checkSelectors(cfg); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration is valid")
		ui.PrintPanel("Summary", []ui.Row{
			{Label: "Site", Value: cfg.Site.URL},
			{Label: "Driver", Value: cfg.Browser.Driver},
			{Label: "Levels", Value: fmt.Sprint(levelNames(cfg))},
			{Label: "Output", Value: cfg.DataPath()},
			{Label: "Loader", Value: cfg.Loader.Driver},
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func writeExampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.Site = config.SiteConfig{Name: "Example Grocer", URL: "https://grocer.example.com/"}
	cfg.Scrape.StaticFields = map[string]string{"store_chain_name": "Example Grocer"}
	cfg.Selectors = map[string]string{
		driver.ItemsKey("locations"):     "nav.stores a",
		driver.ItemsKey("categories"):    "ul.departments > li > a",
		driver.ItemsKey("subcategories"): "ul.aisles > li > a",
		driver.ProductKey:                "div.product-tile",
		driver.NextKey:                   "a.pagination-next@href",
		driver.BreadcrumbKey:             "ol.breadcrumb li",
		driver.FieldKey("product_title"): ".product-name",
		driver.FieldKey("brand"):         ".product-brand",
		driver.FieldKey("price"):         ".price",
		driver.FieldKey("product_size"):  ".product-size",
	}
	return cfg.Save(path)
}

// checkSelectors runs the driver option checks without starting a driver.
func checkSelectors(cfg *config.Config) error {
	opts := driver.Options{
		Store:    cfg,
		StartURL: cfg.Site.URL,
		Levels:   levelNames(cfg),
		Fields:   cfg.Scrape.Fields,
	}
	return opts.Validate()
}

// masked returns a copy of cfg with any password in the loader DSN hidden.
func masked(cfg *config.Config) *config.Config {
	out := *cfg
	if u, err := url.Parse(cfg.Loader.DSN); err == nil {
		out.Loader.DSN = u.Redacted()
	}
	return &out
}
