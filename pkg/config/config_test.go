package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "pricecrawl/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "prices.xml", cfg.Output.DataFile)
	assert.Equal(t, "items", cfg.Output.ContainerTag)
	assert.Equal(t, "item", cfg.Output.RecordTag)
	require.Len(t, cfg.Levels, 3)
	assert.Equal(t, "township_location", cfg.Levels[0].Field)
	assert.Equal(t, 3, cfg.Scrape.Retries)
	assert.Equal(t, 2*time.Second, cfg.Scrape.RetryDelay)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PRICECRAWL_OUTPUT_DIR", "/tmp/crawl")
	t.Setenv("PRICECRAWL_DEADLINE_HOURS", "2")
	t.Setenv("PRICECRAWL_DEADLINE_MINUTES", "30")
	t.Setenv("PRICECRAWL_DRIVER", "static")
	t.Setenv("PRICECRAWL_HEADLESS", "false")
	t.Setenv("PRICECRAWL_IGNORE_CATEGORIES", "Pharmacy; Baby ;")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/crawl", cfg.Output.Directory)
	assert.Equal(t, 2, cfg.Deadline.Hours)
	assert.Equal(t, 30, cfg.Deadline.Minutes)
	assert.Equal(t, "static", cfg.Browser.Driver)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"Pharmacy", "Baby"}, cfg.Levels[1].Ignore)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("PRICECRAWL_DEADLINE_HOURS", "two")

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricecrawl.yaml")
	content := `
site:
  name: Loblaws
  url: https://www.loblaws.ca
deadline:
  hours: 1
scrape:
  retry_delay: 500ms
levels:
  - name: cities
    field: township_location
    checkpoint: cities.xml
    root_tag: cities
    item_tag: city
    limit: 10
  - name: categories
    checkpoint: categories.xml
    root_tag: categories
    item_tag: category
    ignore: [Pharmacy]
    ignore_under:
      Home: [Garden]
selectors:
  cities.items: "ul.cities a"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "Loblaws", cfg.Site.Name)
	assert.Equal(t, 1, cfg.Deadline.Hours)
	assert.Equal(t, 500*time.Millisecond, cfg.Scrape.RetryDelay)
	require.Len(t, cfg.Levels, 2)
	assert.Equal(t, 10, cfg.Levels[0].Limit)
	assert.Equal(t, []string{"Garden"}, cfg.Levels[1].IgnoreUnder["Home"])
	assert.NoError(t, cfg.Validate())

	v, ok := cfg.Property("cities.items")
	assert.True(t, ok)
	assert.Equal(t, "ul.cities a", v)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no levels", func(c *Config) { c.Levels = nil }},
		{"duplicate level", func(c *Config) { c.Levels[1].Name = c.Levels[0].Name }},
		{"missing item tag", func(c *Config) { c.Levels[0].ItemTag = "" }},
		{"negative deadline", func(c *Config) { c.Deadline.Minutes = -1 }},
		{"unknown driver", func(c *Config) { c.Browser.Driver = "firefox" }},
		{"unknown loader", func(c *Config) { c.Loader.Driver = "oracle" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"negative retries", func(c *Config) { c.Scrape.Retries = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPropertyAndRequire(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Deadline.Hours = 4

	v, ok := cfg.Property("output.data_file")
	assert.True(t, ok)
	assert.Equal(t, "prices.xml", v)

	v, ok = cfg.Property("deadline.hours")
	assert.True(t, ok)
	assert.Equal(t, "4", v)

	_, ok = cfg.Property("site.url")
	assert.False(t, ok)

	_, err := Require(cfg, "site.url")
	assert.True(t, errs.IsType(err, errs.ErrorTypeConfig))
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"driver":    "static",
		"hours":     0,
		"minutes":   45,
		"log-level": "debug",
	})

	assert.Equal(t, "static", cfg.Browser.Driver)
	assert.Equal(t, 45, cfg.Deadline.Minutes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Site.Name = "Metro"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "Metro", loaded.Site.Name)
	assert.Equal(t, cfg.Levels, loaded.Levels)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitList(" a;;b c ; "))
	assert.Nil(t, SplitList(""))
}
