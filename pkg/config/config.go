package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store resolves named properties such as file names, tag names and page selectors.
type Store interface {
	Property(name string) (string, bool)
}

// Config holds all configuration options for a crawl
type Config struct {
	Site      SiteConfig        `yaml:"site" json:"site"`
	Output    OutputConfig      `yaml:"output" json:"output"`
	Deadline  DeadlineConfig    `yaml:"deadline" json:"deadline"`
	Levels    []LevelConfig     `yaml:"levels" json:"levels"`
	Scrape    ScrapeConfig      `yaml:"scrape" json:"scrape"`
	Browser   BrowserConfig     `yaml:"browser" json:"browser"`
	Selectors map[string]string `yaml:"selectors" json:"selectors"`
	Loader    LoaderConfig      `yaml:"loader" json:"loader"`
	Logging   LoggingConfig     `yaml:"logging" json:"logging"`
}

// SiteConfig identifies the retailer being crawled
type SiteConfig struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// OutputConfig controls where records and checkpoints are written
type OutputConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	DataFile     string `yaml:"data_file" json:"data_file"`
	ContainerTag string `yaml:"container_tag" json:"container_tag"`
	RecordTag    string `yaml:"record_tag" json:"record_tag"`
	// Continuation makes readers treat every timestamped sibling of DataFile as one
	// sequence. Writers always start a new sibling once DataFile exists.
	Continuation bool `yaml:"continuation" json:"continuation"`
}

// DeadlineConfig is the per-session time budget; zero means no limit
type DeadlineConfig struct {
	Hours   int `yaml:"hours" json:"hours"`
	Minutes int `yaml:"minutes" json:"minutes"`
}

// LevelConfig describes one level of the location/category hierarchy
type LevelConfig struct {
	Name       string `yaml:"name" json:"name"`
	Field      string `yaml:"field,omitempty" json:"field,omitempty"`
	Checkpoint string `yaml:"checkpoint" json:"checkpoint"`
	RootTag    string `yaml:"root_tag" json:"root_tag"`
	ItemTag    string `yaml:"item_tag" json:"item_tag"`
	// Limit caps the number of enumerated items kept; zero keeps all
	Limit       int                 `yaml:"limit,omitempty" json:"limit,omitempty"`
	Ignore      []string            `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	IgnoreUnder map[string][]string `yaml:"ignore_under,omitempty" json:"ignore_under,omitempty"`
}

// ScrapeConfig controls leaf scraping and record stamping
type ScrapeConfig struct {
	Fields         []string          `yaml:"fields" json:"fields"`
	RequiredFields []string          `yaml:"required_fields" json:"required_fields"`
	Retries        int               `yaml:"retries" json:"retries"`
	RetryDelay     time.Duration     `yaml:"retry_delay" json:"retry_delay"`
	DateField      string            `yaml:"date_field" json:"date_field"`
	StaticFields   map[string]string `yaml:"static_fields" json:"static_fields"`
	MaxPages       int               `yaml:"max_pages" json:"max_pages"`
}

// BrowserConfig selects and tunes the page driver
type BrowserConfig struct {
	Driver            string        `yaml:"driver" json:"driver"`
	ExecPath          string        `yaml:"exec_path" json:"exec_path"`
	Headless          bool          `yaml:"headless" json:"headless"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoaderConfig describes the database the record files are loaded into
type LoaderConfig struct {
	Driver    string   `yaml:"driver" json:"driver"`
	DSN       string   `yaml:"dsn" json:"dsn"`
	Database  string   `yaml:"database" json:"database"`
	Table     string   `yaml:"table" json:"table"`
	Columns   []string `yaml:"columns" json:"columns"`
	BatchSize int      `yaml:"batch_size" json:"batch_size"`
	// RouteField and RouteSegment pick the ">"-separated segment used to look up Routes
	RouteField   string            `yaml:"route_field" json:"route_field"`
	RouteSegment int               `yaml:"route_segment" json:"route_segment"`
	Routes       map[string]string `yaml:"routes" json:"routes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Directory:    "./data",
			DataFile:     "prices.xml",
			ContainerTag: "items",
			RecordTag:    "item",
			Continuation: true,
		},
		Levels: []LevelConfig{
			{Name: "locations", Field: "township_location", Checkpoint: "locations.xml", RootTag: "locations", ItemTag: "location"},
			{Name: "categories", Checkpoint: "categories.xml", RootTag: "categories", ItemTag: "category"},
			{Name: "subcategories", Checkpoint: "subcategories.xml", RootTag: "subcategories", ItemTag: "subcategory"},
		},
		Scrape: ScrapeConfig{
			Fields:         []string{"product_title", "brand", "price", "product_size", "category_path"},
			RequiredFields: []string{"product_title", "price"},
			Retries:        3,
			RetryDelay:     2 * time.Second,
			DateField:      "date",
			MaxPages:       50,
		},
		Browser: BrowserConfig{
			Driver:            "chrome",
			Headless:          true,
			Timeout:           30 * time.Second,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestsPerMinute: 30,
		},
		Selectors: map[string]string{},
		Loader: LoaderConfig{
			Driver:       "sqlite",
			DSN:          "file:prices.db",
			Database:     "prices",
			Table:        "prices",
			Columns:      []string{"brand", "date_collected", "price", "product_title", "product_size", "store_chain_name", "township_location"},
			BatchSize:    500,
			RouteField:   "category_path",
			RouteSegment: 1,
			Routes:       map[string]string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	setString("PRICECRAWL_SITE_NAME", &c.Site.Name)
	setString("PRICECRAWL_SITE_URL", &c.Site.URL)
	setString("PRICECRAWL_OUTPUT_DIR", &c.Output.Directory)
	setString("PRICECRAWL_DATA_FILE", &c.Output.DataFile)
	setInt("PRICECRAWL_DEADLINE_HOURS", &c.Deadline.Hours)
	setInt("PRICECRAWL_DEADLINE_MINUTES", &c.Deadline.Minutes)
	setString("PRICECRAWL_DRIVER", &c.Browser.Driver)
	setString("PRICECRAWL_CHROME_PATH", &c.Browser.ExecPath)
	setInt("PRICECRAWL_REQUESTS_PER_MINUTE", &c.Browser.RequestsPerMinute)
	setString("PRICECRAWL_LOADER_DRIVER", &c.Loader.Driver)
	setString("PRICECRAWL_LOADER_DSN", &c.Loader.DSN)
	setString("PRICECRAWL_LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("PRICECRAWL_HEADLESS"); v != "" {
		c.Browser.Headless = strings.ToLower(v) == "true"
	}

	// Ignore rules use the semicolon separated form, e.g. PRICECRAWL_IGNORE_CATEGORIES="Pharmacy;Baby"
	for i := range c.Levels {
		key := "PRICECRAWL_IGNORE_" + strings.ToUpper(c.Levels[i].Name)
		if v := os.Getenv(key); v != "" {
			c.Levels[i].Ignore = append(c.Levels[i].Ignore, SplitList(v)...)
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"pricecrawl.yaml",
		"pricecrawl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "pricecrawl", "config.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.DataFile == "" {
		errs = append(errs, errors.New("data file name is required"))
	}
	if c.Output.ContainerTag == "" || c.Output.RecordTag == "" {
		errs = append(errs, errors.New("container and record tags are required"))
	}
	if c.Deadline.Hours < 0 || c.Deadline.Minutes < 0 {
		errs = append(errs, errors.New("deadline cannot be negative"))
	}

	if len(c.Levels) == 0 {
		errs = append(errs, errors.New("at least one level is required"))
	}
	seen := make(map[string]bool)
	for i, lvl := range c.Levels {
		if lvl.Name == "" {
			errs = append(errs, fmt.Errorf("level %d: name is required", i))
			continue
		}
		if seen[lvl.Name] {
			errs = append(errs, fmt.Errorf("level %s: duplicate name", lvl.Name))
		}
		seen[lvl.Name] = true
		if lvl.Checkpoint == "" || lvl.RootTag == "" || lvl.ItemTag == "" {
			errs = append(errs, fmt.Errorf("level %s: checkpoint file and tags are required", lvl.Name))
		}
		if lvl.Limit < 0 {
			errs = append(errs, fmt.Errorf("level %s: limit cannot be negative", lvl.Name))
		}
	}

	if c.Scrape.Retries < 0 {
		errs = append(errs, errors.New("scrape retries cannot be negative"))
	}

	switch c.Browser.Driver {
	case "chrome", "static":
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Browser.Driver))
	}
	if c.Browser.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	switch c.Loader.Driver {
	case "sqlite", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unknown loader driver %q", c.Loader.Driver))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if driver, ok := flags["driver"].(string); ok && driver != "" {
		c.Browser.Driver = driver
	}
	if hours, ok := flags["hours"].(int); ok && hours >= 0 {
		c.Deadline.Hours = hours
	}
	if minutes, ok := flags["minutes"].(int); ok && minutes >= 0 {
		c.Deadline.Minutes = minutes
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
