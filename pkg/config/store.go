package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	errs "pricecrawl/pkg/errors"
)

// Property implements Store. Names are looked up in the selectors map first, then
// among the well-known dotted keys (for example "output.data_file" or "deadline.hours").
func (c *Config) Property(name string) (string, bool) {
	if v, ok := c.Selectors[name]; ok {
		return v, true
	}

	switch name {
	case "site.name":
		return nonEmpty(c.Site.Name)
	case "site.url":
		return nonEmpty(c.Site.URL)
	case "output.directory":
		return nonEmpty(c.Output.Directory)
	case "output.data_file":
		return nonEmpty(c.Output.DataFile)
	case "output.container_tag":
		return nonEmpty(c.Output.ContainerTag)
	case "output.record_tag":
		return nonEmpty(c.Output.RecordTag)
	case "deadline.hours":
		return strconv.Itoa(c.Deadline.Hours), true
	case "deadline.minutes":
		return strconv.Itoa(c.Deadline.Minutes), true
	}
	return "", false
}

// Require returns the named property or a config error if it is not set.
func Require(s Store, name string) (string, error) {
	v, ok := s.Property(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", errs.New(errs.ErrorTypeConfig, "require", fmt.Errorf("missing property %q", name))
	}
	return v, nil
}

// SplitList splits a semicolon separated property value, dropping empty entries.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DataPath returns the configured record file path.
func (c *Config) DataPath() string {
	return filepath.Join(c.Output.Directory, c.Output.DataFile)
}

// CheckpointPath returns the checkpoint file path for lvl.
func (c *Config) CheckpointPath(lvl LevelConfig) string {
	return filepath.Join(c.Output.Directory, lvl.Checkpoint)
}

func nonEmpty(v string) (string, bool) {
	return v, v != ""
}
