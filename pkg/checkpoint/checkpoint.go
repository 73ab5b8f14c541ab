package checkpoint

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
)

// State is the progress of one traversal level.
type State int

const (
	// NotStarted means the level has neither been loaded nor enumerated.
	NotStarted State = iota
	// InProgress means items are held in memory, possibly none remaining yet.
	InProgress
	// Done means the level finished and its file was removed.
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Checkpoint.
type Option func(*Checkpoint)

// WithLogger sets the logger used by the checkpoint.
func WithLogger(l logger.Logger) Option {
	return func(c *Checkpoint) { c.logger = l }
}

// Checkpoint is the persisted list of items still to process at one level.
type Checkpoint struct {
	path    string
	rootTag string
	itemTag string
	logger  logger.Logger

	items []string
	state State
}

// New creates a checkpoint backed by path. Nothing is read until Load.
func New(path, rootTag, itemTag string, opts ...Option) *Checkpoint {
	c := &Checkpoint{
		path:    path,
		rootTag: rootTag,
		itemTag: itemTag,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrDefault(c.logger)
	return c
}

// Path returns the backing file.
func (c *Checkpoint) Path() string {
	return c.path
}

// State returns the level's progress.
func (c *Checkpoint) State() State {
	return c.state
}

// Len returns the number of remaining items.
func (c *Checkpoint) Len() int {
	return len(c.items)
}

// Remaining returns a copy of the remaining items in their original order.
func (c *Checkpoint) Remaining() []string {
	out := make([]string, len(c.items))
	copy(out, c.items)
	return out
}

// Reset forgets in-memory items and returns the checkpoint to NotStarted.
// The backing file is left alone.
func (c *Checkpoint) Reset() {
	c.items = nil
	c.state = NotStarted
}

// Load reads the backing file into memory. It reports false, with an empty
// list and no error, when the file does not exist.
func (c *Checkpoint) Load() (bool, error) {
	file, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.items = nil
			return false, nil
		}
		return false, errs.IO("open checkpoint", c.path, err)
	}
	defer file.Close()

	items, err := c.decode(file)
	if err != nil {
		return false, err
	}
	c.items = items
	c.state = InProgress

	c.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"path":      c.path,
		"remaining": len(items),
	})
	return true, nil
}

func (c *Checkpoint) decode(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var items []string
	var text strings.Builder
	inItem := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, errs.Malformed("decode checkpoint", c.path, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == c.itemTag {
				inItem = true
				text.Reset()
			}
		case xml.CharData:
			if inItem {
				text.Write(t)
			}
		case xml.EndElement:
			if inItem && t.Name.Local == c.itemTag {
				inItem = false
				if item := strings.TrimSpace(text.String()); item != "" {
					items = append(items, item)
				}
			}
		}
	}
}

// Seed replaces the in-memory list with freshly enumerated items. Blank
// names are skipped. Nothing is written to disk.
func (c *Checkpoint) Seed(items []string) {
	c.items = c.items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			c.items = append(c.items, item)
		}
	}
	c.state = InProgress
}

// Consume removes the first occurrence of item and reports whether it was present.
func (c *Checkpoint) Consume(item string) bool {
	for i, it := range c.items {
		if it == item {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Persist atomically rewrites the backing file with the remaining items.
func (c *Checkpoint) Persist() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return errs.IO("create checkpoint directory", c.path, err)
	}

	tempPath := c.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errs.IO("create temporary checkpoint", tempPath, err)
	}

	w := bufio.NewWriter(file)
	w.WriteString(xml.Header)
	w.WriteString("<" + c.rootTag + ">\n")
	for _, item := range c.items {
		w.WriteString("\t<" + c.itemTag + ">")
		xml.EscapeText(w, []byte(item))
		w.WriteString("</" + c.itemTag + ">\n")
	}
	w.WriteString("</" + c.rootTag + ">\n")

	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.IO("write checkpoint", tempPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errs.IO("sync checkpoint", tempPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return errs.IO("close checkpoint", tempPath, err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return errs.IO("replace checkpoint", c.path, err)
	}

	c.logger.InfoWithFields("Checkpoint saved", map[string]interface{}{
		"path":      c.path,
		"remaining": len(c.items),
	})
	return nil
}

// Delete removes the backing file and marks the level Done. A missing file is not an error.
func (c *Checkpoint) Delete() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return errs.IO("delete checkpoint", c.path, err)
	}
	c.items = nil
	c.state = Done

	c.logger.DebugWithFields("Checkpoint deleted", map[string]interface{}{
		"path": c.path,
	})
	return nil
}

// Exists checks if the backing file exists
func (c *Checkpoint) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}
