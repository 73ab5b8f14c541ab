package record

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strings"

	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
)

// Cursor lazily reads records back from files produced by a Sink. Nothing is
// opened until the first HasNext or Next call. In continuation mode the
// cursor walks the base file and then every timestamped sibling in order.
//
// Files whose container element was never closed are read up to EOF; a
// record cut short by EOF is returned as far as it was parsed.
type Cursor struct {
	path         string
	containerTag string
	recordTag    string
	continuation bool
	logger       logger.Logger

	started bool
	pending []string
	current string
	file    *os.File
	dec     *xml.Decoder
	ready   bool
}

// NewCursor creates a cursor over path.
func NewCursor(path, containerTag, recordTag string, opts ...Option) *Cursor {
	o := buildOptions(opts)
	return &Cursor{
		path:         path,
		containerTag: containerTag,
		recordTag:    recordTag,
		continuation: o.continuation,
		logger:       o.logger,
	}
}

// Current returns the file currently being read, or "" if none is open.
func (c *Cursor) Current() string {
	return c.current
}

// HasNext reports whether another record start can be found. It advances past
// any content preceding that record, moving on to later files as needed.
// Calling it repeatedly without Next does not skip records.
func (c *Cursor) HasNext() (bool, error) {
	if c.ready {
		return true, nil
	}
	if !c.started {
		if err := c.discover(); err != nil {
			return false, err
		}
	}

	for {
		if c.dec == nil {
			if len(c.pending) == 0 {
				return false, nil
			}
			if err := c.openNext(); err != nil {
				return false, err
			}
			continue
		}

		tok, err := c.dec.RawToken()
		if err != nil {
			if err := c.endOfFile(err); err != nil {
				return false, err
			}
			continue
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == c.recordTag {
			c.ready = true
			return true, nil
		}
	}
}

// Next returns the next record, or io.EOF once every file is exhausted.
// Child elements whose text is only whitespace contribute no field.
func (c *Cursor) Next() (Record, error) {
	if !c.ready {
		ok, err := c.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
	}
	c.ready = false

	rec := make(Record)
	var field string
	var text strings.Builder
	depth := 0

	for {
		tok, err := c.dec.RawToken()
		if err != nil {
			c.logger.WarnWithFields("Record truncated by end of file", map[string]interface{}{
				"path":   c.current,
				"fields": len(rec),
			})
			if err := c.endOfFile(err); err != nil {
				return rec, err
			}
			return rec, nil
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 1 {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case depth == 0 && t.Name.Local == c.recordTag:
				return rec, nil
			case depth == 1:
				if v := text.String(); strings.TrimSpace(v) != "" {
					rec[field] = v
				}
				depth--
			case depth > 1:
				depth--
			}
		}
	}
}

// Close releases the current file. The cursor is exhausted afterwards.
func (c *Cursor) Close() error {
	c.started = true
	c.pending = nil
	c.ready = false
	return c.closeCurrent()
}

func (c *Cursor) discover() error {
	c.started = true
	if !c.continuation {
		c.pending = []string{c.path}
		return nil
	}
	files, err := Candidates(c.path)
	if err != nil {
		return err
	}
	c.pending = files
	c.logger.DebugWithFields("Record files discovered", map[string]interface{}{
		"base":  c.path,
		"files": files,
	})
	return nil
}

func (c *Cursor) openNext() error {
	path := c.pending[0]
	c.pending = c.pending[1:]

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.IO("open", path, err)
	}
	c.file = file
	c.current = path
	c.dec = xml.NewDecoder(file)
	return nil
}

// endOfFile closes the current file after a read ended. Plain EOF and syntax
// errors (truncated or duplicated containers) end the file quietly; anything
// else is an I/O failure.
func (c *Cursor) endOfFile(readErr error) error {
	path := c.current
	var syntaxErr *xml.SyntaxError
	switch {
	case errors.Is(readErr, io.EOF):
	case errors.As(readErr, &syntaxErr):
		c.logger.WarnWithFields("Record file is not well-formed, continuing with next file", map[string]interface{}{
			"path":  path,
			"line":  syntaxErr.Line,
			"error": syntaxErr.Msg,
		})
	default:
		c.closeCurrent()
		return errs.IO("read", path, readErr)
	}
	return c.closeCurrent()
}

func (c *Cursor) closeCurrent() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	c.dec = nil
	c.current = ""
	if err != nil {
		return errs.IO("close", c.path, err)
	}
	return nil
}
