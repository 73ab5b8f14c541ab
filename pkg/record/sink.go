package record

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// ErrSinkClosed is returned by Write after Close.
var ErrSinkClosed = errors.New("record sink is closed")

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// Sink appends records to an XML file of the form
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<items>
//		<item>
//			<name>Milk</name>
//		</item>
//	</items>
//
// The document is only well-formed between Close and the next Open. A file
// that already exists is appended to without re-writing the header or the
// opening container tag, so callers must not re-open a file whose container
// was already closed.
type Sink struct {
	path         string
	containerTag string
	recordTag    string
	logger       logger.Logger

	file   *os.File
	w      *bufio.Writer
	count  int
	closed bool

	// wrap, when set, sits between the buffer and the file.
	wrap func(io.Writer) io.Writer
}

// NewSink creates a sink for path. Nothing is touched on disk until Open or Write.
func NewSink(path, containerTag, recordTag string, opts ...Option) *Sink {
	o := buildOptions(opts)
	return &Sink{
		path:         path,
		containerTag: containerTag,
		recordTag:    recordTag,
		logger:       o.logger,
	}
}

// Path returns the file the sink writes to.
func (s *Sink) Path() string {
	return s.path
}

// Count returns the number of records written since the last Open.
func (s *Sink) Count() int {
	return s.count
}

// Open creates or appends to the file. Calling Open on an open sink is a no-op.
func (s *Sink) Open() error {
	if s.file != nil {
		return nil
	}
	if !validName.MatchString(s.containerTag) || !validName.MatchString(s.recordTag) {
		return errs.New(errs.ErrorTypeConfig, "open sink",
			fmt.Errorf("invalid tag names %q/%q", s.containerTag, s.recordTag))
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errs.IO("create directory for", s.path, err)
	}

	_, statErr := os.Stat(s.path)
	existed := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return errs.IO("stat", s.path, statErr)
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errs.IO("open", s.path, err)
	}
	var out io.Writer = file
	if s.wrap != nil {
		out = s.wrap(file)
	}
	w := bufio.NewWriter(out)

	// A new file is only kept once its header is on disk; otherwise a later
	// Open would append to a headerless file.
	if !existed {
		w.WriteString(xmlHeader + "<" + s.containerTag + ">\n")
		if err := w.Flush(); err != nil {
			file.Close()
			os.Remove(s.path)
			return errs.IO("write header", s.path, err)
		}
	}

	s.file = file
	s.w = w
	s.count = 0
	s.closed = false

	s.logger.DebugWithFields("Record sink opened", map[string]interface{}{
		"path":     s.path,
		"appended": existed,
	})
	return nil
}

// Write appends r as one record element. Fields are written in sorted order.
func (s *Sink) Write(r Record) error {
	if s.file == nil {
		if s.closed {
			return ErrSinkClosed
		}
		if err := s.Open(); err != nil {
			return err
		}
	}

	keys := r.Keys()
	for _, k := range keys {
		if !validName.MatchString(k) {
			return errs.Malformed("write record", s.path, fmt.Errorf("invalid field name %q", k))
		}
	}

	s.w.WriteString("\t<" + s.recordTag + ">\n")
	for _, k := range keys {
		s.w.WriteString("\t\t<" + k + ">")
		if err := xml.EscapeText(s.w, []byte(r[k])); err != nil {
			return errs.IO("write record", s.path, err)
		}
		s.w.WriteString("</" + k + ">\n")
	}
	if _, err := s.w.WriteString("\t</" + s.recordTag + ">\n"); err != nil {
		return errs.IO("write record", s.path, err)
	}

	s.count++
	return nil
}

// Close terminates the container element, flushes and releases the file.
// It is a no-op if the sink was never opened or is already closed.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	file := s.file
	s.file = nil
	s.closed = true

	if _, err := s.w.WriteString("</" + s.containerTag + ">\n"); err != nil {
		file.Close()
		return errs.IO("write footer", s.path, err)
	}
	if err := s.w.Flush(); err != nil {
		file.Close()
		return errs.IO("flush", s.path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return errs.IO("sync", s.path, err)
	}
	if err := file.Close(); err != nil {
		return errs.IO("close", s.path, err)
	}

	s.logger.DebugWithFields("Record sink closed", map[string]interface{}{
		"path":    s.path,
		"written": s.count,
	})
	return nil
}
