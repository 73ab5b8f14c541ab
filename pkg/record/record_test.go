package record

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
)

func readAll(t *testing.T, c *Cursor) []Record {
	t.Helper()
	var out []Record
	for {
		ok, err := c.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		rec, err := c.Next()
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func writeAll(t *testing.T, path string, records ...Record) {
	t.Helper()
	s := NewSink(path, "items", "item", WithLogger(logger.NewNopLogger()))
	require.NoError(t, s.Open())
	for _, r := range records {
		require.NoError(t, s.Write(r))
	}
	require.NoError(t, s.Close())
}

func TestSinkDocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	writeAll(t, path,
		Record{"price": "1.99", "name": "Milk"},
		Record{"price": "2.49", "name": "Bread"},
	)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := `<?xml version="1.0" encoding="UTF-8"?>
<items>
	<item>
		<name>Milk</name>
		<price>1.99</price>
	</item>
	<item>
		<name>Bread</name>
		<price>2.49</price>
	</item>
</items>
`
	assert.Equal(t, want, string(data))
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	written := []Record{
		{"price": "1.99", "name": "Milk"},
		{"price": "2.49", "name": "Bread"},
		{"product_title": "Fish & Chips <frozen>", "brand": `"PC"`, "category_path": "Food>Frozen>Meals"},
		{},
	}
	writeAll(t, path, written...)

	got := readAll(t, NewCursor(path, "items", "item"))
	if diff := cmp.Diff(written, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestSinkCountAndIdempotentOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "prices.xml")
	s := NewSink(path, "items", "item")

	require.NoError(t, s.Close(), "close before open is a no-op")
	require.NoError(t, s.Open())
	require.NoError(t, s.Open())
	require.NoError(t, s.Write(Record{"name": "Milk"}))
	assert.Equal(t, 1, s.Count())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Write(Record{"name": "Eggs"}), ErrSinkClosed)
	assert.Equal(t, path, s.Path())
}

func TestSinkWriteOpensLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	s := NewSink(path, "items", "item")
	require.NoError(t, s.Write(Record{"name": "Milk"}))
	require.NoError(t, s.Close())

	got := readAll(t, NewCursor(path, "items", "item"))
	assert.Equal(t, []Record{{"name": "Milk"}}, got)
}

func TestSinkAppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	s := NewSink(path, "items", "item")
	require.NoError(t, s.Open())
	require.NoError(t, s.Write(Record{"name": "Milk"}))
	// Simulate a crash: flush the buffer but never close the container.
	require.NoError(t, s.w.Flush())
	require.NoError(t, s.file.Close())

	again := NewSink(path, "items", "item")
	require.NoError(t, again.Write(Record{"name": "Bread"}))
	require.NoError(t, again.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "<?xml"))
	assert.Equal(t, 1, strings.Count(string(data), "<items>"))

	got := readAll(t, NewCursor(path, "items", "item"))
	assert.Equal(t, []Record{{"name": "Milk"}, {"name": "Bread"}}, got)
}

func TestSinkRejectsInvalidFieldNames(t *testing.T) {
	s := NewSink(filepath.Join(t.TempDir(), "prices.xml"), "items", "item")
	err := s.Write(Record{"bad name": "x"})
	assert.True(t, errs.IsType(err, errs.ErrorTypeMalformed))
	require.NoError(t, s.Close())
}

func TestSinkIOFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewSink(filepath.Join(blocker, "prices.xml"), "items", "item")
	err := s.Open()
	assert.True(t, errs.IsType(err, errs.ErrorTypeIO))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, io.ErrShortWrite }

func TestSinkHeaderFailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	s := NewSink(path, "items", "item")
	s.wrap = func(io.Writer) io.Writer { return failingWriter{} }

	err := s.Open()
	assert.True(t, errs.IsType(err, errs.ErrorTypeIO))
	assert.NoFileExists(t, path)
	require.NoError(t, s.Close(), "nothing is open, so nothing is written")
	assert.NoFileExists(t, path)

	s.wrap = nil
	require.NoError(t, s.Write(Record{"name": "Milk"}))
	require.NoError(t, s.Close())
	assert.Equal(t, []Record{{"name": "Milk"}}, readAll(t, NewCursor(path, "items", "item")))
}

func TestCursorDropsWhitespaceOnlyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<items>
	<item>
		<name>Milk</name>
		<brand>   </brand>
		<size>
		</size>
		<price/>
	</item>
</items>
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	got := readAll(t, NewCursor(path, "items", "item"))
	assert.Equal(t, []Record{{"name": "Milk"}}, got)
}

func TestCursorTruncatedFile(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []Record
	}{
		{
			name: "missing container close",
			doc:  "<items>\n\t<item>\n\t\t<name>Milk</name>\n\t</item>\n",
			want: []Record{{"name": "Milk"}},
		},
		{
			name: "record cut short",
			doc:  "<items>\n\t<item>\n\t\t<name>Milk</name>\n\t</item>\n\t<item>\n\t\t<name>Bread</name>\n\t\t<pri",
			want: []Record{{"name": "Milk"}, {"name": "Bread"}},
		},
		{
			name: "record start only",
			doc:  "<items>\n\t<item>\n",
			want: []Record{{}},
		},
		{
			name: "empty file",
			doc:  "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prices.xml")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0644))

			tl := logger.NewTestLogger()
			got := readAll(t, NewCursor(path, "items", "item", WithLogger(tl)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCursorHasNextIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	writeAll(t, path, Record{"name": "Milk"}, Record{"name": "Bread"})

	c := NewCursor(path, "items", "item")
	for i := 0; i < 3; i++ {
		ok, err := c.HasNext()
		require.NoError(t, err)
		require.True(t, ok)
	}
	first, err := c.Next()
	require.NoError(t, err)
	second, err := c.Next()
	require.NoError(t, err)
	_, err = c.Next()

	assert.Equal(t, Record{"name": "Milk"}, first)
	assert.Equal(t, Record{"name": "Bread"}, second)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, c.Close())
}

func TestCursorMissingFileIsEmpty(t *testing.T) {
	c := NewCursor(filepath.Join(t.TempDir(), "absent.xml"), "items", "item")
	ok, err := c.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorIsLazy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xml")
	c := NewCursor(path, "items", "item")
	// The file is created after the cursor; it is only looked up on first use.
	writeAll(t, path, Record{"name": "Milk"})
	assert.Len(t, readAll(t, c), 1)
}

func TestCursorContinuation(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "prices.xml")

	// Written newest first so directory order and creation order disagree.
	writeAll(t, filepath.Join(dir, "prices-Mar-05-2024-08-00.xml"), Record{"name": "Third"})
	writeAll(t, filepath.Join(dir, "prices-Mar-04-2024-09-30-2.xml"), Record{"name": "Second-b"})
	writeAll(t, filepath.Join(dir, "prices-Mar-04-2024-09-30.xml"), Record{"name": "Second-a"})
	writeAll(t, base, Record{"name": "First"})
	writeAll(t, filepath.Join(dir, "other-Mar-04-2024-09-30.xml"), Record{"name": "Unrelated"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices-notes.txt"), []byte("x"), 0644))

	c := NewCursor(base, "items", "item", WithContinuation())
	got := readAll(t, c)

	want := []Record{{"name": "First"}, {"name": "Second-a"}, {"name": "Second-b"}, {"name": "Third"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("continuation order mismatch (-want +got):\n%s", diff)
	}
}

func TestCursorContinuationTwoFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "prices.xml")
	writeAll(t, filepath.Join(dir, "prices-Jan-01-2024-00-00.xml"), Record{"name": "B"})
	writeAll(t, base, Record{"name": "A"})

	got := readAll(t, NewCursor(base, "items", "item", WithContinuation()))
	assert.ElementsMatch(t, []Record{{"name": "A"}, {"name": "B"}}, got)
	assert.Len(t, got, 2)
}

func TestCursorContinuationSkipsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "prices.xml")
	require.NoError(t, os.WriteFile(base, []byte("<items>\n\t<item>\n\t\t<name>A</name>\n\t</item>\n\t<item>\n\t\t<na"), 0644))
	writeAll(t, filepath.Join(dir, "prices-Jan-01-2024-00-00.xml"), Record{"name": "B"})

	got := readAll(t, NewCursor(base, "items", "item", WithContinuation(), WithLogger(logger.NewNopLogger())))
	assert.Equal(t, []Record{{"name": "A"}, {}, {"name": "B"}}, got)
}

func TestNextPath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "prices.xml")
	now := time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

	p, err := NextPath(base, now)
	require.NoError(t, err)
	assert.Equal(t, base, p)
	writeAll(t, p, Record{"n": "1"})

	p, err = NextPath(base, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prices-Mar-04-2024-09-30.xml"), p)
	writeAll(t, p, Record{"n": "2"})

	p, err = NextPath(base, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prices-Mar-04-2024-09-30-2.xml"), p)
	writeAll(t, p, Record{"n": "3"})

	files, err := Candidates(base)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Equal(t, base, files[0])
}

func TestRecordMissing(t *testing.T) {
	r := Record{"product_title": "Milk", "price": "  "}
	assert.Equal(t, []string{"price", "brand"}, r.Missing([]string{"product_title", "price", "brand"}))
	assert.Empty(t, r.Missing([]string{"product_title"}))

	clone := r.Clone()
	clone["price"] = "1.00"
	assert.Equal(t, "  ", r["price"])
}
