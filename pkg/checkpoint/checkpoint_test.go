package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "pricecrawl/pkg/errors"
	"pricecrawl/pkg/logger"
)

func newTestCheckpoint(t *testing.T) *Checkpoint {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "cities.xml"), "cities", "city", WithLogger(logger.NewNopLogger()))
}

func TestLoadMissingFile(t *testing.T) {
	cp := newTestCheckpoint(t)

	found, err := cp.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, cp.Remaining())
	assert.Equal(t, NotStarted, cp.State())
	assert.False(t, cp.Exists())
}

func TestPersistAndLoad(t *testing.T) {
	cp := newTestCheckpoint(t)
	cp.Seed([]string{"Toronto", " Ottawa ", "", "Québec & Lévis"})
	require.NoError(t, cp.Persist())
	assert.True(t, cp.Exists())

	data, err := os.ReadFile(cp.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "<city>Toronto</city>")
	assert.Contains(t, string(data), "Québec &amp; Lévis")

	_, err = os.Stat(cp.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file should be renamed away")

	reloaded := New(cp.Path(), "cities", "city", WithLogger(logger.NewNopLogger()))
	found, err := reloaded.Load()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, InProgress, reloaded.State())
	assert.Equal(t, []string{"Toronto", "Ottawa", "Québec & Lévis"}, reloaded.Remaining())
}

func TestConsume(t *testing.T) {
	cp := newTestCheckpoint(t)
	cp.Seed([]string{"Toronto", "Ottawa", "Toronto"})

	assert.True(t, cp.Consume("Toronto"))
	assert.Equal(t, []string{"Ottawa", "Toronto"}, cp.Remaining())
	assert.False(t, cp.Consume("Montreal"), "absent items are ignored")
	assert.Equal(t, 2, cp.Len())
}

func TestRemainingIsACopy(t *testing.T) {
	cp := newTestCheckpoint(t)
	cp.Seed([]string{"Toronto", "Ottawa"})

	view := cp.Remaining()
	view[0] = "Changed"
	cp.Consume("Toronto")

	assert.Equal(t, []string{"Ottawa"}, cp.Remaining())
	assert.Equal(t, []string{"Changed", "Ottawa"}, view)
}

func TestSuspendScenario(t *testing.T) {
	cp := newTestCheckpoint(t)
	cp.Seed([]string{"Toronto", "Ottawa"})
	require.NoError(t, cp.Persist())

	// Resume: process Toronto, then suspend before Ottawa.
	resumed := New(cp.Path(), "cities", "city", WithLogger(logger.NewNopLogger()))
	_, err := resumed.Load()
	require.NoError(t, err)
	resumed.Consume("Toronto")
	require.NoError(t, resumed.Persist())

	after := New(cp.Path(), "cities", "city", WithLogger(logger.NewNopLogger()))
	_, err = after.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ottawa"}, after.Remaining())
}

func TestDeleteIsIdempotent(t *testing.T) {
	cp := newTestCheckpoint(t)
	cp.Seed([]string{"Toronto"})
	require.NoError(t, cp.Persist())

	cp.Consume("Toronto")
	require.NoError(t, cp.Delete())
	require.NoError(t, cp.Delete())
	assert.False(t, cp.Exists())
	assert.Equal(t, Done, cp.State())

	found, err := cp.Load()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, cp.Remaining())
}

func TestLoadMalformed(t *testing.T) {
	cp := newTestCheckpoint(t)
	require.NoError(t, os.WriteFile(cp.Path(), []byte("<cities><city>Toronto</city>"), 0644))

	_, err := cp.Load()
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeMalformed))
}

func TestLoadIgnoresOtherElements(t *testing.T) {
	cp := newTestCheckpoint(t)
	doc := `<?xml version="1.0"?>
<cities>
	<city>Toronto</city>
	<note>skip me</note>
	<city>  </city>
	<city>
		Ottawa
	</city>
</cities>`
	require.NoError(t, os.WriteFile(cp.Path(), []byte(doc), 0644))

	_, err := cp.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Toronto", "Ottawa"}, cp.Remaining())
}

func TestReset(t *testing.T) {
	cp := newTestCheckpoint(t)
	cp.Seed([]string{"Toronto"})
	require.NoError(t, cp.Persist())

	cp.Reset()
	assert.Equal(t, NotStarted, cp.State())
	assert.Zero(t, cp.Len())
	assert.True(t, cp.Exists(), "reset leaves the file in place")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "in_progress", InProgress.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "not_started", NotStarted.String())
}
