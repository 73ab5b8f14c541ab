package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetQuietMode(false)
	})
	return &buf
}

func TestPrintFunctions(t *testing.T) {
	buf := capture(t)

	PrintInfo("Sink", "data/prices.xml")
	PrintSuccess("Crawl completed")
	PrintWarning("Crawl suspended", "deadline reached")
	PrintError("Crawl failed", "element not found")

	out := buf.String()
	for _, want := range []string{"Sink:", "data/prices.xml", "Crawl completed", "Crawl suspended: deadline reached", "Crawl failed: element not found"} {
		assert.Contains(t, out, want)
	}
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)

	PrintInfo("Sink", "data/prices.xml")
	PrintBanner()
	PrintError("boom")

	assert.NotContains(t, buf.String(), "Sink")
	assert.Contains(t, buf.String(), "boom")
}

func TestPanel(t *testing.T) {
	p := Panel("Crawl", []Row{{"Outcome", "suspended"}, {"Records written", "42"}})

	lines := strings.Split(p, "\n")
	assert.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, p, "Crawl")
	assert.Contains(t, p, "Outcome")
	assert.Contains(t, p, "42")
}

func TestBar(t *testing.T) {
	tests := []struct {
		done, total, width int
		filled, empty      int
	}{
		{1, 2, 10, 5, 5},
		{0, 0, 4, 0, 4},
		{9, 3, 4, 4, 0},
	}
	for _, tt := range tests {
		bar := Bar(tt.done, tt.total, tt.width)
		assert.Equal(t, tt.filled, strings.Count(bar, "█"))
		assert.Equal(t, tt.empty, strings.Count(bar, "░"))
	}
	assert.Empty(t, Bar(1, 1, 0))
}
