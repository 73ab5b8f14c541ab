package chrome

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricecrawl/internal/driver"
	"pricecrawl/pkg/logger"
	"pricecrawl/pkg/record"
)

type mapStore map[string]string

func (m mapStore) Property(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func testOptions() Options {
	return Options{
		Options: driver.Options{
			Store: mapStore{
				"locations.items": "#location-menu li",
				"leaf.product":    ".product-tile",
				"field.price":     ".price@data-amount",
			},
			StartURL: "https://grocer.example/",
			Levels:   []string{"locations"},
			Fields:   []string{"price", "brand"},
			Logger:   logger.NewNopLogger(),
		},
		Headless: true,
	}
}

func TestNewDoesNotLaunchBrowser(t *testing.T) {
	d, err := New(testOptions())
	require.NoError(t, err)
	defer d.Close()

	assert.Len(t, d.urls, 2)
	assert.Equal(t, 1, d.opts.MaxPages)
	_, err = d.Enumerate(context.Background(), "aisles")
	assert.ErrorContains(t, err, "unknown level")
}

func TestNewAndCloseAreLogged(t *testing.T) {
	tl := logger.NewTestLogger()
	opts := testOptions()
	opts.Logger = tl

	d, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.True(t, tl.HasMessage("Component started"))
	assert.True(t, tl.HasMessage("Component stopped"))
	started := tl.GetMessages()[0]
	assert.Equal(t, "chrome-driver", started.Fields["component"])
	assert.Equal(t, true, started.Fields["headless"])
}

func TestNewValidatesSelectors(t *testing.T) {
	opts := testOptions()
	opts.Levels = append(opts.Levels, "categories")
	_, err := New(opts)
	assert.Error(t, err)
}

func TestAllocatorOptions(t *testing.T) {
	base := allocatorOptions(testOptions())

	withPath := testOptions()
	withPath.ExecPath = "/usr/bin/chromium"
	withPath.UserAgent = "pricecrawl-test"
	assert.Len(t, allocatorOptions(withPath), len(base)+2)
}

func TestFieldSelectorsSkipsUnconfigured(t *testing.T) {
	d, err := New(testOptions())
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, map[string]string{"price": ".price@data-amount"}, d.fieldSelectors())
	assert.Equal(t, ".product-tile", d.waitSelector(1))
	assert.Equal(t, "#location-menu li", d.waitSelector(0))
}

func TestToRecords(t *testing.T) {
	rows := []map[string]string{
		{"product_title": "  Whole   Milk ", "price": "4.99", "brand": "   "},
		{},
	}
	want := []record.Record{
		{"product_title": "Whole Milk", "price": "4.99"},
		{},
	}
	if diff := cmp.Diff(want, toRecords(rows)); diff != "" {
		t.Errorf("toRecords() mismatch (-want +got):\n%s", diff)
	}
}

func TestScriptsEmbedArgumentsAsJSON(t *testing.T) {
	s := clickScript(`a[title="x"]`, `Fruit "and" Veg`)
	assert.Contains(t, s, `"a[title=\"x\"]"`)
	assert.Contains(t, s, `"Fruit \"and\" Veg"`)

	s = extractScript(".tile", map[string]string{"price": ".price@data-amount", "sku": "@data-sku"}, "nav li")
	assert.Contains(t, s, `"css":".price","attr":"data-amount"`)
	assert.Contains(t, s, `"name":"sku","css":"","attr":"data-sku"`)
	assert.Contains(t, s, `"category_path"`)
	assert.True(t, strings.HasPrefix(listScript("li"), "(function(sel)"))
	assert.Contains(t, clickFirstScript("a.next"), `"a.next"`)
}
