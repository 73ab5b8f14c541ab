package record

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	errs "pricecrawl/pkg/errors"
)

// TimestampLayout is embedded in the names of continuation files, e.g. prices-Mar-04-2024-09-30.xml.
const TimestampLayout = "Jan-02-2006-15-04"

// NextPath returns base if no such file exists yet, otherwise the first free
// sibling named <stem>-<timestamp><ext>, adding a -N counter on collision.
func NextPath(base string, now time.Time) (string, error) {
	free, err := isFree(base)
	if err != nil || free {
		return base, err
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamped := stem + "-" + now.Format(TimestampLayout)

	candidate := stamped + ext
	for n := 2; ; n++ {
		free, err := isFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", stamped, n, ext)
	}
}

func isFree(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if os.IsNotExist(err) {
		return true, nil
	}
	return false, errs.IO("stat", path, err)
}

type candidate struct {
	path  string
	stamp time.Time
	seq   int
}

// Candidates lists the files a continuation reader consumes for base: base
// itself (when present) followed by its timestamped siblings ordered by the
// embedded timestamp and then by collision counter.
func Candidates(base string) ([]string, error) {
	dir := filepath.Dir(base)
	name := filepath.Base(base)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(stem) +
		`-([A-Z][a-z]{2}-\d{2}-\d{4}-\d{2}-\d{2})(?:-(\d+))?` + regexp.QuoteMeta(ext) + `$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.IO("list", dir, err)
	}

	var out []string
	var stamped []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == name {
			out = append(out, base)
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		ts, err := time.Parse(TimestampLayout, m[1])
		if err != nil {
			continue
		}
		seq := 1
		if m[2] != "" {
			seq, _ = strconv.Atoi(m[2])
		}
		stamped = append(stamped, candidate{path: filepath.Join(dir, e.Name()), stamp: ts, seq: seq})
	}

	sort.Slice(stamped, func(i, j int) bool {
		if !stamped[i].stamp.Equal(stamped[j].stamp) {
			return stamped[i].stamp.Before(stamped[j].stamp)
		}
		return stamped[i].seq < stamped[j].seq
	})
	for _, c := range stamped {
		out = append(out, c.path)
	}
	return out, nil
}
