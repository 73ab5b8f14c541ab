package chrome

import (
	"encoding/json"
	"fmt"

	"pricecrawl/internal/driver"
)

// The scripts run in the page and return JSON-compatible values. Arguments
// are embedded as JSON literals.

const normalize = `function norm(s) { return (s || "").replace(/\s+/g, " ").trim(); }`

func js(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func listScript(selector string) string {
	return fmt.Sprintf(`(function(sel) {
	%s
	const seen = new Set();
	const out = [];
	for (const el of document.querySelectorAll(sel)) {
		const name = norm(el.textContent);
		if (name && !seen.has(name)) { seen.add(name); out.push(name); }
	}
	return out;
})(%s)`, normalize, js(selector))
}

func clickScript(selector, item string) string {
	return fmt.Sprintf(`(function(sel, item) {
	%s
	for (const el of document.querySelectorAll(sel)) {
		if (norm(el.textContent) === item) { el.scrollIntoView(); el.click(); return true; }
	}
	return false;
})(%s, %s)`, normalize, js(selector), js(item))
}

func clickFirstScript(selector string) string {
	return fmt.Sprintf(`(function(sel) {
	const el = document.querySelector(sel);
	if (!el) { return false; }
	el.scrollIntoView();
	el.click();
	return true;
})(%s)`, js(selector))
}

type fieldSpec struct {
	Name string `json:"name"`
	CSS  string `json:"css"`
	Attr string `json:"attr"`
}

func extractScript(product string, fields map[string]string, breadcrumb string) string {
	specs := make([]fieldSpec, 0, len(fields))
	for name, sel := range fields {
		css, attr := driver.SplitAttr(sel)
		specs = append(specs, fieldSpec{Name: name, CSS: css, Attr: attr})
	}
	return fmt.Sprintf(`(function(product, fields, crumbs, pathField, sep) {
	%s
	let path = "";
	if (crumbs) {
		path = Array.from(document.querySelectorAll(crumbs)).map(e => norm(e.textContent)).filter(Boolean).join(sep);
	}
	return Array.from(document.querySelectorAll(product)).map(el => {
		const row = {};
		for (const f of fields) {
			const target = f.css ? el.querySelector(f.css) : el;
			if (!target) { continue; }
			const v = f.attr ? target.getAttribute(f.attr) : target.textContent;
			if (norm(v)) { row[f.name] = norm(v); }
		}
		if (path && !row[pathField]) { row[pathField] = path; }
		return row;
	});
})(%s, %s, %s, %s, %s)`, normalize, js(product), js(specs), js(breadcrumb), js(driver.PathField), js(driver.PathSeparator))
}
