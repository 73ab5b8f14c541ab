// Package traversal drives a crawl through a fixed hierarchy of levels, for
// example cities, then categories, then subcategories, scraping product
// records at the deepest level.
//
// Each level keeps a checkpoint of the items it still owes. An item leaves
// the checkpoint only after everything beneath it has been processed, so a
// session stopped by its deadline, a cancelled context or a failing page
// resumes on the next Run without losing or repeating a leaf. A level whose
// checkpoint is empty deletes its file; a run that finishes every level
// leaves no checkpoint files behind.
//
// Page interaction goes through PageDriver, so the engine is the same for a
// headless browser and for plain HTTP.
package traversal
