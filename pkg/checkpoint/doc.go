// Package checkpoint persists the work still owed at one level of a traversal.
//
// A checkpoint is an ordered todo-list of item names (cities, categories,
// subcategories) stored as a small XML document:
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<cities>
//		<city>Toronto</city>
//		<city>Ottawa</city>
//	</cities>
//
// The file only ever holds items that have not been processed. It is written
// atomically when a session suspends and removed once the list is empty, so an
// existing file always means "resume here".
package checkpoint
