// Package input loads the ordered list of product identifiers for a run.
//
// Identifiers come from the first column of a CSV, TSV or Excel workbook,
// or from a plain list with one identifier per line. Values are trimmed,
// blank rows are dropped, a leading column title is skipped when the rows
// below it are numeric, and duplicates are removed keeping first position.
package input
