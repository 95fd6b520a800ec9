// Package storage writes pipeline output into the output directory.
//
// Each non-empty batch becomes {prefix}_{n}.json holding a JSON array of
// product records; failures are written once, at the end of a run, to the
// errors file. All files are written to a .tmp sibling and renamed into
// place, indented with four spaces, with non-ASCII text left unescaped.
//
// NewManager scans existing batch files so a resumed run can continue the
// index sequence, and ScanProcessedIDs recovers which ids those files hold.
package storage
