// Package checkpoint records which product identifiers already have a record
// written to an output batch file, so an interrupted run can resume.
//
// The checkpoint is a single JSON object:
//
//	{"processed_ids": ["1042", "1043"], "updated_at": "...", "run_id": "...", "version": 1}
//
// Save writes to checkpoint.json.tmp, syncs it, and renames it over the
// previous file, so a reader only ever sees a complete old or complete new
// checkpoint. Load treats a missing or corrupt file as an empty state.
package checkpoint
