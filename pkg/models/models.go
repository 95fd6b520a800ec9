package models

import (
	"bytes"
	"encoding/json"
)

// ProductRecord is the cleaned form of a successful catalog response.
// NumericID marks an id the catalog sent as a JSON number; it is written back
// as a number so output files keep the catalog's type.
type ProductRecord struct {
	ID          string   `json:"id"`
	Name        *string  `json:"name"`
	URLKey      *string  `json:"url_key"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
	ImagesURL   []string `json:"images_url"`
	NumericID   bool     `json:"-"`
}

type plainRecord ProductRecord

// MarshalJSON writes the id as a number when NumericID is set. HTML
// characters are left unescaped.
func (r ProductRecord) MarshalJSON() ([]byte, error) {
	id, err := marshalNoEscape(r.ID)
	if err != nil {
		return nil, err
	}
	if r.NumericID && json.Valid([]byte(r.ID)) {
		var n json.Number
		if json.Unmarshal([]byte(r.ID), &n) == nil {
			id = []byte(r.ID)
		}
	}

	return marshalNoEscape(struct {
		ID json.RawMessage `json:"id"`
		plainRecord
	}{ID: id, plainRecord: plainRecord(r)})
}

// UnmarshalJSON accepts a string or numeric id
func (r *ProductRecord) UnmarshalJSON(data []byte) error {
	aux := struct {
		ID json.RawMessage `json:"id"`
		*plainRecord
	}{plainRecord: (*plainRecord)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.ID, r.NumericID = "", false
	if len(aux.ID) == 0 || bytes.Equal(aux.ID, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.ID, &s); err == nil {
		r.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(aux.ID, &n); err != nil {
		return err
	}
	r.ID, r.NumericID = n.String(), true
	return nil
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// FetchFailure records an identifier that could not be fetched. Reason is
// the error class and is not serialized.
type FetchFailure struct {
	ID     string `json:"id"`
	Error  string `json:"error"`
	Reason string `json:"-"`
}

// Result is the terminal outcome for one identifier. Exactly one of Record and
// Failure is set.
type Result struct {
	ID       string
	Record   *ProductRecord
	Failure  *FetchFailure
	Attempts int
}

// Failed reports whether the result carries a failure
func (r Result) Failed() bool {
	return r.Failure != nil
}

// Succeeded builds a success result
func Succeeded(id string, record *ProductRecord, attempts int) Result {
	return Result{ID: id, Record: record, Attempts: attempts}
}

// FailedWith builds a failure result
func FailedWith(id, reason, message string, attempts int) Result {
	return Result{
		ID:       id,
		Failure:  &FetchFailure{ID: id, Error: message, Reason: reason},
		Attempts: attempts,
	}
}

// BatchResult is the partitioned outcome of one scheduler run. SucceededIDs
// holds the requested identifiers behind Successes, which may differ from the
// id the catalog echoes back in the record.
type BatchResult struct {
	Successes    []ProductRecord
	SucceededIDs []string
	Failures     []FetchFailure
}

// Add files a result into its partition
func (b *BatchResult) Add(r Result) {
	if r.Failed() {
		b.Failures = append(b.Failures, *r.Failure)
		return
	}
	b.Successes = append(b.Successes, *r.Record)
	b.SucceededIDs = append(b.SucceededIDs, r.ID)
}

// IDs returns every requested identifier present in the batch result
func (b BatchResult) IDs() []string {
	ids := make([]string, 0, len(b.SucceededIDs)+len(b.Failures))
	ids = append(ids, b.SucceededIDs...)
	for _, f := range b.Failures {
		ids = append(ids, f.ID)
	}
	return ids
}
