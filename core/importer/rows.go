package importer

import (
	"bytes"
	"encoding/json"
)

// Reason classifies why a row ended up in the error collection.
type Reason string

const (
	ReasonInvalid         Reason = "invalid"          // one or more fields failed validation
	ReasonDuplicate       Reason = "duplicate"        // natural key seen earlier in the same upload
	ReasonNotFound        Reason = "not_found"        // update/delete target does not exist
	ReasonExists          Reason = "exists"           // create target already exists
	ReasonInvalidRelation Reason = "invalid_relation" // none of the relation keys resolved
)

// RawRow is one data line of an upload, keyed by the header cells in file order.
type RawRow struct {
	Line   int // 1-based line of the file the row starts on, blank lines included
	Header []string
	Values []string // aligned with Header
}

// Get returns the raw value of column, or "" when the upload has no such column.
func (r RawRow) Get(column string) string {
	for i, h := range r.Header {
		if h == column {
			if i < len(r.Values) {
				return r.Values[i]
			}
			return ""
		}
	}
	return ""
}

// MarshalJSON renders the row as an object whose keys keep the file's column order.
func (r RawRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range r.Header {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		var v string
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NormalizedRow holds the canonical values of a valid row. Fields a kind does not use stay empty.
type NormalizedRow struct {
	Email          string
	PhoneNumber    string
	GivenName      string
	FamilyName     string
	StudentNumber  string
	StudentNumbers []string
}

// FieldErrorSet maps a column to a human readable message; an empty set means the row is valid.
type FieldErrorSet map[string]string

// BatchRow tracks one row through the pipeline. Normalized is nil as long as Errors is not empty.
type BatchRow struct {
	Raw        RawRow
	Normalized *NormalizedRow
	Errors     FieldErrorSet
	Reason     Reason

	applied Action // set once the reconciler persisted the row
}

func (r *BatchRow) valid() bool {
	return len(r.Errors) == 0
}

// reject moves the row to the error collection.
func (r *BatchRow) reject(reason Reason, errs FieldErrorSet) {
	r.Normalized = nil
	r.Reason = reason
	if r.Errors == nil {
		r.Errors = make(FieldErrorSet, len(errs))
	}
	for f, msg := range errs {
		r.Errors[f] = msg
	}
}

// RowError is a row that could not be applied, with the reason and the per-field messages.
type RowError struct {
	Line   int           `json:"line"`
	Row    RawRow        `json:"row"`
	Errors FieldErrorSet `json:"errors"`
	Reason Reason        `json:"reason"`
}
