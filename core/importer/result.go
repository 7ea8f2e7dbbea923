package importer

// Status is the outcome of an upload that was not rejected as a whole.
type Status string

const (
	StatusSuccess Status = "success" // every row was applied
	StatusPartial Status = "partial" // rows were applied but some failed
	StatusAborted Status = "aborted" // invalid rows and throwInError: nothing was applied
)

// Result lists every row of an upload exactly once: in Inserted, Updated, Deleted or Errors.
type Result struct {
	Kind     string     `json:"kind"`
	Action   Action     `json:"action"`
	Status   Status     `json:"status"`
	Encoding string     `json:"encoding"`
	Inserted []RawRow   `json:"inserted"`
	Updated  []RawRow   `json:"updated"`
	Deleted  []RawRow   `json:"deleted"`
	Errors   []RowError `json:"errors"`
	ReportID string     `json:"report_id,omitempty"`

	// Report is the rendered error file, when requested and there are errors.
	Report []byte `json:"-"`
}

func newResult(kind *Kind, act Action, enc string) *Result {
	return &Result{
		Kind:     kind.Name,
		Action:   act,
		Encoding: enc,
		Inserted: make([]RawRow, 0),
		Updated:  make([]RawRow, 0),
		Deleted:  make([]RawRow, 0),
		Errors:   make([]RowError, 0),
	}
}

// collect partitions rows in file order. Rows neither applied nor rejected are not listed, which only happens on abort.
func (res *Result) collect(rows []*BatchRow) {
	for _, row := range rows {
		if !row.valid() {
			res.Errors = append(res.Errors, RowError{Line: row.Raw.Line, Row: row.Raw, Errors: row.Errors, Reason: row.Reason})
			continue
		}
		switch row.applied {
		case ActionCreate:
			res.Inserted = append(res.Inserted, row.Raw)
		case ActionUpdate:
			res.Updated = append(res.Updated, row.Raw)
		case ActionDelete:
			res.Deleted = append(res.Deleted, row.Raw)
		}
	}

	switch {
	case res.Status == StatusAborted:
	case len(res.Errors) == 0:
		res.Status = StatusSuccess
	default:
		res.Status = StatusPartial
	}
}

func (res *Result) Applied() int {
	return len(res.Inserted) + len(res.Updated) + len(res.Deleted)
}
