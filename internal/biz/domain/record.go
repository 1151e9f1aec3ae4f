package domain

// Record is a Bitable row. Only the record id and raw field values are kept;
// the remote table stays the source of truth.
type Record struct {
	RecordID string
	Fields   map[string]interface{}
}

// ProjectMatch groups the records found for a batch inside one project
type ProjectMatch struct {
	Project Project
	Records []Record
}
