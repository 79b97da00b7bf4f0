package models

// Record is one normalized listing row. Keys are the schema's field names;
// a field with no value is stored as "" so every record of a crawl carries
// the same key set.
type Record map[string]string

// NewRecord returns a record with every field present and empty.
func NewRecord(fields []string) Record {
	r := make(Record, len(fields))
	for _, f := range fields {
		r[f] = ""
	}
	return r
}

// AnyOf reports whether at least one of the named fields is non-empty.
func (r Record) AnyOf(fields ...string) bool {
	for _, f := range fields {
		if r[f] != "" {
			return true
		}
	}
	return false
}

// Values returns the field values in the given order.
func (r Record) Values(order []string) []string {
	out := make([]string, len(order))
	for i, f := range order {
		out[i] = r[f]
	}
	return out
}
