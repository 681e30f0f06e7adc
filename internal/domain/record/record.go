// Package record holds the merged per-panel view returned by the retrieval pipeline.
package record

// Case names the resolution branch taken for a request.
type Case string

const (
	// CaseSQLOnly: structured filter only, the predicate result is final.
	CaseSQLOnly Case = "sql_only"
	// CaseScopedVector: structured candidates scope the vector search.
	CaseScopedVector Case = "scoped_vector"
	// CaseGlobalVector: no structured filter, unrestricted vector search.
	CaseGlobalVector Case = "global_vector"
	// CaseEmpty: nothing to resolve.
	CaseEmpty Case = "empty"
)

// Answer is one vector-store entry attached to a record.
type Answer struct {
	Field      string
	Collection string
	Text       string
	Vector     []float32
}

// Record is a read-only snapshot of one panel.
type Record struct {
	ID     string
	Score  float64
	Scored bool
	// Attributes maps catalog field names to stored relational values.
	Attributes map[string]string
	Answers    []Answer
}

// Value returns the value of a field: the relational attribute, or the first
// answer text for a survey field.
func (r Record) Value(field string) (string, bool) {
	if v, ok := r.Attributes[field]; ok {
		return v, v != ""
	}
	for _, a := range r.Answers {
		if a.Field == field && a.Text != "" {
			return a.Text, true
		}
	}
	return "", false
}

// AnswersFor returns the answers recorded for the given fields.
func (r Record) AnswersFor(fields map[string]struct{}) []Answer {
	var out []Answer
	for _, a := range r.Answers {
		if _, ok := fields[a.Field]; ok {
			out = append(out, a)
		}
	}
	return out
}

// FinalRecordSet is the pipeline output.
type FinalRecordSet struct {
	Records []Record
	// Columns are the display columns selected for the records, in display order.
	Columns []string
	// Dropped lists identifiers removed for having no relational row.
	Dropped []string
	Case    Case
}

// Empty returns an empty result for the given case.
func Empty(c Case) FinalRecordSet {
	return FinalRecordSet{Records: []Record{}, Case: c}
}

// Len returns the number of records.
func (s FinalRecordSet) Len() int { return len(s.Records) }

// Head returns the set cut to its first n records. n <= 0 keeps all of them.
func (s FinalRecordSet) Head(n int) FinalRecordSet {
	if n > 0 && len(s.Records) > n {
		s.Records = s.Records[:n:n]
	}
	return s
}

// IDs returns record identifiers in result order.
func (s FinalRecordSet) IDs() []string {
	ids := make([]string, len(s.Records))
	for i, r := range s.Records {
		ids[i] = r.ID
	}
	return ids
}
