package types

import "time"

// Outcome is the per-URL result of one ingestion run: either a stored
// fabric or an error. Errors never cross a URL boundary in a batch.
type Outcome struct {
	URL    string  `json:"url"`
	Fabric *Fabric `json:"fabric,omitempty"`
	Err    error   `json:"-"`

	// Reason is the error string for JSON consumers.
	Reason string `json:"reason,omitempty"`
}

// OK reports whether the URL was ingested successfully.
func (o Outcome) OK() bool { return o.Err == nil }

// Failure builds a failed outcome, filling Reason from err.
func Failure(url string, err error) Outcome {
	return Outcome{URL: url, Err: err, Reason: err.Error()}
}

// Success builds a successful outcome.
func Success(url string, f *Fabric) Outcome {
	return Outcome{URL: url, Fabric: f}
}

// BatchResult partitions the outcomes of a batch run.
type BatchResult struct {
	Succeeded []Outcome     `json:"succeeded"`
	Failed    []Outcome     `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Add routes an outcome into the matching partition.
func (b *BatchResult) Add(o Outcome) {
	if o.OK() {
		b.Succeeded = append(b.Succeeded, o)
	} else {
		b.Failed = append(b.Failed, o)
	}
}

// Merge appends all outcomes from other into b.
func (b *BatchResult) Merge(other BatchResult) {
	b.Succeeded = append(b.Succeeded, other.Succeeded...)
	b.Failed = append(b.Failed, other.Failed...)
}

// Total returns the total number of outcomes.
func (b *BatchResult) Total() int {
	return len(b.Succeeded) + len(b.Failed)
}
