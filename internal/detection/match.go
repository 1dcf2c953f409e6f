package detection

// MatchResult is one reverse-search hit returned for a single submission.
// IDs are assigned sequentially from 1 within the submission's batch and are
// not valid across submissions; a new submission replaces the whole set.
type MatchResult struct {
	ID          int    `json:"id"`
	SourceLabel string `json:"source_label"`
	SourceURL   string `json:"source_url"`
	ImageURL    string `json:"image_url"`
}

// Outcome is the result of one classification submission.
type Outcome struct {
	Matches    []MatchResult `json:"matches"`
	IsDeepfake bool          `json:"is_deepfake"`
	Confidence float64       `json:"confidence"`
	// Seq tags the submission that produced this outcome. Consumers must
	// discard an outcome whose Seq is no longer the latest issued, so that
	// overlapping submissions resolve last-submission-wins rather than
	// last-to-resolve-wins.
	Seq uint64 `json:"seq"`
}
